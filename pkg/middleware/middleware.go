// Package middleware wraps JSON-RPC handlers with cross-cutting behaviour.
package middleware

import (
	"context"

	"github.com/morezero/portal-node/pkg/jsonrpc"
)

// HandlerFunc handles one validated request.
type HandlerFunc func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response

// Middleware decorates a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

func errorResponse(req *jsonrpc.Request, code int, message string) *jsonrpc.Response {
	id := req.ID
	return jsonrpc.NewErrorResponse(&id, jsonrpc.NewError(code, message))
}
