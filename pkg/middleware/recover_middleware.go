package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/portal-node/pkg/jsonrpc"
)

// Recover turns a handler panic into an internal error response.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *jsonrpc.Request) (resp *jsonrpc.Response) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error(fmt.Sprintf("middleware:recover - panic in method=%s: %v", req.Method, r))
					resp = errorResponse(req, jsonrpc.CodeInternal, "internal error")
				}
			}()
			return next(ctx, req)
		}
	}
}
