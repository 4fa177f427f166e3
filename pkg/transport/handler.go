// Package transport carries JSON-RPC documents over NATS request/reply and
// HTTP into the validated handler chain.
package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/middleware"
)

const logPrefix = "transport:handler"

// HandleRaw parses and validates one JSON-RPC document and hands the request
// to h. It always returns a response.
func HandleRaw(ctx context.Context, data []byte, h middleware.HandlerFunc) *jsonrpc.Response {
	req, err := jsonrpc.ParseRequest(data)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - rejected document: %v", logPrefix, err))
		rpcErr := jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "invalid request")
		if jsonrpc.IsSyntaxError(err) {
			rpcErr = jsonrpc.NewError(jsonrpc.CodeParseError, "parse error")
		}
		rpcErr.Data = err.Error()
		return jsonrpc.NewErrorResponse(nil, rpcErr)
	}

	id := req.ID
	if err := req.Validate(); err != nil {
		rpcErr := jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "invalid request")
		rpcErr.Data = err
		return jsonrpc.NewErrorResponse(&id, rpcErr)
	}

	resp := h(ctx, req)
	if resp == nil {
		slog.Error(fmt.Sprintf("%s - handler returned no response for method=%s", logPrefix, req.Method))
		return jsonrpc.NewErrorResponse(&id, jsonrpc.NewError(jsonrpc.CodeInternal, "no response"))
	}
	return resp
}
