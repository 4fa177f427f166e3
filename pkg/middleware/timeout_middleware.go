package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/portal-node/pkg/jsonrpc"
)

// Timeout bounds the handler by d. The handler runs on its own goroutine, so
// a panic there is recovered here rather than by an outer Recover.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan *jsonrpc.Response, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						slog.Error(fmt.Sprintf("middleware:timeout - panic in method=%s: %v", req.Method, r))
						done <- errorResponse(req, jsonrpc.CodeInternal, "internal error")
					}
				}()
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return errorResponse(req, jsonrpc.CodeInternal, "request timed out")
			}
		}
	}
}
