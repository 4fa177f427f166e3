package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/portal-node/pkg/jsonrpc"
)

const logPrefix = "middleware:logging"

type traceKey struct{}

// TraceID returns the trace id attached by Logging, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// Logging tags each request with a trace id and logs its method, duration and
// error code.
func Logging() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
			trace := uuid.NewString()
			ctx = context.WithValue(ctx, traceKey{}, trace)

			start := time.Now()
			resp := next(ctx, req)
			duration := time.Since(start)

			if resp != nil && resp.Error != nil {
				slog.Warn(fmt.Sprintf("%s - method=%s id=%d trace=%s duration=%s code=%d error=%s",
					logPrefix, req.Method, req.ID, trace, duration, resp.Error.Code, resp.Error.Message))
				return resp
			}
			slog.Info(fmt.Sprintf("%s - method=%s id=%d trace=%s duration=%s", logPrefix, req.Method, req.ID, trace, duration))
			return resp
		}
	}
}
