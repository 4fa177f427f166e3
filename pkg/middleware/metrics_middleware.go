package middleware

import (
	"context"
	"time"

	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/metrics"
)

// otherMethod labels methods outside the known set so clients cannot grow
// the label space.
const otherMethod = "other"

// Metrics records each request's method, error code and duration. Methods not
// in known are recorded as "other".
func Metrics(known []string) Middleware {
	allowed := make(map[string]bool, len(known))
	for _, m := range known {
		allowed[m] = true
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
			start := time.Now()
			resp := next(ctx, req)

			method := req.Method
			if !allowed[method] {
				method = otherMethod
			}
			code := 0
			if resp != nil && resp.Error != nil {
				code = resp.Error.Code
			}
			metrics.RecordRPC(method, code, time.Since(start))
			return resp
		}
	}
}
