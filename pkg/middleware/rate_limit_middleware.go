package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/morezero/portal-node/pkg/jsonrpc"
)

// RateLimit admits requests through a token bucket of r per second with the
// given burst. Rejected requests get CodeRateLimited.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
			if !limiter.Allow() {
				return errorResponse(req, jsonrpc.CodeRateLimited, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
