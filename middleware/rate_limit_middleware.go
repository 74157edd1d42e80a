package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"mini-jsonrpc/wire"
)

// RateLimitMiddleware rejects requests beyond the token-bucket limit with an
// application-level error envelope instead of dropping them.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *wire.Request) *wire.Response {
			if !limiter.Allow() {
				return wire.NewError(req.ID, wire.CodeApplication, "rate limit exceeded", nil)
			}
			return next(ctx, req)
		}
	}
}
