package middleware

import (
	"context"
	"time"

	"mini-jsonrpc/wire"
)

func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *wire.Request) *wire.Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *wire.Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return wire.NewError(req.ID, wire.CodeApplication, "request timed out", nil)
			}
		}
	}
}
