package middleware

import (
	"context"
	"log"
	"time"

	"mini-jsonrpc/wire"
)

func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *wire.Request) *wire.Response {
			start := time.Now()
			resp := next(ctx, req)
			// Print the method and the time taken to process the request and error if any
			duration := time.Since(start)
			log.Printf("Method: %s, Duration: %s", req.Method, duration)
			if resp != nil && resp.Error != nil {
				log.Printf("Error: %d %s", resp.Error.Code, resp.Error.Message)
			}
			return resp
		}
	}
}
