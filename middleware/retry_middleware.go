package middleware

import (
	"context"
	"log"
	"strings"
	"time"

	"mini-jsonrpc/wire"
)

func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *wire.Request) *wire.Response {
			resp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if resp == nil || resp.Error == nil {
					return resp // Success, return response
				}
				if strings.Contains(resp.Error.Message, "timed out") || strings.Contains(resp.Error.Message, "rate limit") {
					// Log the retry attempt
					log.Printf("Retry attempt %d for %s due to error: %s", i+1, req.Method, resp.Error.Message)
					time.Sleep(baseDelay * time.Duration(1<<i)) // Exponential backoff
					resp = next(ctx, req)                       // Retry the request
				} else {
					return resp // Non-retryable error, return immediately
				}
			}
			return resp // Return last response after retries
		}
	}
}
