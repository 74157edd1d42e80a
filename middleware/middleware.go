package middleware

import (
	"context"

	"mini-jsonrpc/wire"
)

// HandlerFunc processes one validated JSON-RPC request and always produces a
// response envelope, never an error. The dispatcher's method invocation sits
// at the bottom of the chain.
type HandlerFunc func(ctx context.Context, req *wire.Request) *wire.Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines multiple middlewares into one, onion style:
// Chain(A, B, C)(handler) executes A.before → B.before → C.before → handler,
// then unwinds in reverse.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
