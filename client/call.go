package client

import "context"

// Call is the handle for an in-flight asynchronous invocation. It carries
// its own abort capability, so no side-table keyed on object identity is
// needed to cancel a call.
type Call struct {
	Method string

	done   chan struct{}
	result any
	err    error
	cancel context.CancelFunc
}

// Go starts the invocation without waiting for it. Use Done to observe
// completion and Result to collect the outcome.
func (c *Client) Go(ctx context.Context, method string, args ...any) *Call {
	cctx, cancel := context.WithCancel(ctx)
	call := &Call{Method: method, done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		call.result, call.err = c.Call(cctx, method, args...)
		close(call.done)
	}()
	return call
}

// Done is closed when the call has completed, failed, or been aborted.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result blocks until the call completes and returns its outcome. After an
// Abort the error is a *wire.Error with the aborted code.
func (c *Call) Result() (any, error) {
	<-c.done
	return c.result, c.err
}

// Abort cancels the call. The transport observes the cancellation and the
// call rejects with an abort-kind error; the server may still be processing.
func (c *Call) Abort() {
	c.cancel()
}
