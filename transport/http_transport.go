// Package transport implements the two ways an envelope travels: a one-shot
// HTTP request/response exchange, and a persistent socket connection that
// correlates asynchronous responses to pending calls by request id.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mini-jsonrpc/wire"
)

// HTTPTransport sends each envelope as the body of an HTTP POST and reads
// the reply body as the response envelope. A non-2xx status is a
// transport-level failure, distinguishable from a JSON-RPC error member.
type HTTPTransport struct {
	// URL is the fixed endpoint. Leave empty and set Resolver to pick the
	// endpoint per exchange via service discovery.
	URL      string
	Resolver Resolver
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, payload []byte, headers map[string]string) ([]byte, error) {
	url := t.URL
	if t.Resolver != nil {
		addr, err := t.Resolver.Resolve(ctx)
		if err != nil {
			return nil, &wire.Error{Code: wire.CodeTransport, Message: err.Error()}
		}
		url = "http://" + addr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &wire.Error{Code: wire.CodeTransport, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, &wire.Error{Code: wire.CodeAborted, Message: "call aborted"}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &wire.Error{Code: wire.CodeTimeout, Message: "request timed out"}
		}
		return nil, &wire.Error{Code: wire.CodeTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &wire.Error{Code: wire.CodeTransport, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &wire.Error{
			Code:    wire.CodeTransport,
			Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode),
		}
	}
	return body, nil
}
