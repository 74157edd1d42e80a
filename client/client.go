// Package client implements the client side of the JSON-RPC 2.0 protocol
// layer: it turns a method name and argument list into a request envelope,
// sends it through a Transport, validates the response, and surfaces errors
// as *wire.Error values.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"mini-jsonrpc/transcoder"
	"mini-jsonrpc/wire"
)

// Transport carries one serialized envelope to the server and returns the
// serialized response. Request/response transports return the reply body;
// socket transports correlate by id internally. For notifications the
// returned payload may be nil.
type Transport interface {
	RoundTrip(ctx context.Context, payload []byte, headers map[string]string) ([]byte, error)
}

// IDGenerator produces a fresh request id per call. Ids must not collide
// while in flight; see DefaultIDGenerator, SequenceGenerator, UUIDGenerator.
type IDGenerator func() any

// MetadataFunc supplies per-call request metadata (e.g. auth headers). It is
// invoked fresh before every call.
type MetadataFunc func(ctx context.Context) (map[string]string, error)

// Options configures a Client. The zero value uses the identity transcoder,
// the default time-derived id generator, and no metadata.
type Options struct {
	Transcoder transcoder.Transcoder
	IDUsing    IDGenerator
	Metadata   MetadataFunc
}

// Client dispatches remote calls over its Transport. Methods are addressed
// by name; names starting with "$" are reserved for the control surface and
// never treated as remote calls.
type Client struct {
	transport Transport
	tc        transcoder.Transcoder
	nextID    IDGenerator
	metadata  MetadataFunc
}

func New(t Transport, opts *Options) *Client {
	c := &Client{transport: t, tc: transcoder.Identity{}, nextID: DefaultIDGenerator()}
	if opts != nil {
		c.tc = transcoder.Default(opts.Transcoder)
		if opts.IDUsing != nil {
			c.nextID = opts.IDUsing
		}
		c.metadata = opts.Metadata
	}
	return c
}

// Call invokes a remote method and returns its result, or a *wire.Error
// carrying the server-reported (or locally synthesized) code, message, and
// data. Trailing nil arguments are trimmed, so omitted optional arguments
// serialize identically to not having been passed.
func (c *Client) Call(ctx context.Context, method string, args ...any) (any, error) {
	if strings.HasPrefix(method, "$") {
		return nil, &wire.Error{Code: wire.CodeMethodNotFound, Message: "method name " + method + " is reserved"}
	}
	id := wire.NormalizeID(c.nextID())
	return c.roundTrip(ctx, wire.NewRequest(id, method, trimArgs(args)))
}

// Notify sends a request without an id: no response is expected, none is
// awaited.
func (c *Client) Notify(ctx context.Context, method string, args ...any) error {
	if strings.HasPrefix(method, "$") {
		return &wire.Error{Code: wire.CodeMethodNotFound, Message: "method name " + method + " is reserved"}
	}
	_, err := c.roundTrip(ctx, wire.NewRequest(nil, method, trimArgs(args)))
	return err
}

func (c *Client) roundTrip(ctx context.Context, req *wire.Request) (any, error) {
	// The transcoder sees the full envelope in generic JSON shape, exactly
	// what the server-side deserializer will hand to its own transcoder.
	env := map[string]any{"jsonrpc": req.JSONRPC, "method": req.Method}
	if req.ID != nil {
		env["id"] = req.ID
	}
	if len(req.Params) > 0 {
		env["params"] = req.Params
	}

	serialized, err := c.tc.Serialize(env)
	if err != nil {
		return nil, &wire.Error{Code: wire.CodeTransport, Message: "request serialization failed: " + err.Error()}
	}
	payload, err := json.Marshal(serialized)
	if err != nil {
		return nil, &wire.Error{Code: wire.CodeTransport, Message: "request serialization failed: " + err.Error()}
	}

	var headers map[string]string
	if c.metadata != nil {
		headers, err = c.metadata(ctx)
		if err != nil {
			return nil, &wire.Error{Code: wire.CodeTransport, Message: "metadata callback failed: " + err.Error()}
		}
	}

	data, err := c.transport.RoundTrip(ctx, payload, headers)
	if err != nil {
		return nil, asProtocolError(err)
	}
	if req.Notification() {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &wire.Error{Code: wire.CodeInvalidResponse, Message: "response is not valid JSON"}
	}
	v, err = c.tc.Deserialize(v)
	if err != nil {
		return nil, &wire.Error{Code: wire.CodeInvalidResponse, Message: "response deserialization failed: " + err.Error()}
	}
	if !wire.IsValidResponse(v) {
		return nil, &wire.Error{Code: wire.CodeInvalidResponse, Message: "invalid response envelope"}
	}

	resp := wire.ParseResponse(v)
	if resp.ID != req.ID {
		return nil, &wire.Error{Code: wire.CodeInvalidResponse, Message: "response id does not match request id"}
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// asProtocolError maps transport failures onto the protocol error taxonomy.
// Errors already shaped as *wire.Error pass through untouched.
func asProtocolError(err error) *wire.Error {
	var rpcErr *wire.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, context.Canceled) {
		return &wire.Error{Code: wire.CodeAborted, Message: "call aborted"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &wire.Error{Code: wire.CodeTimeout, Message: "request timed out"}
	}
	return &wire.Error{Code: wire.CodeTransport, Message: err.Error()}
}

// trimArgs strips trailing nil arguments, so a call with N explicit
// arguments followed by omitted ones produces the same wire params as a call
// with just the N arguments. Interior nils are preserved as JSON null.
func trimArgs(args []any) []any {
	for len(args) > 0 && args[len(args)-1] == nil {
		args = args[:len(args)-1]
	}
	return args
}
