// Package server implements the server side of the JSON-RPC 2.0 protocol
// layer: an explicit method registry, a dispatcher that validates inbound
// envelopes and maps every possible failure into an error envelope, and a
// socket host that frames newline-delimited JSON over TCP.
//
// Request processing pipeline:
//
//	raw bytes/value → transcoder.Deserialize → validity check
//	  → Middleware Chain → method handler → error mapping
//	  → transcoder.Serialize → raw bytes/value
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mini-jsonrpc/middleware"
	"mini-jsonrpc/transcoder"
	"mini-jsonrpc/wire"
)

// Options configures a Dispatcher. The zero value dispatches with the
// identity transcoder, no middleware, and the default error mapping.
type Options struct {
	Transcoder  transcoder.Transcoder
	Middlewares []middleware.Middleware

	// Error-mapping overrides. Each receives the raw handler error and
	// replaces one derivation, letting a deployment mask internal detail.
	GetErrorCode    func(err error) int
	GetErrorMessage func(err error) string
	GetErrorData    func(err error) any

	// OnError observes the raw handler error before mapping, for logging.
	OnError func(err error)
}

// Dispatcher validates, dispatches, and formats responses for one Service.
// It is stateless between calls; the middleware chain is built once at
// construction.
type Dispatcher struct {
	svc     *Service
	opts    Options
	tc      transcoder.Transcoder
	handler middleware.HandlerFunc
}

func NewDispatcher(svc *Service, opts *Options) *Dispatcher {
	d := &Dispatcher{svc: svc}
	if opts != nil {
		d.opts = *opts
	}
	d.tc = transcoder.Default(d.opts.Transcoder)
	d.handler = middleware.Chain(d.opts.Middlewares...)(d.invoke)
	return d
}

// Handle processes one inbound envelope and never fails: every error becomes
// an error envelope. raw may be unparsed wire bytes ([]byte or string) or an
// already-decoded JSON value; the return type mirrors the input (bytes in,
// bytes out).
func (d *Dispatcher) Handle(ctx context.Context, raw any) any {
	wantBytes := false
	var v any
	switch r := raw.(type) {
	case []byte:
		wantBytes = true
		if err := json.Unmarshal(r, &v); err != nil {
			return d.finish(wire.NewError(nil, wire.CodeParseError, "Parse error", nil), wantBytes)
		}
	case string:
		wantBytes = true
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			return d.finish(wire.NewError(nil, wire.CodeParseError, "Parse error", nil), wantBytes)
		}
	case json.RawMessage:
		wantBytes = true
		if err := json.Unmarshal(r, &v); err != nil {
			return d.finish(wire.NewError(nil, wire.CodeParseError, "Parse error", nil), wantBytes)
		}
	default:
		v = raw
	}

	dv, err := d.tc.Deserialize(v)
	if err != nil {
		return d.finish(wire.NewError(wire.ExtractRequestID(v), wire.CodeInvalidRequest, "Invalid Request", nil), wantBytes)
	}
	v = dv

	// Extract the id before validation so a malformed request still gets a
	// correctly correlated error response.
	id := wire.ExtractRequestID(v)

	if !wire.IsValidRequest(v) {
		return d.finish(wire.NewError(id, wire.CodeInvalidRequest, "Invalid Request", nil), wantBytes)
	}

	resp := d.handler(ctx, wire.ParseRequest(v))
	return d.finish(resp, wantBytes)
}

// invoke sits at the bottom of the middleware chain: method lookup, handler
// call, error mapping.
func (d *Dispatcher) invoke(ctx context.Context, req *wire.Request) *wire.Response {
	h, ok := d.svc.Method(req.Method)
	if !ok {
		return wire.NewError(req.ID, wire.CodeMethodNotFound, "Method not found: "+req.Method, nil)
	}

	params := req.Params
	if params == nil {
		params = []any{}
	}

	result, err := safeInvoke(ctx, h, params)
	if err != nil {
		return d.mapError(req.ID, err)
	}
	return wire.NewResult(req.ID, result)
}

func (d *Dispatcher) mapError(id any, err error) *wire.Response {
	if d.opts.OnError != nil {
		d.opts.OnError(err)
	}

	code := wire.CodeApplication
	message := err.Error()
	var data any

	var rpcErr *wire.Error
	if errors.As(err, &rpcErr) {
		code = rpcErr.Code
		message = rpcErr.Message
		data = rpcErr.Data
	}

	if d.opts.GetErrorCode != nil {
		code = d.opts.GetErrorCode(err)
	}
	if d.opts.GetErrorMessage != nil {
		message = d.opts.GetErrorMessage(err)
	}
	if d.opts.GetErrorData != nil {
		data = d.opts.GetErrorData(err)
	}

	// Only JSON-representable detail survives; anything else is dropped.
	data = jsonRoundTrip(data)

	return wire.NewError(id, code, message, data)
}

// finish serializes the outbound envelope through the transcoder and, when
// the inbound message arrived as raw bytes, marshals it back to bytes.
func (d *Dispatcher) finish(resp *wire.Response, wantBytes bool) any {
	env := map[string]any{"jsonrpc": resp.JSONRPC, "id": resp.ID}
	if resp.Error != nil {
		em := map[string]any{"code": resp.Error.Code, "message": resp.Error.Message}
		if resp.Error.Data != nil {
			em["data"] = resp.Error.Data
		}
		env["error"] = em
	} else {
		env["result"] = resp.Result
	}

	out, err := d.tc.Serialize(env)
	if err != nil {
		// A transcoder that cannot serialize its own envelope is a
		// deployment bug; report it instead of dropping the response.
		out = map[string]any{
			"jsonrpc": wire.Version,
			"id":      resp.ID,
			"error":   map[string]any{"code": wire.CodeInternalError, "message": "response serialization failed"},
		}
	}

	if !wantBytes {
		return out
	}
	b, err := json.Marshal(out)
	if err != nil {
		b, _ = json.Marshal(wire.NewError(resp.ID, wire.CodeInternalError, "response serialization failed", nil))
	}
	return b
}

func safeInvoke(ctx context.Context, h Handler, params []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return h(ctx, params)
}

func jsonRoundTrip(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// Handle is the collaborator surface for hosting frameworks that construct a
// Service per request (e.g. to capture transport metadata): one function
// taking the raw inbound body and returning the outbound envelope.
func Handle(ctx context.Context, raw any, svc *Service, opts *Options) any {
	return NewDispatcher(svc, opts).Handle(ctx, raw)
}
