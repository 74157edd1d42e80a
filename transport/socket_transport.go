package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"mini-jsonrpc/wire"
)

// DefaultCallTimeout bounds a pending call when SocketOptions.CallTimeout is
// left at zero.
const DefaultCallTimeout = 60 * time.Second

// maxLineBytes bounds one newline-delimited inbound envelope.
const maxLineBytes = 4 * 1024 * 1024

// SocketOptions configures a SocketTransport. The zero value gives a 60s
// call timeout, no reconnection, and no heartbeat.
type SocketOptions struct {
	// CallTimeout bounds each call waiting for its response. Zero means
	// DefaultCallTimeout; a negative value disables the timer.
	CallTimeout time.Duration

	// ReconnectDelay is the pause between an unclean close and the next
	// dial attempt. Zero disables reconnection.
	ReconnectDelay time.Duration

	// HeartbeatInterval between "$/ping" notifications, which servers drop
	// silently. Zero disables the heartbeat.
	HeartbeatInterval time.Duration

	// OnOpen is called with the new connection each time the transport
	// reaches the open state, including after a reconnect.
	OnOpen func(conn net.Conn)

	// OnError receives diagnostics that have no call to fail: malformed
	// inbound messages, responses matching no pending call, reconnect
	// failures. Never called concurrently with itself for one message.
	OnError func(err error)

	// Resolver re-resolves the endpoint on every (re)connect. When nil the
	// address given to DialSocket is reused.
	Resolver Resolver
}

// SocketTransport exchanges newline-delimited JSON envelopes over a
// long-lived TCP connection, correlating responses to pending calls by
// request id.
//
//	goroutine-1 ──RoundTrip(id=1)──┐
//	goroutine-2 ──RoundTrip(id=2)──┼──→ single conn ──→ server
//	goroutine-3 ──RoundTrip(id=3)──┘
//
//	readLoop:  ←── response(id=2) → pending[2] ← response → goroutine-2 wakes
//
// Responses may arrive in any order; correlation is strictly by id.
type SocketTransport struct {
	opts SocketOptions
	addr string

	mu      sync.Mutex
	conn    net.Conn // nil while disconnected
	pending map[any]*pendingCall
	closed  bool // set by Close; suppresses reconnection

	writeMu sync.Mutex // serializes frame writes across goroutines
}

type sockResult struct {
	data []byte
	err  error
}

// pendingCall correlates one outstanding request id to its waiting caller.
// Created before the request is written, destroyed when the response
// arrives, the call times out, or the caller aborts.
type pendingCall struct {
	ch chan sockResult // buffered so the read loop never blocks
}

// DialSocket connects to addr and returns an open transport. The options'
// Resolver, when set, overrides addr on this and every later reconnect.
func DialSocket(ctx context.Context, addr string, opts *SocketOptions) (*SocketTransport, error) {
	t := &SocketTransport{
		addr:    addr,
		pending: make(map[any]*pendingCall),
	}
	if opts != nil {
		t.opts = *opts
	}
	if err := t.connect(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// connect dials the endpoint and, on success, moves the transport to the
// open state: OnOpen hook, read loop, heartbeat.
func (t *SocketTransport) connect(ctx context.Context) error {
	addr := t.addr
	if t.opts.Resolver != nil {
		a, err := t.opts.Resolver.Resolve(ctx)
		if err != nil {
			return err
		}
		addr = a
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return fmt.Errorf("transport closed")
	}
	t.conn = conn
	t.mu.Unlock()

	if t.opts.OnOpen != nil {
		t.opts.OnOpen(conn)
	}
	go t.readLoop(conn)
	if t.opts.HeartbeatInterval > 0 {
		go t.heartbeatLoop(conn)
	}
	return nil
}

// RoundTrip sends one envelope and waits for the correlated response. A
// payload without an id is a notification: it is written and nil is returned
// immediately. headers are a request/response-transport concern and ignored
// here.
func (t *SocketTransport) RoundTrip(ctx context.Context, payload []byte, headers map[string]string) ([]byte, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, &wire.Error{Code: wire.CodeTransport, Message: "unencodable request payload"}
	}
	id := wire.ExtractRequestID(v)

	if id == nil {
		if err := t.write(payload); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// Register the pending call before writing, so a fast response cannot
	// race the registration.
	pc := &pendingCall{ch: make(chan sockResult, 1)}
	t.mu.Lock()
	if t.conn == nil {
		t.mu.Unlock()
		return nil, &wire.Error{Code: wire.CodeTransport, Message: "not connected"}
	}
	if _, inFlight := t.pending[id]; inFlight {
		t.mu.Unlock()
		return nil, &wire.Error{Code: wire.CodeDuplicateID, Message: fmt.Sprintf("request id %v already in flight", id)}
	}
	t.pending[id] = pc
	t.mu.Unlock()

	if err := t.write(payload); err != nil {
		t.removePending(id)
		return nil, err
	}

	timeout := t.opts.CallTimeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	}
	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case res := <-pc.ch:
		return res.data, res.err
	case <-timerC:
		t.removePending(id)
		return nil, &wire.Error{Code: wire.CodeTimeout, Message: fmt.Sprintf("request %v timed out", id)}
	case <-ctx.Done():
		t.removePending(id)
		return nil, &wire.Error{Code: wire.CodeAborted, Message: "call aborted"}
	}
}

// write sends one frame under the write lock, so concurrent calls cannot
// interleave bytes on the stream.
func (t *SocketTransport) write(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return &wire.Error{Code: wire.CodeTransport, Message: "not connected"}
	}

	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, payload...)
	frame = append(frame, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := conn.Write(frame); err != nil {
		return &wire.Error{Code: wire.CodeTransport, Message: err.Error()}
	}
	return nil
}

// readLoop is the single reader for one connection. It parses inbound lines,
// validates them as response envelopes, and routes each to the pending call
// with the matching id. On connection loss it fails all pending calls and,
// for unclean closures, schedules reconnection.
func (t *SocketTransport) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := append([]byte(nil), raw...)
		t.dispatchInbound(line)
	}

	t.mu.Lock()
	clean := t.closed
	current := t.conn == conn
	if current {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close()

	if !current {
		// Replaced by an explicit Reconnect; that path owns recovery.
		return
	}

	t.failPending(&wire.Error{Code: wire.CodeTransport, Message: "connection lost"})

	if clean || t.opts.ReconnectDelay <= 0 {
		return
	}
	go t.reconnectLoop()
}

// dispatchInbound routes one inbound message. Diagnostics go through the
// OnError hook, never into the caller's context: the read loop must survive
// any garbage the peer sends.
func (t *SocketTransport) dispatchInbound(line []byte) {
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		t.reportError(fmt.Errorf("malformed inbound message: %w", err))
		return
	}

	m, ok := v.(map[string]any)
	if !ok {
		t.reportError(fmt.Errorf("inbound message is not an object"))
		return
	}
	// Only an explicit id null is the notification shape; a missing id
	// member is an invalid envelope and falls through to validation.
	if id, present := m["id"]; present && id == nil {
		return // notification from the peer, dropped
	}

	if !wire.IsValidResponse(v) {
		t.reportError(fmt.Errorf("invalid response envelope: %s", line))
		return
	}

	id := wire.NormalizeID(m["id"])
	t.mu.Lock()
	pc, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		t.reportError(fmt.Errorf("response id not found: %v", id))
		return
	}
	pc.ch <- sockResult{data: line}
}

func (t *SocketTransport) removePending(id any) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// failPending rejects every outstanding call, releasing their slots.
func (t *SocketTransport) failPending(cause *wire.Error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[any]*pendingCall)
	t.mu.Unlock()

	for _, pc := range pending {
		pc.ch <- sockResult{err: cause}
	}
}

func (t *SocketTransport) reconnectLoop() {
	for {
		time.Sleep(t.opts.ReconnectDelay)

		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}

		if err := t.connect(context.Background()); err != nil {
			t.reportError(fmt.Errorf("reconnect failed: %w", err))
			continue
		}
		return
	}
}

// heartbeatLoop keeps the connection alive with "$/ping" notifications.
// The reserved prefix guarantees no collision with a real method, and a
// server treats the id-less request as a notification, sending nothing back.
func (t *SocketTransport) heartbeatLoop(conn net.Conn) {
	ping := []byte(`{"jsonrpc":"2.0","method":"$/ping"}` + "\n")
	ticker := time.NewTicker(t.opts.HeartbeatInterval)
	defer ticker.Stop()
	for range ticker.C {
		t.writeMu.Lock()
		_, err := conn.Write(ping)
		t.writeMu.Unlock()
		if err != nil {
			return // connection gone; readLoop handles recovery
		}
	}
}

// Close performs a clean close: pending calls are failed, the connection is
// shut down, and no reconnection is attempted.
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	t.failPending(&wire.Error{Code: wire.CodeTransport, Message: "transport closed"})
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Reconnect is the deliberate close-and-reopen requested by the transport's
// owner: unlike Close it flags the closure for reconnection, and unlike the
// unclean path it reconnects immediately rather than after the delay.
func (t *SocketTransport) Reconnect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	old := t.conn
	t.conn = nil // detach so the old read loop does not also reconnect
	t.mu.Unlock()

	if old != nil {
		old.Close()
	}
	t.failPending(&wire.Error{Code: wire.CodeTransport, Message: "connection reset"})
	return t.connect(ctx)
}

// PendingCalls reports the number of outstanding calls, for observability
// and leak checks.
func (t *SocketTransport) PendingCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *SocketTransport) reportError(err error) {
	if t.opts.OnError != nil {
		t.opts.OnError(err)
	}
}
