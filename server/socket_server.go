package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"mini-jsonrpc/registry"
	"mini-jsonrpc/wire"
)

// maxLineBytes bounds one newline-delimited envelope.
const maxLineBytes = 4 * 1024 * 1024

// SocketServer hosts a Dispatcher over long-lived TCP connections carrying
// newline-delimited JSON envelopes. It owns the socket lifecycle (accept,
// framing, close); the Dispatcher owns the protocol semantics.
//
// Pipeline per connection:
//
//	Accept conn → handleConn (single goroutine reads lines)
//	  → for each message: go handleMessage (parallel processing)
//	    → Dispatcher.Handle → write response (skipped for notifications)
type SocketServer struct {
	name     string      // Service name registered for discovery
	disp     *Dispatcher // Protocol dispatcher shared by all connections
	listener net.Listener
	wg       sync.WaitGroup // Tracks in-flight messages for graceful shutdown
	shutdown atomic.Bool    // Set during shutdown to suppress Accept errors

	registry      registry.Registry // nil if not using discovery
	advertiseAddr string            // Address registered for discovery; differs from
	// the listen address because ":8080" is not routable
}

func NewSocketServer(name string, disp *Dispatcher) *SocketServer {
	return &SocketServer{name: name, disp: disp}
}

// Serve listens on the given address, optionally registers with the
// discovery registry, and enters the accept loop. Pass a nil registry to
// skip discovery.
func (s *SocketServer) Serve(network, address, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = listener

	s.advertiseAddr = advertiseAddr
	if reg != nil {
		s.registry = reg
		// TTL = 10 seconds, KeepAlive renews automatically
		if err := reg.Register(s.name, registry.ServiceInstance{Addr: advertiseAddr}, 10); err != nil {
			listener.Close()
			return err
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			// During shutdown, listener.Close() makes Accept fail; the
			// shutdown flag distinguishes that from a real error.
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn reads framed messages sequentially and dispatches each to its
// own goroutine. A per-connection write mutex keeps concurrently written
// responses from interleaving on the stream.
func (s *SocketServer) handleConn(conn net.Conn) {
	defer conn.Close()
	writeMu := &sync.Mutex{}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		// The scanner reuses its buffer; copy before handing off.
		line := append([]byte(nil), raw...)
		// Count the message before the goroutine starts, so Shutdown's
		// Wait cannot slip in between scan and dispatch.
		s.wg.Add(1)
		go s.handleMessage(line, conn, writeMu)
	}
}

// handleMessage runs one envelope through the dispatcher and writes the
// response, unless the message was a notification (a valid request without
// an id), for which nothing is ever sent back.
func (s *SocketServer) handleMessage(line []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer s.wg.Done()

	out := s.disp.Handle(context.Background(), line).([]byte)

	var v any
	if err := json.Unmarshal(line, &v); err == nil {
		if wire.IsValidRequest(v) && wire.ExtractRequestID(v) == nil {
			return // notification: dispatched, no response
		}
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	conn.Write(append(out, '\n'))
}

// Shutdown performs graceful shutdown: deregister from discovery first so
// clients stop routing here, then stop accepting, then wait out in-flight
// messages up to the timeout.
func (s *SocketServer) Shutdown(timeout time.Duration) error {
	if s.registry != nil {
		s.registry.Deregister(s.name, s.advertiseAddr)
	}

	// Flag before closing, so Serve sees an intentional Accept failure.
	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for in-flight requests to finish")
	}
}
