package server

import (
	"context"
	"fmt"
	"strings"
)

// Handler is one remotely callable method. Params arrive as the positional
// JSON-RPC params array (empty, never nil-checked by handlers); the returned
// value becomes the result member, the returned error becomes the error
// member.
type Handler func(ctx context.Context, params []any) (any, error)

// Service is an explicit registry of method name → handler, built once at
// construction time. Only names registered here are dispatchable; there is
// no runtime probing, so framework-inherited names can never leak into the
// RPC surface.
type Service struct {
	methods map[string]Handler
}

func NewService() *Service {
	return &Service{methods: make(map[string]Handler)}
}

// Register adds a method. Names starting with "$" are reserved for the
// client's control surface and rejected here so they can never collide with
// a remote method.
func (s *Service) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("rpc: method name must not be empty")
	}
	if strings.HasPrefix(name, "$") {
		return fmt.Errorf("rpc: method name %q is reserved", name)
	}
	if h == nil {
		return fmt.Errorf("rpc: handler for %q must not be nil", name)
	}
	if _, exists := s.methods[name]; exists {
		return fmt.Errorf("rpc: method %q already registered", name)
	}
	s.methods[name] = h
	return nil
}

// MustRegister is Register for static setup code where a bad name is a bug.
func (s *Service) MustRegister(name string, h Handler) {
	if err := s.Register(name, h); err != nil {
		panic(err)
	}
}

// Method looks up a registered handler.
func (s *Service) Method(name string) (Handler, bool) {
	h, ok := s.methods[name]
	return h, ok
}
