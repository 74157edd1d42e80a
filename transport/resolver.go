package transport

import (
	"context"
	"fmt"

	"mini-jsonrpc/loadbalance"
	"mini-jsonrpc/registry"
)

// Resolver picks the endpoint address for an exchange. Transports that hold
// a fixed address use StaticResolver; discovery-backed deployments resolve
// through the registry on every connect.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver always returns the same address.
type StaticResolver string

func (r StaticResolver) Resolve(ctx context.Context) (string, error) {
	return string(r), nil
}

// RegistryResolver discovers instances of a named service and picks one with
// the configured balancer on each Resolve call.
type RegistryResolver struct {
	Registry registry.Registry
	Balancer loadbalance.Balancer
	Service  string
}

func (r *RegistryResolver) Resolve(ctx context.Context) (string, error) {
	instances, err := r.Registry.Discover(r.Service)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", r.Service, err)
	}
	instance, err := r.Balancer.Pick(instances)
	if err != nil {
		return "", err
	}
	return instance.Addr, nil
}
