// Package loadbalance provides strategies for spreading calls across the
// JSON-RPC endpoints discovered through the registry.
//
//   - RoundRobin:      stateless services, equal-capacity instances
//   - WeightedRandom:  heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  affinity to one instance per key
package loadbalance

import "mini-jsonrpc/registry"

// Balancer picks one instance from the discovered list. Pick runs on every
// exchange and must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name, for logging.
	Name() string
}
