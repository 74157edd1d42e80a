package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"mini-jsonrpc/registry"
)

// ConsistentHashBalancer maps keys to instances on a hash ring: the same key
// lands on the same instance until the ring changes, which gives per-key
// affinity (sticky sessions, local caches).
//
// Each real instance is placed on the ring as many virtual nodes; without
// them a handful of instances could cluster and skew the load.
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32                             // sorted hash values on the ring
	nodes    map[uint32]*registry.ServiceInstance // hash value → instance
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per
// instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		ring:     []uint32{},
		nodes:    make(map[uint32]*registry.ServiceInstance),
	}
}

// Add places an instance onto the ring under its virtual-node hashes.
func (b *ConsistentHashBalancer) Add(instance *registry.ServiceInstance) {
	for i := 0; i < b.replicas; i++ {
		key := fmt.Sprintf("%s#%d", instance.Addr, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	// Keep the ring sorted for binary search in Pick.
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// Pick finds the instance responsible for key: the first ring node at or
// after the key's hash, wrapping to the start of the ring.
//
// Pick takes a string key rather than an instance list because consistent
// hashing is key-based; it does not implement the Balancer interface.
func (b *ConsistentHashBalancer) Pick(key string) (*registry.ServiceInstance, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("no instances available")
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
