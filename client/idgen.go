package client

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultIDGenerator derives ids from the construction-time clock plus an
// atomic counter: time-seeded so separate client instances do not collide,
// monotonic so concurrent calls from one client never reuse an in-flight id.
func DefaultIDGenerator() IDGenerator {
	base := time.Now().UnixMilli()
	var n atomic.Int64
	return func() any {
		return base + n.Add(1)
	}
}

// SequenceGenerator yields start, start+1, ... for deterministic tests.
func SequenceGenerator(start int64) IDGenerator {
	var n atomic.Int64
	n.Store(start - 1)
	return func() any {
		return n.Add(1)
	}
}

// UUIDGenerator yields string ids, for deployments that need globally unique
// request ids across clients.
func UUIDGenerator() IDGenerator {
	return func() any {
		return uuid.NewString()
	}
}
