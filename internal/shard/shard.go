// Package shard spreads table names across a fixed set of lock stripes.
package shard

import (
	"hash/fnv"
	"sync"
)

// MaxStripes bounds the number of stripes a Locks may hold.
const MaxStripes = 256

// Index returns the stripe for name among n stripes.
// With n <= 1, every name maps to stripe 0.
func Index(name string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return int(h.Sum32() % uint32(n))
}

// Locks is a fixed set of mutexes addressed by name. Two names may share a
// stripe; a caller must never hold two stripes at once.
type Locks struct {
	stripes []sync.Mutex
}

// NewLocks creates n stripes, clamped to [1, MaxStripes].
func NewLocks(n int) *Locks {
	if n < 1 {
		n = 1
	}
	if n > MaxStripes {
		n = MaxStripes
	}
	return &Locks{stripes: make([]sync.Mutex, n)}
}

// For returns the mutex guarding name.
func (l *Locks) For(name string) *sync.Mutex {
	return &l.stripes[Index(name, len(l.stripes))]
}

// Len returns the number of stripes.
func (l *Locks) Len() int {
	return len(l.stripes)
}
