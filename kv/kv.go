// Package kv defines the key-value collaborator that doctable tables are
// persisted in, along with the backends shipped with the module.
//
// A backend associates an opaque key with an opaque value. Values handed to
// [Store.Set] and returned by [Store.Get] are owned by the caller; backends
// copy them.
package kv

import (
	"context"
	"errors"
)

// ErrNotReady is returned by backends that were used before [Store.Ready]
// succeeded or whose initialization failed.
var ErrNotReady = errors.New("kv: store not ready")

// Store is the key-value collaborator.
type Store interface {
	// Ready blocks until the store is initialized. All other calls must
	// wait on it first.
	Ready(ctx context.Context) error

	// Get returns the value stored under key. ok is false when key was
	// never set.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set persists value under key, replacing any prior value.
	Set(ctx context.Context, key string, value []byte) error
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
