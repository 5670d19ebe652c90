package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// Dir is a Store keeping one JSON file per key inside a directory.
//
// Writes go to a temporary file that is renamed over the target, so a
// reader never observes a partially written value.
type Dir struct {
	root string

	once    sync.Once
	initErr error
}

// NewDir returns a Store rooted at root. The directory is created by Ready.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Ready creates the root directory if needed.
func (d *Dir) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.once.Do(func() {
		if err := os.MkdirAll(d.root, 0o755); err != nil {
			d.initErr = fmt.Errorf("%w: %w", ErrNotReady, err)
		}
	})
	return d.initErr
}

// Get reads the file backing key.
func (d *Dir) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set atomically replaces the file backing key.
func (d *Dir) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(d.root, ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(value); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, d.path(key)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// path maps key to a file name; keys may hold any character.
func (d *Dir) path(key string) string {
	return filepath.Join(d.root, url.PathEscape(key)+".json")
}
