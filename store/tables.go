package store

import (
	"context"
	"encoding/json"
	"strings"
)

var emptyTable = []byte("[]")

// key returns the key-value store key for table.
func (s *Store) key(table string) string {
	return s.config.KeyPrefix + table
}

// ensure makes sure table has a stored value, writing an empty list on first
// touch, and returns the stored bytes. Callers must hold the table lock.
func (s *Store) ensure(ctx context.Context, table string) ([]byte, error) {
	if err := s.kv.Ready(ctx); err != nil {
		return nil, err
	}
	raw, ok, err := s.kv.Get(ctx, s.key(table))
	if err != nil {
		return nil, err
	}
	if ok {
		return raw, nil
	}
	if err := s.kv.Set(ctx, s.key(table), emptyTable); err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "created table", "table", table)
	return []byte("[]"), nil
}

// read returns the records of table. Callers must hold the table lock.
func (s *Store) read(ctx context.Context, table string) ([]Record, error) {
	raw, err := s.ensure(ctx, table)
	if err != nil {
		return nil, err
	}
	return decodeTable(table, raw)
}

// write replaces the stored records of table. Callers must hold the table
// lock.
func (s *Store) write(ctx context.Context, table string, records []Record) error {
	b, err := encodeTable(records)
	if err != nil {
		return err
	}
	return s.writeRaw(ctx, table, b)
}

func (s *Store) writeRaw(ctx context.Context, table string, raw []byte) error {
	if err := s.kv.Ready(ctx); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key(table), raw); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "wrote table", "table", table, "bytes", len(raw))
	return nil
}

// snapshot reads table under its lock.
func (s *Store) snapshot(ctx context.Context, table string) ([]Record, error) {
	mu := s.locks.For(table)
	mu.Lock()
	defer mu.Unlock()
	return s.read(ctx, table)
}

// Export returns the stored value of table as is. Unlike List, it also
// works on tables overwritten by SaveRawObject.
func (s *Store) Export(ctx context.Context, table string) (json.RawMessage, error) {
	mu := s.locks.For(table)
	mu.Lock()
	defer mu.Unlock()

	raw, err := s.ensure(ctx, table)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// TableForKey returns the table stored under a key-value store key, and
// false if key lies outside the configured KeyPrefix.
func (s *Store) TableForKey(key string) (string, bool) {
	if !strings.HasPrefix(key, s.config.KeyPrefix) {
		return "", false
	}
	return key[len(s.config.KeyPrefix):], true
}

// ParseTable decodes the stored value of a table as written by a Store.
func ParseTable(table string, raw []byte) ([]Record, error) {
	return decodeTable(table, raw)
}
