package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/jacentio/doctable/internal/shard"
	"github.com/jacentio/doctable/kv"
)

// Store provides record operations over tables kept in a key-value store.
type Store struct {
	kv       kv.Store
	config   Config
	locks    *shard.Locks
	logger   *slog.Logger
	registry *Registry
}

// New creates a new Store instance.
func New(backend kv.Store, config Config) *Store {
	config.validate()
	return &Store{
		kv:     backend,
		config: config,
		locks:  shard.NewLocks(config.LockStripes),
		logger: config.Logger,
	}
}

// NewWithRegistry creates a new Store instance with a relationship registry.
func NewWithRegistry(backend kv.Store, config Config, registry *Registry) *Store {
	s := New(backend, config)
	s.registry = registry
	return s
}

// SetRegistry sets the relationship registry for cascade operations.
func (s *Store) SetRegistry(registry *Registry) {
	s.registry = registry
}

// Registry returns the relationship registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// List returns every record of table in table order. With relations, each
// record is expanded; the result keeps table order.
func (s *Store) List(ctx context.Context, table string, rels ...Relation) ([]Record, error) {
	records, err := s.snapshot(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return records, nil
	}
	return s.expandAll(ctx, table, records, rels)
}

// Get returns the record of table with the given id. Get with NoID returns
// a nil record and no error. A missing record yields a *NotFoundError.
func (s *Store) Get(ctx context.Context, table string, id int64, rels ...Relation) (Record, error) {
	records, err := s.snapshot(ctx, table)
	if err != nil {
		return nil, err
	}
	if id == NoID {
		return nil, nil
	}

	idx := indexOf(records, id)
	if idx < 0 {
		return nil, &NotFoundError{Table: table, ID: id}
	}
	if len(rels) == 0 {
		return records[idx], nil
	}
	return s.expand(ctx, newExpansion(s, table), records[idx], rels)
}

// Count returns the number of records in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	records, err := s.snapshot(ctx, table)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Save stores data in table and returns the stored copy; data itself is not
// modified.
//
// Without update, a new id is allocated and the record is appended. With
// update, the record carrying data's id is replaced in place within a single
// write; if no record has that id, data is appended under it.
func (s *Store) Save(ctx context.Context, table string, data Record, update bool) (Record, error) {
	mu := s.locks.For(table)
	mu.Lock()
	defer mu.Unlock()
	return s.save(ctx, table, data, update)
}

// SaveAll saves records in order, each persisted before the next starts.
// The batch stops at the first failure: records saved before it stay
// persisted and are returned along with the error.
func (s *Store) SaveAll(ctx context.Context, table string, records []Record, update bool) ([]Record, error) {
	mu := s.locks.For(table)
	mu.Lock()
	defer mu.Unlock()

	saved := make([]Record, 0, len(records))
	for i, data := range records {
		rec, err := s.save(ctx, table, data, update)
		if err != nil {
			return saved, fmt.Errorf("save %d of %d: %w", i+1, len(records), err)
		}
		saved = append(saved, rec)
	}
	return saved, nil
}

func (s *Store) save(ctx context.Context, table string, data Record, update bool) (Record, error) {
	if data == nil {
		return nil, ErrInvalidRecord
	}
	records, err := s.read(ctx, table)
	if err != nil {
		return nil, err
	}

	rec := data.Clone()
	if update {
		id, ok := rec.ID()
		if !ok {
			return nil, fmt.Errorf("%w: got %v in table %q", ErrInvalidID, data["id"], table)
		}
		rec["id"] = id
		if idx := indexOf(records, id); idx >= 0 {
			records[idx] = rec
		} else {
			records = append(records, rec)
		}
	} else {
		id, err := s.nextID(table, records)
		if err != nil {
			return nil, err
		}
		rec["id"] = id
		records = append(records, rec)
	}

	if err := s.write(ctx, table, records); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes the record with the given id from table. Removing an id
// that is not present changes nothing.
func (s *Store) Remove(ctx context.Context, table string, id int64) error {
	_, err := s.remove(ctx, table, id)
	return err
}

// remove reports whether a record was deleted.
func (s *Store) remove(ctx context.Context, table string, id int64) (bool, error) {
	mu := s.locks.For(table)
	mu.Lock()
	defer mu.Unlock()

	records, err := s.read(ctx, table)
	if err != nil {
		return false, err
	}
	idx := indexOf(records, id)
	if idx < 0 {
		s.logger.DebugContext(ctx, "remove: no such record", "table", table, "id", id)
		return false, nil
	}
	return true, s.write(ctx, table, slices.Delete(records, idx, idx+1))
}

// RemoveAll empties table. It fails with ErrConfirmationRequired unless
// confirm is true.
func (s *Store) RemoveAll(ctx context.Context, table string, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	mu := s.locks.For(table)
	mu.Lock()
	defer mu.Unlock()

	if err := s.writeRaw(ctx, table, emptyTable); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "removed all records", "table", table)
	return nil
}

// SaveRawObject replaces the stored value of table with the JSON encoding
// of raw. The value need not be a list of records; a table holding anything
// else fails List and friends with ErrNotATable until it is cleared. It
// fails with ErrConfirmationRequired unless confirm is true.
func (s *Store) SaveRawObject(ctx context.Context, table string, raw any, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode raw value for %q: %w", table, err)
	}

	mu := s.locks.For(table)
	mu.Lock()
	defer mu.Unlock()

	if err := s.writeRaw(ctx, table, b); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "replaced table with raw value", "table", table, "bytes", len(b))
	return nil
}

// nextID returns the id for a new record appended to records.
func (s *Store) nextID(table string, records []Record) (int64, error) {
	if len(records) == 0 {
		return 1, nil
	}

	var base int64
	switch s.config.IDPolicy {
	case IDPolicyLast:
		last := records[len(records)-1]
		id, ok := last.ID()
		if !ok {
			return 0, &IndexAllocationError{Table: table, Value: idValue(last)}
		}
		base = id
	default:
		for _, rec := range records {
			id, ok := rec.ID()
			if !ok {
				return 0, &IndexAllocationError{Table: table, Value: idValue(rec)}
			}
			base = max(base, id)
		}
	}

	if base == math.MaxInt64 {
		return 0, &IndexAllocationError{Table: table, Value: base}
	}
	next := base + 1
	// Only IDPolicyLast can land on an id that is already taken.
	if s.config.IDPolicy == IDPolicyLast && indexOf(records, next) >= 0 {
		return 0, &IndexAllocationError{Table: table, Value: base}
	}
	return next, nil
}

func idValue(rec Record) any {
	if rec == nil {
		return nil
	}
	return rec["id"]
}

// indexOf returns the position of the record with the given id, or -1.
func indexOf(records []Record, id int64) int {
	return slices.IndexFunc(records, func(r Record) bool {
		return r.hasID(id)
	})
}
