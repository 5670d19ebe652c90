package store

import (
	"context"
	"encoding/json"
)

// Table is a Store bound to one table name. The binding is fixed at
// creation; a Table holds no other state.
type Table struct {
	store *Store
	name  string
}

// Table returns a handle bound to name.
func (s *Store) Table(name string) *Table {
	return &Table{store: s, name: name}
}

// Name returns the bound table name.
func (t *Table) Name() string { return t.name }

// List calls Store.List on the bound table.
func (t *Table) List(ctx context.Context, rels ...Relation) ([]Record, error) {
	return t.store.List(ctx, t.name, rels...)
}

// Get calls Store.Get on the bound table.
func (t *Table) Get(ctx context.Context, id int64, rels ...Relation) (Record, error) {
	return t.store.Get(ctx, t.name, id, rels...)
}

// Count calls Store.Count on the bound table.
func (t *Table) Count(ctx context.Context) (int, error) {
	return t.store.Count(ctx, t.name)
}

// Save calls Store.Save on the bound table.
func (t *Table) Save(ctx context.Context, data Record, update bool) (Record, error) {
	return t.store.Save(ctx, t.name, data, update)
}

// SaveAll calls Store.SaveAll on the bound table.
func (t *Table) SaveAll(ctx context.Context, records []Record, update bool) ([]Record, error) {
	return t.store.SaveAll(ctx, t.name, records, update)
}

// Remove calls Store.Remove on the bound table.
func (t *Table) Remove(ctx context.Context, id int64) error {
	return t.store.Remove(ctx, t.name, id)
}

// RemoveWithOptions calls Store.RemoveWithOptions on the bound table.
func (t *Table) RemoveWithOptions(ctx context.Context, id int64, opts RemoveOptions) error {
	return t.store.RemoveWithOptions(ctx, t.name, id, opts)
}

// RemoveAll calls Store.RemoveAll on the bound table.
func (t *Table) RemoveAll(ctx context.Context, confirm bool) error {
	return t.store.RemoveAll(ctx, t.name, confirm)
}

// SaveRawObject calls Store.SaveRawObject on the bound table.
func (t *Table) SaveRawObject(ctx context.Context, raw any, confirm bool) error {
	return t.store.SaveRawObject(ctx, t.name, raw, confirm)
}

// Export calls Store.Export on the bound table.
func (t *Table) Export(ctx context.Context) (json.RawMessage, error) {
	return t.store.Export(ctx, t.name)
}
