// Package store keeps tables of schemaless records in a key-value store.
//
// A table is a named, ordered list of [Record] values, persisted as one JSON
// array under one key of a [kv.Store]. Every record carries a positive
// integer "id" that the store allocates on creation. Records can be expanded
// with data from other tables by foreign-key convention.
//
// # Operations
//
// [Store] takes the table name on every call; [Store.Table] binds a name
// once:
//
//	books := s.Table("book")
//	rec, err := books.Save(ctx, store.Record{"title": "A"}, false)
//
// A table that was never written reads as empty. Save with update replaces
// the record in place in a single write. Remove of an unknown id is a no-op.
// [Store.RemoveAll] and [Store.SaveRawObject] require explicit confirmation.
//
// # Relations
//
// A [Relation] is either a [One] (look up a single record by a local key)
// or a [Many] (collect the records pointing back at this one):
//
//	author, err := s.Get(ctx, "author", 1, store.Many{Table: "book"})
//	// author["book"] holds every book with author_id == 1
//
// Relations of a record, and records of a List, are resolved concurrently;
// each foreign table is read once per call.
//
// # Concurrency
//
// Mutating operations read the whole table, change it in memory and write
// it back while holding a per-table lock, so concurrent calls on one Store
// never lose each other's updates. The lock is process-local: two processes
// writing the same table through a shared backend can still overwrite each
// other.
//
// # Configuration
//
// Use [DefaultConfig] for most cases. [IDPolicyLast] reproduces legacy id
// numbering:
//
//	cfg := store.DefaultConfig()
//	cfg.IDPolicy = store.IDPolicyLast
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - no record with that id (as [*NotFoundError])
//   - [ErrIndexAllocation] - next id cannot be derived (as [*IndexAllocationError])
//   - [ErrConfirmationRequired] - destructive call without confirmation
//   - [ErrInvalidID] - update without a positive integer id
//   - [ErrNotATable] - stored value is not a list of records
//   - [ErrHasChildren] - cannot remove a record with children
//
// Errors from the key-value store are returned unchanged.
package store
