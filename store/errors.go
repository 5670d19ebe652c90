package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record in a table has the requested id.
	ErrNotFound = errors.New("doctable: record not found")

	// ErrIndexAllocation is returned when the next id cannot be derived from
	// the records already in a table.
	ErrIndexAllocation = errors.New("doctable: cannot allocate next id")

	// ErrConfirmationRequired is returned by destructive table operations
	// called without confirmation. Nothing is written.
	ErrConfirmationRequired = errors.New("doctable: confirmation required to delete all data")

	// ErrInvalidID is returned when an update carries no usable id.
	ErrInvalidID = errors.New("doctable: record id must be a positive integer")

	// ErrInvalidRecord is returned when a nil record is saved.
	ErrInvalidRecord = errors.New("doctable: nil record")

	// ErrNotATable is returned when the stored value of a table is not a
	// list of records, typically after SaveRawObject.
	ErrNotATable = errors.New("doctable: stored value is not a table")

	// ErrAmbiguousRelation is returned when a Field asks for both a one and
	// a many relation.
	ErrAmbiguousRelation = errors.New("doctable: relation cannot be both one and many")

	// ErrHasChildren is returned when removing a record that still has
	// registered children and orphan protection is on.
	ErrHasChildren = errors.New("doctable: record has children")
)

// NotFoundError reports the table and id of a failed lookup.
type NotFoundError struct {
	Table string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("doctable: no record with id %d in table %q", e.ID, e.Table)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IndexAllocationError reports the id value that could not serve as the
// baseline for the next id.
type IndexAllocationError struct {
	Table string
	Value any
}

func (e *IndexAllocationError) Error() string {
	return fmt.Sprintf("doctable: cannot allocate next id in table %q: invalid baseline id %v", e.Table, e.Value)
}

// Is reports whether target is ErrIndexAllocation.
func (e *IndexAllocationError) Is(target error) bool {
	return target == ErrIndexAllocation
}
