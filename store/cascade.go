package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// RemoveOptions configures RemoveWithOptions.
type RemoveOptions struct {
	// Cascade also removes registered children, recursively.
	Cascade bool

	// OrphanProtect fails the removal if registered children exist.
	OrphanProtect bool
}

// RemoveWithOptions removes the record with the given id from table,
// honoring the registry. Without a registry it behaves like Remove.
func (s *Store) RemoveWithOptions(ctx context.Context, table string, id int64, opts RemoveOptions) error {
	if opts.OrphanProtect && !opts.Cascade {
		hasChildren, err := s.HasChildren(ctx, table, id)
		if err != nil {
			return err
		}
		if hasChildren {
			return fmt.Errorf("%w: %s %d", ErrHasChildren, table, id)
		}
	}

	removed, err := s.remove(ctx, table, id)
	if err != nil || !removed || !opts.Cascade {
		return err
	}
	return s.cascade(ctx, table, []int64{id})
}

// HasChildren reports whether any registered child table holds a row
// referencing the given record.
func (s *Store) HasChildren(ctx context.Context, table string, id int64) (bool, error) {
	for _, rel := range s.registry.ChildrenOf(table) {
		children, err := s.snapshot(ctx, rel.ChildTable)
		if err != nil {
			return false, err
		}
		key := rel.Key()
		for _, child := range children {
			if child != nil && looseEqual(child[key], id) {
				return true, nil
			}
		}
	}
	return false, nil
}

// RemoveChildren removes, from every registered child table of parentTable,
// the rows referencing one of ids. It does not descend further; the ids
// removed per child table are returned so the caller can. Failures on one
// child table do not stop the others.
func (s *Store) RemoveChildren(ctx context.Context, parentTable string, ids []int64) (map[string][]int64, error) {
	removed := make(map[string][]int64)
	if len(ids) == 0 {
		return removed, nil
	}

	var errs []error
	for _, rel := range s.registry.ChildrenOf(parentTable) {
		childIDs, err := s.removeWhere(ctx, rel.ChildTable, rel.Key(), ids)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to remove children",
				"parent", parentTable,
				"child", rel.ChildTable,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", rel.ChildTable, err))
			continue
		}
		if len(childIDs) > 0 {
			removed[rel.ChildTable] = append(removed[rel.ChildTable], childIDs...)
		}
	}
	return removed, errors.Join(errs...)
}

// cascade removes the descendants of the given parent rows.
func (s *Store) cascade(ctx context.Context, parentTable string, ids []int64) error {
	removed, err := s.RemoveChildren(ctx, parentTable, ids)
	errs := []error{err}
	for child, childIDs := range removed {
		s.logger.InfoContext(ctx, "cascaded removal",
			"parent", parentTable,
			"child", child,
			"count", len(childIDs),
		)
		errs = append(errs, s.cascade(ctx, child, childIDs))
	}
	return errors.Join(errs...)
}

// removeWhere deletes the rows of table whose column matches one of ids and
// returns the ids of the deleted rows.
func (s *Store) removeWhere(ctx context.Context, table, column string, ids []int64) ([]int64, error) {
	mu := s.locks.For(table)
	mu.Lock()
	defer mu.Unlock()

	records, err := s.read(ctx, table)
	if err != nil {
		return nil, err
	}

	var removed []int64
	before := len(records)
	kept := slices.DeleteFunc(records, func(r Record) bool {
		if r == nil {
			return false
		}
		for _, id := range ids {
			if looseEqual(r[column], id) {
				if rid, ok := r.ID(); ok {
					removed = append(removed, rid)
				}
				return true
			}
		}
		return false
	})
	if len(kept) == before {
		return nil, nil
	}
	if err := s.write(ctx, table, kept); err != nil {
		return nil, err
	}
	return removed, nil
}
