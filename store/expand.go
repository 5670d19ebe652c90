package store

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// expansion carries the foreign tables read during one List or Get call, so
// each is read once however many records and relations need it.
type expansion struct {
	s     *Store
	owner string

	group  singleflight.Group
	mu     sync.Mutex
	tables map[string][]Record
}

func newExpansion(s *Store, owner string) *expansion {
	return &expansion{
		s:      s,
		owner:  owner,
		tables: make(map[string][]Record),
	}
}

// table returns the records of name, reading them on first use. The
// returned slice is shared and must not be modified.
func (e *expansion) table(ctx context.Context, name string) ([]Record, error) {
	e.mu.Lock()
	records, ok := e.tables[name]
	e.mu.Unlock()
	if ok {
		return records, nil
	}

	v, err, _ := e.group.Do(name, func() (any, error) {
		records, err := e.s.snapshot(ctx, name)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.tables[name] = records
		e.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Record), nil
}

// maxExpandWorkers bounds how many records of one List are expanded at once.
const maxExpandWorkers = 16

type attachment struct {
	key   string
	value any
	ok    bool
}

// expand resolves rels concurrently and returns a copy of item with the
// results attached in relation order.
func (s *Store) expand(ctx context.Context, e *expansion, item Record, rels []Relation) (Record, error) {
	if item == nil {
		return nil, nil
	}
	results := make([]attachment, len(rels))

	g, gctx := errgroup.WithContext(ctx)
	for i, rel := range rels {
		if rel == nil {
			continue
		}
		i, rel := i, rel
		g.Go(func() error {
			value, ok, err := rel.resolve(gctx, e, item)
			if err != nil {
				return err
			}
			results[i] = attachment{key: rel.Target(), value: value, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := item.Clone()
	for _, a := range results {
		if a.ok {
			out[a.key] = a.value
		}
	}
	return out, nil
}

// expandAll expands every record concurrently, keeping input order.
func (s *Store) expandAll(ctx context.Context, owner string, records []Record, rels []Relation) ([]Record, error) {
	e := newExpansion(s, owner)
	out := make([]Record, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxExpandWorkers)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			expanded, err := s.expand(gctx, e, rec, rels)
			if err != nil {
				return err
			}
			out[i] = expanded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
