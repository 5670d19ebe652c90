package store

import (
	"context"
	"fmt"
	"strings"
)

// Relation describes how to attach data from another table to a record.
// It is either a [One] or a [Many].
type Relation interface {
	// Target returns the table the relation reads from. Its result is
	// attached to the record under this name.
	Target() string

	resolve(ctx context.Context, e *expansion, item Record) (value any, ok bool, err error)
}

// One attaches the single record of Table whose Column equals the value of
// the local field Key. Records without Key are left untouched; a Key with no
// matching record attaches nil.
type One struct {
	Table  string
	Column string // default "id"
	Key    string
}

// Many attaches every record of Table whose Column equals the local record
// id, in table order.
type Many struct {
	Table  string
	Column string // default "<owning table>_id"
}

// Target implements Relation.
func (r One) Target() string { return r.Table }

// Target implements Relation.
func (r Many) Target() string { return r.Table }

func (r One) resolve(ctx context.Context, e *expansion, item Record) (any, bool, error) {
	if r.Key == "" {
		return nil, false, nil
	}
	fk, present := item[r.Key]
	if !present || fk == nil {
		return nil, false, nil
	}

	records, err := e.table(ctx, r.Table)
	if err != nil {
		return nil, false, err
	}
	column := r.Column
	if column == "" {
		column = "id"
	}
	for _, rec := range records {
		if looseEqual(rec[column], fk) {
			return rec.Clone(), true, nil
		}
	}
	return nil, true, nil
}

func (r Many) resolve(ctx context.Context, e *expansion, item Record) (any, bool, error) {
	records, err := e.table(ctx, r.Table)
	if err != nil {
		return nil, false, err
	}
	column := r.Column
	if column == "" {
		column = e.owner + "_id"
	}

	id := item["id"]
	matched := []Record{}
	for _, rec := range records {
		if looseEqual(rec[column], id) {
			matched = append(matched, rec.Clone())
		}
	}
	return matched, true, nil
}

// Field is the flag-based relation description accepted from
// configuration and JSON input. Use [Field.Relation] to convert it.
type Field struct {
	FromTable  string `json:"fromTable" yaml:"fromTable"`
	FromColumn string `json:"fromColumn,omitempty" yaml:"fromColumn,omitempty"`
	HasOne     bool   `json:"hasOne,omitempty" yaml:"hasOne,omitempty"`
	HasMany    bool   `json:"hasMany,omitempty" yaml:"hasMany,omitempty"`
	ByKeyName  string `json:"byKeyName,omitempty" yaml:"byKeyName,omitempty"`
}

// Relation converts f. Neither flag set means a One relation; both set is
// ErrAmbiguousRelation.
func (f Field) Relation() (Relation, error) {
	if f.FromTable == "" {
		return nil, fmt.Errorf("doctable: relation without fromTable")
	}
	switch {
	case f.HasOne && f.HasMany:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousRelation, f.FromTable)
	case f.HasMany:
		return Many{Table: f.FromTable, Column: f.FromColumn}, nil
	default:
		return One{Table: f.FromTable, Column: f.FromColumn, Key: f.ByKeyName}, nil
	}
}

// Relations converts fields in order.
func Relations(fields ...Field) ([]Relation, error) {
	rels := make([]Relation, 0, len(fields))
	for _, f := range fields {
		rel, err := f.Relation()
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// ParseRelation parses the compact form used on command lines:
//
//	one:<table>:<key>[:<column>]
//	many:<table>[:<column>]
func ParseRelation(s string) (Relation, error) {
	parts := strings.Split(s, ":")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("doctable: invalid relation %q: empty segment", s)
		}
	}

	switch {
	case parts[0] == "one" && (len(parts) == 3 || len(parts) == 4):
		rel := One{Table: parts[1], Key: parts[2]}
		if len(parts) == 4 {
			rel.Column = parts[3]
		}
		return rel, nil
	case parts[0] == "many" && (len(parts) == 2 || len(parts) == 3):
		rel := Many{Table: parts[1]}
		if len(parts) == 3 {
			rel.Column = parts[2]
		}
		return rel, nil
	default:
		return nil, fmt.Errorf("doctable: invalid relation %q: want one:<table>:<key>[:<column>] or many:<table>[:<column>]", s)
	}
}
