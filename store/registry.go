package store

// Relationship declares that rows of ChildTable belong to rows of
// ParentTable through a foreign key column.
type Relationship struct {
	// ParentTable is the parent table name (e.g., "author").
	ParentTable string

	// ChildTable is the child table name (e.g., "book").
	ChildTable string

	// ForeignKey is the child column holding the parent id.
	// Default: "<ParentTable>_id" (e.g., "author_id")
	ForeignKey string
}

// Key returns the foreign key column, applying the default.
func (r Relationship) Key() string {
	if r.ForeignKey != "" {
		return r.ForeignKey
	}
	return r.ParentTable + "_id"
}

// Many returns the relation expanding a parent record with its children.
func (r Relationship) Many() Many {
	return Many{Table: r.ChildTable, Column: r.Key()}
}

// One returns the relation expanding a child record with its parent.
func (r Relationship) One() One {
	return One{Table: r.ParentTable, Key: r.Key()}
}

// Registry holds all known table relationships for cascade operations.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[string][]Relationship),
	}
}

// Register adds a relationship to the registry.
// This should be called during setup for each parent-child relationship.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentTable] = append(r.byParent[rel.ParentTable], rel)
}

// ChildrenOf returns all child relationships for a given parent table.
func (r *Registry) ChildrenOf(parentTable string) []Relationship {
	if r == nil {
		return nil
	}
	return r.byParent[parentTable]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	if r == nil {
		return nil
	}
	return r.relationships
}

// HasChildren returns true if the parent table has any registered child relationships.
func (r *Registry) HasChildren(parentTable string) bool {
	return len(r.ChildrenOf(parentTable)) > 0
}
