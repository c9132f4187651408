package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// KeyStrategy describes how a table's primary key is produced.
type KeyStrategy int

// Primary key strategies.
const (
	KeyNone KeyStrategy = iota
	KeyAssigned
	KeyAutoIncrement
)

// String returns the strategy name.
func (k KeyStrategy) String() string {
	switch k {
	case KeyAssigned:
		return "assigned"
	case KeyAutoIncrement:
		return "autoincrement"
	default:
		return "none"
	}
}

// Relation declares how a field of an entity maps to rows of another table.
type Relation struct {
	// Table is the referenced table name.
	Table string
	// Field is the dotted path of the field on the owning entity. The field
	// may hold a single value or a slice.
	Field string
	// Key is an optional dotted path applied to each element of Field when
	// the rows are a nested property of the elements.
	Key string
	// ForeignKey is the column of Table that receives the owner's primary
	// key. Empty when the rows carry no back reference.
	ForeignKey string
}

// Table is the read-only mapping between an entity and its table.
type Table struct {
	Name       string
	Columns    []string
	PrimaryKey string
	Strategy   KeyStrategy
	Relations  []Relation
}

// HasColumn reports whether c is a mapped column.
func (t *Table) HasColumn(c string) bool {
	return slices.Contains(t.Columns, c)
}

// InsertColumns returns the columns written by an INSERT. Auto-increment
// keys are left to the database.
func (t *Table) InsertColumns() []string {
	if t.Strategy != KeyAutoIncrement || t.PrimaryKey == "" {
		return slices.Clone(t.Columns)
	}
	return t.otherColumns()
}

// UpdateColumns returns the columns written by an UPDATE: every mapped
// column except the primary key.
func (t *Table) UpdateColumns() []string {
	if t.PrimaryKey == "" {
		return slices.Clone(t.Columns)
	}
	return t.otherColumns()
}

func (t *Table) otherColumns() []string {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c != t.PrimaryKey {
			cols = append(cols, c)
		}
	}
	return cols
}

// Resolver maps entities to their table mapping.
type Resolver interface {
	// Resolve returns the mapping of the entity's type.
	Resolve(entity any) (*Table, error)
	// Lookup returns the mapping registered under the table name.
	Lookup(name string) (*Table, error)
}

// NotRegisteredError is returned by a Registry for unknown entities.
type NotRegisteredError struct {
	Name string
}

// Error returns the error string.
func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("schema: no table registered for %q", e.Name)
}

// Registry is a Resolver populated by explicit registration.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[reflect.Type]*Table
	tables map[string]*Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[reflect.Type]*Table),
		tables: make(map[string]*Table),
	}
}

// Register associates the entity's type with t. An empty t.Name defaults to
// the Go type name.
func (r *Registry) Register(entity any, t *Table) error {
	typ := indirect(reflect.TypeOf(entity))
	if typ == nil {
		return fmt.Errorf("schema: cannot register nil entity")
	}
	if t.Name == "" {
		t.Name = typ.Name()
	}
	if t.PrimaryKey != "" && !t.HasColumn(t.PrimaryKey) {
		return fmt.Errorf("schema: primary key %q is not a column of %s", t.PrimaryKey, t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[typ] = t
	r.tables[t.Name] = t
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(entity any, t *Table) *Registry {
	if err := r.Register(entity, t); err != nil {
		panic(err)
	}
	return r
}

// Resolve implements Resolver.
func (r *Registry) Resolve(entity any) (*Table, error) {
	typ := indirect(reflect.TypeOf(entity))
	if typ == nil {
		return nil, &NotRegisteredError{Name: "<nil>"}
	}
	r.mu.RLock()
	t, ok := r.types[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotRegisteredError{Name: typ.String()}
	}
	return t, nil
}

// Lookup implements Resolver.
func (r *Registry) Lookup(name string) (*Table, error) {
	r.mu.RLock()
	t, ok := r.tables[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotRegisteredError{Name: name}
	}
	return t, nil
}

// Tables returns the registered tables sorted by name.
func (r *Registry) Tables() []*Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Table) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Validate checks the registered tables against each other.
func (r *Registry) Validate() *ValidationResult {
	return Validate(r.Tables()...)
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	return t
}

var _ Resolver = (*Registry)(nil)
