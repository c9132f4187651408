package sqlgraph

import (
	"reflect"
	"slices"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/dialect/sql"
	"github.com/syssam/sqlstack/schema"
)

// Cascade expands the write of one entity into the writes of the entities
// reachable through its declared relations.
//
//	c := sqlgraph.NewCascade(registry)
//	stmts, err := c.Insert(order)
//	// stmts[0]: INSERT INTO Order ...
//	// stmts[1..n]: INSERT INTO OrderLine ... with orderId = result[0].insertId
//
// The returned list is meant for sequential execution: statements carrying
// sql.Deferred parameters can only run once the statement they point at
// has produced its result.
type Cascade struct {
	resolver schema.Resolver
}

// NewCascade returns a cascade compiler resolving related tables with r.
func NewCascade(r schema.Resolver) *Cascade {
	return &Cascade{resolver: r}
}

// node is an entity whose INSERT sits at index in the statement list.
type node struct {
	index  int
	table  *schema.Table
	entity reflect.Value
	path   []uintptr
}

type cascadeState struct {
	*Cascade
	stmts []sql.Statement
}

// Insert compiles the INSERT of entity followed by its dependencies.
func (c *Cascade) Insert(entity any) ([]sql.Statement, error) {
	t, err := c.resolver.Resolve(entity)
	if err != nil {
		return nil, err
	}
	root, err := sql.InsertEntity(t, entity).Compile()
	if err != nil {
		return nil, err
	}
	return c.Compile(root, t, entity)
}

// Compile returns root followed by the statements of every dependency of
// entity. The order is: the root statement, one contiguous block per
// relation of t in declaration order, then recursively the dependencies of
// each dependency.
func (c *Cascade) Compile(root sql.Statement, t *schema.Table, entity any) ([]sql.Statement, error) {
	if t == nil {
		return nil, sqlstack.NewUsageError("Cascade", "nil root table")
	}
	if isNil(reflect.ValueOf(entity)) {
		return nil, sqlstack.NewUsageError("Cascade", "nil root entity")
	}
	s := &cascadeState{Cascade: c, stmts: []sql.Statement{root}}
	v := reflect.ValueOf(entity)
	n := &node{index: 0, table: t, entity: v, path: identity(nil, v)}
	if err := s.expand(n); err != nil {
		return nil, err
	}
	return s.stmts, nil
}

// expand appends the blocks of n's relations, then descends into each
// dependency in the order it was emitted.
func (s *cascadeState) expand(n *node) error {
	var deps []*node
	for _, rel := range n.table.Relations {
		related, err := s.resolver.Lookup(rel.Table)
		if err != nil {
			return err
		}
		elems, err := elements(n.entity, rel)
		if err != nil {
			return sqlstack.NewUsageError("Cascade", "%s.%s: %v", n.table.Name, rel.Field, err)
		}
		for _, e := range elems {
			path := identity(n.path, e)
			if path == nil {
				return sqlstack.NewUsageError("Cascade", "cycle detected at %s.%s", n.table.Name, rel.Field)
			}
			st, err := s.insert(n, rel, related, e)
			if err != nil {
				return err
			}
			s.stmts = append(s.stmts, st)
			deps = append(deps, &node{index: len(s.stmts) - 1, table: related, entity: e, path: path})
		}
	}
	for _, d := range deps {
		if err := s.expand(d); err != nil {
			return err
		}
	}
	return nil
}

// insert compiles the INSERT of one related element. The foreign key
// column, when declared, receives the owner's key.
func (s *cascadeState) insert(owner *node, rel schema.Relation, t *schema.Table, elem reflect.Value) (sql.Statement, error) {
	cols := t.InsertColumns()
	var fk any
	if rel.ForeignKey != "" {
		key, err := ownerKey(owner)
		if err != nil {
			return sql.Statement{}, err
		}
		fk = key
		if !slices.Contains(cols, rel.ForeignKey) {
			cols = append(cols, rel.ForeignKey)
		}
	}
	entity := elem.Interface()
	vals := make([]any, 0, len(cols))
	for _, c := range cols {
		if c == rel.ForeignKey {
			vals = append(vals, fk)
			continue
		}
		v, err := sql.ColumnValue(entity, c)
		if err != nil {
			return sql.Statement{}, sqlstack.NewUsageError("Cascade", "%s: %v", t.Name, err)
		}
		vals = append(vals, v)
	}
	return sql.Insert(t.Name).Columns(cols...).Values(vals...).Compile()
}

// ownerKey returns the owner's primary key as a literal, or a parameter
// deferred to the owner's insert id when the database generates it.
func ownerKey(owner *node) (any, error) {
	t := owner.table
	if t.PrimaryKey == "" {
		return nil, sqlstack.NewUsageError("Cascade", "table %s has no primary key to reference", t.Name)
	}
	v, err := sql.ColumnValue(owner.entity.Interface(), t.PrimaryKey)
	if err != nil {
		return nil, sqlstack.NewUsageError("Cascade", "%s: %v", t.Name, err)
	}
	if t.Strategy == schema.KeyAutoIncrement && isZero(v) {
		return sql.InsertID(owner.index), nil
	}
	return sql.Normalize(v)
}

// elements reads the relation field off the entity and returns the rows it
// holds: every element of a slice or array, or the value itself. Nil values
// are skipped.
func elements(entity reflect.Value, rel schema.Relation) ([]reflect.Value, error) {
	v, err := sql.PathValue(entity.Interface(), rel.Field)
	if err != nil {
		return nil, err
	}
	var items []reflect.Value
	switch v = deref(v); {
	case !v.IsValid():
		return nil, nil
	case v.Kind() == reflect.Slice || v.Kind() == reflect.Array:
		for i := 0; i < v.Len(); i++ {
			items = append(items, v.Index(i))
		}
	default:
		items = append(items, v)
	}
	out := make([]reflect.Value, 0, len(items))
	for _, it := range items {
		if rel.Key != "" {
			if it, err = sql.PathValue(it.Interface(), rel.Key); err != nil {
				return nil, err
			}
		}
		if isNil(it) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// identity extends the ancestor path with the address of v. It returns nil
// when v already appears on the path. Values without an address cannot form
// a cycle and are recorded as zero.
func identity(path []uintptr, v reflect.Value) []uintptr {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() || (v.Kind() != reflect.Pointer && v.Kind() != reflect.Map) || v.IsNil() {
		return append(path[:len(path):len(path)], 0)
	}
	p := v.Pointer()
	for _, q := range path {
		if q == p {
			return nil
		}
	}
	return append(path[:len(path):len(path)], p)
}

func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	return rv.IsZero()
}
