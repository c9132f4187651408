package sql

import (
	"strings"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/schema"
)

// UpdateBuilder is an UPDATE statement builder.
//
//	sql.Update("Ticket").Set("status", "closed").
//		Where(func(p *sql.Predicate) { p.EQ("id", 7) })
//	// UPDATE Ticket SET status = ? WHERE id = ?
type UpdateBuilder struct {
	writeState
	sets   []string
	values []any
	entity any
}

// Update returns an UPDATE builder for the table.
func Update(table string) *UpdateBuilder {
	b := &UpdateBuilder{writeState: writeState{table: table}}
	if table == "" {
		b.errs.usage("Update", "empty table name")
	}
	return b
}

// UpdateTable returns an UPDATE builder for a mapped table.
func UpdateTable(t *schema.Table) *UpdateBuilder {
	b := Update(t.Name)
	b.mapping = t
	return b
}

// UpdateEntity returns an UPDATE builder writing entity's columns into t and
// filtering on its primary key. Without an explicit column list every
// mapped column except the key is written.
func UpdateEntity(t *schema.Table, entity any) *UpdateBuilder {
	b := UpdateTable(t)
	if entity == nil {
		b.errs.usage("Update", "nil entity")
		return b
	}
	if t.PrimaryKey == "" {
		b.errs.usage("Update", "table %s has no primary key", t.Name)
		return b
	}
	key, err := ColumnValue(entity, t.PrimaryKey)
	if err != nil {
		b.errs.usage("Update", "%v", err)
		return b
	}
	b.entity = entity
	return b.Where(func(p *Predicate) { p.EQ(t.PrimaryKey, key) })
}

// Set assigns a value to a column.
func (b *UpdateBuilder) Set(col string, v any) *UpdateBuilder {
	nv, err := Normalize(v)
	if err != nil {
		b.errs.add(err)
		return b
	}
	b.sets = append(b.sets, col)
	b.values = append(b.values, nv)
	return b
}

// Columns restricts the columns written from the entity.
func (b *UpdateBuilder) Columns(cols ...string) *UpdateBuilder {
	b.restrict("Update", cols)
	return b
}

// Where AND-s the conditions built by fn into the WHERE clause.
func (b *UpdateBuilder) Where(fn func(*Predicate)) *UpdateBuilder {
	b.addWhere(fn)
	return b
}

// Compile returns the UPDATE statement.
func (b *UpdateBuilder) Compile() (Statement, error) {
	return assemble(b, &b.writeState)
}

func (b *UpdateBuilder) name() string { return "Update" }

func (b *UpdateBuilder) defaultColumns() []string {
	if b.mapping == nil || b.entity == nil {
		return nil
	}
	return b.mapping.UpdateColumns()
}

func (b *UpdateBuilder) baseClause(sb *strings.Builder, cols []string) ([]any, error) {
	sets := append([]string(nil), b.sets...)
	args := append([]any(nil), b.values...)
	if b.entity != nil {
		vals, err := columnValues(b.name(), b.entity, cols)
		if err != nil {
			return nil, err
		}
		sets = append(sets, cols...)
		args = append(args, vals...)
	} else if len(b.columns) > 0 {
		return nil, sqlstack.NewUsageError(b.name(), "column restriction requires an entity")
	}
	if len(sets) == 0 {
		return nil, sqlstack.NewUsageError(b.name(), "no columns to set")
	}
	sb.WriteString("UPDATE ")
	sb.WriteString(b.table)
	sb.WriteString(" SET ")
	for i, c := range sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c)
		sb.WriteString(" = ?")
	}
	return args, nil
}
