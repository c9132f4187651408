package sql

import (
	"strings"

	"github.com/syssam/sqlstack/schema"
)

// DeleteBuilder is a DELETE statement builder.
//
//	sql.Delete("Entity").Where(func(p *sql.Predicate) { p.GT("codeImport", 10) })
//	// DELETE FROM Entity WHERE codeImport > ?
type DeleteBuilder struct {
	writeState
}

// Delete returns a DELETE builder for the table.
func Delete(table string) *DeleteBuilder {
	b := &DeleteBuilder{writeState: writeState{table: table}}
	if table == "" {
		b.errs.usage("Delete", "empty table name")
	}
	return b
}

// DeleteTable returns a DELETE builder for a mapped table.
func DeleteTable(t *schema.Table) *DeleteBuilder {
	b := Delete(t.Name)
	b.mapping = t
	return b
}

// DeleteEntity returns a DELETE builder removing the row of entity,
// matched by primary key.
func DeleteEntity(t *schema.Table, entity any) *DeleteBuilder {
	b := DeleteTable(t)
	if t.PrimaryKey == "" {
		b.errs.usage("Delete", "table %s has no primary key", t.Name)
		return b
	}
	key, err := ColumnValue(entity, t.PrimaryKey)
	if err != nil {
		b.errs.usage("Delete", "%v", err)
		return b
	}
	return b.Where(func(p *Predicate) { p.EQ(t.PrimaryKey, key) })
}

// Columns is not supported by DELETE and always records a usage error.
func (b *DeleteBuilder) Columns(cols ...string) *DeleteBuilder {
	b.errs.usage("Delete", "column restriction is not supported (got %d columns)", len(cols))
	return b
}

// Where AND-s the conditions built by fn into the WHERE clause.
func (b *DeleteBuilder) Where(fn func(*Predicate)) *DeleteBuilder {
	b.addWhere(fn)
	return b
}

// Compile returns the DELETE statement.
func (b *DeleteBuilder) Compile() (Statement, error) {
	return assemble(b, &b.writeState)
}

func (b *DeleteBuilder) name() string { return "Delete" }

func (b *DeleteBuilder) defaultColumns() []string { return nil }

func (b *DeleteBuilder) baseClause(sb *strings.Builder, _ []string) ([]any, error) {
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.table)
	return nil, nil
}
