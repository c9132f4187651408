package sql

import (
	"strings"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/schema"
)

// Conflict verbs accepted by InsertBuilder.OnConflict.
const (
	ConflictAbort   = ""
	ConflictReplace = "REPLACE"
	ConflictIgnore  = "IGNORE"
)

// InsertBuilder is an INSERT statement builder.
//
//	sql.Insert("Tag").Columns("name", "color").Values("go", "blue")
//	// INSERT INTO Tag (name, color) VALUES (?, ?)
type InsertBuilder struct {
	writeState
	rows     [][]any
	entities []any
	conflict string
}

// Insert returns an INSERT builder for the table.
func Insert(table string) *InsertBuilder {
	b := &InsertBuilder{writeState: writeState{table: table}}
	if table == "" {
		b.errs.usage("Insert", "empty table name")
	}
	return b
}

// InsertTable returns an INSERT builder for a mapped table. Without an
// explicit column list every mapped column is written, except an
// auto-increment primary key.
func InsertTable(t *schema.Table) *InsertBuilder {
	b := Insert(t.Name)
	b.mapping = t
	return b
}

// InsertEntity returns an INSERT builder writing entity into t.
func InsertEntity(t *schema.Table, entity any) *InsertBuilder {
	return InsertTable(t).Entity(entity)
}

// Columns restricts the written columns.
func (b *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	b.restrict("Insert", cols)
	return b
}

// Values appends a row of values, one per column.
func (b *InsertBuilder) Values(vs ...any) *InsertBuilder {
	row, err := normalizeAll(vs)
	if err != nil {
		b.errs.add(err)
		return b
	}
	b.rows = append(b.rows, row)
	return b
}

// Entity appends a row read from entity. The column values are read when
// the statement is compiled.
func (b *InsertBuilder) Entity(entity any) *InsertBuilder {
	if entity == nil {
		b.errs.usage("Insert", "nil entity")
		return b
	}
	b.entities = append(b.entities, entity)
	return b
}

// OnConflict sets the SQLite conflict verb: "INSERT OR REPLACE" or
// "INSERT OR IGNORE".
func (b *InsertBuilder) OnConflict(verb string) *InsertBuilder {
	switch verb {
	case ConflictAbort, ConflictReplace, ConflictIgnore:
		b.conflict = verb
	default:
		b.errs.usage("OnConflict", "unknown conflict verb %q", verb)
	}
	return b
}

// Compile returns the INSERT statement.
func (b *InsertBuilder) Compile() (Statement, error) {
	return assemble(b, &b.writeState)
}

func (b *InsertBuilder) name() string { return "Insert" }

func (b *InsertBuilder) defaultColumns() []string {
	if b.mapping == nil {
		return nil
	}
	return b.mapping.InsertColumns()
}

func (b *InsertBuilder) baseClause(sb *strings.Builder, cols []string) ([]any, error) {
	rows := b.rows
	for _, e := range b.entities {
		row, err := columnValues(b.name(), e, cols)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	sb.WriteString("INSERT ")
	if b.conflict != "" {
		sb.WriteString("OR ")
		sb.WriteString(b.conflict)
		sb.WriteByte(' ')
	}
	sb.WriteString("INTO ")
	sb.WriteString(b.table)
	if len(rows) == 0 {
		if len(cols) > 0 {
			return nil, sqlstack.NewUsageError(b.name(), "no values for %d columns", len(cols))
		}
		sb.WriteString(" DEFAULT VALUES")
		return nil, nil
	}
	if len(cols) == 0 {
		return nil, sqlstack.NewUsageError(b.name(), "values without columns")
	}
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES ")
	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if len(row) != len(cols) {
			return nil, sqlstack.NewUsageError(b.name(), "row %d has %d values, expected %d", i, len(row), len(cols))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		sb.WriteString(placeholders(len(cols)))
		sb.WriteByte(')')
		args = append(args, row...)
	}
	return args, nil
}
