package sql

import (
	"github.com/syssam/sqlstack/schema"
)

// DropBuilder compiles a DROP TABLE statement.
type DropBuilder struct {
	table string
	errs  buildErrs
}

// Drop returns a DROP TABLE builder for the named table.
func Drop(table string) *DropBuilder {
	b := &DropBuilder{table: table}
	if !identRe.MatchString(table) || table == Wildcard {
		b.errs.usage("Drop", "invalid table name %q", table)
	}
	return b
}

// DropTable returns a DROP TABLE builder for a mapped table.
func DropTable(t *schema.Table) *DropBuilder {
	return Drop(t.Name)
}

// Compile returns "DROP TABLE IF EXISTS <name>;".
func (b *DropBuilder) Compile() (Statement, error) {
	if err := b.errs.err(); err != nil {
		return Statement{}, err
	}
	return Statement{Query: "DROP TABLE IF EXISTS " + b.table + ";", Args: []any{}}, nil
}

// The catalog queries below are specific to SQLite. A driver for another
// engine has to substitute its own catalog lookups.

// TableExists returns a query yielding one row named "name" if the table
// exists.
func TableExists(table string) Statement {
	return Statement{
		Query: "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		Args:  []any{table},
	}
}

// Tables returns a query listing every user table, ordered by name.
func Tables() Statement {
	return Statement{
		Query: "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
		Args:  []any{},
	}
}

// TableColumns returns a query listing the columns of a table in
// declaration order, with their declared type, nullability and key position.
func TableColumns(table string) Statement {
	return Statement{
		Query: "SELECT name, type, \"notnull\", pk FROM pragma_table_info(?) ORDER BY cid",
		Args:  []any{table},
	}
}
