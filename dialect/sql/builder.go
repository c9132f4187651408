package sql

import (
	"errors"
	"regexp"
	"strings"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/schema"
)

// identRe matches bare column identifiers. Anything else is treated as a
// pre-built expression and left unqualified.
var identRe = regexp.MustCompile(`^[A-Za-z0-9_*]+$`)

// qualify prefixes a bare identifier with the statement alias.
func qualify(alias, col string) string {
	if alias == "" || !identRe.MatchString(col) {
		return col
	}
	return alias + "." + col
}

// buildErrs collects the usage errors of a builder. They are reported by
// Compile, before any text is produced.
type buildErrs []error

func (e *buildErrs) add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

func (e *buildErrs) usage(op, format string, args ...any) {
	e.add(sqlstack.NewUsageError(op, format, args...))
}

func (e buildErrs) err() error {
	return errors.Join(e...)
}

// verb is the statement-assembly strategy of a write builder. Each verb
// writes its own base clause and names the columns used when the caller
// does not restrict them.
type verb interface {
	name() string
	defaultColumns() []string
	baseClause(b *strings.Builder, columns []string) ([]any, error)
}

// writeState is the state shared by INSERT, UPDATE and DELETE builders.
type writeState struct {
	table   string
	mapping *schema.Table
	columns []string
	where   *Predicate
	errs    buildErrs
}

func (w *writeState) restrict(op string, cols []string) {
	if w.mapping != nil {
		for _, c := range cols {
			if !w.mapping.HasColumn(c) {
				w.errs.usage(op, "column %q is not mapped by %s", c, w.table)
			}
		}
	}
	w.columns = append(w.columns, cols...)
}

func (w *writeState) addWhere(fn func(*Predicate)) {
	if w.where == nil {
		w.where = NewPredicate()
	}
	w.where.merge(fn)
}

// assemble compiles a write statement: the verb's base clause followed by
// the optional WHERE clause. Base clause arguments precede WHERE arguments.
func assemble(v verb, w *writeState) (Statement, error) {
	if err := w.errs.err(); err != nil {
		return Statement{}, err
	}
	cols := w.columns
	if len(cols) == 0 {
		cols = v.defaultColumns()
	}
	var b strings.Builder
	args, err := v.baseClause(&b, cols)
	if err != nil {
		return Statement{}, err
	}
	if w.where != nil && !w.where.empty() {
		text, wargs, err := w.where.compile("")
		if err != nil {
			return Statement{}, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(text)
		args = append(args, wargs...)
	}
	if args == nil {
		args = []any{}
	}
	return Statement{Query: b.String(), Args: args}, nil
}

// columnValues reads the values of cols off entity, normalized.
func columnValues(op string, entity any, cols []string) ([]any, error) {
	vals := make([]any, 0, len(cols))
	for _, c := range cols {
		v, err := ColumnValue(entity, c)
		if err != nil {
			return nil, sqlstack.NewUsageError(op, "%v", err)
		}
		nv, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		vals = append(vals, nv)
	}
	return vals, nil
}
