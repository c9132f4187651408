package tx

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/dialect"
	"github.com/syssam/sqlstack/dialect/sql"
)

// Resolve replaces every sql.Deferred argument with the value it points at
// in results. Results are indexed by statement position in the sequence,
// so a deferred parameter may only reference an earlier statement.
//
// Accepted fields: "insertId", "rowCount" and "rows[N].column".
func Resolve(args []any, results []dialect.Result) ([]any, error) {
	var out []any
	for i, a := range args {
		d, ok := a.(sql.Deferred)
		if !ok {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		v, err := resolve(d, results)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if out == nil {
		return args, nil
	}
	return out, nil
}

func resolve(d sql.Deferred, results []dialect.Result) (any, error) {
	if d.Index < 0 || d.Index >= len(results) {
		return nil, sqlstack.NewUsageError("Resolve", "%s references a statement that has not run (%d results)", d, len(results))
	}
	r := results[d.Index]
	switch d.Field {
	case sql.FieldInsertID:
		return r.LastInsertID, nil
	case sql.FieldRowCount:
		return r.RowsAffected, nil
	}
	n, col, ok := parseRowField(d.Field)
	if !ok {
		return nil, sqlstack.NewUsageError("Resolve", "%s: unknown field %q", d, d.Field)
	}
	if n >= len(r.Rows) {
		return nil, sqlstack.NewUsageError("Resolve", "%s: result has %d rows", d, len(r.Rows))
	}
	v, ok := r.Rows[n][col]
	if !ok {
		return nil, sqlstack.NewUsageError("Resolve", "%s: no column %q", d, col)
	}
	return sql.Normalize(v)
}

// parseRowField parses "rows[N].column".
func parseRowField(f string) (int, string, bool) {
	rest, ok := strings.CutPrefix(f, "rows[")
	if !ok {
		return 0, "", false
	}
	idx, col, ok := strings.Cut(rest, "].")
	if !ok || col == "" {
		return 0, "", false
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return 0, "", false
	}
	return n, col, true
}
