package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/dialect"
)

// Driver is a dialect.Driver implementation for SQL based databases.
type Driver struct {
	Conn
	dialect string
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{dialect: dialect, Conn: c}
}

// Open wraps the database/sql.Open method and returns a dialect.Driver.
// The connection pool is limited to one connection: the engines this
// package targets do not support overlapping transactions on a single
// database file.
func Open(dialect, source string) (*Driver, error) {
	db, err := sql.Open(dialect, source)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return NewDriver(dialect, Conn{db, dialect}), nil
}

// OpenDB wraps the given database/sql.DB method with a Driver. Like Open,
// it limits the pool to one connection, so that a sequential flush and the
// COMMIT or ROLLBACK ending it reach the same session.
func OpenDB(dialect string, db *sql.DB) *Driver {
	db.SetMaxOpenConns(1)
	return NewDriver(dialect, Conn{db, dialect})
}

// DB returns the underlying *sql.DB instance.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect implements the dialect.Driver method.
func (d Driver) Dialect() string {
	// If the underlying driver is wrapped with a telemetry driver.
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// RunInTx runs fn inside a native database/sql transaction.
func (d *Driver) RunInTx(ctx context.Context, fn func(context.Context, dialect.Execer) error) error {
	tx, err := d.DB().BeginTx(ctx, nil)
	if err != nil {
		return sqlstack.NewDriverError("tx", "BEGIN", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(ctx, Conn{tx, d.dialect}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("rolling back transaction: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return sqlstack.NewDriverError("tx", "COMMIT", err)
	}
	return nil
}

// ExecBatch executes the entries in order inside one native transaction.
// Either every entry is applied or none is.
func (d *Driver) ExecBatch(ctx context.Context, entries []dialect.BatchEntry) ([]dialect.Result, error) {
	results := make([]dialect.Result, 0, len(entries))
	err := d.RunInTx(ctx, func(ctx context.Context, ex dialect.Execer) error {
		for _, e := range entries {
			res, err := ex.Exec(ctx, e.Query, e.Args)
			if err != nil {
				return sqlstack.NewDriverError("batch", e.Query, err)
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.Execer given ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec implements the dialect.Execer method. Statements producing a result
// set are run as queries and their rows collected.
func (c Conn) Exec(ctx context.Context, query string, args []any) (dialect.Result, error) {
	switch {
	case c.dialect == dialect.Postgres:
		query = rebind(query, '$')
	case strings.HasPrefix(c.dialect, dialect.SQLite) && multiStatement(query):
		// SQLite binds every statement of a text from the first argument;
		// numbered placeholders index the shared argument list.
		query = rebind(query, '?')
	}
	if args == nil {
		args = []any{}
	}
	if returnsRows(query) {
		rows, err := c.QueryContext(ctx, query, args...)
		if err != nil {
			return dialect.Result{}, sqlstack.NewDriverError("exec", query, err)
		}
		defer rows.Close()
		res, err := collect(rows)
		if err != nil {
			return dialect.Result{}, sqlstack.NewDriverError("exec", query, err)
		}
		return res, nil
	}
	r, err := c.ExecContext(ctx, query, args...)
	if err != nil {
		return dialect.Result{}, sqlstack.NewDriverError("exec", query, err)
	}
	var res dialect.Result
	// Some drivers do not report these; a zero value is returned then.
	if n, err := r.RowsAffected(); err == nil {
		res.RowsAffected = n
	}
	if id, err := r.LastInsertId(); err == nil {
		res.LastInsertID = id
	}
	return res, nil
}

func collect(rows *sql.Rows) (dialect.Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return dialect.Result{}, err
	}
	var res dialect.Result
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return dialect.Result{}, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
			row[c] = vals[i]
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return dialect.Result{}, err
	}
	res.RowsAffected = int64(len(res.Rows))
	return res, nil
}

// returnsRows reports whether the statement produces a result set.
func returnsRows(query string) bool {
	q := strings.TrimSpace(query)
	i := strings.IndexAny(q, " \t\n(")
	if i < 0 {
		i = len(q)
	}
	switch strings.ToUpper(q[:i]) {
	case "SELECT", "PRAGMA", "WITH", "VALUES", "EXPLAIN":
		return true
	}
	return strings.Contains(strings.ToUpper(q), " RETURNING ")
}

// rebind rewrites "?" placeholders to the numbered form prefix+n: "$n" for
// PostgreSQL and "?n" for SQLite. Placeholders inside quoted literals and
// already numbered ones are left untouched.
func rebind(query string, prefix byte) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var (
		b     strings.Builder
		n     int
		quote byte
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		r := query[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?' && (i+1 == len(query) || !isDigit(query[i+1])):
			n++
			b.WriteByte(prefix)
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(r)
	}
	return b.String()
}

// multiStatement reports whether query holds more than one statement.
func multiStatement(query string) bool {
	var quote byte
	for i := 0; i < len(query); i++ {
		switch r := query[i]; {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			if strings.TrimSpace(query[i+1:]) != "" {
				return true
			}
		}
	}
	return false
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

var _ dialect.Driver = (*Driver)(nil)
