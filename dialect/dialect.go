package dialect

import "context"

// Dialect names for supported database engines.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Result is the outcome of executing one statement.
type Result struct {
	RowsAffected int64
	LastInsertID int64
	// Rows holds the returned rows for statements that produce a result
	// set, keyed by column name.
	Rows []map[string]any
}

// BatchEntry is one element of a batch. Entries without arguments are sent
// as bare statements.
type BatchEntry struct {
	Query string
	Args  []any
}

// Bare reports whether the entry carries no arguments.
func (e BatchEntry) Bare() bool { return len(e.Args) == 0 }

// Execer executes a single statement with positional arguments.
type Execer interface {
	Exec(ctx context.Context, query string, args []any) (Result, error)
}

// Driver is the interface the compiler output is executed against.
type Driver interface {
	Execer
	// ExecBatch executes all entries atomically and returns one result
	// per entry.
	ExecBatch(ctx context.Context, entries []BatchEntry) ([]Result, error)
	// RunInTx runs fn inside a native transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, ex Execer) error) error
	// Dialect returns the dialect name of the driver.
	Dialect() string
	// Close closes the underlying connection.
	Close() error
}
