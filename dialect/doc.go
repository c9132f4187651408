// Package dialect defines the driver boundary of sqlstack.
//
// The compilers in dialect/sql produce statement text with positional "?"
// placeholders and an argument list. Executing those statements is the job of
// a Driver, which exposes three primitives:
//
//   - Exec: execute one statement with parameters
//   - ExecBatch: execute a list of statements atomically
//   - RunInTx: run a function inside a native transaction
//
// # Dialect Constants
//
//	dialect.SQLite   = "sqlite"
//	dialect.MySQL    = "mysql"
//	dialect.Postgres = "postgres"
//
// # Usage
//
//	import (
//	    "github.com/syssam/sqlstack/dialect"
//	    "github.com/syssam/sqlstack/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: statement compilers and the database/sql driver
//   - dialect/sql/sqlgraph: dependency cascades and constraint errors
package dialect
