package sqlgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ConstraintError is returned by Classify when a driver error resulted from
// a constraint violation. It unwraps to the original driver error.
type ConstraintError struct {
	Kind string // "unique", "foreign key" or "check".
	wrap error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("sqlstack: %s constraint failed: %v", e.Kind, e.wrap)
}

// Unwrap returns the underlying error.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// Classify wraps err in a *ConstraintError when it reports a constraint
// violation, and returns it unchanged otherwise.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsUniqueConstraintError(err):
		return &ConstraintError{Kind: "unique", wrap: err}
	case IsForeignKeyConstraintError(err):
		return &ConstraintError{Kind: "foreign key", wrap: err}
	case IsCheckConstraintError(err):
		return &ConstraintError{Kind: "check", wrap: err}
	}
	return err
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// errorCoder is an interface for database errors that provide error codes.
// Implemented by: pq.Error, modernc.org/sqlite.
type errorCoder interface {
	Code() string
}

// errorNumberer is an interface for database errors that provide numeric error codes.
type errorNumberer interface {
	Number() uint16
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451
	mysqlForeignKeyChild        = 1452
	mysqlCheckConstraintViolate = 3819
)

// violation describes how each engine reports one kind of constraint failure.
type violation struct {
	sqlState string
	numbers  []uint16
	messages []string
}

var (
	uniqueViolation = violation{
		sqlState: pgUniqueViolation,
		numbers:  []uint16{mysqlDuplicateEntry},
		messages: []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	}
	foreignKeyViolation = violation{
		sqlState: pgForeignKeyViolation,
		numbers:  []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		messages: []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	}
	checkViolation = violation{
		sqlState: pgCheckViolation,
		numbers:  []uint16{mysqlCheckConstraintViolate},
		messages: []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	}
)

func (v violation) match(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == v.sqlState {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == v.sqlState {
		return true
	}
	if e, ok := asError[errorNumberer](err); ok {
		n := e.Number()
		for _, want := range v.numbers {
			if n == want {
				return true
			}
		}
	}
	// Fallback to string matching for drivers that don't implement interfaces.
	return containsAny(err.Error(), v.messages...)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool { return uniqueViolation.match(err) }

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool { return foreignKeyViolation.match(err) }

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool { return checkViolation.match(err) }

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
