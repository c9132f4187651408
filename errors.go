package sqlstack

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common failures.
var (
	// ErrUsage is matched by every UsageError.
	ErrUsage = errors.New("sqlstack: invalid builder usage")

	// ErrTxInactive is returned when an operation is attempted on a
	// transaction that was already committed or rolled back.
	ErrTxInactive = errors.New("sqlstack: transaction no longer active")

	// ErrTxNotStarted is returned when a checkpoint is requested on a
	// transaction that never executed a statement.
	ErrTxNotStarted = errors.New("sqlstack: transaction not started")

	// ErrDeferredParams is returned when a batched commit holds parameters
	// that can only be resolved by sequential execution.
	ErrDeferredParams = errors.New("sqlstack: deferred parameters cannot be committed in a batch")

	// ErrNoDriver is returned when a driver was required but not supplied.
	ErrNoDriver = errors.New("sqlstack: no database driver configured")

	// ErrClosed is returned for work submitted to a closed commit serializer.
	ErrClosed = errors.New("sqlstack: commit serializer closed")
)

// UsageError reports a misuse of a statement builder. It is raised at build
// time, before any I/O takes place.
type UsageError struct {
	Op  string // Builder operation, e.g. "Between", "Join".
	Msg string
}

// Error returns the error string.
func (e *UsageError) Error() string {
	if e.Op == "" {
		return "sqlstack: " + e.Msg
	}
	return fmt.Sprintf("sqlstack: %s: %s", e.Op, e.Msg)
}

// Is reports whether the target error matches UsageError.
func (e *UsageError) Is(err error) bool {
	return err == ErrUsage
}

// NewUsageError returns a new UsageError for the given builder operation.
func NewUsageError(op, format string, args ...any) *UsageError {
	return &UsageError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IsUsageError returns true if the error is a UsageError.
func IsUsageError(err error) bool {
	if err == nil {
		return false
	}
	var e *UsageError
	return errors.As(err, &e)
}

// TxStateError reports an operation attempted on a transaction whose state
// does not allow it.
type TxStateError struct {
	ID     string // Transaction id.
	Status string // Status at the time of the call.
	Err    error  // One of the transaction sentinels.
}

// Error returns the error string.
func (e *TxStateError) Error() string {
	return fmt.Sprintf("%v (id=%s, status=%s)", e.Err, e.ID, e.Status)
}

// Unwrap returns the underlying sentinel.
func (e *TxStateError) Unwrap() error {
	return e.Err
}

// NewTxStateError returns a new TxStateError.
func NewTxStateError(id, status string, err error) *TxStateError {
	return &TxStateError{ID: id, Status: status, Err: err}
}

// IsTxStateError returns true if the error is a TxStateError.
func IsTxStateError(err error) bool {
	if err == nil {
		return false
	}
	var e *TxStateError
	return errors.As(err, &e)
}

// DriverError wraps a failure returned by the underlying database driver.
// The original error is preserved and reachable through errors.As.
type DriverError struct {
	Op    string // "exec", "batch" or "tx".
	Query string
	Err   error
}

// Error returns the error string.
func (e *DriverError) Error() string {
	return fmt.Sprintf("sqlstack: driver %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DriverError) Unwrap() error {
	return e.Err
}

// NewDriverError returns a new DriverError, or nil if err is nil.
func NewDriverError(op, query string, err error) error {
	if err == nil {
		return nil
	}
	var de *DriverError
	if errors.As(err, &de) {
		return err
	}
	return &DriverError{Op: op, Query: query, Err: err}
}

// IsDriverError returns true if the error is a DriverError.
func IsDriverError(err error) bool {
	if err == nil {
		return false
	}
	var e *DriverError
	return errors.As(err, &e)
}

// ConfigError reports missing or invalid configuration, such as a
// coordinator created without a driver.
type ConfigError struct {
	Field string
	Err   error
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("sqlstack: config %q: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError returns a new ConfigError.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}
