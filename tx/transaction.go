package tx

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/dialect"
	"github.com/syssam/sqlstack/dialect/sql"
)

// Status is the lifecycle state of a Transaction.
type Status int

// Transaction states.
//
//	Open ──exec──▶ Started ──release──▶ Released
//	  │               │                    │
//	  └──commit───────┴──────commit────────┴──▶ Committed
//	  └──rollback─────┴─────rollback───────┴──▶ RolledBack
const (
	Open Status = iota
	Started
	Released
	Committed
	RolledBack
)

// String returns the state name.
func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Started:
		return "started"
	case Released:
		return "released"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolledback"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further operation is accepted.
func (s Status) Terminal() bool {
	return s == Committed || s == RolledBack
}

// Marker statements written around sequential flushes.
const (
	markBegin    = "BEGIN"
	markCommit   = "COMMIT"
	markRollback = "ROLLBACK"
)

// Transaction accumulates compiled statements and flushes them on commit.
// A transaction that never executed a statement commits its stack as one
// driver batch; once started, statements are flushed as one multi-statement
// text framed by BEGIN and COMMIT markers.
//
// A Transaction is not safe for concurrent use.
type Transaction struct {
	id         string
	status     Status
	stack      []sql.Statement
	coord      *Coordinator
	onCommit   []CommitHook
	onRollback []RollbackHook
}

func newTransaction(c *Coordinator) *Transaction {
	return &Transaction{
		id:    uuid.NewString(),
		coord: c,
	}
}

// ID returns the transaction id.
func (t *Transaction) ID() string { return t.id }

// Status returns the current state.
func (t *Transaction) Status() Status { return t.status }

// Len returns the number of pending statements.
func (t *Transaction) Len() int { return len(t.stack) }

// Statements returns a copy of the pending statements.
func (t *Transaction) Statements() []sql.Statement { return slices.Clone(t.stack) }

// OnCommit adds a hook to call on commit.
func (t *Transaction) OnCommit(f CommitHook) { t.onCommit = append(t.onCommit, f) }

// OnRollback adds a hook to call on rollback.
func (t *Transaction) OnRollback(f RollbackHook) { t.onRollback = append(t.onRollback, f) }

// Add compiles c and pushes it onto the statement stack.
func (t *Transaction) Add(c sql.Compiler) error {
	if err := t.active(); err != nil {
		return err
	}
	st, err := c.Compile()
	if err != nil {
		return err
	}
	t.stack = append(t.stack, st)
	return nil
}

// AddStatement pushes a raw statement onto the stack.
func (t *Transaction) AddStatement(query string, args ...any) error {
	return t.Add(sql.Raw(query, args...))
}

// Exec pushes c and flushes the stack sequentially. The first Exec of an
// open transaction sends a BEGIN marker ahead of the flush and moves it to
// Started; when that flush fails, the native transaction is rolled back
// and the transaction stays Open. The result is the driver result of the
// flushed text.
func (t *Transaction) Exec(ctx context.Context, c sql.Compiler) (dialect.Result, error) {
	if err := t.active(); err != nil {
		return dialect.Result{}, err
	}
	st, err := c.Compile()
	if err != nil {
		return dialect.Result{}, err
	}
	stmts := append(slices.Clone(t.stack), st)
	if hasDeferred(stmts) {
		return dialect.Result{}, t.stateErr(sqlstack.ErrDeferredParams)
	}
	var res dialect.Result
	if t.status == Open {
		res, err = t.coord.begin(ctx, stmts)
	} else {
		res, err = t.coord.sequential(ctx, stmts)
	}
	if err != nil {
		return dialect.Result{}, err
	}
	if t.status == Open {
		t.status = Started
	}
	t.stack = nil
	return res, nil
}

// Release flushes the pending statements of a started transaction without
// committing, and moves it to Released.
func (t *Transaction) Release(ctx context.Context) error {
	if err := t.active(); err != nil {
		return err
	}
	if t.status == Open {
		return t.stateErr(sqlstack.ErrTxNotStarted)
	}
	if hasDeferred(t.stack) {
		return t.stateErr(sqlstack.ErrDeferredParams)
	}
	if len(t.stack) > 0 {
		if _, err := t.coord.sequential(ctx, t.stack); err != nil {
			return err
		}
	}
	t.status = Released
	t.stack = nil
	return nil
}

// Commit flushes the stack and ends the transaction.
//
// Pending deferred parameters fail the call with ErrDeferredParams and
// leave the transaction untouched. A started or released transaction
// appends a COMMIT marker and flushes sequentially; an open one sends its
// stack as a single batch. On a driver failure the transaction stays
// active so that it can be rolled back.
func (t *Transaction) Commit(ctx context.Context) error {
	if err := t.active(); err != nil {
		return err
	}
	if hasDeferred(t.stack) {
		return t.stateErr(sqlstack.ErrDeferredParams)
	}
	var fn Committer = CommitFunc(func(ctx context.Context, t *Transaction) error {
		return t.commit(ctx)
	})
	return chainCommit(fn, t.onCommit).Commit(ctx, t)
}

func (t *Transaction) commit(ctx context.Context) error {
	if err := t.active(); err != nil {
		return err
	}
	n := len(t.stack)
	switch t.status {
	case Started, Released:
		stmts := append(slices.Clone(t.stack), sql.Statement{Query: markCommit})
		if _, err := t.coord.sequential(ctx, stmts); err != nil {
			return err
		}
	case Open:
		if n > 0 {
			t.status = Started
			if _, err := t.coord.batch(ctx, t.stack); err != nil {
				t.status = Open
				return err
			}
		}
	}
	t.status = Committed
	t.stack = nil
	t.coord.log.Debug("transaction committed", "tx", t.id, "statements", n)
	return nil
}

// Rollback discards the pending statements and ends the transaction. A
// started transaction sends a ROLLBACK marker. The transaction ends
// RolledBack even when the marker fails; the driver error is returned.
func (t *Transaction) Rollback(ctx context.Context) error {
	if err := t.active(); err != nil {
		return err
	}
	var fn Rollbacker = RollbackFunc(func(ctx context.Context, t *Transaction) error {
		return t.rollback(ctx)
	})
	return chainRollback(fn, t.onRollback).Rollback(ctx, t)
}

func (t *Transaction) rollback(ctx context.Context) error {
	if err := t.active(); err != nil {
		return err
	}
	started := t.status == Started || t.status == Released
	t.stack = nil
	var err error
	if started {
		_, err = t.coord.sequential(ctx, []sql.Statement{{Query: markRollback}})
	}
	t.status = RolledBack
	if err != nil {
		t.coord.log.Warn("transaction rollback failed", "tx", t.id, "error", err)
		return err
	}
	t.coord.log.Debug("transaction rolled back", "tx", t.id)
	return nil
}

func (t *Transaction) active() error {
	if t.status.Terminal() {
		return t.stateErr(sqlstack.ErrTxInactive)
	}
	return nil
}

func (t *Transaction) stateErr(err error) error {
	return sqlstack.NewTxStateError(t.id, t.status.String(), err)
}

func hasDeferred(stmts []sql.Statement) bool {
	return slices.ContainsFunc(stmts, sql.Statement.HasDeferred)
}
