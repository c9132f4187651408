package tx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/dialect"
	"github.com/syssam/sqlstack/dialect/sql"
)

// Coordinator hands out transactions over one driver and routes every
// physical flush through a single Serializer, so that at most one flush is
// in flight against the connection at any time.
//
// Once queued, a flush always runs: the methods below wait for it even when
// ctx is canceled, so transaction state matches what reached the connection.
type Coordinator struct {
	drv   dialect.Driver
	ser   *Serializer
	owned bool
	log   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for transaction events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithSerializer shares s between coordinators bound to the same physical
// connection. A shared serializer is not closed by Coordinator.Close.
func WithSerializer(s *Serializer) Option {
	return func(c *Coordinator) {
		c.ser = s
	}
}

// New returns a coordinator over drv.
func New(drv dialect.Driver, opts ...Option) (*Coordinator, error) {
	if drv == nil {
		return nil, sqlstack.NewConfigError("driver", sqlstack.ErrNoDriver)
	}
	c := &Coordinator{drv: drv}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.ser == nil {
		c.ser = NewSerializer(c.log)
		c.owned = true
	}
	return c, nil
}

// Driver returns the underlying driver.
func (c *Coordinator) Driver() dialect.Driver { return c.drv }

// Serializer returns the commit serializer.
func (c *Coordinator) Serializer() *Serializer { return c.ser }

// Begin returns a new open transaction.
func (c *Coordinator) Begin() *Transaction {
	t := newTransaction(c)
	c.log.Debug("transaction opened", "tx", t.id)
	return t
}

// Exec compiles and executes one statement outside any transaction.
func (c *Coordinator) Exec(ctx context.Context, comp sql.Compiler) (dialect.Result, error) {
	st, err := comp.Compile()
	if err != nil {
		return dialect.Result{}, err
	}
	if st.HasDeferred() {
		return dialect.Result{}, sqlstack.ErrDeferredParams
	}
	var res dialect.Result
	err = c.ser.CommitOnStack(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.drv.Exec(ctx, st.Query, st.Args)
		return err
	}).wait()
	if err != nil {
		return dialect.Result{}, err
	}
	return res, nil
}

// ExecSequence runs stmts in order inside one native transaction of the
// driver. Deferred parameters are resolved from the results of the
// statements already run, immediately before each statement executes.
// It returns one result per statement.
func (c *Coordinator) ExecSequence(ctx context.Context, stmts []sql.Statement) ([]dialect.Result, error) {
	var results []dialect.Result
	err := c.ser.CommitOnStack(ctx, func(ctx context.Context) error {
		return c.drv.RunInTx(ctx, func(ctx context.Context, ex dialect.Execer) error {
			results = make([]dialect.Result, 0, len(stmts))
			for _, st := range stmts {
				args, err := Resolve(st.Args, results)
				if err != nil {
					return err
				}
				r, err := ex.Exec(ctx, st.Query, args)
				if err != nil {
					return sqlstack.NewDriverError("sequence", st.Query, err)
				}
				results = append(results, r)
			}
			return nil
		})
	}).wait()
	if err != nil {
		return nil, err
	}
	c.log.Debug("sequence executed", "statements", len(stmts))
	return results, nil
}

// CommitAll commits the transactions concurrently. The flushes still reach
// the connection one at a time, in the order the serializer receives them.
// It returns the first error encountered.
func (c *Coordinator) CommitAll(ctx context.Context, txs ...*Transaction) error {
	var g errgroup.Group
	for _, t := range txs {
		g.Go(func() error {
			return t.Commit(ctx)
		})
	}
	return g.Wait()
}

// Close waits for the queued flushes and stops the serializer, unless it
// was supplied with WithSerializer. The driver is left open.
func (c *Coordinator) Close() error {
	if !c.owned {
		return nil
	}
	return c.ser.Close()
}

// sequential flushes stmts as one multi-statement text with the
// concatenated arguments, through the serializer.
func (c *Coordinator) sequential(ctx context.Context, stmts []sql.Statement) (dialect.Result, error) {
	query, args := concat(stmts)
	var res dialect.Result
	err := c.ser.CommitOnStack(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.drv.Exec(ctx, query, args)
		return err
	}).wait()
	if err != nil {
		return dialect.Result{}, err
	}
	return res, nil
}

// begin opens a native transaction with a BEGIN marker and flushes stmts
// inside it, as one serializer unit. When the flush fails the native
// transaction is rolled back within the same unit, leaving the connection
// outside any transaction. A failed BEGIN is returned as is.
func (c *Coordinator) begin(ctx context.Context, stmts []sql.Statement) (dialect.Result, error) {
	query, args := concat(stmts)
	var res dialect.Result
	err := c.ser.CommitOnStack(ctx, func(ctx context.Context) error {
		if _, err := c.drv.Exec(ctx, markBegin+";", []any{}); err != nil {
			return err
		}
		var err error
		if res, err = c.drv.Exec(ctx, query, args); err != nil {
			if _, rerr := c.drv.Exec(ctx, markRollback+";", []any{}); rerr != nil {
				return errors.Join(err, fmt.Errorf("rolling back transaction: %w", rerr))
			}
			return err
		}
		return nil
	}).wait()
	if err != nil {
		return dialect.Result{}, err
	}
	return res, nil
}

// batch sends stmts as one driver batch through the serializer.
func (c *Coordinator) batch(ctx context.Context, stmts []sql.Statement) ([]dialect.Result, error) {
	entries := make([]dialect.BatchEntry, len(stmts))
	for i, st := range stmts {
		entries[i] = dialect.BatchEntry{Query: st.Query, Args: st.Args}
	}
	var res []dialect.Result
	err := c.ser.CommitOnStack(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.drv.ExecBatch(ctx, entries)
		return err
	}).wait()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// concat joins the statements into one text, each terminated by ";", and
// concatenates their arguments in order.
func concat(stmts []sql.Statement) (string, []any) {
	var (
		b    strings.Builder
		args = []any{}
	)
	for i, st := range stmts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSuffix(strings.TrimSpace(st.Query), ";"))
		b.WriteByte(';')
		args = append(args, st.Args...)
	}
	return b.String(), args
}
