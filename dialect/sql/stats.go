package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/sqlstack/dialect"
)

// QueryStats holds statement execution statistics.
type QueryStats struct {
	// TotalExecs is the total number of single statements executed.
	TotalExecs atomic.Int64
	// TotalBatches is the total number of batches executed.
	TotalBatches atomic.Int64
	// TotalTxs is the total number of native transactions run.
	TotalTxs atomic.Int64
	// TotalDuration is the total time spent executing.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of executions exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of execution errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalExecs:    s.TotalExecs.Load(),
		TotalBatches:  s.TotalBatches.Load(),
		TotalTxs:      s.TotalTxs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalExecs.Store(0)
	s.TotalBatches.Store(0)
	s.TotalTxs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of execution statistics.
type StatsSnapshot struct {
	TotalExecs    int64
	TotalBatches  int64
	TotalTxs      int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgDuration returns the average execution duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.TotalExecs + s.TotalBatches
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"execs=%d batches=%d txs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalExecs, s.TotalBatches, s.TotalTxs, s.TotalDuration, s.AvgDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow execution is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver wraps a Driver with statistics collection.
type StatsDriver struct {
	dialect.Driver
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow query detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow executions.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow executions to the given logger, or to the
// default logger if nil.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", len(args))
	})
}

// NewStatsDriver wraps a Driver with statistics collection.
//
// Example:
//
//	drv, _ := sql.Open("sqlite", dsn)
//	statsDriver := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(nil),
//	)
//	stats := statsDriver.QueryStats().Stats()
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow query threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args []any) (dialect.Result, error) {
	start := time.Now()
	res, err := d.Driver.Exec(ctx, query, args)
	d.stats.TotalExecs.Add(1)
	d.record(ctx, query, args, start, err)
	return res, err
}

// ExecBatch executes a batch and records statistics.
func (d *StatsDriver) ExecBatch(ctx context.Context, entries []dialect.BatchEntry) ([]dialect.Result, error) {
	start := time.Now()
	res, err := d.Driver.ExecBatch(ctx, entries)
	d.stats.TotalBatches.Add(1)
	d.record(ctx, fmt.Sprintf("batch of %d statements", len(entries)), nil, start, err)
	return res, err
}

// RunInTx runs fn in a native transaction whose statements are also
// recorded.
func (d *StatsDriver) RunInTx(ctx context.Context, fn func(context.Context, dialect.Execer) error) error {
	d.stats.TotalTxs.Add(1)
	return d.Driver.RunInTx(ctx, func(ctx context.Context, ex dialect.Execer) error {
		return fn(ctx, statsExecer{ex: ex, driver: d})
	})
}

func (d *StatsDriver) record(ctx context.Context, query string, args []any, start time.Time, err error) {
	duration := time.Since(start)
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration > threshold {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, query, args, duration)
		}
	}
}

type statsExecer struct {
	ex     dialect.Execer
	driver *StatsDriver
}

func (s statsExecer) Exec(ctx context.Context, query string, args []any) (dialect.Result, error) {
	start := time.Now()
	res, err := s.ex.Exec(ctx, query, args)
	s.driver.stats.TotalExecs.Add(1)
	s.driver.record(ctx, query, args, start, err)
	return res, err
}

// DebugDriver wraps a Driver with debug logging.
type DebugDriver struct {
	dialect.Driver
	log func(context.Context, ...any)
}

// DebugOption configures the DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLog sets a custom log function.
func DebugWithLog(logFunc func(context.Context, ...any)) DebugOption {
	return func(d *DebugDriver) {
		d.log = logFunc
	}
}

// NewDebugDriver wraps a Driver with debug logging.
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		Driver: drv,
		log: func(ctx context.Context, v ...any) {
			slog.DebugContext(ctx, fmt.Sprint(v...))
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Exec executes a statement and logs it.
func (d *DebugDriver) Exec(ctx context.Context, query string, args []any) (dialect.Result, error) {
	d.log(ctx, fmt.Sprintf("exec: %s args: %v", query, args))
	return d.Driver.Exec(ctx, query, args)
}

// ExecBatch executes a batch and logs each entry.
func (d *DebugDriver) ExecBatch(ctx context.Context, entries []dialect.BatchEntry) ([]dialect.Result, error) {
	for i, e := range entries {
		d.log(ctx, fmt.Sprintf("batch[%d]: %s args: %v", i, e.Query, e.Args))
	}
	return d.Driver.ExecBatch(ctx, entries)
}

// RunInTx runs fn in a native transaction and logs its boundaries and
// statements.
func (d *DebugDriver) RunInTx(ctx context.Context, fn func(context.Context, dialect.Execer) error) error {
	d.log(ctx, "begin transaction")
	err := d.Driver.RunInTx(ctx, func(ctx context.Context, ex dialect.Execer) error {
		return fn(ctx, debugExecer{ex: ex, log: d.log})
	})
	if err != nil {
		d.log(ctx, fmt.Sprintf("rollback transaction: %v", err))
		return err
	}
	d.log(ctx, "commit transaction")
	return nil
}

type debugExecer struct {
	ex  dialect.Execer
	log func(context.Context, ...any)
}

func (d debugExecer) Exec(ctx context.Context, query string, args []any) (dialect.Result, error) {
	d.log(ctx, fmt.Sprintf("tx exec: %s args: %v", query, args))
	return d.ex.Exec(ctx, query, args)
}

// Ensure interfaces are implemented.
var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
)
