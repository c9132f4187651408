package tx

import (
	"context"
	"strings"
	"sync"

	"github.com/syssam/sqlstack/dialect"
)

// call is one statement observed by fakeDriver.
type call struct {
	Kind  string // exec, batch, begin, commit, rollback
	Query string
	Args  []any
}

// fakeDriver records every statement and fails those containing one of
// its fail substrings.
type fakeDriver struct {
	mu     sync.Mutex
	calls  []call
	fail   []string
	nextID int64
}

func (f *fakeDriver) failOn(s ...string) { f.fail = append(f.fail, s...) }

func (f *fakeDriver) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeDriver) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeDriver) failure(query string) error {
	for _, s := range f.fail {
		if strings.Contains(query, s) {
			return &driverErr{query: query}
		}
	}
	return nil
}

func (f *fakeDriver) Exec(_ context.Context, query string, args []any) (dialect.Result, error) {
	f.record(call{Kind: "exec", Query: query, Args: args})
	if err := f.failure(query); err != nil {
		return dialect.Result{}, err
	}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	return dialect.Result{RowsAffected: 1, LastInsertID: id}, nil
}

func (f *fakeDriver) ExecBatch(ctx context.Context, entries []dialect.BatchEntry) ([]dialect.Result, error) {
	var out []dialect.Result
	err := f.RunInTx(ctx, func(ctx context.Context, ex dialect.Execer) error {
		for _, e := range entries {
			r, err := ex.Exec(ctx, e.Query, e.Args)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeDriver) RunInTx(ctx context.Context, fn func(context.Context, dialect.Execer) error) error {
	f.record(call{Kind: "begin"})
	if err := fn(ctx, f); err != nil {
		f.record(call{Kind: "rollback"})
		return err
	}
	f.record(call{Kind: "commit"})
	return nil
}

func (f *fakeDriver) Dialect() string { return dialect.SQLite }

func (f *fakeDriver) Close() error { return nil }

type driverErr struct{ query string }

func (e *driverErr) Error() string { return "fake: failed: " + e.query }

// queries returns the queries of the calls of the given kind.
func queries(calls []call, kind string) []string {
	var out []string
	for _, c := range calls {
		if c.Kind == kind {
			out = append(out, c.Query)
		}
	}
	return out
}

var _ dialect.Driver = (*fakeDriver)(nil)
