package tx

import "context"

// Committer is the interface that wraps the Commit method.
type Committer interface {
	Commit(context.Context, *Transaction) error
}

// CommitFunc is an adapter to allow the use of ordinary function as Committer.
type CommitFunc func(context.Context, *Transaction) error

// Commit calls f(ctx, tx).
func (f CommitFunc) Commit(ctx context.Context, tx *Transaction) error {
	return f(ctx, tx)
}

// CommitHook defines the "commit middleware". A function that gets a Committer
// and returns a Committer. For example:
//
//	hook := func(next tx.Committer) tx.Committer {
//		return tx.CommitFunc(func(ctx context.Context, t *tx.Transaction) error {
//			// Do some stuff before.
//			if err := next.Commit(ctx, t); err != nil {
//				return err
//			}
//			// Do some stuff after.
//			return nil
//		})
//	}
type CommitHook func(Committer) Committer

// Rollbacker is the interface that wraps the Rollback method.
type Rollbacker interface {
	Rollback(context.Context, *Transaction) error
}

// RollbackFunc is an adapter to allow the use of ordinary function as Rollbacker.
type RollbackFunc func(context.Context, *Transaction) error

// Rollback calls f(ctx, tx).
func (f RollbackFunc) Rollback(ctx context.Context, tx *Transaction) error {
	return f(ctx, tx)
}

// RollbackHook defines the "rollback middleware". A function that gets a
// Rollbacker and returns a Rollbacker.
type RollbackHook func(Rollbacker) Rollbacker

// chainCommit wraps fn with hooks. The first hook is the outermost.
func chainCommit(fn Committer, hooks []CommitHook) Committer {
	for i := len(hooks) - 1; i >= 0; i-- {
		fn = hooks[i](fn)
	}
	return fn
}

func chainRollback(fn Rollbacker, hooks []RollbackHook) Rollbacker {
	for i := len(hooks) - 1; i >= 0; i-- {
		fn = hooks[i](fn)
	}
	return fn
}
