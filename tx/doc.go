// Package tx coordinates logical transactions over one physical connection
// that does not support overlapping transactions.
//
// A Coordinator hands out Transactions. Each Transaction accumulates
// compiled statements and flushes them when executed, released, committed
// or rolled back. Every flush, from any transaction, goes through the
// coordinator's Serializer: a single worker draining a FIFO queue, so
// concurrent commits reach the connection one at a time in submission
// order.
//
//	c, err := tx.New(drv)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	t := c.Begin()
//	if err := t.Add(sql.Insert("Tag").Columns("name").Values("go")); err != nil {
//		return err
//	}
//	if err := t.Commit(ctx); err != nil {
//		return errors.Join(err, t.Rollback(ctx))
//	}
//
// Statements holding sql.Deferred parameters, such as those produced by
// sqlgraph.Cascade, cannot be committed through a Transaction. They are run
// with Coordinator.ExecSequence, which resolves each parameter from the
// results of the statements before it.
package tx
