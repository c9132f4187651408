// Package schema holds the table mappings consumed by the statement
// compilers.
//
// A Table describes one entity's table: its name, ordered columns, primary
// key and key strategy, and the relations that cascade writes into other
// tables:
//
//	reg := schema.NewRegistry()
//	reg.MustRegister(Order{}, &schema.Table{
//	    Columns:    []string{"id", "customer", "placed_at"},
//	    PrimaryKey: "id",
//	    Strategy:   schema.KeyAutoIncrement,
//	    Relations: []schema.Relation{
//	        {Table: "OrderLine", Field: "lines", ForeignKey: "order_id"},
//	    },
//	})
//
// The Registry is the stock Resolver; any other metadata source can be
// plugged in by implementing Resolver.
package schema
