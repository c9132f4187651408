package sqlgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/dialect/sql"
	"github.com/syssam/sqlstack/schema"
)

type (
	order struct {
		ID       int64  `db:"id"`
		Customer string `db:"customer"`
		Lines    []*line
		Note     *note
	}
	line struct {
		ID   int64  `db:"id"`
		Sku  string `db:"sku"`
		Tags []tag
	}
	tag struct {
		Name string `db:"name"`
	}
	note struct {
		Text string `db:"text"`
	}
)

func registry(strategy schema.KeyStrategy) *schema.Registry {
	return schema.NewRegistry().
		MustRegister(order{}, &schema.Table{
			Name:       "Orders",
			Columns:    []string{"id", "customer"},
			PrimaryKey: "id",
			Strategy:   strategy,
			Relations: []schema.Relation{
				{Table: "Line", Field: "lines", ForeignKey: "orderId"},
				{Table: "Note", Field: "note", ForeignKey: "orderId"},
			},
		}).
		MustRegister(line{}, &schema.Table{
			Name:       "Line",
			Columns:    []string{"id", "orderId", "sku"},
			PrimaryKey: "id",
			Strategy:   schema.KeyAutoIncrement,
			Relations:  []schema.Relation{{Table: "Tag", Field: "tags", ForeignKey: "lineId"}},
		}).
		MustRegister(tag{}, &schema.Table{
			Name:       "Tag",
			Columns:    []string{"name"},
			PrimaryKey: "name",
			Strategy:   schema.KeyAssigned,
		}).
		MustRegister(note{}, &schema.Table{
			Name:    "Note",
			Columns: []string{"orderId", "text"},
		})
}

func TestCascadeInsert(t *testing.T) {
	o := &order{
		Customer: "c",
		Lines: []*line{
			{Sku: "a", Tags: []tag{{Name: "x"}, {Name: "y"}}},
			nil,
			{Sku: "b"},
		},
		Note: &note{Text: "n"},
	}
	stmts, err := NewCascade(registry(schema.KeyAutoIncrement)).Insert(o)
	require.NoError(t, err)

	want := []sql.Statement{
		{Query: "INSERT INTO Orders (customer) VALUES (?)", Args: []any{"c"}},
		{Query: "INSERT INTO Line (orderId, sku) VALUES (?, ?)", Args: []any{sql.InsertID(0), "a"}},
		{Query: "INSERT INTO Line (orderId, sku) VALUES (?, ?)", Args: []any{sql.InsertID(0), "b"}},
		{Query: "INSERT INTO Note (orderId, text) VALUES (?, ?)", Args: []any{sql.InsertID(0), "n"}},
		{Query: "INSERT INTO Tag (name, lineId) VALUES (?, ?)", Args: []any{"x", sql.InsertID(1)}},
		{Query: "INSERT INTO Tag (name, lineId) VALUES (?, ?)", Args: []any{"y", sql.InsertID(1)}},
	}
	assert.Equal(t, want, stmts)
	assert.False(t, stmts[0].HasDeferred())
	assert.True(t, stmts[5].HasDeferred())
}

func TestCascadeAssignedKey(t *testing.T) {
	o := &order{ID: 42, Customer: "c", Lines: []*line{{Sku: "a"}}}
	stmts, err := NewCascade(registry(schema.KeyAssigned)).Insert(o)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "INSERT INTO Orders (id, customer) VALUES (?, ?)", stmts[0].Query)
	assert.Equal(t, []any{int64(42), "c"}, stmts[0].Args)
	assert.Equal(t, []any{int64(42), "a"}, stmts[1].Args)
}

func TestCascadeKeyPath(t *testing.T) {
	type (
		product struct {
			Sku string `db:"sku"`
		}
		item struct{ Product *product }
		cart struct {
			ID    int64 `db:"id"`
			Items []item
		}
	)
	reg := schema.NewRegistry().
		MustRegister(cart{}, &schema.Table{
			Name:       "Cart",
			Columns:    []string{"id"},
			PrimaryKey: "id",
			Strategy:   schema.KeyAssigned,
			Relations:  []schema.Relation{{Table: "Product", Field: "items", Key: "product", ForeignKey: "cartId"}},
		}).
		MustRegister(product{}, &schema.Table{
			Name:       "Product",
			Columns:    []string{"sku"},
			PrimaryKey: "sku",
			Strategy:   schema.KeyAssigned,
		})

	c := cart{ID: 1, Items: []item{{Product: &product{Sku: "a"}}, {}, {Product: &product{Sku: "b"}}}}
	stmts, err := NewCascade(reg).Insert(c)
	require.NoError(t, err)
	assert.Equal(t, []sql.Statement{
		{Query: "INSERT INTO Cart (id) VALUES (?)", Args: []any{int64(1)}},
		{Query: "INSERT INTO Product (sku, cartId) VALUES (?, ?)", Args: []any{"a", int64(1)}},
		{Query: "INSERT INTO Product (sku, cartId) VALUES (?, ?)", Args: []any{"b", int64(1)}},
	}, stmts)
}

func TestCascadeCompileRoot(t *testing.T) {
	reg := registry(schema.KeyAutoIncrement)
	tbl, err := reg.Lookup("Orders")
	require.NoError(t, err)

	root := sql.Statement{Query: "INSERT OR REPLACE INTO Orders (customer) VALUES (?)", Args: []any{"c"}}
	stmts, err := NewCascade(reg).Compile(root, tbl, &order{Note: &note{Text: "n"}})
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, root, stmts[0])
	assert.Equal(t, []any{sql.InsertID(0), "n"}, stmts[1].Args)
}

type person struct {
	ID     int64 `db:"id"`
	Friend *person
}

func TestCascadeCycle(t *testing.T) {
	reg := schema.NewRegistry().MustRegister(person{}, &schema.Table{
		Name:       "Person",
		Columns:    []string{"id"},
		PrimaryKey: "id",
		Strategy:   schema.KeyAssigned,
		Relations:  []schema.Relation{{Table: "Person", Field: "friend"}},
	})

	t.Run("chain", func(t *testing.T) {
		a := &person{ID: 1, Friend: &person{ID: 2, Friend: &person{ID: 3}}}
		stmts, err := NewCascade(reg).Insert(a)
		require.NoError(t, err)
		require.Len(t, stmts, 3)
		assert.Equal(t, []any{int64(3)}, stmts[2].Args)
	})

	t.Run("self reference", func(t *testing.T) {
		a := &person{ID: 1}
		a.Friend = a
		_, err := NewCascade(reg).Insert(a)
		require.Error(t, err)
		assert.True(t, sqlstack.IsUsageError(err))
		assert.Contains(t, err.Error(), "cycle detected at Person.friend")
	})

	t.Run("loop", func(t *testing.T) {
		a, b := &person{ID: 1}, &person{ID: 2}
		a.Friend, b.Friend = b, a
		_, err := NewCascade(reg).Insert(a)
		assert.True(t, sqlstack.IsUsageError(err))
	})
}

func TestCascadeErrors(t *testing.T) {
	reg := registry(schema.KeyAutoIncrement)
	tbl, err := reg.Lookup("Orders")
	require.NoError(t, err)
	c := NewCascade(reg)

	t.Run("nil table", func(t *testing.T) {
		_, err := c.Compile(sql.Statement{}, nil, &order{})
		assert.True(t, sqlstack.IsUsageError(err))
	})
	t.Run("nil entity", func(t *testing.T) {
		_, err := c.Compile(sql.Statement{}, tbl, nil)
		assert.True(t, sqlstack.IsUsageError(err))
		_, err = c.Compile(sql.Statement{}, tbl, (*order)(nil))
		assert.True(t, sqlstack.IsUsageError(err))
	})
	t.Run("unregistered entity", func(t *testing.T) {
		_, err := c.Insert(&person{})
		var nr *schema.NotRegisteredError
		assert.ErrorAs(t, err, &nr)
	})
	t.Run("unregistered relation", func(t *testing.T) {
		reg := schema.NewRegistry().MustRegister(order{}, &schema.Table{
			Name:       "Orders",
			Columns:    []string{"id", "customer"},
			PrimaryKey: "id",
			Relations:  []schema.Relation{{Table: "Line", Field: "lines"}},
		})
		_, err := NewCascade(reg).Insert(&order{Lines: []*line{{}}})
		var nr *schema.NotRegisteredError
		assert.ErrorAs(t, err, &nr)
	})
	t.Run("missing relation field", func(t *testing.T) {
		reg := schema.NewRegistry().
			MustRegister(order{}, &schema.Table{
				Name:      "Orders",
				Columns:   []string{"customer"},
				Relations: []schema.Relation{{Table: "Tag", Field: "labels"}},
			}).
			MustRegister(tag{}, &schema.Table{Name: "Tag", Columns: []string{"name"}})
		_, err := NewCascade(reg).Insert(&order{})
		assert.True(t, sqlstack.IsUsageError(err))
	})
	t.Run("owner without key", func(t *testing.T) {
		reg := schema.NewRegistry().
			MustRegister(order{}, &schema.Table{
				Name:      "Orders",
				Columns:   []string{"customer"},
				Relations: []schema.Relation{{Table: "Note", Field: "note", ForeignKey: "orderId"}},
			}).
			MustRegister(note{}, &schema.Table{Name: "Note", Columns: []string{"text"}})
		_, err := NewCascade(reg).Insert(&order{Note: &note{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no primary key")
	})
}
