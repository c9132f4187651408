package sql

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlstack"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		name      string
		sel       func() *Selector
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "wildcard",
			sel:       func() *Selector { return Select("Entity") },
			wantQuery: "SELECT * FROM Entity AS ent",
			wantArgs:  []any{},
		},
		{
			name:      "short name",
			sel:       func() *Selector { return Select("Ab").Columns("x") },
			wantQuery: "SELECT ab.x FROM Ab AS ab",
			wantArgs:  []any{},
		},
		{
			name: "where order limit offset",
			sel: func() *Selector {
				return Select("Order").
					Columns("id", "total").
					Where(func(p *Predicate) { p.GT("total", 100) }).
					OrderByDesc("total").
					Limit(10).
					Offset(20)
			},
			wantQuery: "SELECT ord.id, ord.total FROM Order AS ord WHERE ord.total > ? ORDER BY ord.total DESC LIMIT 10 OFFSET 20",
			wantArgs:  []any{int64(100)},
		},
		{
			name: "group by with aggregates",
			sel: func() *Selector {
				return Select("Sale").
					Project(func(p *Projection) {
						p.Column("region").Sum("amount", "total").Count("*", "n")
					}).
					GroupBy("region")
			},
			wantQuery: "SELECT sal.region, SUM(sal.amount) AS total, COUNT(*) AS n FROM Sale AS sal GROUP BY sal.region",
			wantArgs:  []any{},
		},
		{
			name: "explicit alias",
			sel: func() *Selector {
				return Select("Entity").As("e").Where(func(p *Predicate) { p.EQ("id", 1) })
			},
			wantQuery: "SELECT * FROM Entity AS e WHERE e.id = ?",
			wantArgs:  []any{int64(1)},
		},
		{
			name: "union all",
			sel: func() *Selector {
				a := Select("Alpha").Columns("id").Where(func(p *Predicate) { p.EQ("k", 1) })
				b := Select("Beta").Columns("id").Where(func(p *Predicate) { p.EQ("k", 2) })
				return a.UnionAll(b)
			},
			wantQuery: "SELECT alp.id FROM Alpha AS alp WHERE alp.k = ? UNION ALL SELECT bet.id FROM Beta AS bet WHERE bet.k = ?",
			wantArgs:  []any{int64(1), int64(2)},
		},
		{
			name: "subquery source",
			sel: func() *Selector {
				inner := Select("Entity").Columns("id").Where(func(p *Predicate) { p.GT("codeImport", 5) })
				return SelectFrom(inner).Columns("id")
			},
			wantQuery: "SELECT ent1.id FROM (SELECT ent.id FROM Entity AS ent WHERE ent.codeImport > ?) AS ent1",
			wantArgs:  []any{int64(5)},
		},
		{
			name: "in subquery",
			sel: func() *Selector {
				s := Select("User")
				return s.Where(func(p *Predicate) {
					p.InQuery("id", s.Sub("Pet").Columns("ownerId").Where(func(p *Predicate) { p.EQ("kind", "cat") }))
				})
			},
			wantQuery: "SELECT * FROM User AS use WHERE use.id IN (SELECT pet.ownerId FROM Pet AS pet WHERE pet.kind = ?)",
			wantArgs:  []any{"cat"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := tt.sel().Compile()
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, st.Query)
			assert.Equal(t, tt.wantArgs, st.Args)
		})
	}
}

func TestSelectorJoin(t *testing.T) {
	s := Select("Entity").Columns("id")
	j := Select("Entry").Columns("label")
	j.On(func(p *Predicate) { p.EQ("kind", "x") })
	s.Join(j, "id", "entityId").
		Where(func(p *Predicate) { p.GT("codeImport", 10) })
	j.Where(func(p *Predicate) { p.NotNull("label") })

	st, err := s.Compile()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT ent.id, ent1.label FROM Entity AS ent INNER JOIN Entry AS ent1 ON ent.id = ent1.entityId AND ent1.kind = ? "+
			"WHERE ent.codeImport > ? AND ent1.label IS NOT NULL",
		st.Query)
	assert.Equal(t, []any{"x", int64(10)}, st.Args)
	assert.Equal(t, []string{"ent", "ent1"}, s.Aliases())
}

func TestSelectorJoinOnlyJoinProjects(t *testing.T) {
	s := Select("Order")
	s.LeftJoin(Select("Line").Columns("sku"), "id", "orderId")
	st, err := s.Compile()
	require.NoError(t, err)
	assert.Equal(t, "SELECT ord.*, lin.sku FROM Order AS ord LEFT JOIN Line AS lin ON ord.id = lin.orderId", st.Query)
}

func TestSelectorAliasCollisions(t *testing.T) {
	s := Select("Entity")
	a := Select("Entry")
	b := Select("Entrance")
	s.Join(a, "id", "entityId").Join(b, "id", "entityId")
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"ent", "ent1", "ent2"}, s.Aliases())

	t.Run("sibling joins never share an alias", func(t *testing.T) {
		s := Select("Pet")
		for range 5 {
			s.Join(Select("Pet"), "id", "parentId")
		}
		aliases := s.Aliases()
		seen := make(map[string]bool)
		for _, a := range aliases {
			assert.False(t, seen[a], "duplicate alias %q", a)
			seen[a] = true
		}
		assert.Equal(t, []string{"pet", "pet1", "pet2", "pet3", "pet4", "pet5"}, aliases)
	})

	t.Run("explicit duplicate alias is a usage error", func(t *testing.T) {
		s := Select("Entity").As("x")
		s.Join(Select("Entry").As("x"), "id", "entityId")
		err := s.Err()
		require.Error(t, err)
		assert.True(t, sqlstack.IsUsageError(err))
		assert.Contains(t, err.Error(), `duplicate alias "x"`)
	})

	t.Run("As on a taken alias", func(t *testing.T) {
		s := Select("Entity")
		j := s.Sub("Entry")
		j.As("ent")
		assert.True(t, sqlstack.IsUsageError(j.Err()))
	})

	t.Run("counter is scoped per statement", func(t *testing.T) {
		for range 2 {
			s := Select("Entity")
			s.Join(Select("Entry"), "id", "entityId")
			assert.Equal(t, []string{"ent", "ent1"}, s.Aliases())
		}
	})
}

func TestSelectorJoinUsageErrors(t *testing.T) {
	tests := []struct {
		name    string
		sel     func() *Selector
		wantMsg string
	}{
		{
			name: "nested join",
			sel: func() *Selector {
				j := Select("B")
				j.Join(Select("C"), "id", "bId")
				return Select("A").Join(j, "id", "aId")
			},
			wantMsg: "cannot contain a nested join",
		},
		{
			name: "join inside a join",
			sel: func() *Selector {
				s := Select("A")
				j := Select("B")
				s.Join(j, "id", "aId")
				j.Join(Select("C"), "id", "bId")
				return s
			},
			wantMsg: "cannot contain a nested join",
		},
		{
			name: "limit on a join",
			sel: func() *Selector {
				s := Select("A")
				j := Select("B")
				s.Join(j, "id", "aId")
				j.Limit(1)
				return s
			},
			wantMsg: "a join cannot have a LIMIT",
		},
		{
			name: "joining a limited selector",
			sel: func() *Selector {
				return Select("A").Join(Select("B").Limit(1), "id", "aId")
			},
			wantMsg: "cannot have a LIMIT",
		},
		{
			name: "empty table",
			sel: func() *Selector {
				return Select("")
			},
			wantMsg: "empty table name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sel().Compile()
			require.Error(t, err)
			assert.True(t, sqlstack.IsUsageError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

// Arguments must be ordered projection, then join chain, then WHERE.
func TestSelectorArgumentOrder(t *testing.T) {
	s := Select("Order")
	s.Project(func(p *Projection) {
		p.Column("id").
			Coalesce("note", "none", "note").
			Expr("total * ?", "taxed", 1.2)
	})
	s.Where(func(p *Predicate) { p.GT("total", 100).In("status", "open", "held") })

	inner := Select("Line").Where(func(p *Predicate) { p.EQ("deleted", false) })
	j := SelectFrom(inner).Columns("sku")
	j.On(func(p *Predicate) { p.GTE("qty", 2) })
	s.Join(j, "id", "orderId")
	j.Where(func(p *Predicate) { p.NEQ("sku", "void") })

	st, err := s.Compile()
	require.NoError(t, err)

	proj := []any{"none", 1.2}
	chain := []any{int64(0), int64(2)}
	where := []any{int64(100), "open", "held", "void"}
	want := append(append(append([]any{}, proj...), chain...), where...)
	if diff := cmp.Diff(want, st.Args); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectorIdempotent(t *testing.T) {
	s := Select("Entity")
	s.Project(func(p *Projection) { p.Column("id").Coalesce("name", "", "name") })
	s.Join(Select("Entry").Columns("label"), "id", "entityId")
	s.Where(func(p *Predicate) { p.Between("codeImport", 1, 9) }).OrderBy("id").Limit(3)

	first, err := s.Compile()
	require.NoError(t, err)
	second, err := s.Compile()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProjection(t *testing.T) {
	tests := []struct {
		name      string
		build     func(*Projection)
		wantQuery string
		wantArgs  []any
	}{
		{"empty", func(*Projection) {}, "*", nil},
		{"column alias", func(p *Projection) { p.Column("name", "n") }, "x.name AS n", nil},
		{"wildcard alias is ignored", func(p *Projection) { p.Column("name", Wildcard) }, "x.name", nil},
		{"expression left as written", func(p *Projection) { p.Column("a + b", "s") }, "a + b AS s", nil},
		{"max min avg", func(p *Projection) { p.Max("a").Min("b").Avg("c") }, "MAX(x.a), MIN(x.b), AVG(x.c)", nil},
		{"count distinct", func(p *Projection) { p.CountDistinct("a", "n") }, "COUNT(DISTINCT x.a) AS n", nil},
		{"distinct", func(p *Projection) { p.Distinct("a") }, "DISTINCT x.a", nil},
		{"cast", func(p *Projection) { p.Cast("a", "TEXT", "t") }, "CAST(x.a AS TEXT) AS t", nil},
		{"coalesce", func(p *Projection) { p.Coalesce("a", 0) }, "COALESCE(x.a, ?)", []any{int64(0)}},
		{"round avg", func(p *Projection) { p.RoundAvg("a", 2, "r") }, "ROUND(AVG(x.a), 2) AS r", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProjection()
			tt.build(p)
			text, args, err := p.compile("x")
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, text)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestProjectionSubQuery(t *testing.T) {
	s := Select("User")
	sub := s.Sub("Pet").
		Project(func(p *Projection) { p.Count("*") }).
		Where(func(p *Predicate) { p.EQ("kind", "dog") })
	s.Project(func(p *Projection) {
		p.Coalesce("nick", "anon", "nick").SubQuery(sub, "dogs")
	})
	st, err := s.Compile()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COALESCE(use.nick, ?) AS nick, (SELECT COUNT(*) FROM Pet AS pet WHERE pet.kind = ?) AS dogs FROM User AS use", st.Query)
	assert.Equal(t, []any{"anon", "dog"}, st.Args)
}

func TestSelectorOffsetWithoutLimit(t *testing.T) {
	_, err := Select("A").Offset(5).Compile()
	require.Error(t, err)
	assert.True(t, sqlstack.IsUsageError(err))
	assert.Contains(t, err.Error(), "OFFSET requires a LIMIT")

	st, err := Select("A").Offset(5).Limit(10).Compile()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM A AS a LIMIT 10 OFFSET 5", st.Query)
}

func TestProjectionErrors(t *testing.T) {
	_, err := Select("A").Project(func(p *Projection) { p.Cast("a", "TEXT; DROP") }).Compile()
	assert.True(t, sqlstack.IsUsageError(err))
	_, err = Select("A").Project(func(p *Projection) { p.RoundAvg("a", -1) }).Compile()
	assert.True(t, sqlstack.IsUsageError(err))
}
