package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/schema"
)

// Join kinds.
const (
	InnerJoin = "INNER JOIN"
	LeftJoin  = "LEFT JOIN"
)

type join struct {
	kind    string
	sel     *Selector
	local   string // column of the parent
	foreign string // column of the joined selector
}

type orderTerm struct {
	col  string
	desc bool
}

type union struct {
	all bool
	sel *Selector
}

// Selector is a SELECT statement builder.
//
//	s := sql.Select("Order")
//	s.Columns("id", "total").
//		Where(func(p *sql.Predicate) { p.GT("total", 100) }).
//		OrderByDesc("total").
//		Limit(10)
//	// SELECT ord.id, ord.total FROM Order AS ord WHERE ord.total > ? ORDER BY ord.total DESC LIMIT 10
type Selector struct {
	table   string
	from    *Selector
	alias   string
	derived bool
	scope   *aliasScope
	proj    *Projection
	where   *Predicate
	on      *Predicate
	joins   []join
	group   []string
	order   []orderTerm
	limit   *int
	offset  *int
	unions  []union
	parent  *Selector
	errs    buildErrs
}

// Select returns a selector over the given table or entity name. Its alias
// is derived from the first three characters of the name.
func Select(table string) *Selector {
	return newSelector(table, nil, newAliasScope())
}

// SelectTable returns a selector over a mapped table.
func SelectTable(t *schema.Table) *Selector {
	return Select(t.Name)
}

// SelectFrom returns a selector over a subquery. The outer alias is derived
// from the subquery's table name and is unique against its aliases.
func SelectFrom(sub *Selector) *Selector {
	s := newSelector("", sub, sub.scope)
	return s
}

// Sub returns a selector sharing the alias scope of s, for correlated
// subqueries in projections and predicates.
func (s *Selector) Sub(table string) *Selector {
	return newSelector(table, nil, s.scope)
}

func newSelector(table string, from *Selector, scope *aliasScope) *Selector {
	s := &Selector{table: table, from: from, scope: scope, derived: true}
	if table == "" && from == nil {
		s.errs.usage("Select", "empty table name")
	}
	s.alias = scope.derive(s.name())
	return s
}

// name returns the table name, or the innermost table name of a subquery.
func (s *Selector) name() string {
	if s.from != nil {
		return s.from.name()
	}
	return s.table
}

// Alias returns the alias of the selector.
func (s *Selector) Alias() string { return s.alias }

// Aliases returns the alias of the selector followed by the aliases of its
// joins, in join order.
func (s *Selector) Aliases() []string {
	out := []string{s.alias}
	for _, j := range s.joins {
		out = append(out, j.sel.Aliases()...)
	}
	return out
}

// C returns the column qualified with the selector alias.
func (s *Selector) C(col string) string {
	return qualify(s.alias, col)
}

// As sets an explicit alias. An alias already used in the statement's scope
// is a usage error.
func (s *Selector) As(alias string) *Selector {
	if alias == s.alias {
		s.derived = false
		return s
	}
	if !identRe.MatchString(alias) || alias == Wildcard {
		s.errs.usage("As", "invalid alias %q", alias)
		return s
	}
	if s.scope.has(alias) {
		s.errs.usage("As", "duplicate alias %q", alias)
		return s
	}
	s.scope.release(s.alias)
	s.scope.reserve(alias)
	s.alias = alias
	s.derived = false
	return s
}

// Columns adds columns to the projection.
func (s *Selector) Columns(cols ...string) *Selector {
	s.projection().Columns(cols...)
	return s
}

// Project configures the projection with fn.
func (s *Selector) Project(fn func(*Projection)) *Selector {
	fn(s.projection())
	return s
}

func (s *Selector) projection() *Projection {
	if s.proj == nil {
		s.proj = NewProjection()
	}
	return s.proj
}

// Where AND-s the conditions built by fn into the WHERE clause.
func (s *Selector) Where(fn func(*Predicate)) *Selector {
	if s.where == nil {
		s.where = NewPredicate()
	}
	s.where.merge(fn)
	return s
}

// On adds conditions to the ON clause used when s is joined. Bare columns
// are qualified with the alias of s.
func (s *Selector) On(fn func(*Predicate)) *Selector {
	if s.on == nil {
		s.on = NewPredicate()
	}
	s.on.merge(fn)
	return s
}

// GroupBy appends GROUP BY columns.
func (s *Selector) GroupBy(cols ...string) *Selector {
	s.group = append(s.group, cols...)
	return s
}

// OrderBy appends ascending ORDER BY columns.
func (s *Selector) OrderBy(cols ...string) *Selector {
	for _, c := range cols {
		s.order = append(s.order, orderTerm{col: c})
	}
	return s
}

// OrderByDesc appends descending ORDER BY columns.
func (s *Selector) OrderByDesc(cols ...string) *Selector {
	for _, c := range cols {
		s.order = append(s.order, orderTerm{col: c, desc: true})
	}
	return s
}

// Limit sets the LIMIT clause. A joined selector cannot have a limit.
func (s *Selector) Limit(n int) *Selector {
	if s.parent != nil {
		s.errs.usage("Limit", "a join cannot have a LIMIT")
		return s
	}
	if n < 0 {
		s.errs.usage("Limit", "negative limit %d", n)
		return s
	}
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause. Compiling an offset without a limit
// fails.
func (s *Selector) Offset(n int) *Selector {
	if n < 0 {
		s.errs.usage("Offset", "negative offset %d", n)
		return s
	}
	s.offset = &n
	return s
}

// Union appends a UNION with other.
func (s *Selector) Union(other *Selector) *Selector {
	s.unions = append(s.unions, union{sel: other})
	return s
}

// UnionAll appends a UNION ALL with other.
func (s *Selector) UnionAll(other *Selector) *Selector {
	s.unions = append(s.unions, union{all: true, sel: other})
	return s
}

// Join adds an INNER JOIN of j on "s.local = j.foreign".
func (s *Selector) Join(j *Selector, local, foreign string) *Selector {
	return s.join(InnerJoin, j, local, foreign)
}

// LeftJoin adds a LEFT JOIN of j on "s.local = j.foreign".
func (s *Selector) LeftJoin(j *Selector, local, foreign string) *Selector {
	return s.join(LeftJoin, j, local, foreign)
}

func (s *Selector) join(kind string, j *Selector, local, foreign string) *Selector {
	switch {
	case j == nil || j == s:
		s.errs.usage("Join", "invalid join target")
		return s
	case s.parent != nil:
		s.errs.usage("Join", "a join cannot contain a nested join")
		return s
	case len(j.joins) > 0:
		s.errs.usage("Join", "joined selector %q cannot contain a nested join", j.alias)
		return s
	case j.limit != nil:
		s.errs.usage("Join", "joined selector %q cannot have a LIMIT", j.alias)
		return s
	case j.parent != nil:
		s.errs.usage("Join", "selector %q is already joined", j.alias)
		return s
	case local == "" || foreign == "":
		s.errs.usage("Join", "empty join column")
		return s
	}
	if j.scope != s.scope {
		if s.scope.has(j.alias) {
			if !j.derived {
				s.errs.usage("Join", "duplicate alias %q", j.alias)
				return s
			}
			j.alias = s.scope.unique(deriveAlias(j.name()))
		} else {
			s.scope.reserve(j.alias)
		}
		j.scope = s.scope
	}
	j.parent = s
	s.joins = append(s.joins, join{kind: kind, sel: j, local: local, foreign: foreign})
	return s
}

// Err returns the usage errors recorded on the selector and its joins.
func (s *Selector) Err() error {
	errs := append(buildErrs(nil), s.errs...)
	if s.proj != nil {
		errs = append(errs, s.proj.errs...)
	}
	for _, j := range s.joins {
		errs.add(j.sel.Err())
		if len(j.sel.joins) > 0 {
			errs.usage("Join", "joined selector %q cannot contain a nested join", j.sel.alias)
		}
		if j.sel.limit != nil {
			errs.usage("Join", "joined selector %q cannot have a LIMIT", j.sel.alias)
		}
	}
	return errs.err()
}

// Compile returns the SELECT statement. Arguments are ordered as projection
// arguments, then join chain arguments (FROM subquery and ON clauses in join
// order), then WHERE arguments, then union arguments.
func (s *Selector) Compile() (Statement, error) {
	if err := s.Err(); err != nil {
		return Statement{}, err
	}
	if s.offset != nil && s.limit == nil {
		return Statement{}, sqlstack.NewUsageError("Offset", "an OFFSET requires a LIMIT")
	}
	var (
		projArgs, chainArgs, whereArgs, unionArgs []any
		b                                         strings.Builder
	)
	// Projection.
	cols, err := s.projectionText(&projArgs)
	if err != nil {
		return Statement{}, err
	}
	b.WriteString("SELECT ")
	b.WriteString(cols)
	// Join chain.
	b.WriteString(" FROM ")
	if err := s.source(&b, &chainArgs); err != nil {
		return Statement{}, err
	}
	for _, j := range s.joins {
		b.WriteByte(' ')
		b.WriteString(j.kind)
		b.WriteByte(' ')
		if err := j.sel.source(&b, &chainArgs); err != nil {
			return Statement{}, err
		}
		b.WriteString(" ON ")
		b.WriteString(s.C(j.local))
		b.WriteString(" = ")
		b.WriteString(j.sel.C(j.foreign))
		if !j.sel.on.empty() {
			text, args, err := j.sel.on.compile(j.sel.alias)
			if err != nil {
				return Statement{}, err
			}
			b.WriteString(" AND ")
			b.WriteString(parens(text, j.sel.on.needsParens()))
			chainArgs = append(chainArgs, args...)
		}
	}
	// Where.
	var frags []string
	for _, sel := range s.scopeChain() {
		if sel.where.empty() {
			continue
		}
		text, args, err := sel.where.compile(sel.alias)
		if err != nil {
			return Statement{}, err
		}
		frags = append(frags, parens(text, len(s.joins) > 0 && sel.where.needsParens()))
		whereArgs = append(whereArgs, args...)
	}
	if len(frags) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(frags, " AND "))
	}
	// Group and order.
	var group, order []string
	for _, sel := range s.scopeChain() {
		for _, c := range sel.group {
			group = append(group, sel.C(c))
		}
		for _, o := range sel.order {
			term := sel.C(o.col)
			if o.desc {
				term += " DESC"
			}
			order = append(order, term)
		}
	}
	if len(group) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(group, ", "))
	}
	if len(order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*s.limit))
		if s.offset != nil {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.Itoa(*s.offset))
		}
	}
	// Unions.
	for _, u := range s.unions {
		st, err := u.sel.Compile()
		if err != nil {
			return Statement{}, err
		}
		b.WriteString(" UNION ")
		if u.all {
			b.WriteString("ALL ")
		}
		b.WriteString(st.Query)
		unionArgs = append(unionArgs, st.Args...)
	}
	args := make([]any, 0, len(projArgs)+len(chainArgs)+len(whereArgs)+len(unionArgs))
	args = append(args, projArgs...)
	args = append(args, chainArgs...)
	args = append(args, whereArgs...)
	args = append(args, unionArgs...)
	return Statement{Query: b.String(), Args: args}, nil
}

// scopeChain returns s followed by its joined selectors.
func (s *Selector) scopeChain() []*Selector {
	chain := make([]*Selector, 0, len(s.joins)+1)
	chain = append(chain, s)
	for _, j := range s.joins {
		chain = append(chain, j.sel)
	}
	return chain
}

// projectionText renders the projections of s and its joins. When only
// joins project columns, s contributes all of its own columns.
func (s *Selector) projectionText(args *[]any) (string, error) {
	var parts []string
	joined := false
	for _, j := range s.joins {
		if !j.sel.proj.empty() {
			joined = true
		}
	}
	switch {
	case !s.proj.empty():
		text, pargs, err := s.proj.compile(s.alias)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
		*args = append(*args, pargs...)
	case joined:
		parts = append(parts, s.C(Wildcard))
	default:
		return Wildcard, nil
	}
	for _, j := range s.joins {
		if j.sel.proj.empty() {
			continue
		}
		text, pargs, err := j.sel.proj.compile(j.sel.alias)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
		*args = append(*args, pargs...)
	}
	return strings.Join(parts, ", "), nil
}

// source writes "<table> AS <alias>" or "(<subquery>) AS <alias>".
func (s *Selector) source(b *strings.Builder, args *[]any) error {
	if s.from != nil {
		st, err := s.from.Compile()
		if err != nil {
			return err
		}
		b.WriteByte('(')
		b.WriteString(st.Query)
		b.WriteByte(')')
		*args = append(*args, st.Args...)
	} else {
		b.WriteString(s.table)
	}
	b.WriteString(" AS ")
	b.WriteString(s.alias)
	return nil
}

func parens(text string, wrap bool) string {
	if wrap {
		return "(" + text + ")"
	}
	return text
}
