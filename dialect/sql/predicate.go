package sql

import (
	"strings"
)

// Op is a condition operator.
type Op int

// Condition operators.
const (
	OpEQ Op = iota
	OpNEQ
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpBetween
	OpIn
	OpNotIn
	OpIsNull
	OpNotNull
)

var ops = [...]string{
	OpEQ:      "=",
	OpNEQ:     "<>",
	OpGT:      ">",
	OpGTE:     ">=",
	OpLT:      "<",
	OpLTE:     "<=",
	OpBetween: "BETWEEN",
	OpIn:      "IN",
	OpNotIn:   "NOT IN",
	OpIsNull:  "IS NULL",
	OpNotNull: "IS NOT NULL",
}

// String returns the SQL text of the operator.
func (o Op) String() string {
	if int(o) < len(ops) {
		return ops[o]
	}
	return "?"
}

// negate returns the operator a pending NOT turns o into.
// BETWEEN has no negated form.
func (o Op) negate() (Op, bool) {
	switch o {
	case OpEQ:
		return OpNEQ, true
	case OpNEQ:
		return OpEQ, true
	case OpGT:
		return OpLTE, true
	case OpGTE:
		return OpLT, true
	case OpLT:
		return OpGTE, true
	case OpLTE:
		return OpGT, true
	case OpIsNull:
		return OpNotNull, true
	case OpNotNull:
		return OpIsNull, true
	case OpIn:
		return OpNotIn, true
	case OpNotIn:
		return OpIn, true
	default:
		return o, false
	}
}

// Join relations between condition nodes.
const (
	relAnd = "AND"
	relOr  = "OR"
)

type condNode struct {
	rel    string
	col    string
	op     Op
	values []any      // normalized literals
	other  string     // column right operand
	nested *Predicate // scope
	query  *Selector  // subquery right operand
	negate bool       // NOT (nested)
}

// Predicate builds a boolean SQL predicate from a chain of conditions.
// Nodes are joined by AND unless Or is called before them. Not negates the
// next condition algebraically.
//
//	p := sql.NewPredicate().
//		GT("code_import", 10).
//		Or().Not().IsNull("closed_at")
//	// code_import > ? OR closed_at IS NOT NULL
type Predicate struct {
	nodes []condNode
	rel   string
	not   bool
	errs  buildErrs
}

// NewPredicate returns an empty predicate.
func NewPredicate() *Predicate {
	return &Predicate{rel: relAnd}
}

// Where is a shorthand for building a predicate with fn.
func Where(fn func(*Predicate)) *Predicate {
	p := NewPredicate()
	fn(p)
	return p
}

// Not negates the next condition. Calling Not twice in a row, or before
// Between, is a usage error.
func (p *Predicate) Not() *Predicate {
	if p.not {
		p.errs.usage("Not", "NOT cannot be applied to another NOT")
		return p
	}
	p.not = true
	return p
}

// And joins the next condition with AND. This is the default.
func (p *Predicate) And() *Predicate {
	p.rel = relAnd
	return p
}

// Or joins the next condition with OR.
func (p *Predicate) Or() *Predicate {
	p.rel = relOr
	return p
}

// EQ appends "col = ?".
func (p *Predicate) EQ(col string, v any) *Predicate {
	return p.compare("EQ", col, OpEQ, v)
}

// NEQ appends "col <> ?".
func (p *Predicate) NEQ(col string, v any) *Predicate {
	return p.compare("NEQ", col, OpNEQ, v)
}

// GT appends "col > ?".
func (p *Predicate) GT(col string, v any) *Predicate {
	return p.compare("GT", col, OpGT, v)
}

// GTE appends "col >= ?".
func (p *Predicate) GTE(col string, v any) *Predicate {
	return p.compare("GTE", col, OpGTE, v)
}

// LT appends "col < ?".
func (p *Predicate) LT(col string, v any) *Predicate {
	return p.compare("LT", col, OpLT, v)
}

// LTE appends "col <= ?".
func (p *Predicate) LTE(col string, v any) *Predicate {
	return p.compare("LTE", col, OpLTE, v)
}

// Between appends "col BETWEEN ? AND ?". Exactly two values are required.
func (p *Predicate) Between(col string, vs ...any) *Predicate {
	if p.not {
		p.not = false
		p.errs.usage("Between", "NOT cannot be applied to BETWEEN")
		return p
	}
	if len(vs) != 2 {
		p.errs.usage("Between", "expected 2 values, got %d", len(vs))
		return p
	}
	return p.push(condNode{col: col, op: OpBetween, values: p.normalize(vs)})
}

// In appends "col IN (?, ...)" with one placeholder per value.
func (p *Predicate) In(col string, vs ...any) *Predicate {
	return p.membership("In", col, OpIn, vs)
}

// NotIn appends "col NOT IN (?, ...)" with one placeholder per value.
func (p *Predicate) NotIn(col string, vs ...any) *Predicate {
	return p.membership("NotIn", col, OpNotIn, vs)
}

// IsNull appends "col IS NULL".
func (p *Predicate) IsNull(col string) *Predicate {
	return p.push(condNode{col: col, op: p.apply(OpIsNull)})
}

// NotNull appends "col IS NOT NULL".
func (p *Predicate) NotNull(col string) *Predicate {
	return p.push(condNode{col: col, op: p.apply(OpNotNull)})
}

// CompareColumns appends "col <op> other" where other is a column.
func (p *Predicate) CompareColumns(col string, op Op, other string) *Predicate {
	switch op {
	case OpBetween, OpIn, OpNotIn, OpIsNull, OpNotNull:
		p.errs.usage("CompareColumns", "operator %s does not compare two columns", op)
		return p
	}
	if other == "" {
		p.errs.usage("CompareColumns", "empty right-hand column")
		return p
	}
	return p.push(condNode{col: col, op: p.apply(op), other: other})
}

// ColumnsEQ appends "col = other" where other is a column.
func (p *Predicate) ColumnsEQ(col, other string) *Predicate {
	return p.CompareColumns(col, OpEQ, other)
}

// InQuery appends "col IN (SELECT ...)". Under a pending NOT it becomes
// NOT IN.
func (p *Predicate) InQuery(col string, sub *Selector) *Predicate {
	if sub == nil {
		p.errs.usage("InQuery", "nil subquery")
		return p
	}
	return p.push(condNode{col: col, op: p.apply(OpIn), query: sub})
}

// Scope compiles fn into a nested predicate and appends it as a single
// parenthesized node. A pending NOT wraps the whole group as "NOT (...)";
// the inner conditions are left as written.
func (p *Predicate) Scope(fn func(*Predicate)) *Predicate {
	child := NewPredicate()
	fn(child)
	p.errs = append(p.errs, child.errs...)
	if child.not {
		p.errs.usage("Scope", "dangling NOT at the end of a scope")
	}
	if child.empty() {
		p.not = false
		p.rel = relAnd
		return p
	}
	n := condNode{nested: child, negate: p.not}
	p.not = false
	return p.push(n)
}

// Apply runs typed field conditions against the predicate.
func (p *Predicate) Apply(conds ...Condition) *Predicate {
	for _, c := range conds {
		c(p)
	}
	return p
}

// Err returns the usage errors recorded so far.
func (p *Predicate) Err() error {
	return p.errs.err()
}

// Compile returns the predicate text and its arguments, with columns left
// unqualified.
func (p *Predicate) Compile() (Statement, error) {
	text, args, err := p.compile("")
	if err != nil {
		return Statement{}, err
	}
	return Statement{Query: text, Args: args}, nil
}

func (p *Predicate) compare(name, col string, op Op, v any) *Predicate {
	nv := p.normalize([]any{v})
	if nv == nil {
		return p
	}
	return p.push(condNode{col: col, op: p.apply(op), values: nv})
}

func (p *Predicate) membership(name, col string, op Op, vs []any) *Predicate {
	if len(vs) == 0 {
		p.not = false
		p.errs.usage(name, "at least one value is required")
		return p
	}
	return p.push(condNode{col: col, op: p.apply(op), values: p.normalize(vs)})
}

// apply consumes a pending NOT.
func (p *Predicate) apply(op Op) Op {
	if !p.not {
		return op
	}
	p.not = false
	neg, _ := op.negate()
	return neg
}

func (p *Predicate) normalize(vs []any) []any {
	out, err := normalizeAll(vs)
	if err != nil {
		p.errs.add(err)
		return nil
	}
	return out
}

func (p *Predicate) push(n condNode) *Predicate {
	n.rel = p.rel
	p.rel = relAnd
	p.nodes = append(p.nodes, n)
	return p
}

func (p *Predicate) empty() bool {
	return p == nil || len(p.nodes) == 0
}

// needsParens reports whether the predicate must be parenthesized when
// AND-ed with other fragments: it has more than one node and one of them is
// joined by OR.
func (p *Predicate) needsParens() bool {
	if len(p.nodes) < 2 {
		return false
	}
	for _, n := range p.nodes[1:] {
		if n.rel == relOr {
			return true
		}
	}
	return false
}

// merge AND-s the conditions built by fn into p. AND-only chains are
// appended flat; chains containing OR are grouped so the existing and the
// new conditions keep their meaning.
func (p *Predicate) merge(fn func(*Predicate)) {
	child := NewPredicate()
	fn(child)
	p.errs = append(p.errs, child.errs...)
	if child.not {
		p.errs.usage("Where", "dangling NOT at the end of a condition chain")
	}
	if child.empty() {
		return
	}
	if p.empty() {
		p.nodes = child.nodes
		return
	}
	if p.needsParens() {
		p.nodes = []condNode{{rel: relAnd, nested: &Predicate{rel: relAnd, nodes: p.nodes}}}
	}
	if child.needsParens() {
		p.nodes = append(p.nodes, condNode{rel: relAnd, nested: child})
		return
	}
	child.nodes[0].rel = relAnd
	p.nodes = append(p.nodes, child.nodes...)
}

// compile renders the predicate, qualifying bare columns with alias.
func (p *Predicate) compile(alias string) (string, []any, error) {
	if err := p.errs.err(); err != nil {
		return "", nil, err
	}
	var (
		b    strings.Builder
		args []any
	)
	for i, n := range p.nodes {
		if i > 0 {
			b.WriteByte(' ')
			b.WriteString(n.rel)
			b.WriteByte(' ')
		}
		switch {
		case n.nested != nil:
			text, nargs, err := n.nested.compile(alias)
			if err != nil {
				return "", nil, err
			}
			if n.negate {
				b.WriteString("NOT ")
			}
			b.WriteByte('(')
			b.WriteString(text)
			b.WriteByte(')')
			args = append(args, nargs...)
		case n.query != nil:
			sub, err := n.query.Compile()
			if err != nil {
				return "", nil, err
			}
			b.WriteString(qualify(alias, n.col))
			b.WriteByte(' ')
			b.WriteString(n.op.String())
			b.WriteString(" (")
			b.WriteString(sub.Query)
			b.WriteByte(')')
			args = append(args, sub.Args...)
		default:
			b.WriteString(qualify(alias, n.col))
			b.WriteByte(' ')
			b.WriteString(n.op.String())
			switch n.op {
			case OpIsNull, OpNotNull:
			case OpBetween:
				b.WriteString(" ? AND ?")
				args = append(args, n.values...)
			case OpIn, OpNotIn:
				b.WriteString(" (")
				b.WriteString(placeholders(len(n.values)))
				b.WriteByte(')')
				args = append(args, n.values...)
			default:
				if n.other != "" {
					b.WriteByte(' ')
					b.WriteString(qualify(alias, n.other))
				} else {
					b.WriteString(" ?")
					args = append(args, n.values...)
				}
			}
		}
	}
	return b.String(), args, nil
}
