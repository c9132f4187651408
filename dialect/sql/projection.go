package sql

import (
	"strconv"
	"strings"
)

// Wildcard selects every column. As an alias it means "no alias".
const Wildcard = "*"

type projItem struct {
	col  string
	wrap func(string) string
	raw  bool // col is an expression, never qualified
	as   string
	args []any
	sub  *Selector
}

// Projection builds the column list of a SELECT. Bare identifiers are
// qualified with the statement alias; expressions are emitted as written.
type Projection struct {
	items []projItem
	errs  buildErrs
}

// NewProjection returns an empty projection.
func NewProjection() *Projection {
	return &Projection{}
}

// Column selects a column.
func (p *Projection) Column(col string, as ...string) *Projection {
	return p.add(projItem{col: col, as: first(as)})
}

// Columns selects several columns.
func (p *Projection) Columns(cols ...string) *Projection {
	for _, c := range cols {
		p.Column(c)
	}
	return p
}

// Expr selects an arbitrary expression. Its arguments are appended to the
// projection arguments.
func (p *Projection) Expr(expr, as string, args ...any) *Projection {
	nargs, err := normalizeAll(args)
	if err != nil {
		p.errs.add(err)
		return p
	}
	return p.add(projItem{col: expr, raw: true, as: as, args: nargs})
}

// Sum selects SUM(col).
func (p *Projection) Sum(col string, as ...string) *Projection {
	return p.aggregate("SUM", col, as)
}

// Max selects MAX(col).
func (p *Projection) Max(col string, as ...string) *Projection {
	return p.aggregate("MAX", col, as)
}

// Min selects MIN(col).
func (p *Projection) Min(col string, as ...string) *Projection {
	return p.aggregate("MIN", col, as)
}

// Avg selects AVG(col).
func (p *Projection) Avg(col string, as ...string) *Projection {
	return p.aggregate("AVG", col, as)
}

// Count selects COUNT(col). Count("*") counts rows.
func (p *Projection) Count(col string, as ...string) *Projection {
	if col == Wildcard {
		return p.add(projItem{col: "COUNT(*)", raw: true, as: first(as)})
	}
	return p.aggregate("COUNT", col, as)
}

// CountDistinct selects COUNT(DISTINCT col).
func (p *Projection) CountDistinct(col string, as ...string) *Projection {
	return p.add(projItem{col: col, as: first(as), wrap: func(c string) string {
		return "COUNT(DISTINCT " + c + ")"
	}})
}

// Distinct selects DISTINCT col.
func (p *Projection) Distinct(col string, as ...string) *Projection {
	return p.add(projItem{col: col, as: first(as), wrap: func(c string) string {
		return "DISTINCT " + c
	}})
}

// Cast selects CAST(col AS typ).
func (p *Projection) Cast(col, typ string, as ...string) *Projection {
	if !identRe.MatchString(typ) {
		p.errs.usage("Cast", "invalid type name %q", typ)
		return p
	}
	return p.add(projItem{col: col, as: first(as), wrap: func(c string) string {
		return "CAST(" + c + " AS " + typ + ")"
	}})
}

// Coalesce selects COALESCE(col, ?) with fallback as argument.
func (p *Projection) Coalesce(col string, fallback any, as ...string) *Projection {
	v, err := Normalize(fallback)
	if err != nil {
		p.errs.add(err)
		return p
	}
	return p.add(projItem{col: col, as: first(as), args: []any{v}, wrap: func(c string) string {
		return "COALESCE(" + c + ", ?)"
	}})
}

// RoundAvg selects ROUND(AVG(col), digits).
func (p *Projection) RoundAvg(col string, digits int, as ...string) *Projection {
	if digits < 0 {
		p.errs.usage("RoundAvg", "negative digits %d", digits)
		return p
	}
	d := strconv.Itoa(digits)
	return p.add(projItem{col: col, as: first(as), wrap: func(c string) string {
		return "ROUND(AVG(" + c + "), " + d + ")"
	}})
}

// SubQuery selects the result of a correlated subquery. Its arguments are
// appended after every prior projection argument, in their own order.
func (p *Projection) SubQuery(sub *Selector, as string) *Projection {
	if sub == nil {
		p.errs.usage("SubQuery", "nil subquery")
		return p
	}
	return p.add(projItem{sub: sub, as: as})
}

func (p *Projection) aggregate(fn, col string, as []string) *Projection {
	return p.add(projItem{col: col, as: first(as), wrap: func(c string) string {
		return fn + "(" + c + ")"
	}})
}

func (p *Projection) add(it projItem) *Projection {
	p.items = append(p.items, it)
	return p
}

func (p *Projection) empty() bool {
	return p == nil || len(p.items) == 0
}

// compile renders the projection. An empty projection selects Wildcard.
func (p *Projection) compile(alias string) (string, []any, error) {
	if p == nil {
		return Wildcard, nil, nil
	}
	if err := p.errs.err(); err != nil {
		return "", nil, err
	}
	if p.empty() {
		return Wildcard, nil, nil
	}
	var (
		parts = make([]string, 0, len(p.items))
		args  []any
	)
	for _, it := range p.items {
		var text string
		switch {
		case it.sub != nil:
			sub, err := it.sub.Compile()
			if err != nil {
				return "", nil, err
			}
			text = "(" + sub.Query + ")"
			args = append(args, sub.Args...)
		default:
			text = it.col
			if !it.raw {
				text = qualify(alias, it.col)
			}
			if it.wrap != nil {
				text = it.wrap(text)
			}
			args = append(args, it.args...)
		}
		if it.as != "" && it.as != Wildcard {
			text += " AS " + it.as
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ", "), args, nil
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
