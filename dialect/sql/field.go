package sql

import "time"

// Condition is a typed condition applied to a Predicate.
type Condition func(*Predicate)

// Not negates a typed condition.
func Not(c Condition) Condition {
	return func(p *Predicate) {
		p.Not()
		c(p)
	}
}

// Or joins a typed condition with OR.
func Or(c Condition) Condition {
	return func(p *Predicate) {
		p.Or()
		c(p)
	}
}

// Field is a typed column reference. It resolves a field-access expression
// to its column name while keeping the value type checked at compile time.
//
// Usage:
//
//	var Status = sql.Field[string]("status")
//	sel.Where(func(p *sql.Predicate) { p.Apply(Status.EQ("open")) })
type Field[V any] string

// Name returns the column name.
func (f Field[V]) Name() string { return string(f) }

// EQ returns a condition that checks if the field equals the given value.
func (f Field[V]) EQ(v V) Condition {
	return func(p *Predicate) { p.EQ(string(f), v) }
}

// NEQ returns a condition that checks if the field does not equal the given value.
func (f Field[V]) NEQ(v V) Condition {
	return func(p *Predicate) { p.NEQ(string(f), v) }
}

// In returns a condition that checks if the field value is in the given list.
func (f Field[V]) In(vs ...V) Condition {
	return func(p *Predicate) { p.In(string(f), anys(vs)...) }
}

// NotIn returns a condition that checks if the field value is not in the given list.
func (f Field[V]) NotIn(vs ...V) Condition {
	return func(p *Predicate) { p.NotIn(string(f), anys(vs)...) }
}

// IsNull returns a condition that checks if the field is NULL.
func (f Field[V]) IsNull() Condition {
	return func(p *Predicate) { p.IsNull(string(f)) }
}

// NotNull returns a condition that checks if the field is not NULL.
func (f Field[V]) NotNull() Condition {
	return func(p *Predicate) { p.NotNull(string(f)) }
}

// Orderable is the set of value types with a natural order.
type Orderable interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~string | time.Time
}

// OrderedField is a typed column reference whose values can be compared.
type OrderedField[V Orderable] string

// Name returns the column name.
func (f OrderedField[V]) Name() string { return string(f) }

// Field returns the unordered view of the field.
func (f OrderedField[V]) Field() Field[V] { return Field[V](f) }

// EQ returns a condition that checks if the field equals the given value.
func (f OrderedField[V]) EQ(v V) Condition { return f.Field().EQ(v) }

// NEQ returns a condition that checks if the field does not equal the given value.
func (f OrderedField[V]) NEQ(v V) Condition { return f.Field().NEQ(v) }

// In returns a condition that checks if the field value is in the given list.
func (f OrderedField[V]) In(vs ...V) Condition { return f.Field().In(vs...) }

// NotIn returns a condition that checks if the field value is not in the given list.
func (f OrderedField[V]) NotIn(vs ...V) Condition { return f.Field().NotIn(vs...) }

// IsNull returns a condition that checks if the field is NULL.
func (f OrderedField[V]) IsNull() Condition { return f.Field().IsNull() }

// NotNull returns a condition that checks if the field is not NULL.
func (f OrderedField[V]) NotNull() Condition { return f.Field().NotNull() }

// GT returns a condition that checks if the field is greater than the given value.
func (f OrderedField[V]) GT(v V) Condition {
	return func(p *Predicate) { p.GT(string(f), v) }
}

// GTE returns a condition that checks if the field is greater than or equal to the given value.
func (f OrderedField[V]) GTE(v V) Condition {
	return func(p *Predicate) { p.GTE(string(f), v) }
}

// LT returns a condition that checks if the field is less than the given value.
func (f OrderedField[V]) LT(v V) Condition {
	return func(p *Predicate) { p.LT(string(f), v) }
}

// LTE returns a condition that checks if the field is less than or equal to the given value.
func (f OrderedField[V]) LTE(v V) Condition {
	return func(p *Predicate) { p.LTE(string(f), v) }
}

// Between returns a condition that checks if the field lies in [lo, hi].
func (f OrderedField[V]) Between(lo, hi V) Condition {
	return func(p *Predicate) { p.Between(string(f), lo, hi) }
}

func anys[V any](vs []V) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
