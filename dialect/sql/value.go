package sql

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/sqlstack"
)

// TimeFormat is the layout dates are stored with. SQLite date functions
// accept it as-is.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Deferred is a parameter whose value is only known after a prior statement
// of the same sequence has executed, such as an auto-generated key.
// It is resolved by the sequential executor, never by the compiler.
type Deferred struct {
	// Index is the position of the prior statement in the sequence.
	Index int
	// Field selects the value on the prior result: "insertId", "rowCount"
	// or "rows[N].column".
	Field string
}

// String returns the path notation of the parameter, e.g. "result[2].insertId".
func (d Deferred) String() string {
	return "result[" + strconv.Itoa(d.Index) + "]." + d.Field
}

// Fields accepted by Deferred.
const (
	FieldInsertID = "insertId"
	FieldRowCount = "rowCount"
)

// InsertID returns a parameter deferred to the insert id of statement i.
func InsertID(i int) Deferred { return Deferred{Index: i, Field: FieldInsertID} }

// Normalize converts a Go value to the engine-native literal appended to a
// parameter list. The same rules apply to compile-time literals and to
// values threaded through cascades:
//
//   - nil and nil pointers become nil
//   - booleans become int64 1 or 0
//   - signed and unsigned integers become int64
//   - floats become float64
//   - strings and byte slices are kept
//   - time.Time becomes a UTC string in TimeFormat
//   - driver.Valuer values are normalized from their Value
//   - Deferred parameters pass through untouched
func Normalize(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case Deferred:
		return v, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return v, nil
	case string:
		return v, nil
	case []byte:
		return v, nil
	case time.Time:
		return v.UTC().Format(TimeFormat), nil
	case driver.Valuer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		dv, err := v.Value()
		if err != nil {
			return nil, fmt.Errorf("sqlstack: normalize %T: %w", v, err)
		}
		return Normalize(dv)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Bool:
		return Normalize(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, sqlstack.NewUsageError("Normalize", "unsigned value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
	}
	return nil, sqlstack.NewUsageError("Normalize", "unsupported value type %T", v)
}

// Statement is a compiled SQL statement: text with positional "?"
// placeholders and its ordered arguments. It must not be mutated once
// produced.
type Statement struct {
	Query string
	Args  []any
}

// String returns the statement text.
func (s Statement) String() string { return s.Query }

// Compile returns s, so that a compiled statement can be passed wherever
// a Compiler is expected.
func (s Statement) Compile() (Statement, error) { return s, nil }

// HasDeferred reports whether any argument is a Deferred parameter.
func (s Statement) HasDeferred() bool {
	for _, a := range s.Args {
		if _, ok := a.(Deferred); ok {
			return true
		}
	}
	return false
}

// Compiler is implemented by every statement builder.
type Compiler interface {
	Compile() (Statement, error)
}

// Raw returns a Compiler for a pre-built statement.
func Raw(query string, args ...any) Compiler {
	return rawStatement{query: query, args: args}
}

type rawStatement struct {
	query string
	args  []any
}

func (r rawStatement) Compile() (Statement, error) {
	args, err := normalizeAll(r.args)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Query: r.query, Args: args}, nil
}

func normalizeAll(vs []any) ([]any, error) {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		nv, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, nv)
	}
	return out, nil
}

// placeholders returns n comma separated placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
