package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/sqlstack"
)

// Argument kinds of the wire encoding. Each argument is tagged so that the
// decoded value has exactly the type Normalize produced.
const (
	argNull byte = iota
	argInt
	argFloat
	argString
	argBytes
	argDeferred
)

type wireArg struct {
	K byte    `msgpack:"k"`
	I int64   `msgpack:"i,omitempty"`
	F float64 `msgpack:"f,omitempty"`
	S string  `msgpack:"s,omitempty"`
	B []byte  `msgpack:"b,omitempty"`
}

type wireStatement struct {
	Query string    `msgpack:"q"`
	Args  []wireArg `msgpack:"a"`
}

// EncodeStatement encodes a compiled statement with msgpack.
func EncodeStatement(st Statement) ([]byte, error) {
	w := wireStatement{Query: st.Query, Args: make([]wireArg, 0, len(st.Args))}
	for _, a := range st.Args {
		var wa wireArg
		switch v := a.(type) {
		case nil:
			wa.K = argNull
		case int64:
			wa.K, wa.I = argInt, v
		case float64:
			wa.K, wa.F = argFloat, v
		case string:
			wa.K, wa.S = argString, v
		case []byte:
			wa.K, wa.B = argBytes, v
		case Deferred:
			wa.K, wa.I, wa.S = argDeferred, int64(v.Index), v.Field
		default:
			return nil, fmt.Errorf("sqlstack: encode statement: unnormalized argument %T", a)
		}
		w.Args = append(w.Args, wa)
	}
	return msgpack.Marshal(&w)
}

// DecodeStatement decodes a statement produced by EncodeStatement.
func DecodeStatement(data []byte) (Statement, error) {
	var w wireStatement
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return Statement{}, fmt.Errorf("sqlstack: decode statement: %w", err)
	}
	st := Statement{Query: w.Query, Args: make([]any, 0, len(w.Args))}
	for _, wa := range w.Args {
		switch wa.K {
		case argNull:
			st.Args = append(st.Args, nil)
		case argInt:
			st.Args = append(st.Args, wa.I)
		case argFloat:
			st.Args = append(st.Args, wa.F)
		case argString:
			st.Args = append(st.Args, wa.S)
		case argBytes:
			b := wa.B
			if b == nil {
				b = []byte{}
			}
			st.Args = append(st.Args, b)
		case argDeferred:
			st.Args = append(st.Args, Deferred{Index: int(wa.I), Field: wa.S})
		default:
			return Statement{}, fmt.Errorf("sqlstack: decode statement: unknown argument kind %d", wa.K)
		}
	}
	return st, nil
}

// CachedCompile returns the statement stored under key, or compiles c and
// stores the result for ttl. Since compilation is deterministic, a cached
// statement is identical to a fresh one.
func CachedCompile(ctx context.Context, cache sqlstack.Cache, key sqlstack.CacheKey, ttl time.Duration, c Compiler) (Statement, error) {
	k := key.String()
	data, err := cache.Get(ctx, k)
	if err != nil {
		return Statement{}, err
	}
	if data != nil {
		if st, err := DecodeStatement(data); err == nil {
			return st, nil
		}
		// Undecodable entries are recompiled and overwritten.
	}
	st, err := c.Compile()
	if err != nil {
		return Statement{}, err
	}
	data, err = EncodeStatement(st)
	if err != nil {
		return Statement{}, err
	}
	if err := cache.Set(ctx, k, data, ttl); err != nil {
		return Statement{}, err
	}
	return st, nil
}
