package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/sqlstack/dialect/sql"
	"github.com/syssam/sqlstack/tx"
)

// Policy decision sentinel errors.
//
// Use errors.Is() to check for these values:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("sqlstack/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("sqlstack/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("sqlstack/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule decides whether a statement may be executed.
type Rule interface {
	EvalStatement(context.Context, sql.Statement) error
}

// RuleFunc is an adapter to allow the use of ordinary functions as rules.
type RuleFunc func(context.Context, sql.Statement) error

// EvalStatement returns f(ctx, st).
func (f RuleFunc) EvalStatement(ctx context.Context, st sql.Statement) error {
	return f(ctx, st)
}

// Policy combines rules, evaluated in order.
type Policy []Rule

// EvalStatement evaluates st against the policy. It returns nil when st is
// allowed, and the deny decision otherwise.
func (p Policy) EvalStatement(ctx context.Context, st sql.Statement) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.EvalStatement(ctx, st); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// Eval evaluates every statement and returns the first denial.
func (p Policy) Eval(ctx context.Context, stmts ...sql.Statement) error {
	for _, st := range stmts {
		if err := p.EvalStatement(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// CommitHook returns a commit hook evaluating the pending statements of
// the transaction against p. A denied transaction is not flushed and stays
// active.
func CommitHook(p Policy) tx.CommitHook {
	return func(next tx.Committer) tx.Committer {
		return tx.CommitFunc(func(ctx context.Context, t *tx.Transaction) error {
			if err := p.Eval(ctx, t.Statements()...); err != nil {
				return err
			}
			return next.Commit(ctx, t)
		})
	}
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function.
// Returning nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ sql.Statement) error {
		return eval(ctx)
	})
}

// Verb returns the leading keyword of a statement, upper-cased.
func Verb(query string) string {
	q := strings.TrimSpace(query)
	if i := strings.IndexAny(q, " \t\n(;"); i >= 0 {
		q = q[:i]
	}
	return strings.ToUpper(q)
}

// OnVerb evaluates rule only on statements starting with one of verbs.
func OnVerb(rule Rule, verbs ...string) Rule {
	return RuleFunc(func(ctx context.Context, st sql.Statement) error {
		v := Verb(st.Query)
		for _, want := range verbs {
			if strings.EqualFold(v, want) {
				return rule.EvalStatement(ctx, st)
			}
		}
		return Skip
	})
}

// DenyVerbRule returns a rule denying statements starting with one of verbs.
func DenyVerbRule(verbs ...string) Rule {
	rule := RuleFunc(func(_ context.Context, st sql.Statement) error {
		return Denyf("sqlstack/privacy: %s statements are not allowed", Verb(st.Query))
	})
	return OnVerb(rule, verbs...)
}

// writeWords are the keywords of statements modifying the database.
var writeWords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "REPLACE": true,
	"MERGE": true, "UPSERT": true, "CREATE": true, "DROP": true,
	"ALTER": true, "TRUNCATE": true, "ATTACH": true, "DETACH": true,
	"VACUUM": true, "REINDEX": true,
}

// ReadOnlyRule returns a rule allowing single read statements and denying
// any other. A text holding several statements is denied, and so is a
// read verb carrying a write, as in WITH ... DELETE.
func ReadOnlyRule() Rule {
	return RuleFunc(func(_ context.Context, st sql.Statement) error {
		words, n := scan(st.Query)
		if n > 1 {
			return Denyf("sqlstack/privacy: read-only policy rejects %d statements in one text", n)
		}
		v := Verb(st.Query)
		switch v {
		case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		default:
			return Denyf("sqlstack/privacy: read-only policy rejects %s", v)
		}
		for _, w := range words {
			if writeWords[w] {
				return Denyf("sqlstack/privacy: read-only policy rejects %s in %s", w, v)
			}
		}
		if v == "PRAGMA" && slices.Contains(words, "=") {
			return Denyf("sqlstack/privacy: read-only policy rejects PRAGMA assignment")
		}
		return Allow
	})
}

// scan returns the upper-cased words and "=" signs of query found outside
// quoted literals, and the number of statements it holds.
func scan(query string) ([]string, int) {
	var (
		words []string
		n     int
		quote byte
		start = -1
	)
	if strings.TrimSpace(query) != "" {
		n = 1
	}
	flush := func(i int) {
		if start >= 0 {
			words = append(words, strings.ToUpper(query[start:i]))
			start = -1
		}
	}
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			flush(i)
			quote = c
		case c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || start >= 0 && '0' <= c && c <= '9':
			if start < 0 {
				start = i
			}
		default:
			flush(i)
			switch {
			case c == '=':
				words = append(words, "=")
			case c == ';' && strings.TrimSpace(query[i+1:]) != "":
				n++
			}
		}
	}
	flush(len(query))
	return words, n
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attach to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalStatement(context.Context, sql.Statement) error {
	return f.decision
}
