// Package privacy evaluates statement policies before they reach the
// database.
//
// A Policy is an ordered list of rules. Each rule inspects a compiled
// statement and returns one of three decisions:
//
//   - Allow: grants the statement and stops evaluation
//   - Deny: rejects the statement and stops evaluation
//   - Skip (or nil): continues with the next rule
//
// A statement that every rule skips is allowed.
//
//	p := privacy.Policy{
//	    privacy.HasRole("admin"),
//	    privacy.DenyVerbRule("DROP", "DELETE"),
//	}
//	t := coord.Begin()
//	t.OnCommit(privacy.CommitHook(p))
//
// # Viewer
//
// Rules may depend on the caller, carried in the context:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID: "user-123",
//	    Roles:  []string{"admin"},
//	})
//
// # Decisions in Context
//
// DecisionContext attaches a decision that short-circuits every policy
// evaluated with that context, for maintenance jobs and tests.
package privacy
