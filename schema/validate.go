package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError describes one problem of a table mapping.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the result as an error, or nil if there are no errors.
// Warnings are not reported.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return fmt.Errorf("schema: invalid mapping:\n%s", r)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a set of table mappings. Relations must reference a
// table of the set, and a relation writing a foreign key requires its
// owner to have a primary key. A foreign key column missing from the
// related table's columns is reported as a warning: cascades append it.
//
// Example:
//
//	if err := schema.Validate(tables...).Err(); err != nil {
//	    log.Fatal(err)
//	}
func Validate(tables ...*Table) *ValidationResult {
	result := &ValidationResult{}
	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		if _, dup := byName[t.Name]; dup {
			result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Message: "table is declared twice"})
		}
		byName[t.Name] = t
	}
	for _, t := range tables {
		validateTable(t, byName, result)
	}
	return result
}

func validateTable(t *Table, byName map[string]*Table, result *ValidationResult) {
	fail := func(col, format string, args ...any) {
		result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Column: col, Message: fmt.Sprintf(format, args...)})
	}
	warn := func(col, format string, args ...any) {
		result.Warnings = append(result.Warnings, &ValidationError{Table: t.Name, Column: col, Message: fmt.Sprintf(format, args...)})
	}

	if !identRe.MatchString(t.Name) {
		fail("", "invalid table name %q", t.Name)
	}
	if len(t.Columns) == 0 {
		fail("", "no columns")
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		switch {
		case !identRe.MatchString(c):
			fail(c, "invalid column name")
		case seen[c]:
			fail(c, "column is declared twice")
		}
		seen[c] = true
	}
	switch {
	case t.PrimaryKey != "" && !seen[t.PrimaryKey]:
		fail(t.PrimaryKey, "primary key is not a column")
	case t.PrimaryKey == "" && t.Strategy != KeyNone:
		fail("", "key strategy %s without a primary key", t.Strategy)
	}

	for _, rel := range t.Relations {
		if rel.Field == "" {
			fail("", "relation to %s has no field", rel.Table)
			continue
		}
		related, ok := byName[rel.Table]
		if !ok {
			fail(rel.Field, "relation references unknown table %q", rel.Table)
			continue
		}
		if rel.ForeignKey == "" {
			continue
		}
		if t.PrimaryKey == "" {
			fail(rel.Field, "foreign key %s.%s requires a primary key", related.Name, rel.ForeignKey)
		}
		if !related.HasColumn(rel.ForeignKey) {
			warn(rel.Field, "foreign key %q is not a column of %s", rel.ForeignKey, related.Name)
		}
		if related.PrimaryKey == rel.ForeignKey && related.Strategy == KeyAutoIncrement {
			fail(rel.Field, "foreign key %s.%s is generated by the database", related.Name, rel.ForeignKey)
		}
	}
}
