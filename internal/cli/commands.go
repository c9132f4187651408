package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/syssam/sqlstack/dialect"
	"github.com/syssam/sqlstack/dialect/sql"
	"github.com/syssam/sqlstack/privacy"
)

// commands returns the subcommands, in help order.
func commands() []*Command {
	return []*Command{
		tablesCmd(),
		columnsCmd(),
		dropCmd(),
		execCmd(),
	}
}

func tablesCmd() *Command {
	return &Command{
		Usage: "tables",
		Short: "List the tables of the database",
		Exec: func(ctx context.Context, e *Env, _ []string) error {
			res, err := e.Coord.Exec(ctx, sql.Tables())
			if err != nil {
				return err
			}
			for _, row := range res.Rows {
				fmt.Fprintln(e.Out, row["name"])
			}
			return nil
		},
	}
}

func columnsCmd() *Command {
	return &Command{
		Usage: "columns <table>",
		Short: "List the columns of a table",
		Exec: func(ctx context.Context, e *Env, args []string) error {
			if len(args) != 1 {
				return errors.New("columns: expected one table name")
			}
			res, err := e.Coord.Exec(ctx, sql.TableColumns(args[0]))
			if err != nil {
				return err
			}
			if len(res.Rows) == 0 {
				return fmt.Errorf("columns: no table %q", args[0])
			}
			return printRows(e.Out, []string{"name", "type", "notnull", "pk"}, res)
		},
	}
}

func dropCmd() *Command {
	fs := flag.NewFlagSet("drop", flag.ContinueOnError)
	dryRun := fs.BoolP("dry-run", "n", false, "print the statements without executing them")
	return &Command{
		Flags: fs,
		Usage: "drop [flags] <table>...",
		Short: "Drop tables in one transaction",
		Exec: func(ctx context.Context, e *Env, args []string) error {
			if len(args) == 0 {
				return errors.New("drop: expected at least one table name")
			}
			t := e.Coord.Begin()
			t.OnCommit(privacy.CommitHook(e.Policy))
			for _, name := range args {
				if err := t.Add(sql.Drop(name)); err != nil {
					return errors.Join(err, t.Rollback(ctx))
				}
			}
			if *dryRun {
				for _, st := range t.Statements() {
					fmt.Fprintln(e.Out, st.Query)
				}
				return t.Rollback(ctx)
			}
			if err := t.Commit(ctx); err != nil {
				return errors.Join(err, t.Rollback(ctx))
			}
			fmt.Fprintf(e.Out, "dropped %d table(s)\n", len(args))
			return nil
		},
	}
}

func execCmd() *Command {
	return &Command{
		Usage: "exec <query> [args...]",
		Short: "Execute one statement with positional string arguments",
		Exec: func(ctx context.Context, e *Env, args []string) error {
			if len(args) == 0 {
				return errors.New("exec: expected a query")
			}
			params := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				params = append(params, a)
			}
			st, err := sql.Raw(args[0], params...).Compile()
			if err != nil {
				return err
			}
			if err := e.Policy.EvalStatement(ctx, st); err != nil {
				return err
			}
			res, err := e.Coord.Exec(ctx, st)
			if err != nil {
				return err
			}
			if res.Rows == nil {
				fmt.Fprintf(e.Out, "rows affected: %d, last insert id: %d\n", res.RowsAffected, res.LastInsertID)
				return nil
			}
			return printRows(e.Out, nil, res)
		},
	}
}

// printRows writes rows as an aligned table. Without explicit columns the
// column names of the first row are used, sorted.
func printRows(w io.Writer, cols []string, res dialect.Result) error {
	if cols == nil && len(res.Rows) > 0 {
		for c := range res.Rows[0] {
			cols = append(cols, c)
		}
		slices.Sort(cols)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, row := range res.Rows {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, format(row[c]))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func format(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
