// Package cli implements the sqlstack command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/syssam/sqlstack/config"
	"github.com/syssam/sqlstack/dialect"
	"github.com/syssam/sqlstack/dialect/sql"
	"github.com/syssam/sqlstack/dialect/sql/sqlgraph"
	"github.com/syssam/sqlstack/internal/logging"
	"github.com/syssam/sqlstack/privacy"
	"github.com/syssam/sqlstack/tx"
)

// Run is the main entry point. It returns the process exit code.
// Database drivers must be registered with database/sql by the caller.
func Run(ctx context.Context, out, errOut io.Writer, args []string, getenv func(string) string) int {
	fs := flag.NewFlagSet("sqlstack", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{})
	fs.SetInterspersed(false)
	configPath := fs.StringP("config", "c", "", "path to a YAML config file")
	dialectName := fs.String("dialect", "", "database dialect: sqlite, mysql or postgres")
	dsn := fs.String("dsn", "", "data source name")
	readOnly := fs.Bool("read-only", false, "reject statements that modify the database")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, fs)
			return 0
		}
		fmt.Fprintln(errOut, "error:", err)
		printUsage(errOut, fs)
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 || rest[0] == "help" {
		printUsage(out, fs)
		return 0
	}

	var cmd *Command
	for _, c := range commands() {
		if c.Name() == rest[0] {
			cmd = c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintln(errOut, "error: unknown command:", rest[0])
		printUsage(errOut, fs)
		return 1
	}
	cmdArgs, err := cmd.parse(rest[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			cmd.PrintHelp(out)
			return 0
		}
		fmt.Fprintln(errOut, "error:", err)
		cmd.PrintHelp(errOut)
		return 1
	}

	cfg, err := config.LoadEnv(*configPath, getenv)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if *dialectName != "" {
		cfg.Database.Dialect = *dialectName
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if *readOnly {
		cfg.Database.ReadOnly = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	log := logging.New(cfg.Logging)
	drv, err := Open(cfg, log)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer drv.Close()

	coord, err := tx.New(drv, tx.WithLogger(log))
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer coord.Close()

	env := &Env{Out: out, Coord: coord}
	if cfg.Database.ReadOnly {
		env.Policy = privacy.Policy{privacy.ReadOnlyRule()}
	}
	if err := cmd.Exec(ctx, env, cmdArgs); err != nil {
		fmt.Fprintln(errOut, "error:", sqlgraph.Classify(err))
		return 1
	}
	return 0
}

// Open opens the configured database and wraps it with the stats and
// debug decorators when enabled.
func Open(cfg *config.Config, log *slog.Logger) (dialect.Driver, error) {
	dsn := cfg.Database.DSN
	if cfg.Database.ReadOnly && cfg.Database.Dialect == dialect.SQLite {
		dsn = queryOnly(dsn)
	}
	d, err := sql.Open(cfg.Database.Dialect, dsn)
	if err != nil {
		return nil, err
	}
	if n := cfg.Database.MaxOpenConns; n > 0 {
		d.DB().SetMaxOpenConns(n)
	}
	var drv dialect.Driver = d
	if cfg.Stats.Enabled {
		drv = sql.NewStatsDriver(drv,
			sql.WithSlowThreshold(cfg.Stats.SlowThreshold),
			sql.WithSlowQueryLog(log),
		)
	}
	if cfg.Stats.Debug {
		drv = sql.NewDebugDriver(drv, sql.DebugWithLog(func(ctx context.Context, v ...any) {
			log.DebugContext(ctx, fmt.Sprint(v...))
		}))
	}
	return drv, nil
}

// queryOnly makes every connection opened on the SQLite dsn reject writes.
func queryOnly(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=query_only(1)"
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: sqlstack [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands() {
		fmt.Fprintln(w, c.HelpLine())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	var buf strings.Builder
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fmt.Fprint(w, buf.String())
}
