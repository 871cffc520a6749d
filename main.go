package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"library-circulation/config"
	"library-circulation/library"
	"library-circulation/logging"
)

// errRejected marks a request the engine refused on business grounds. The
// outcome has already been printed; only the exit status is left to set.
var errRejected = errors.New("request rejected")

// app carries the state shared by every subcommand for one invocation.
type app struct {
	envFile   string
	dbPath    string
	logLevel  string
	logFormat string
	jsonOut   bool

	base *logging.ZapLogger
	log  logging.Logger
	mgr  *library.LibraryManager
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCommand(a).ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	switch {
	case err == nil:
	case errors.Is(err, errRejected):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Library circulation: catalog search, loans and fines",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsStore(cmd) {
				return nil
			}
			return a.open(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file to load before reading LIBRARY_* variables")
	pf.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides "+config.EnvDatabasePath+")")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: console or json")
	pf.BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newSearchCommand(a),
		newBooksCommand(a),
		newAuthorsCommand(a),
		newAvailableCommand(a),
		newCheckoutCommand(a),
		newCheckinCommand(a),
		newLoansCommand(a),
		newRegisterCommand(a),
		newBorrowerCommand(a),
		newFinesCommand(a),
	)
	return root
}

func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return true
}

// open resolves configuration (defaults, env file, environment, flags),
// builds the logger and opens the store.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DatabasePath = a.dbPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}

	a.base, err = logging.NewZapLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.log = a.base.With("op_id", uuid.NewString(), "command", cmd.CommandPath())

	a.mgr, err = library.NewLibraryManager(cfg.DatabasePath, library.WithLogger(a.log))
	if err != nil {
		a.log.Error(cmd.Context(), "open database", "path", cfg.DatabasePath, "error", err)
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	a.log.Debug(cmd.Context(), "database opened", "path", cfg.DatabasePath)
	return nil
}

func (a *app) close() error {
	var err error
	if a.mgr != nil {
		if err = a.mgr.Close(); err != nil {
			a.log.Warn(context.Background(), "close database", "error", err)
		}
		a.mgr = nil
	}
	if a.base != nil {
		_ = a.base.Sync()
	}
	return err
}

// internal reports a storage fault. The detail goes to the log; the caller
// gets a generic message and exit status 2.
func (a *app) internal(cmd *cobra.Command, op string, err error) error {
	a.log.Error(cmd.Context(), op+" failed", "error", err)
	return fmt.Errorf("internal error during %s", op)
}
