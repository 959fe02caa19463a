package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/fetchql/internal/config"
	"github.com/roach88/fetchql/internal/store"
)

// RootOptions holds global flags for all commands. PersistentPreRunE
// replaces the flag values with the layered configuration.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	DB         string

	// Config is the loaded configuration; nil when a command runs outside
	// the root (as in tests), in which case the flag fields are used.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fql",
		Short: "fql - FetchXML Query Language",
		Long: `fql compiles FQL, a compact pipe-based query language, into FetchXML.

  fql compile '.account | .name, .revenue | .statecode == 0 | limit(10)'

Queries can be saved to a local library, replayed from history and
checked against YAML conformance suites.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(opts.ConfigFile, cmd.Flags())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.apply(cfg, cmd.ErrOrStderr())

			if cfg.FileUsed != "" {
				opts.Logger.Debug("using config file", "path", cfg.FileUsed)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: ./fql.yaml)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", config.DefaultDB, "query library database")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return ValidFormats, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewTokensCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewREPLCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, version string) int {
	cmd := NewRootCommand()
	cmd.Version = version
	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			// Cobra usage errors (unknown command, bad flag) land here.
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitCommandError
		}
		if exitErr.Code == ExitCommandError && exitErr.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr)
		}
		return exitErr.Code
	}
	return ExitSuccess
}

func (o *RootOptions) apply(cfg *config.Config, stderr io.Writer) {
	o.Config = cfg
	o.Format = cfg.Format
	o.Verbose = cfg.Verbose
	o.DB = cfg.DB
	o.Logger = newLogger(stderr, cfg.Verbose)
}

// settings returns the loaded configuration, or one built from the flag
// fields when none was loaded.
func (o *RootOptions) settings() *config.Config {
	if o.Config != nil {
		return o.Config
	}
	db := o.DB
	if db == "" {
		db = config.DefaultDB
	}
	return &config.Config{
		Format:      o.Format,
		Verbose:     o.Verbose,
		DB:          db,
		HistoryFile: config.DefaultHistoryFile,
	}
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the query library, creating its directory if needed.
func (o *RootOptions) openStore() (*store.Store, error) {
	path := o.settings().DB
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	return store.Open(path, store.WithLogger(o.logger()))
}

// newLogger builds the stderr logger: debug level with --verbose, warnings
// otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
