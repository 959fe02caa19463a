package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fetchql/internal/fetchxml"
	"github.com/roach88/fetchql/internal/store"
)

// indentUnit is the indentation of pretty-printed FetchXML.
const indentUnit = "  "

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Input   string // read the query from a file
	Output  string // output file path
	Indent  bool
	NoCache bool
}

// CompileResult is the payload of a successful compilation.
type CompileResult struct {
	FetchXML    string `json:"fetchxml"`
	Fingerprint string `json:"fingerprint"`
	Cached      bool   `json:"cached"`
	Output      string `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [FQL...]",
		Short: "Compile an FQL query to FetchXML",
		Long: `Compile an FQL query to FetchXML.

The query is taken from the arguments, from --input, or from stdin.
Successful results are cached in the query library by fingerprint and
every attempt is appended to the compile history.

Examples:
  fql compile '.account | .name | limit(5)'
  fql compile -i query.fql -o query.xml --indent
  echo '.contact | .fullname' | fql compile --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "read the query from a file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the FetchXML to a file")
	cmd.Flags().BoolVar(&opts.Indent, "indent", false, "pretty-print the FetchXML")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "ignore cached results")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	source, err := readSource(cmd, args, opts.Input)
	if err != nil {
		return outputCommandError(formatter, inputErrorCode(err), err.Error())
	}

	c := opts.newQueryCompiler()
	defer c.Close()

	result, err := c.compile(cmd.Context(), source, opts.Indent || opts.settings().Indent, !opts.NoCache)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	formatter.VerboseLog("fingerprint %s (cached: %t)", result.Fingerprint, result.Cached)

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.FetchXML), 0o644); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		result.Output = opts.Output
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote FetchXML to %s\n", opts.Output)
		return nil
	}
	fmt.Fprint(formatter.Writer, result.FetchXML)
	if !opts.Indent && !opts.settings().Indent {
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}

// queryCompiler compiles queries with the configured primary keys. When the
// query library is available it serves cached results and records every
// attempt; without it compilation still works.
type queryCompiler struct {
	store  *store.Store
	keys   map[string]string
	logger *slog.Logger
}

func (o *RootOptions) newQueryCompiler() *queryCompiler {
	c := &queryCompiler{keys: o.settings().PrimaryKeys, logger: o.logger()}
	st, err := o.openStore()
	if err != nil {
		c.logger.Warn("query library unavailable, compiling without cache", "error", err)
		return c
	}
	c.store = st
	return c
}

func (c *queryCompiler) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

func (c *queryCompiler) compile(ctx context.Context, source string, indent, useCache bool) (CompileResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := CompileResult{Fingerprint: store.Fingerprint(source, c.keys)}

	if useCache && c.store != nil {
		xml, ok, err := c.store.CachedXML(ctx, result.Fingerprint)
		if err != nil {
			c.logger.Warn("cache lookup failed", "error", err)
		}
		if ok {
			result.FetchXML = xml
			result.Cached = true
		}
	}

	if !result.Cached {
		xml, err := fetchxml.Compile(source, fetchxml.WithPrimaryKeys(c.keys))
		c.record(ctx, result.Fingerprint, source, xml, err)
		if err != nil {
			return CompileResult{}, err
		}
		result.FetchXML = xml
	}

	if indent {
		pretty, err := fetchxml.Compile(source, fetchxml.WithPrimaryKeys(c.keys), fetchxml.WithIndent(indentUnit))
		if err != nil {
			return CompileResult{}, err
		}
		result.FetchXML = pretty
	}
	return result, nil
}

func (c *queryCompiler) record(ctx context.Context, fingerprint, source, xml string, compileErr error) {
	if c.store == nil {
		return
	}
	entry := store.Compilation{Fingerprint: fingerprint, FQL: source, FetchXML: xml}
	if compileErr != nil {
		entry.Error = compileErr.Error()
	}
	if _, err := c.store.RecordCompilation(ctx, entry); err != nil {
		c.logger.Warn("failed to record compilation", "error", err)
	}
}
