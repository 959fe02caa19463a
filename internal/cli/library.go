package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/fetchql/internal/fetchxml"
	"github.com/roach88/fetchql/internal/store"
)

// QueryInfo is a saved query in JSON output.
type QueryInfo struct {
	Name        string `json:"name"`
	FQL         string `json:"fql"`
	Fingerprint string `json:"fingerprint"`
	Revision    int64  `json:"revision"`
	FetchXML    string `json:"fetchxml,omitempty"`
}

func queryInfo(q store.SavedQuery) QueryInfo {
	return QueryInfo{Name: q.Name, FQL: q.FQL, Fingerprint: q.Fingerprint, Revision: q.Revision}
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "save <name> [FQL...]",
		Short: "Save a query to the library",
		Long: `Save an FQL query under a name, replacing any earlier version.

The query must compile; saving it again bumps its revision.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(rootOpts, args[0], args[1:], input, cmd)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "read the query from a file")

	return cmd
}

func runSave(opts *RootOptions, name string, args []string, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	source, err := readSource(cmd, args, input)
	if err != nil {
		return outputCommandError(formatter, inputErrorCode(err), err.Error())
	}
	if _, err := fetchxml.Compile(source, fetchxml.WithPrimaryKeys(opts.settings().PrimaryKeys)); err != nil {
		return outputCompileError(formatter, err)
	}

	st, err := opts.openStore()
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("failed to open query library: %v", err))
	}
	defer st.Close()

	saved, err := st.SaveQuery(cmd.Context(), name, source)
	if err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(queryInfo(saved))
	}
	fmt.Fprintf(formatter.Writer, "✓ Saved %s (revision %d)\n", saved.Name, saved.Revision)
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List saved queries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("failed to open query library: %v", err))
	}
	defer st.Close()

	queries, err := st.ListQueries(cmd.Context())
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	if formatter.Format == "json" {
		infos := make([]QueryInfo, len(queries))
		for i, q := range queries {
			infos[i] = queryInfo(q)
		}
		return formatter.Success(infos)
	}

	if len(queries) == 0 {
		fmt.Fprintln(formatter.Writer, "No saved queries.")
		return nil
	}
	rows := make([]table.Row, len(queries))
	for i, q := range queries {
		rows[i] = table.Row{q.Name, q.Revision, shortFingerprint(q.Fingerprint), oneLine(q.FQL, 60)}
	}
	formatter.Table(table.Row{"Name", "Rev", "Fingerprint", "FQL"}, rows)
	return nil
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var compile, indent bool

	cmd := &cobra.Command{
		Use:           "show <name>",
		Short:         "Show a saved query",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], compile, indent, cmd)
		},
	}

	cmd.Flags().BoolVar(&compile, "compile", false, "also print the compiled FetchXML")
	cmd.Flags().BoolVar(&indent, "indent", false, "pretty-print the FetchXML")

	return cmd
}

func runShow(opts *RootOptions, name string, compile, indent bool, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	c := opts.newQueryCompiler()
	defer c.Close()
	if c.store == nil {
		return outputCommandError(formatter, ErrCodeGeneric, "query library unavailable")
	}

	saved, err := c.store.GetQuery(cmd.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("no saved query named %q", name))
	}
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	info := queryInfo(saved)
	if compile {
		result, err := c.compile(cmd.Context(), saved.FQL, indent || opts.settings().Indent, true)
		if err != nil {
			return outputCompileError(formatter, err)
		}
		info.FetchXML = result.FetchXML
	}

	if formatter.Format == "json" {
		return formatter.Success(info)
	}
	fmt.Fprintf(formatter.Writer, "# %s (revision %d)\n", info.Name, info.Revision)
	fmt.Fprintln(formatter.Writer, strings.TrimRight(info.FQL, "\n"))
	if info.FetchXML != "" {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintln(formatter.Writer, strings.TrimRight(info.FetchXML, "\n"))
	}
	return nil
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a saved query",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], cmd)
		},
	}
}

func runDelete(opts *RootOptions, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("failed to open query library: %v", err))
	}
	defer st.Close()

	err = st.DeleteQuery(cmd.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("no saved query named %q", name))
	}
	if err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"deleted": name})
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted %s\n", name)
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// oneLine collapses whitespace runs and truncates to limit runes.
func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
