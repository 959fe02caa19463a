package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// HistoryEntry is one compile attempt in JSON output.
type HistoryEntry struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	Fingerprint string `json:"fingerprint"`
	FQL         string `json:"fql"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent compilations",
		Long: `Show the most recent compile attempts, newest first.

Only compile, show --compile and the REPL record history; validate does
not.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, limit, cmd)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")

	return cmd
}

func runHistory(opts *RootOptions, limit int, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if limit < 0 {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("--limit must not be negative, got %d", limit))
	}

	st, err := opts.openStore()
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("failed to open query library: %v", err))
	}
	defer st.Close()

	entries, err := st.History(cmd.Context(), limit)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	if formatter.Format == "json" {
		out := make([]HistoryEntry, len(entries))
		for i, e := range entries {
			out[i] = HistoryEntry{
				ID:          e.ID,
				Seq:         e.Seq,
				Fingerprint: e.Fingerprint,
				FQL:         e.FQL,
				OK:          e.Error == "",
				Error:       e.Error,
			}
		}
		return formatter.Success(out)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No compilations recorded.")
		return nil
	}
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = "error"
		}
		rows[i] = table.Row{e.Seq, status, shortFingerprint(e.Fingerprint), oneLine(e.FQL, 60)}
	}
	formatter.Table(table.Row{"Seq", "Status", "Fingerprint", "FQL"}, rows)
	return nil
}
