package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fetchql/internal/fetchxml"
)

// ValidationResult is the payload of a successful validation.
type ValidationResult struct {
	Valid bool `json:"valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "validate [FQL...]",
		Short: "Check an FQL query without printing FetchXML",
		Long: `Validate an FQL query.

Runs the full pipeline but prints only whether the query is valid. The
query library is neither read nor written.

Exit codes:
  0 - Query is valid
  1 - Query has a lex, parse or emit error
  2 - Command error (no input, unreadable file)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, input, cmd)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "read the query from a file")

	return cmd
}

func runValidate(opts *RootOptions, args []string, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	source, err := readSource(cmd, args, input)
	if err != nil {
		return outputCommandError(formatter, inputErrorCode(err), err.Error())
	}

	if _, err := fetchxml.Compile(source, fetchxml.WithPrimaryKeys(opts.settings().PrimaryKeys)); err != nil {
		return outputCompileError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Query is valid")
	return nil
}
