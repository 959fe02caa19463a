package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/fetchql/internal/fql"
)

// TokenInfo is one token in JSON output.
type TokenInfo struct {
	Kind   string `json:"kind"`
	Lexeme string `json:"lexeme"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// NewTokensCommand creates the tokens command.
func NewTokensCommand(rootOpts *RootOptions) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "tokens [FQL...]",
		Short: "Show the tokens of an FQL query",
		Long: `Tokenize an FQL query and print every token with its position.

Useful for finding out how the lexer reads an unexpected character or a
date macro.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(rootOpts, args, input, cmd)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "read the query from a file")

	return cmd
}

func runTokens(opts *RootOptions, args []string, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	source, err := readSource(cmd, args, input)
	if err != nil {
		return outputCommandError(formatter, inputErrorCode(err), err.Error())
	}

	tokens, err := fql.Tokenize(source)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(tokenInfos(tokens))
	}
	renderTokens(formatter, tokens)
	return nil
}

func tokenInfos(tokens []fql.Token) []TokenInfo {
	infos := make([]TokenInfo, len(tokens))
	for i, tok := range tokens {
		infos[i] = TokenInfo{
			Kind:   tok.Kind.String(),
			Lexeme: tok.Lexeme,
			Line:   tok.Pos.Line,
			Column: tok.Pos.Column,
		}
	}
	return infos
}

func renderTokens(formatter *OutputFormatter, tokens []fql.Token) {
	rows := make([]table.Row, len(tokens))
	for i, tok := range tokens {
		rows[i] = table.Row{i + 1, tok.Kind.String(), tok.Lexeme, tok.Pos.Line, tok.Pos.Column}
	}
	formatter.Table(table.Row{"#", "Kind", "Lexeme", "Line", "Column"}, rows)
}
