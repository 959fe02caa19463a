package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/roach88/fetchql/internal/fql"
)

const (
	replPrompt         = "fql> "
	replContinuePrompt = " ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand(rootOpts *RootOptions) *cobra.Command {
	var indent bool

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Build queries interactively",
		Long: `Start an interactive FQL session.

A query may span several lines; it is compiled when a line ends with ';'
(outside a string or comment) or an empty line is entered. Compilations are recorded in the history
like those of the compile command.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(rootOpts, indent, cmd)
		},
	}

	cmd.Flags().BoolVar(&indent, "indent", true, "pretty-print the FetchXML")

	return cmd
}

func runREPL(opts *RootOptions, indent bool, cmd *cobra.Command) error {
	historyFile := opts.settings().HistoryFile
	if historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(historyFile), 0o755); err != nil {
			opts.logger().Warn("REPL history disabled", "error", err)
			historyFile = ""
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newREPLCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize REPL", err)
	}
	defer func() { _ = rl.Close() }()

	c := opts.newQueryCompiler()
	defer c.Close()

	session := newREPLSession(cmd.OutOrStdout(), cmd.ErrOrStderr(), c, indent)
	fmt.Fprintln(cmd.OutOrStdout(), "FQL REPL. Type :help for commands, :quit to exit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			session.reset()
			rl.SetPrompt(session.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read input", err)
		}

		if session.feed(cmd.Context(), line) {
			break
		}
		rl.SetPrompt(session.prompt())
	}
	return nil
}

// replSession accumulates query lines and compiles complete queries. The
// readline loop only feeds it lines.
type replSession struct {
	out      io.Writer
	errOut   io.Writer
	compiler *queryCompiler
	indent   bool
	lines    []string
}

func newREPLSession(out, errOut io.Writer, compiler *queryCompiler, indent bool) *replSession {
	return &replSession{out: out, errOut: errOut, compiler: compiler, indent: indent}
}

func (s *replSession) prompt() string {
	if len(s.lines) > 0 {
		return replContinuePrompt
	}
	return replPrompt
}

func (s *replSession) reset() {
	s.lines = s.lines[:0]
}

// feed processes one input line and reports whether the session is over.
func (s *replSession) feed(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)

	if len(s.lines) == 0 && strings.HasPrefix(trimmed, ":") {
		return s.command(trimmed)
	}

	switch {
	case trimmed == "":
		if len(s.lines) > 0 {
			s.run(ctx)
		}
	case endsQuery(line):
		s.lines = append(s.lines, strings.TrimSuffix(strings.TrimRight(line, " \t"), ";"))
		s.run(ctx)
	default:
		s.lines = append(s.lines, line)
	}
	return false
}

// endsQuery reports whether line ends with a ';' that is outside string
// literals and comments. String literals never span lines, so the quote
// state of one line is enough.
func endsQuery(line string) bool {
	body, ok := strings.CutSuffix(strings.TrimRight(line, " \t"), ";")
	if !ok {
		return false
	}
	var quote rune
	escaped := false
	for _, r := range body {
		switch {
		case quote != 0 && escaped:
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return false
		}
	}
	return quote == 0
}

func (s *replSession) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		printREPLHelp(s.out)
	case ":tokens", ":t":
		if arg == "" {
			fmt.Fprintln(s.errOut, "Usage: :tokens <FQL>")
			return false
		}
		tokens, err := fql.Tokenize(arg)
		if err != nil {
			fmt.Fprintln(s.errOut, err)
			return false
		}
		renderTokens(&OutputFormatter{Format: "text", Writer: s.out}, tokens)
	default:
		fmt.Fprintf(s.errOut, "Unknown command: %s (type :help for commands)\n", name)
	}
	return false
}

func (s *replSession) run(ctx context.Context) {
	source := strings.Join(s.lines, "\n")
	s.reset()
	if strings.TrimSpace(source) == "" {
		return
	}

	result, err := s.compiler.compile(ctx, source, s.indent, true)
	if err != nil {
		fmt.Fprintln(s.errOut, err)
		return
	}
	fmt.Fprint(s.out, result.FetchXML)
	if !strings.HasSuffix(result.FetchXML, "\n") {
		fmt.Fprintln(s.out)
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  :help           Show this help message
  :tokens <FQL>   Show the tokens of a one-line query
  :quit           Exit the REPL

Tips:
  - End a query with ';' or an empty line to compile it
  - Ctrl-C discards the query being typed
  - Use arrow keys to navigate history
`
	fmt.Fprintln(w, help)
}

func newREPLCompleter() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(":help"),
		readline.PcItem(":tokens"),
		readline.PcItem(":quit"),
	}
	return readline.NewPrefixCompleter(items...)
}
