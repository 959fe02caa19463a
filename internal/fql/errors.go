package fql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes lexer and parser errors.
type ErrorKind string

const (
	// ErrInvalidCharacter indicates a character that cannot begin a token.
	ErrInvalidCharacter ErrorKind = "invalid_character"

	// ErrUnterminatedString indicates a quote with no closing quote on the same line.
	ErrUnterminatedString ErrorKind = "unterminated_string"

	// ErrMalformedNumber indicates a numeric literal such as 1. or 1.2.3 or 12ab.
	ErrMalformedNumber ErrorKind = "malformed_number"

	// ErrInvalidDateMacro indicates an '@' with no macro body.
	ErrInvalidDateMacro ErrorKind = "invalid_date_macro"

	// ErrUnexpectedToken indicates a token that does not fit the current stage.
	ErrUnexpectedToken ErrorKind = "unexpected_token"

	// ErrUnknownAlias indicates an alias prefix that no entity declares.
	ErrUnknownAlias ErrorKind = "unknown_alias"

	// ErrDuplicateAlias indicates an alias declared twice.
	ErrDuplicateAlias ErrorKind = "duplicate_alias"

	// ErrMissingClause indicates a required sub-clause is absent.
	ErrMissingClause ErrorKind = "missing_clause"

	// ErrInvalidArgument indicates a malformed stage argument.
	ErrInvalidArgument ErrorKind = "invalid_argument"

	// ErrConflictingStage indicates stages that cannot be combined.
	ErrConflictingStage ErrorKind = "conflicting_stage"
)

// LexError is returned by Tokenize. The first invalid character aborts
// tokenization.
type LexError struct {
	Kind    ErrorKind
	Pos     Position
	Char    rune // offending character, 0 when not applicable
	Message string
	Hint    string
	Source  string
}

// Error renders the message with the offending line and a caret.
func (e *LexError) Error() string {
	return render("lex", e.Pos, e.Message, e.Hint, e.Source)
}

// ParseError is returned by Parse. It carries the position of the token
// where parsing failed.
type ParseError struct {
	Kind    ErrorKind
	Pos     Position
	Message string
	Hint    string
	Source  string
}

// Error renders the message with the offending line and a caret.
func (e *ParseError) Error() string {
	return render("parse", e.Pos, e.Message, e.Hint, e.Source)
}

// KindOf returns the error kind of a lexer or parser error anywhere in
// err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var lexErr *LexError
	if errors.As(err, &lexErr) {
		return lexErr.Kind
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Kind
	}
	return ""
}

func render(stage string, pos Position, msg, hint, source string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s error at %s: %s", stage, pos, msg)
	if snippet := Snippet(source, pos); snippet != "" {
		sb.WriteString("\n")
		sb.WriteString(snippet)
	}
	if hint != "" {
		sb.WriteString("\nhint: ")
		sb.WriteString(hint)
	}
	return sb.String()
}

// Snippet renders the source line at pos followed by a caret under the
// column:
//
//	  1 | .account | .name = 'x'
//	    |                  ^
//
// Tabs before the column are copied into the caret line so the caret lines
// up in a terminal. Returns "" when pos is outside source.
func Snippet(source string, pos Position) string {
	if !pos.IsValid() {
		return ""
	}
	lines := strings.Split(source, "\n")
	if pos.Line > len(lines) {
		return ""
	}
	line := strings.TrimSuffix(lines[pos.Line-1], "\r")
	runes := []rune(line)

	var pad strings.Builder
	for i := 0; i < pos.Column-1; i++ {
		if i < len(runes) && runes[i] == '\t' {
			pad.WriteByte('\t')
		} else {
			pad.WriteByte(' ')
		}
	}

	num := fmt.Sprintf("%d", pos.Line)
	gutter := strings.Repeat(" ", len(num))
	return fmt.Sprintf("  %s | %s\n  %s | %s^", num, line, gutter, pad.String())
}
