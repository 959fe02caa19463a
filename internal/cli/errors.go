package cli

import (
	"errors"

	"github.com/roach88/fetchql/internal/fetchxml"
	"github.com/roach88/fetchql/internal/fql"
	"github.com/roach88/fetchql/internal/store"
)

// Error codes
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // File, directory or saved query not found
	ErrCodeWriteFailed = "E007" // File or store write error
	ErrCodeNoInput     = "E008" // No query given

	ErrCodeLex   = "E201" // Tokenizer error
	ErrCodeParse = "E202" // Parser error
	ErrCodeEmit  = "E203" // Query tree rejected by the emitter
)

// ErrorDetails is the structured part of a compile error in JSON output.
type ErrorDetails struct {
	Kind       string   `json:"kind"`
	Line       int      `json:"line,omitempty"`
	Column     int      `json:"column,omitempty"`
	Hint       string   `json:"hint,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// classifyError maps an error to its code and, for compile errors, the
// structured details.
func classifyError(err error) (string, *ErrorDetails) {
	var lexErr *fql.LexError
	if errors.As(err, &lexErr) {
		return ErrCodeLex, &ErrorDetails{
			Kind:   string(lexErr.Kind),
			Line:   lexErr.Pos.Line,
			Column: lexErr.Pos.Column,
			Hint:   lexErr.Hint,
		}
	}

	var parseErr *fql.ParseError
	if errors.As(err, &parseErr) {
		return ErrCodeParse, &ErrorDetails{
			Kind:   string(parseErr.Kind),
			Line:   parseErr.Pos.Line,
			Column: parseErr.Pos.Column,
			Hint:   parseErr.Hint,
		}
	}

	var emitErr *fetchxml.EmitError
	if errors.As(err, &emitErr) {
		return ErrCodeEmit, &ErrorDetails{
			Kind:       string(emitErr.Kind),
			Violations: emitErr.Violations,
		}
	}

	if errors.Is(err, store.ErrNotFound) {
		return ErrCodeNotFound, nil
	}
	return ErrCodeGeneric, nil
}

// outputCompileError reports a failed compilation and returns the
// matching ExitError.
func outputCompileError(formatter *OutputFormatter, err error) error {
	code, details := classifyError(err)
	if details == nil {
		_ = formatter.Error(code, err.Error(), nil)
	} else {
		_ = formatter.Error(code, err.Error(), details)
	}
	return WrapExitError(ExitFailure, code, err)
}

// outputCommandError reports a command-level failure (exit code 2).
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, code+": "+message)
}
