package fetchxml

import (
	"fmt"
	"strings"
)

// ErrorKind categorizes emitter errors.
type ErrorKind string

// ErrInvariantViolation indicates a query tree the parser should never have
// produced. It points at an upstream bug or a hand-built tree, not at user
// input.
const ErrInvariantViolation ErrorKind = "invariant_violation"

// EmitError is returned by ToFetchXML.
type EmitError struct {
	Kind    ErrorKind
	Message string

	// Violations lists every broken invariant when the tree failed
	// validation.
	Violations []string
}

// Error implements the error interface.
func (e *EmitError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("emit error: %s", e.Message)
	}
	return fmt.Sprintf("emit error: %s: %s", e.Message, strings.Join(e.Violations, "; "))
}
