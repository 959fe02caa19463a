package harness

import (
	"fmt"
	"strings"
)

// AssertionError describes one unmet expectation.
type AssertionError struct {
	Type     string // xml, contains, not_contains, error
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// checkExpect returns every expectation xml/errKind fails. errKind is empty
// when compilation succeeded.
func checkExpect(expect Expect, xml, errKind, errMsg string) []error {
	if expect.Error != "" {
		return checkError(expect.Error, errKind)
	}

	if errKind != "" {
		return []error{&AssertionError{
			Type:     "compile",
			Expected: "successful compilation",
			Actual:   firstLine(errMsg),
		}}
	}

	var failures []error
	if expect.XML != "" && strings.TrimSpace(expect.XML) != xml {
		failures = append(failures, &AssertionError{
			Type:     "xml",
			Expected: strings.TrimSpace(expect.XML),
			Actual:   xml,
		})
	}
	for _, fragment := range expect.Contains {
		if !strings.Contains(xml, fragment) {
			failures = append(failures, &AssertionError{
				Type:     "contains",
				Expected: fmt.Sprintf("%q in output", fragment),
				Actual:   "not found",
			})
		}
	}
	for _, fragment := range expect.NotContains {
		if strings.Contains(xml, fragment) {
			failures = append(failures, &AssertionError{
				Type:     "not_contains",
				Expected: fmt.Sprintf("no %q in output", fragment),
				Actual:   "found",
			})
		}
	}
	return failures
}

func checkError(want, got string) []error {
	switch {
	case got == "":
		return []error{&AssertionError{
			Type:     "error",
			Expected: fmt.Sprintf("%s error", want),
			Actual:   "successful compilation",
		}}
	case got != want:
		return []error{&AssertionError{
			Type:     "error",
			Expected: fmt.Sprintf("%s error", want),
			Actual:   fmt.Sprintf("%s error", got),
		}}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
