package harness

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name string `json:"name"`
	Pass bool   `json:"pass"`

	// XML is the compact document, empty when compilation failed.
	XML string `json:"xml,omitempty"`

	// ErrorKind and Error describe a failed compilation.
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	// Failures lists every unmet expectation. Empty if Pass is true.
	Failures []string `json:"failures,omitempty"`

	// Snapshot is the rendering compared against golden files.
	Snapshot string `json:"-"`
}

func (r *CaseResult) addFailure(msg string) {
	r.Failures = append(r.Failures, msg)
	r.Pass = false
}

// Result is the outcome of a suite.
type Result struct {
	Suite string       `json:"suite"`
	Pass  bool         `json:"pass"`
	Cases []CaseResult `json:"cases"`
}

// Passed returns the number of passing cases.
func (r *Result) Passed() int {
	n := 0
	for _, c := range r.Cases {
		if c.Pass {
			n++
		}
	}
	return n
}

// Failed returns the number of failing cases.
func (r *Result) Failed() int {
	return len(r.Cases) - r.Passed()
}
