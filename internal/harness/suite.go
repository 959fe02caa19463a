package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suite is a conformance suite: a named list of FQL queries and what each
// must compile to.
type Suite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// PrimaryKeys overrides primary-key inference for every case in the
	// suite, keyed by entity logical name.
	PrimaryKeys map[string]string `yaml:"primary_keys,omitempty"`

	Cases []Case `yaml:"cases"`

	// Path is the file the suite was loaded from, if any.
	Path string `yaml:"-"`
}

// Case is one query and its expectations.
type Case struct {
	Name   string `yaml:"name"`
	FQL    string `yaml:"fql"`
	Expect Expect `yaml:"expect"`
}

// Expect lists what a case's output must satisfy. An empty Expect only
// requires the query to compile.
type Expect struct {
	// XML is the exact compact FetchXML document.
	XML string `yaml:"xml,omitempty"`

	// Contains lists fragments that must appear in the document.
	Contains []string `yaml:"contains,omitempty"`

	// NotContains lists fragments that must not appear.
	NotContains []string `yaml:"not_contains,omitempty"`

	// Error is the expected error kind, e.g. "unknown_alias". A case with
	// an expected error must fail to compile.
	Error string `yaml:"error,omitempty"`
}

// LoadSuite reads and validates a suite from a YAML file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	suite, err := ParseSuite(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	suite.Path = path
	return suite, nil
}

// ParseSuite decodes and validates a suite. Unknown fields are rejected so
// a typo in an expectation cannot silently disable it.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// LoadSuites loads every *.yaml and *.yml file directly under dir, sorted
// by file name.
func LoadSuites(dir string) ([]*Suite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	suites := make([]*Suite, 0, len(paths))
	for _, path := range paths {
		suite, err := LoadSuite(path)
		if err != nil {
			return nil, err
		}
		suites = append(suites, suite)
	}
	return suites, nil
}

func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	golden := make(map[string]string, len(s.Cases)) // lowercased snapshot name -> case
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true

		key := strings.ToLower(sanitize(c.Name))
		if other, ok := golden[key]; ok {
			return fmt.Errorf("cases[%d]: case name %q shares its golden file with %q", i, c.Name, other)
		}
		golden[key] = c.Name

		if strings.TrimSpace(c.FQL) == "" {
			return fmt.Errorf("cases[%d]: fql is required", i)
		}
		if c.Expect.Error != "" && (c.Expect.XML != "" || len(c.Expect.Contains) > 0 || len(c.Expect.NotContains) > 0) {
			return fmt.Errorf("cases[%d]: expect.error cannot be combined with xml, contains or not_contains", i)
		}
	}
	return nil
}
