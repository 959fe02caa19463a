package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fetchql/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // suite filter (glob pattern)
}

// SuiteResult holds the result of a single suite file.
type SuiteResult struct {
	Name   string               `json:"name"`
	File   string               `json:"file"`
	Pass   bool                 `json:"pass"`
	Cases  []harness.CaseResult `json:"cases,omitempty"`
	Errors []string             `json:"errors,omitempty"`
}

// TestResult holds the overall test result. Counts are per case.
type TestResult struct {
	Suites []SuiteResult `json:"suites"`
	Passed int           `json:"passed"`
	Failed int           `json:"failed"`
	Total  int           `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <suites-dir>",
		Short: "Run FQL conformance suites",
		Long: `Run the YAML conformance suites in a directory.

Each case compiles one query and checks it against its expectations.
When <suites-dir>/golden exists every case is also compared with its
snapshot there; --update rewrites the snapshots.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (invalid paths, etc.)

Examples:
  fql test ./suites
  fql test ./suites --filter "join*"
  fql test ./suites --update
  fql test ./suites --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter suite files by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, suitesDir string, cmd *cobra.Command) error {
	if info, err := os.Stat(suitesDir); err != nil || !info.IsDir() {
		return outputCommandError(opts.formatter(cmd), ErrCodeNotFound, fmt.Sprintf("suites directory not found: %s", suitesDir))
	}

	suiteFiles, err := findSuiteFiles(suitesDir, opts.Filter)
	if err != nil {
		return outputCommandError(opts.formatter(cmd), ErrCodeGeneric, fmt.Sprintf("failed to find suites: %v", err))
	}

	goldenDir := filepath.Join(suitesDir, "golden")
	if _, err := os.Stat(goldenDir); err != nil && !opts.Update {
		goldenDir = ""
	}

	result := TestResult{Suites: make([]SuiteResult, 0, len(suiteFiles))}
	for _, file := range suiteFiles {
		sr := runSuite(opts, file, goldenDir, cmd)
		result.Suites = append(result.Suites, sr)

		if len(sr.Cases) == 0 && !sr.Pass {
			// A suite that could not run counts as one failure.
			result.Failed++
			result.Total++
			continue
		}
		for _, c := range sr.Cases {
			result.Total++
			if c.Pass {
				result.Passed++
			} else {
				result.Failed++
			}
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findSuiteFiles finds all YAML suite files under dir.
func findSuiteFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func runSuite(opts *TestOptions, file, goldenDir string, cmd *cobra.Command) SuiteResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	suite, err := harness.LoadSuite(file)
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n", filepath.Base(file))
			fmt.Fprintf(w, "  Load error: %v\n", err)
		}
		return SuiteResult{
			Name:   filepath.Base(file),
			File:   file,
			Errors: []string{fmt.Sprintf("failed to load suite: %v", err)},
		}
	}

	result, err := harness.Run(suite, harness.Options{
		Logger:      opts.logger(),
		PrimaryKeys: opts.settings().PrimaryKeys,
		GoldenDir:   goldenDir,
		Update:      opts.Update,
	})
	if err != nil {
		if text {
			fmt.Fprintf(w, "✗ %s\n", suite.Name)
			fmt.Fprintf(w, "  Golden error: %v\n", err)
		}
		return SuiteResult{
			Name:   suite.Name,
			File:   file,
			Errors: []string{err.Error()},
		}
	}

	if text {
		printSuite(w, result, opts.Update)
	}
	return SuiteResult{
		Name:  suite.Name,
		File:  file,
		Pass:  result.Pass,
		Cases: result.Cases,
	}
}

func printSuite(w io.Writer, result *harness.Result, updated bool) {
	suffix := ""
	if updated {
		suffix = ", golden updated"
	}
	if result.Pass {
		fmt.Fprintf(w, "✓ %s (%d cases%s)\n", result.Suite, len(result.Cases), suffix)
		return
	}

	fmt.Fprintf(w, "✗ %s (%d of %d cases failed%s)\n", result.Suite, result.Failed(), len(result.Cases), suffix)
	for _, c := range result.Cases {
		if c.Pass {
			continue
		}
		fmt.Fprintf(w, "  ✗ %s\n", c.Name)
		for _, failure := range c.Failures {
			fmt.Fprintf(w, "      %s\n", failure)
		}
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeGeneric,
			Message: fmt.Sprintf("%d case(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	if len(result.Suites) == 0 {
		fmt.Fprintln(w, "No suites found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All cases passed")
	return nil
}
