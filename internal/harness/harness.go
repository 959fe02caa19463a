package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/fetchql/internal/fetchxml"
	"github.com/roach88/fetchql/internal/fql"
)

// SnapshotIndent is the indentation used for golden snapshots.
const SnapshotIndent = "  "

// Options configures Run.
type Options struct {
	Logger *slog.Logger

	// PrimaryKeys is merged under the suite's own overrides.
	PrimaryKeys map[string]string

	// GoldenDir, when set, holds one snapshot file per case. Run compares
	// each case's snapshot against its file, or rewrites the file when
	// Update is set.
	GoldenDir string
	Update    bool
}

// Run compiles every case of suite and checks it against its
// expectations. The returned error is reserved for golden file I/O; case
// failures are reported in the Result.
func Run(suite *Suite, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	keys := make(map[string]string, len(opts.PrimaryKeys)+len(suite.PrimaryKeys))
	for entity, pk := range opts.PrimaryKeys {
		keys[entity] = pk
	}
	for entity, pk := range suite.PrimaryKeys {
		keys[entity] = pk
	}

	result := &Result{Suite: suite.Name, Pass: true, Cases: make([]CaseResult, 0, len(suite.Cases))}
	for _, c := range suite.Cases {
		cr := runCase(c, keys)

		if opts.GoldenDir != "" {
			if err := checkGolden(&cr, filepath.Join(opts.GoldenDir, GoldenName(suite, c)), opts.Update); err != nil {
				return nil, err
			}
		}

		logger.Debug("ran case", "suite", suite.Name, "case", c.Name, "pass", cr.Pass)
		if !cr.Pass {
			result.Pass = false
		}
		result.Cases = append(result.Cases, cr)
	}
	return result, nil
}

func runCase(c Case, keys map[string]string) CaseResult {
	cr := CaseResult{Name: c.Name, Pass: true}

	xml, err := fetchxml.Compile(c.FQL, fetchxml.WithPrimaryKeys(keys))
	if err != nil {
		cr.ErrorKind = ErrorKind(err)
		cr.Error = err.Error()
		cr.Snapshot = fmt.Sprintf("error: %s\n", cr.ErrorKind)
	} else {
		cr.XML = xml
		// Same tree, so the indented rendering cannot fail where the
		// compact one succeeded.
		cr.Snapshot, _ = fetchxml.Compile(c.FQL, fetchxml.WithPrimaryKeys(keys), fetchxml.WithIndent(SnapshotIndent))
	}

	for _, failure := range checkExpect(c.Expect, cr.XML, cr.ErrorKind, cr.Error) {
		cr.addFailure(failure.Error())
	}
	return cr
}

func checkGolden(cr *CaseResult, path string, update bool) error {
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(cr.Snapshot), 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cr.addFailure(fmt.Sprintf("golden: %s is missing (run with --update)", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if string(want) != cr.Snapshot {
		cr.addFailure(fmt.Sprintf("golden: snapshot differs from %s", path))
	}
	return nil
}

// ErrorKind classifies a compile error: a lexer, parser or emitter kind,
// or "internal" for anything else.
func ErrorKind(err error) string {
	if kind := fql.KindOf(err); kind != "" {
		return string(kind)
	}
	var emitErr *fetchxml.EmitError
	if errors.As(err, &emitErr) {
		return string(emitErr.Kind)
	}
	return "internal"
}

// GoldenName is the snapshot file name of a case.
func GoldenName(suite *Suite, c Case) string {
	return sanitize(suite.Name) + "_" + sanitize(c.Name) + ".golden"
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
