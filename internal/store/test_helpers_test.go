package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/fetchql/internal/testutil"
)

// createTestStore opens a file-backed store in a temp dir so the WAL
// pragma applies.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithLogger(testutil.NewTestLogger(t)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCompilation builds a successful compilation record.
func createTestCompilation(fql, xml string) Compilation {
	return Compilation{
		Fingerprint: Fingerprint(fql, nil),
		FQL:         fql,
		FetchXML:    xml,
	}
}
