package store

import (
	"context"
	"fmt"
)

// SaveQuery stores fql under name, replacing any previous text. Every save
// bumps the query's revision.
func (s *Store) SaveQuery(ctx context.Context, name, fql string) (SavedQuery, error) {
	if name == "" {
		return SavedQuery{}, fmt.Errorf("save query: name is required")
	}

	fingerprint := Fingerprint(fql, nil)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_queries (name, fql, fingerprint, revision)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			fql = excluded.fql,
			fingerprint = excluded.fingerprint,
			revision = saved_queries.revision + 1
	`, name, fql, fingerprint)
	if err != nil {
		return SavedQuery{}, fmt.Errorf("save query %q: %w", name, err)
	}

	s.logger.Debug("saved query", "name", name, "fingerprint", fingerprint)
	return s.GetQuery(ctx, name)
}

// DeleteQuery removes a saved query. Returns ErrNotFound if name does not
// exist.
func (s *Store) DeleteQuery(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete query %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete query %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete query %q: %w", name, ErrNotFound)
	}
	return nil
}

// RecordCompilation appends a compile attempt to the history. ID is
// generated (a UUID by default) when empty; Seq is always assigned by the
// store as the next logical sequence number. Exactly one of FetchXML and Error should be set.
func (s *Store) RecordCompilation(ctx context.Context, c Compilation) (Compilation, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}

	// The single connection serializes writers, so MAX(seq)+1 inside one
	// statement cannot race.
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO compilations (id, seq, fingerprint, fql, fetchxml, error)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations), ?, ?, ?, ?)
		RETURNING seq
	`, c.ID, c.Fingerprint, c.FQL, c.FetchXML, c.Error).Scan(&c.Seq)
	if err != nil {
		return Compilation{}, fmt.Errorf("record compilation: %w", err)
	}

	s.logger.Debug("recorded compilation", "id", c.ID, "seq", c.Seq, "ok", c.Error == "")
	return c, nil
}
