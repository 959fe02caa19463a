package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SavedQuery is a named FQL query in the library.
type SavedQuery struct {
	Name        string
	FQL         string
	Fingerprint string
	Revision    int64
}

// Compilation is one compile attempt in the history.
type Compilation struct {
	ID          string
	Seq         int64
	Fingerprint string
	FQL         string
	FetchXML    string // empty when the compile failed
	Error       string // rendered error, empty on success
}

// GetQuery returns the saved query called name, or ErrNotFound.
func (s *Store) GetQuery(ctx context.Context, name string) (SavedQuery, error) {
	var q SavedQuery
	err := s.db.QueryRowContext(ctx, `
		SELECT name, fql, fingerprint, revision
		FROM saved_queries
		WHERE name = ?
	`, name).Scan(&q.Name, &q.FQL, &q.Fingerprint, &q.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedQuery{}, fmt.Errorf("query %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return SavedQuery{}, fmt.Errorf("get query %q: %w", name, err)
	}
	return q, nil
}

// ListQueries returns every saved query ordered by name.
//
// Returns an empty slice (not nil) if the library is empty.
func (s *Store) ListQueries(ctx context.Context) ([]SavedQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, fql, fingerprint, revision
		FROM saved_queries
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query saved queries: %w", err)
	}
	defer rows.Close()

	queries := []SavedQuery{}
	for rows.Next() {
		var q SavedQuery
		if err := rows.Scan(&q.Name, &q.FQL, &q.Fingerprint, &q.Revision); err != nil {
			return nil, fmt.Errorf("scan saved query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved queries: %w", err)
	}
	return queries, nil
}

// History returns up to limit compilations, newest first. A limit of zero
// or less returns the whole history.
func (s *Store) History(ctx context.Context, limit int) ([]Compilation, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, fingerprint, fql, fetchxml, error
		FROM compilations
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	history := []Compilation{}
	for rows.Next() {
		var c Compilation
		if err := rows.Scan(&c.ID, &c.Seq, &c.Fingerprint, &c.FQL, &c.FetchXML, &c.Error); err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		history = append(history, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return history, nil
}

// CachedXML returns the FetchXML of the most recent successful compilation
// with the given fingerprint. The bool is false on a cache miss.
func (s *Store) CachedXML(ctx context.Context, fingerprint string) (string, bool, error) {
	var xml string
	err := s.db.QueryRowContext(ctx, `
		SELECT fetchxml
		FROM compilations
		WHERE fingerprint = ? AND error = ''
		ORDER BY seq DESC
		LIMIT 1
	`, fingerprint).Scan(&xml)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cached xml: %w", err)
	}
	s.logger.Debug("compile cache hit", "fingerprint", fingerprint)
	return xml, true, nil
}
