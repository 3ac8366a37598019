package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSourceHash retrieves the content hash recorded for a source file.
// An unknown path yields an empty hash.
func (s *SQLiteStore) GetSourceHash(path string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	var hash string
	err := s.db.QueryRowContext(context.Background(),
		`SELECT content_hash FROM source_hashes WHERE path = ?`, path,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get source hash: %w", err)
	}
	return hash, nil
}

// SetSourceHash stores the content hash for a source file.
func (s *SQLiteStore) SetSourceHash(path, hash string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO source_hashes (path, content_hash, recorded_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content_hash = excluded.content_hash, recorded_at = excluded.recorded_at
	`, path, hash, s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to set source hash: %w", err)
	}
	return nil
}

// DeleteSourceHash forgets the content hash of a source file.
func (s *SQLiteStore) DeleteSourceHash(path string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(context.Background(), `DELETE FROM source_hashes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete source hash: %w", err)
	}
	return nil
}
