package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	tableDir string
	now      func() time.Time
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{now: time.Now}
}

// NewSQLiteStoreWithDB wraps an already opened database. Migrations are not run.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Open opens the database at path and runs pending migrations. Tables are stored
// in the directory of path unless SetTableDir overrides it.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == MemoryPath {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	if path != MemoryPath && s.tableDir == "" {
		s.tableDir = filepath.Dir(path)
	}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// SetTableDir sets where ReadTable and WriteTable keep their files.
func (s *SQLiteStore) SetTableDir(dir string) {
	s.tableDir = dir
}

// SetClock overrides the time source for stored timestamps.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLiteStore) timestamp() string {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return now().UTC().Format(time.RFC3339Nano)
}

// --- Documents ---

// ReadJSON decodes the document stored under key into v.
func (s *SQLiteStore) ReadJSON(key string, v any) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database not opened")
	}

	var raw string
	err := s.db.QueryRowContext(context.Background(),
		`SELECT value FROM documents WHERE key = ?`, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read document %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	return true, nil
}

// WriteJSON stores v under key, replacing any previous document.
func (s *SQLiteStore) WriteJSON(key string, v any) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}
	_, err = s.db.ExecContext(context.Background(), `
		INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", key, err)
	}
	return nil
}

// DeleteJSON removes the document stored under key.
func (s *SQLiteStore) DeleteJSON(key string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(context.Background(), `DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

// --- Audit log ---

// AppendMoves stores moves in one transaction. Entries already stored, matched by
// id, are skipped so the whole in-memory log can be handed over on every save.
func (s *SQLiteStore) AppendMoves(moves []dataset.Move) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if len(moves) == 0 {
		return nil
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO moves
		(id, date, action, stnnbr, castno, btlnbr, latitude, longitude, param, value, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, m := range moves {
		_, err := stmt.ExecContext(ctx,
			m.ID, m.Date.UTC().Format(time.RFC3339Nano), m.Action,
			m.Station, m.Cast, m.Bottle, m.Latitude, m.Longitude,
			m.Param, m.Value, m.Description,
		)
		if err != nil {
			return fmt.Errorf("insert move %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListMoves returns the audit log in insertion order.
func (s *SQLiteStore) ListMoves() ([]dataset.Move, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, date, action, stnnbr, castno, btlnbr, latitude, longitude, param, value, description
		FROM moves ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var moves []dataset.Move
	for rows.Next() {
		var m dataset.Move
		var date string
		err := rows.Scan(&m.ID, &date, &m.Action,
			&m.Station, &m.Cast, &m.Bottle, &m.Latitude, &m.Longitude,
			&m.Param, &m.Value, &m.Description)
		if err != nil {
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		if m.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
			return nil, fmt.Errorf("invalid date on move %s: %w", m.ID, err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// ClearMoves empties the audit log.
func (s *SQLiteStore) ClearMoves() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(context.Background(), `DELETE FROM moves`); err != nil {
		return fmt.Errorf("failed to clear moves: %w", err)
	}
	return nil
}
