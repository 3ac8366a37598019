package state

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

func (s *SQLiteStore) tablePath(name string) (string, error) {
	if s.tableDir == "" {
		return "", fmt.Errorf("table directory not set")
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return filepath.Join(s.tableDir, name), nil
}

// ReadTable reads the CSV file name from the table directory. A missing file
// returns an error wrapping fs.ErrNotExist.
func (s *SQLiteStore) ReadTable(name string) ([][]string, error) {
	path, err := s.tablePath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //nolint:gosec // G304: name is validated against the table dir
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 0
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", name, err)
	}
	return records, nil
}

// WriteTable replaces the CSV file name. The file is written next to its target
// and renamed into place so a failed write never leaves a truncated table.
func (s *SQLiteStore) WriteTable(name string, records [][]string) error {
	path, err := s.tablePath(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.tableDir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write table %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write table %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace table %s: %w", name, err)
	}
	return nil
}
