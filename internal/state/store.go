// Package state persists a project: JSON documents (column catalog, active computed
// parameters, plot tabs), the audit log and source content hashes live in SQLite,
// while the working tables are plain CSV files next to the database.
package state

import "github.com/leapstack-labs/cruiseqc/internal/dataset"

// Document keys.
const (
	KeyColumns     = "columns"
	KeyComputed    = "computed_params"
	KeyPlotTabs    = "qc_plot_tabs"
	KeyProjectInfo = "project_info"
)

// Store is the project storage used by the session.
type Store interface {
	// ReadJSON decodes the document stored under key into v and reports whether
	// the key exists.
	ReadJSON(key string, v any) (bool, error)
	WriteJSON(key string, v any) error

	ReadTable(name string) ([][]string, error)
	WriteTable(name string, records [][]string) error

	AppendMoves(moves []dataset.Move) error
	ListMoves() ([]dataset.Move, error)

	GetSourceHash(path string) (string, error)
	SetSourceHash(path, hash string) error

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
