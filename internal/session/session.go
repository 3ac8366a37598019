// Package session owns one open cruise project: the live dataset, its computed
// parameters, the pending reconciliation and the plot layout. All project state
// is persisted through the state store.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/leapstack-labs/cruiseqc/internal/combine"
	"github.com/leapstack-labs/cruiseqc/internal/computed"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
	"github.com/leapstack-labs/cruiseqc/internal/expr"
	"github.com/leapstack-labs/cruiseqc/internal/external"
	"github.com/leapstack-labs/cruiseqc/internal/loader"
	"github.com/leapstack-labs/cruiseqc/internal/reconcile"
	"github.com/leapstack-labs/cruiseqc/internal/seawater"
	"github.com/leapstack-labs/cruiseqc/internal/state"
	"github.com/leapstack-labs/cruiseqc/internal/views"
)

// Project file names.
const (
	OriginalFile  = "original.csv"
	DataFile      = "data.csv"
	ArchiveFile   = "original.old.csv.zst"
	StateFile     = "state.db"
	FunctionsDir  = "functions"
	DefinitionDoc = "computed.yaml"
)

// Reset fields.
const (
	FieldDataset        = "dataset"
	FieldComputed       = "computed"
	FieldReconciliation = "reconciliation"
	FieldViews          = "views"
)

// Fields lists every field Reset may clear.
var Fields = []string{FieldDataset, FieldComputed, FieldReconciliation, FieldViews}

// ErrNoDataset is returned by operations that need a loaded dataset.
var ErrNoDataset = errors.New("no dataset loaded")

// Config configures a Session.
type Config struct {
	// ProjectDir holds the working copy, the original source and the state database.
	ProjectDir string

	// StatePath overrides ProjectDir/state.db. Use state.MemoryPath for tests.
	StatePath string

	Loader loader.Config

	// DefinitionsFile is the computed-parameter catalogue. Defaults to
	// ProjectDir/computed.yaml; a missing file yields no definitions.
	DefinitionsFile  string
	DefaultPrecision int

	// OctavePath enables the octave provider when set.
	OctavePath string
	// OctaveScripts is the directory holding the octave domain routines.
	OctaveScripts string
	// FunctionsDir holds Starlark function files. Defaults to ProjectDir/functions.
	FunctionsDir    string
	ExternalTimeout time.Duration

	Combine combine.Thresholds

	// Clock overrides the audit log time source.
	Clock func() time.Time

	Logger *slog.Logger
}

// Session is one open project.
type Session struct {
	cfg    Config
	logger *slog.Logger

	store     *state.SQLiteStore
	loader    *loader.Loader
	views     *views.Manager
	computed  *computed.Engine
	reconcile *reconcile.Engine

	dataset   *dataset.Dataset
	candidate *candidateSource
}

// candidateSource is the refreshed source file behind a pending comparison.
type candidateSource struct {
	path string
	data []byte
}

// Open opens or creates the project in cfg.ProjectDir and restores any saved
// dataset.
func Open(cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ProjectDir == "" {
		return nil, fmt.Errorf("project directory is required")
	}
	if err := os.MkdirAll(cfg.ProjectDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}
	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join(cfg.ProjectDir, StateFile)
	}
	if cfg.DefinitionsFile == "" {
		cfg.DefinitionsFile = filepath.Join(cfg.ProjectDir, DefinitionDoc)
	}
	if cfg.FunctionsDir == "" {
		cfg.FunctionsDir = filepath.Join(cfg.ProjectDir, FunctionsDir)
	}
	if cfg.Combine == (combine.Thresholds{}) {
		cfg.Combine = combine.DefaultThresholds()
	}

	logger.Debug("opening project", "project_dir", cfg.ProjectDir, "state_path", cfg.StatePath)

	store := state.NewSQLiteStore()
	store.SetTableDir(cfg.ProjectDir)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	s := &Session{
		cfg:    cfg,
		logger: logger,
		store:  store,
		loader: loader.New(cfg.Loader, logger),
	}
	if err := s.init(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) init() error {
	vm, err := views.New(s.store, s.logger)
	if err != nil {
		return err
	}
	s.views = vm

	registry, err := s.registry()
	if err != nil {
		return err
	}
	defs, err := computed.LoadDefinitions(s.cfg.DefinitionsFile)
	if err != nil {
		return err
	}
	ce, err := computed.NewEngine(computed.Config{
		Definitions:      defs,
		Sandbox:          expr.NewSandbox(registry),
		DefaultPrecision: s.cfg.DefaultPrecision,
		Views:            s.views,
		Persister:        s,
		Logger:           s.logger,
	})
	if err != nil {
		return err
	}
	s.computed = ce
	s.reconcile = reconcile.New(reconcile.Config{
		Computed: ce,
		Views:    s.views,
		Commit:   s.commit,
		Logger:   s.logger,
	})
	return s.restore()
}

// registry builds the function allow-list: math, seawater, the combination
// heuristic and whatever the external providers supply.
func (s *Session) registry() (*expr.Registry, error) {
	r := expr.DefaultRegistry()
	if err := seawater.Register(r); err != nil {
		return nil, err
	}
	if err := combine.Register(r, s.cfg.Combine); err != nil {
		return nil, err
	}

	if s.cfg.OctavePath != "" {
		oct := external.NewOctave(external.OctaveConfig{
			Binary:     s.cfg.OctavePath,
			ScriptsDir: s.cfg.OctaveScripts,
			Logger:     s.logger,
		})
		if oct.Available() {
			if err := external.Register(r, oct, s.cfg.ExternalTimeout); err != nil {
				return nil, err
			}
		} else {
			s.logger.Warn("octave not found, its functions are unavailable", slog.String("binary", s.cfg.OctavePath))
		}
	}

	star, err := external.LoadStarlark(s.cfg.FunctionsDir, s.logger)
	if err != nil {
		return nil, err
	}
	if err := external.Register(r, star, s.cfg.ExternalTimeout); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases the state store.
func (s *Session) Close() error {
	return s.store.Close()
}

// Dataset returns the live dataset, or nil before a load.
func (s *Session) Dataset() *dataset.Dataset { return s.dataset }

// Computed returns the computed-parameter engine.
func (s *Session) Computed() *computed.Engine { return s.computed }

// Views returns the plot layout.
func (s *Session) Views() *views.Manager { return s.views }

// Reconciler returns the reconciliation engine.
func (s *Session) Reconciler() *reconcile.Engine { return s.reconcile }

// Store returns the project storage.
func (s *Session) Store() state.Store { return s.store }

// ProjectDir returns the project directory.
func (s *Session) ProjectDir() string { return s.cfg.ProjectDir }

func (s *Session) path(name string) string {
	return filepath.Join(s.cfg.ProjectDir, name)
}

func (s *Session) require() (*dataset.Dataset, error) {
	if s.dataset == nil {
		return nil, ErrNoDataset
	}
	return s.dataset, nil
}

// Reset clears every field of Fields not named in preserve. Unknown names are
// an error.
func (s *Session) Reset(preserve ...string) error {
	for _, p := range preserve {
		if !slices.Contains(Fields, p) {
			return fmt.Errorf("unknown session field %q", p)
		}
	}
	keep := func(f string) bool { return slices.Contains(preserve, f) }

	if !keep(FieldReconciliation) {
		s.reconcile.Discard()
		s.candidate = nil
	}
	if !keep(FieldComputed) {
		s.computed.Reset()
	}
	if !keep(FieldDataset) {
		s.dataset = nil
	}
	if !keep(FieldViews) {
		s.views.Clear()
	}
	s.logger.Debug("session reset", slog.Any("preserved", preserve))
	return nil
}
