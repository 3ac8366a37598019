package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/cruiseqc/internal/computed"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
	"github.com/leapstack-labs/cruiseqc/internal/export"
	"github.com/leapstack-labs/cruiseqc/internal/loader"
	"github.com/leapstack-labs/cruiseqc/internal/reconcile"
	"github.com/leapstack-labs/cruiseqc/internal/state"
)

// Load replaces the project dataset with the file at path. The active computed
// parameters of the project are recomputed on the new data; a validation
// failure leaves the session as it was.
func (s *Session) Load(ctx context.Context, path string) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	ds, err := s.loader.Read(bytes.NewReader(data), path, loader.ScopeFreshLoad)
	if err != nil {
		return nil, err
	}

	if err := s.Reset(FieldViews); err != nil {
		return nil, err
	}
	s.adopt(ds)

	if err := s.store.ClearMoves(); err != nil {
		return nil, err
	}
	var active []string
	if _, err := s.store.ReadJSON(state.KeyComputed, &active); err != nil {
		return nil, err
	}
	s.computed.SetActive(active)
	report, err := s.computed.RecomputeAll(ctx, ds)
	if err != nil {
		return nil, err
	}
	if len(report.Failed) > 0 {
		s.logger.Warn("computed parameters could not be recomputed", slog.Any("names", report.StaleNames()))
	}

	if err := s.saveWithHash(ds, ContentHash(data)); err != nil {
		return nil, err
	}
	if err := s.keepSource(path, data); err != nil {
		return nil, err
	}
	s.logger.Info("dataset loaded",
		slog.String("path", path),
		slog.String("format", string(ds.Source.Format)),
		slog.Int("rows", ds.Table.Len()),
		slog.Int("columns", ds.Catalog.Len()),
	)
	return ds, nil
}

// UpdateFlag sets column to value in the rows ids and saves the project.
func (s *Session) UpdateFlag(column string, value int64, ids []string) error {
	ds, err := s.require()
	if err != nil {
		return err
	}
	staged := ds.Clone()
	if err := staged.UpdateFlagValue(column, value, ids); err != nil {
		return err
	}
	if err := s.save(staged); err != nil {
		return err
	}
	*ds = *staged
	return nil
}

// AddComputed adds the computed parameter name to the dataset.
func (s *Session) AddComputed(ctx context.Context, name string) (computed.Result, error) {
	ds, err := s.require()
	if err != nil {
		return computed.Result{}, err
	}
	r := s.computed.Add(ctx, ds, name, true)
	if !r.Success {
		return r, nil
	}
	return r, s.save(ds)
}

// RemoveComputed drops the computed parameter name from the dataset.
func (s *Session) RemoveComputed(ctx context.Context, name string) (computed.Result, error) {
	ds, err := s.require()
	if err != nil {
		return computed.Result{}, err
	}
	r := s.computed.Remove(ctx, ds, name, true)
	if !r.Success {
		return r, nil
	}
	return r, s.save(ds)
}

// AddAllComputed adds every computed parameter the dataset can satisfy.
func (s *Session) AddAllComputed(ctx context.Context) ([]computed.Result, error) {
	ds, err := s.require()
	if err != nil {
		return nil, err
	}
	results := s.computed.AddAllPossible(ctx, ds)
	return results, s.save(ds)
}

// CheckComputed reports which definitions the dataset can satisfy.
func (s *Session) CheckComputed(ctx context.Context) (map[string]bool, error) {
	ds, err := s.require()
	if err != nil {
		return nil, err
	}
	return s.computed.CheckDependencies(ctx, ds), nil
}

// SourceChanged reports whether the content of path differs from what was last
// loaded or merged from it.
func (s *Session) SourceChanged(path string) (bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	known, err := s.store.GetSourceHash(path)
	if err != nil {
		return false, err
	}
	return known != ContentHash(data), nil
}

// Compare loads path as a candidate and diffs it against the live dataset. The
// comparison stays pending until Apply or Discard.
func (s *Session) Compare(ctx context.Context, path string) (*reconcile.DiffResult, error) {
	ds, err := s.require()
	if err != nil {
		return nil, err
	}
	if s.reconcile.State() != reconcile.StateIdle {
		// let the reconciler report the conflict
		return s.reconcile.Compare(ctx, ds, nil)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	candidate, err := s.loader.Read(bytes.NewReader(data), path, loader.ScopeCandidate)
	if err != nil {
		return nil, err
	}

	d, err := s.reconcile.Compare(ctx, ds, candidate)
	if err != nil {
		return nil, err
	}
	s.candidate = &candidateSource{path: path, data: data}
	return d, nil
}

// Pending returns the comparison awaiting a selection.
func (s *Session) Pending() (*reconcile.DiffResult, bool) {
	return s.reconcile.Pending()
}

// Apply merges the accepted parts of the pending comparison.
func (s *Session) Apply(ctx context.Context, sel reconcile.Selection) (*reconcile.Merge, error) {
	m, err := s.reconcile.Apply(ctx, sel)
	if err != nil {
		return nil, err
	}
	s.candidate = nil
	return m, nil
}

// Discard abandons the pending comparison.
func (s *Session) Discard() {
	s.reconcile.Discard()
	s.candidate = nil
}

// commit persists a fully staged merge. The dataset goes first; only then is the
// superseded original source archived and replaced by the candidate file.
func (s *Session) commit(staged *dataset.Dataset) error {
	if s.candidate == nil {
		return errors.New("no candidate source to commit")
	}
	staged.Source.Path = s.candidate.path
	if err := s.saveWithHash(staged, ContentHash(s.candidate.data)); err != nil {
		return err
	}
	if err := s.PersistComputed(s.computed.Active()); err != nil {
		return err
	}
	if err := s.archiveOriginal(); err != nil {
		return err
	}
	return s.keepSource(s.candidate.path, s.candidate.data)
}

// Export writes the live dataset to path.
func (s *Session) Export(path string, format export.Format, columns []string) error {
	ds, err := s.require()
	if err != nil {
		return err
	}
	return export.ToFile(path, format, ds, export.Options{Columns: columns, Now: s.cfg.Clock})
}

// ExportMoves writes the audit log as CSV to path.
func (s *Session) ExportMoves(path string) error {
	ds, err := s.require()
	if err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	err = export.WriteMoves(f, ds.Moves)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
