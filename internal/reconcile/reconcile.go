// Package reconcile compares a live dataset with a freshly loaded candidate of the
// same cruise and merges the differences a user accepts.
//
// A comparison moves through Idle, Comparing, AwaitingSelection and Applying.
// Only one comparison may be pending at a time.
package reconcile

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/leapstack-labs/cruiseqc/internal/computed"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// State is the position of the engine in the comparison protocol.
type State string

// Engine states.
const (
	StateIdle              State = "idle"
	StateComparing         State = "comparing"
	StateAwaitingSelection State = "awaiting selection"
	StateApplying          State = "applying"
)

// Config configures an Engine.
type Config struct {
	// Computed recomputes derived parameters after a merge. Optional.
	Computed *computed.Engine

	// Views is consulted for plotted columns. Optional.
	Views computed.Views

	// Commit persists the fully staged dataset before it replaces the live one.
	// A failing Commit aborts the merge. Optional.
	Commit func(*dataset.Dataset) error

	Logger *slog.Logger
}

type pending struct {
	diff      *DiffResult
	existing  *dataset.Dataset
	candidate *dataset.Dataset
}

// Engine runs comparisons between a live dataset and a candidate.
type Engine struct {
	mu      sync.Mutex
	state   State
	pending *pending

	computed *computed.Engine
	views    computed.Views
	commit   func(*dataset.Dataset) error
	logger   *slog.Logger
}

// New creates an idle engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		state:    StateIdle,
		computed: cfg.Computed,
		views:    cfg.Views,
		commit:   cfg.Commit,
		logger:   cfg.Logger,
	}
}

// SetCommit replaces the persistence hook.
func (e *Engine) SetCommit(fn func(*dataset.Dataset) error) {
	e.commit = fn
}

// State returns the current protocol state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pending returns the diff awaiting a selection, if any.
func (e *Engine) Pending() (*DiffResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || e.state != StateAwaitingSelection {
		return nil, false
	}
	return e.pending.diff, true
}

// transition moves from one state to another, failing with a ConflictError when
// the engine is elsewhere.
func (e *Engine) transition(from, to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != from {
		id := ""
		if e.pending != nil {
			id = e.pending.diff.ID
		}
		return &ConflictError{State: e.state, PendingID: id}
	}
	e.state = to
	return nil
}

func (e *Engine) settle(to State, p *pending) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = to
	e.pending = p
}

// Compare diffs candidate against existing and holds the result until Apply or
// Discard. The candidate's flag cells may be rewritten to the unset value; the
// candidate should not be used elsewhere afterwards. existing is not modified.
//
// Canceling ctx abandons the comparison and returns the engine to Idle.
func (e *Engine) Compare(ctx context.Context, existing, candidate *dataset.Dataset) (*DiffResult, error) {
	if err := e.transition(StateIdle, StateComparing); err != nil {
		return nil, err
	}

	d, err := diff(ctx, existing, candidate)
	if err != nil {
		e.settle(StateIdle, nil)
		return nil, err
	}
	d.ID = uuid.NewString()

	var plotted []string
	if e.views != nil {
		plotted = e.views.PlottedColumns()
	}
	for _, col := range d.RemovedColumns {
		if slices.Contains(plotted, col) {
			d.RemovedPlotted = append(d.RemovedPlotted, col)
		}
	}
	if e.computed != nil {
		for _, name := range e.computed.StaleCandidates(d.RemovedColumns) {
			if slices.Contains(plotted, name) {
				d.StaleComputed = append(d.StaleComputed, name)
			}
		}
	}

	e.logger.Info("comparison ready",
		slog.String("id", d.ID),
		slog.Bool("modified", d.Modified),
		slog.Int("added_columns", len(d.AddedColumns)),
		slog.Int("removed_columns", len(d.RemovedColumns)),
		slog.Int("added_rows", len(d.AddedRows)),
		slog.Int("removed_rows", len(d.RemovedRows)),
		slog.Int("value_diffs", len(d.ValueDiffs)),
		slog.Int("flag_resets", d.FlagResets()),
	)

	e.settle(StateAwaitingSelection, &pending{diff: d, existing: existing, candidate: candidate})
	return d, nil
}

// Discard abandons the pending comparison. It is a no-op when nothing is pending.
func (e *Engine) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateApplying {
		return
	}
	if e.pending != nil {
		e.logger.Debug("comparison discarded", slog.String("id", e.pending.diff.ID))
	}
	e.state = StateIdle
	e.pending = nil
}
