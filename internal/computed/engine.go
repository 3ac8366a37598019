// Package computed manages computed parameters: dataset columns derived from
// other columns by an equation evaluated in the expression sandbox.
//
// Each declared parameter moves through Undefined, Computed, Stale and Removed.
// Evaluation failures are never returned as errors; they come back as a Result
// with Success false, and a failed recomputation demotes the parameter to Stale
// and drops its column until a later recomputation succeeds.
package computed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/dag"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
	"github.com/leapstack-labs/cruiseqc/internal/expr"
)

// State is the lifecycle position of one computed parameter.
type State string

// Computed parameter states.
const (
	StateUndefined State = "undefined"
	StateComputed  State = "computed"
	StateStale     State = "stale"
	StateRemoved   State = "removed"
)

// Result is the outcome of adding or removing one computed parameter.
type Result struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Err     error  `json:"-"`
}

func failure(name string, err error) Result {
	return Result{Name: name, Reason: err.Error(), Err: err}
}

// Report summarizes a batch recomputation.
type Report struct {
	Recomputed []string `json:"recomputed"`
	Failed     []Result `json:"failed,omitempty"`
	Pruned     []string `json:"pruned,omitempty"`
}

// StaleNames returns the names of the failed parameters.
func (r Report) StaleNames() []string {
	out := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		out[i] = f.Name
	}
	return out
}

// Views is the visualization configuration that references plotted columns.
type Views interface {
	PlottedColumns() []string
	RemoveColumnsFromViews(columns []string) error
}

// Persister stores the set of active computed parameters.
type Persister interface {
	PersistComputed(active []string) error
}

// Config configures an Engine. DefaultPrecision applies to definitions without
// a precision; a negative value disables rounding.
type Config struct {
	Definitions      []Definition
	Sandbox          *expr.Sandbox
	DefaultPrecision int
	Views            Views
	Persister        Persister
	Logger           *slog.Logger
}

// Engine evaluates computed parameters against a dataset.
type Engine struct {
	defs      map[string]Definition
	order     []string
	states    map[string]State
	sandbox   *expr.Sandbox
	precision int
	views     Views
	persister Persister
	logger    *slog.Logger
}

// NewEngine creates an engine over the declared definitions.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Sandbox == nil {
		cfg.Sandbox = expr.NewSandbox(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		defs:      make(map[string]Definition, len(cfg.Definitions)),
		states:    make(map[string]State, len(cfg.Definitions)),
		sandbox:   cfg.Sandbox,
		precision: cfg.DefaultPrecision,
		views:     cfg.Views,
		persister: cfg.Persister,
		logger:    cfg.Logger,
	}
	for _, d := range cfg.Definitions {
		if _, dup := e.defs[d.Name]; dup {
			return nil, fmt.Errorf("computed parameter %s is declared more than once", d.Name)
		}
		e.defs[d.Name] = d
		e.order = append(e.order, d.Name)
		e.states[d.Name] = StateUndefined
	}
	return e, nil
}

// SetViews attaches the visualization collaborator.
func (e *Engine) SetViews(v Views) {
	e.views = v
}

// SetPersister attaches the storage collaborator.
func (e *Engine) SetPersister(p Persister) {
	e.persister = p
}

// Definitions returns every declared definition in declaration order.
func (e *Engine) Definitions() []Definition {
	out := make([]Definition, len(e.order))
	for i, name := range e.order {
		out[i] = e.defs[name]
	}
	return out
}

// Definition looks up one definition.
func (e *Engine) Definition(name string) (Definition, bool) {
	d, ok := e.defs[name]
	return d, ok
}

// State returns the lifecycle state of name.
func (e *Engine) State(name string) State {
	if s, ok := e.states[name]; ok {
		return s
	}
	return StateUndefined
}

// Active returns the computed parameters in state Computed, in declaration order.
func (e *Engine) Active() []string {
	return e.inState(StateComputed)
}

// Stale returns the parameters demoted to Stale, in declaration order.
func (e *Engine) Stale() []string {
	return e.inState(StateStale)
}

func (e *Engine) inState(s State) []string {
	var out []string
	for _, name := range e.order {
		if e.states[name] == s {
			out = append(out, name)
		}
	}
	return out
}

// SetActive marks names as Computed without evaluating them, for reopening a
// project whose working copy already holds the columns. Unknown names are skipped.
func (e *Engine) SetActive(names []string) {
	for _, name := range names {
		if _, ok := e.defs[name]; !ok {
			e.logger.Warn("ignoring unknown active computed parameter", slog.String("name", name))
			continue
		}
		e.states[name] = StateComputed
	}
}

// Snapshot captures the lifecycle states so a staged change can be rolled back.
type Snapshot struct {
	states map[string]State
}

// Snapshot returns the current lifecycle states.
func (e *Engine) Snapshot() Snapshot {
	s := make(map[string]State, len(e.states))
	for k, v := range e.states {
		s[k] = v
	}
	return Snapshot{states: s}
}

// Restore resets the lifecycle states to a snapshot.
func (e *Engine) Restore(s Snapshot) {
	if s.states != nil {
		e.states = s.states
	}
}

// Reset returns every parameter to Undefined.
func (e *Engine) Reset() {
	for name := range e.states {
		e.states[name] = StateUndefined
	}
}

// equations maps every definition to its equation, for reference substitution.
func (e *Engine) equations() map[string]string {
	out := make(map[string]string, len(e.defs))
	for name, d := range e.defs {
		out[name] = d.Equation
	}
	return out
}

func (e *Engine) precisionOf(d Definition) int {
	if d.Precision != nil {
		return *d.Precision
	}
	return e.precision
}

// Inputs returns the dataset columns the expanded equation of name reads,
// excluding allow-listed functions and constants.
func (e *Engine) Inputs(name string) ([]string, error) {
	d, ok := e.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefinition, name)
	}
	expanded, err := expr.Substitute(d.Equation, e.equations())
	if err != nil {
		return nil, err
	}
	root, err := expr.Parse(expanded)
	if err != nil {
		return nil, err
	}
	idents, _ := expr.Identifiers(root)
	reg := e.sandbox.Registry()
	var out []string
	for _, id := range idents {
		if _, isConst := reg.Constant(id); isConst {
			continue
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// evaluate computes the rounded values of d over ds. The target column itself
// is hidden from the equation.
func (e *Engine) evaluate(ctx context.Context, ds *dataset.Dataset, d Definition) ([]float64, error) {
	env := &datasetEnv{table: ds.Table, hide: d.Name}
	values, err := e.sandbox.Evaluate(ctx, d.Equation, env, e.equations())
	if err != nil {
		return nil, err
	}
	return expr.Round(values, e.precisionOf(d)), nil
}

func (e *Engine) meta(d Definition) catalog.ColumnMeta {
	return catalog.ColumnMeta{
		ExternalName: d.Name,
		Roles:        []catalog.Role{catalog.RoleComputed},
		Unit:         d.Units,
		Precision:    catalog.Precision(e.precisionOf(d)),
		DataType:     catalog.TypeFloat,
		Export:       true,
	}
}

// Add evaluates the definition of name and adds it to ds as a computed column.
// On failure ds is left untouched. With persist the active set is stored.
func (e *Engine) Add(ctx context.Context, ds *dataset.Dataset, name string, persist bool) Result {
	d, ok := e.defs[name]
	if !ok {
		return failure(name, fmt.Errorf("%w: %s", ErrUnknownDefinition, name))
	}
	if e.states[name] == StateComputed {
		return failure(name, fmt.Errorf("computed parameter %s is already added", name))
	}

	values, err := e.evaluate(ctx, ds, d)
	if err != nil {
		e.logger.Info("computed parameter not added", slog.String("name", name), slog.String("reason", err.Error()))
		return failure(name, err)
	}

	if name == catalog.ScratchColumn {
		// The scratch name is evaluated for validation only.
		return Result{Name: name, Success: true, Reason: "scratch column is not materialized"}
	}

	if err := ds.AddColumn(dataset.NewFloatColumn(name, values), e.meta(d)); err != nil {
		return failure(name, err)
	}
	prev := e.states[name]
	e.states[name] = StateComputed

	if persist {
		if err := e.persist(); err != nil {
			ds.DropColumn(name)
			e.states[name] = prev
			return failure(name, err)
		}
	}

	ds.AppendMove(dataset.Move{
		Action:      dataset.ActionAddComputed,
		Param:       name,
		Description: fmt.Sprintf("%s computed parameter was added: %s", name, d.Equation),
	})
	e.logger.Debug("computed parameter added", slog.String("name", name))
	return Result{Name: name, Success: true}
}

// Remove drops the column of an active computed parameter, prunes it from the
// views and demotes every active parameter that read it.
func (e *Engine) Remove(ctx context.Context, ds *dataset.Dataset, name string, persist bool) Result {
	if _, ok := e.defs[name]; !ok {
		return failure(name, fmt.Errorf("%w: %s", ErrUnknownDefinition, name))
	}
	if s := e.states[name]; s != StateComputed && s != StateStale {
		return failure(name, fmt.Errorf("computed parameter %s is not added", name))
	}

	ds.DropColumn(name)
	e.states[name] = StateRemoved
	ds.AppendMove(dataset.Move{
		Action:      dataset.ActionDelComputed,
		Param:       name,
		Description: fmt.Sprintf("%s computed parameter was removed", name),
	})

	dropped := []string{name}
	report, err := e.Recompute(ctx, ds, e.dependents(name)...)
	if err != nil {
		return failure(name, err)
	}
	dropped = append(dropped, report.StaleNames()...)
	if err := e.PruneViews(dropped); err != nil {
		e.logger.Warn("failed to prune views", slog.String("error", err.Error()))
	}

	if persist {
		if err := e.persist(); err != nil {
			return failure(name, err)
		}
	}
	return Result{Name: name, Success: true}
}

// dependents returns the active parameters that transitively read name.
func (e *Engine) dependents(name string) []string {
	g, _ := e.graph(append(e.Active(), name))
	var out []string
	for _, d := range g.Downstream(name) {
		if d != name {
			out = append(out, d)
		}
	}
	return out
}

// graph builds the column dependency graph among names. Edges whose inputs
// cannot be determined are skipped.
func (e *Engine) graph(names []string) (*dag.Graph, error) {
	g := dag.NewGraph()
	for _, n := range names {
		g.AddNode(n)
	}
	for _, n := range names {
		inputs, err := e.Inputs(n)
		if err != nil {
			continue
		}
		for _, in := range inputs {
			if in != n && g.Has(in) {
				if err := g.AddEdge(in, n); err != nil {
					return nil, err
				}
			}
		}
	}
	return g, nil
}

// Recompute re-evaluates the active and stale parameters of ds, or only names
// when given, inputs before dependents. Failures demote the parameter to Stale
// and drop its column. Views and storage are not touched; the returned error is
// non-nil only when ctx is done.
func (e *Engine) Recompute(ctx context.Context, ds *dataset.Dataset, names ...string) (Report, error) {
	if len(names) == 0 {
		names = append(e.Active(), e.Stale()...)
	}
	var report Report
	if len(names) == 0 {
		return report, nil
	}

	g, err := e.graph(names)
	if err != nil {
		return report, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		e.logger.Warn("computed parameters read each other, recomputing in name order", slog.String("error", err.Error()))
		order = slices.Clone(names)
		sort.Strings(order)
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		d := e.defs[name]
		values, err := e.evaluate(ctx, ds, d)
		if err == nil {
			err = e.store(ds, d, values)
		}
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			ds.DropColumn(name)
			e.states[name] = StateStale
			report.Failed = append(report.Failed, failure(name, err))
			e.logger.Info("computed parameter is stale", slog.String("name", name), slog.String("reason", err.Error()))
			continue
		}
		e.states[name] = StateComputed
		report.Recomputed = append(report.Recomputed, name)
	}
	return report, nil
}

// store writes values into the column of d, creating it when absent.
func (e *Engine) store(ds *dataset.Dataset, d Definition, values []float64) error {
	col, ok := ds.Table.Column(d.Name)
	if !ok {
		return ds.AddColumn(dataset.NewFloatColumn(d.Name, values), e.meta(d))
	}
	if !ds.Catalog.HasRole(d.Name, catalog.RoleComputed) {
		return &catalog.DuplicateColumnError{Name: d.Name}
	}
	for i, v := range values {
		col.Set(i, dataset.Float(v))
	}
	return nil
}

// RecomputeAll recomputes every active and stale parameter, prunes the stale
// ones from the views and stores the active set.
func (e *Engine) RecomputeAll(ctx context.Context, ds *dataset.Dataset) (Report, error) {
	report, err := e.Recompute(ctx, ds)
	if err != nil {
		return report, err
	}
	if stale := report.StaleNames(); len(stale) > 0 {
		report.Pruned = e.plotted(stale)
		if err := e.PruneViews(stale); err != nil {
			return report, err
		}
	}
	return report, e.persist()
}

// plotted returns the subset of names referenced by the views.
func (e *Engine) plotted(names []string) []string {
	if e.views == nil {
		return nil
	}
	plotted := e.views.PlottedColumns()
	var out []string
	for _, n := range names {
		if slices.Contains(plotted, n) {
			out = append(out, n)
		}
	}
	return out
}

// PruneViews removes the plotted names from the views.
func (e *Engine) PruneViews(names []string) error {
	pruned := e.plotted(names)
	if len(pruned) == 0 {
		return nil
	}
	e.logger.Info("pruning stale computed parameters from views", slog.Any("columns", pruned))
	return e.views.RemoveColumnsFromViews(pruned)
}

// Persist stores the active set.
func (e *Engine) Persist() error {
	return e.persist()
}

func (e *Engine) persist() error {
	if e.persister == nil {
		return nil
	}
	if err := e.persister.PersistComputed(e.Active()); err != nil {
		return fmt.Errorf("failed to persist computed parameters: %w", err)
	}
	return nil
}

// CheckDependencies dry-runs every declared definition against ds and reports
// which ones could be evaluated. ds is not modified.
func (e *Engine) CheckDependencies(ctx context.Context, ds *dataset.Dataset) map[string]bool {
	out := make(map[string]bool, len(e.defs))
	for _, name := range e.order {
		_, err := e.evaluate(ctx, ds, e.defs[name])
		out[name] = err == nil
	}
	return out
}

// AddAllPossible adds every definition that is not active and can be evaluated,
// repeating until no further parameter becomes satisfiable. The returned results
// cover the added parameters followed by the ones still failing.
func (e *Engine) AddAllPossible(ctx context.Context, ds *dataset.Dataset) []Result {
	var added []Result
	failed := map[string]Result{}
	for progress := true; progress; {
		progress = false
		for _, name := range e.order {
			if name == catalog.ScratchColumn || e.states[name] == StateComputed {
				continue
			}
			r := e.Add(ctx, ds, name, false)
			if r.Success {
				added = append(added, r)
				delete(failed, name)
				progress = true
				continue
			}
			failed[name] = r
		}
	}

	results := added
	for _, name := range e.order {
		if r, ok := failed[name]; ok {
			results = append(results, r)
		}
	}
	if len(added) > 0 {
		if err := e.persist(); err != nil {
			e.logger.Warn("failed to persist computed parameters", slog.String("error", err.Error()))
		}
	}
	return results
}

// StaleCandidates returns the active parameters that would lose an input if
// removed were dropped from ds, including their transitive dependents.
func (e *Engine) StaleCandidates(removed []string) []string {
	if len(removed) == 0 {
		return nil
	}
	active := e.Active()
	var direct []string
	for _, name := range active {
		inputs, err := e.Inputs(name)
		if err != nil {
			continue
		}
		for _, in := range inputs {
			if slices.Contains(removed, in) {
				direct = append(direct, name)
				break
			}
		}
	}
	if len(direct) == 0 {
		return nil
	}
	g, _ := e.graph(active)
	return g.Downstream(direct...)
}
