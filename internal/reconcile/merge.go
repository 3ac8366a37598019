package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/computed"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// ValueChoice accepts the parameter value, the flag value, or both of one
// parameter in one row.
type ValueChoice struct {
	ID          string `json:"hash_id"`
	Param       string `json:"param"`
	AcceptParam bool   `json:"param_checked"`
	AcceptFlag  bool   `json:"flag_checked"`
}

// Selection is what the user accepted from a DiffResult. AllValues accepts every
// value diff; otherwise only Values are applied.
type Selection struct {
	AddColumns    bool          `json:"add_cols"`
	RemoveColumns bool          `json:"rmv_cols"`
	AddRows       bool          `json:"add_rows"`
	RemoveRows    bool          `json:"rmv_rows"`
	AllValues     bool          `json:"all_values"`
	Values        []ValueChoice `json:"diff_values,omitempty"`
}

// AcceptAll returns a selection accepting every category.
func AcceptAll() Selection {
	return Selection{AddColumns: true, RemoveColumns: true, AddRows: true, RemoveRows: true, AllValues: true}
}

// AcceptNone returns a selection accepting nothing.
func AcceptNone() Selection {
	return Selection{}
}

func (s Selection) empty(d *DiffResult) bool {
	accepts := (s.AddColumns && len(d.AddedColumns) > 0) ||
		(s.RemoveColumns && len(d.RemovedColumns) > 0) ||
		(s.AddRows && len(d.AddedRows) > 0) ||
		(s.RemoveRows && len(d.RemovedRows) > 0)
	return !accepts && len(s.acceptedValues(d)) == 0
}

// acceptedValues resolves the selection against the value diffs of d. Choices
// naming a row or parameter without a diff are dropped.
func (s Selection) acceptedValues(d *DiffResult) []ValueDiff {
	if s.AllValues {
		return d.ValueDiffs
	}
	if len(s.Values) == 0 {
		return nil
	}
	index := make(map[[2]string]ValueDiff, len(d.ValueDiffs))
	for _, v := range d.ValueDiffs {
		index[[2]string{v.ID, v.Column}] = v
	}
	var out []ValueDiff
	for _, c := range s.Values {
		var cols []string
		if c.AcceptParam {
			cols = append(cols, c.Param)
		}
		if c.AcceptFlag {
			cols = append(cols, catalog.FlagName(c.Param))
		}
		for _, col := range cols {
			if v, ok := index[[2]string{c.ID, col}]; ok {
				out = append(out, v)
			}
		}
	}
	return out
}

// Applied counts what a merge changed.
type Applied struct {
	AddedColumns   []string `json:"added_columns,omitempty"`
	RemovedColumns []string `json:"removed_columns,omitempty"`
	AddedRows      []string `json:"added_rows,omitempty"`
	RemovedRows    []string `json:"removed_rows,omitempty"`
	Values         int      `json:"values"`
}

// Empty reports whether nothing was applied.
func (a Applied) Empty() bool {
	return len(a.AddedColumns)+len(a.RemovedColumns)+len(a.AddedRows)+len(a.RemovedRows)+a.Values == 0
}

// Merge is the outcome of Apply.
type Merge struct {
	DiffID  string          `json:"diff_id"`
	Applied Applied         `json:"applied"`
	Report  computed.Report `json:"recompute"`

	// Pruned are the columns removed from the plot layout.
	Pruned []string `json:"pruned,omitempty"`

	// Superseded is true when the live dataset was replaced.
	Superseded bool `json:"superseded"`
}

// Apply merges the selected parts of the pending comparison into the live
// dataset. The merge is staged on a copy; the live dataset and the computed
// parameter states are only replaced once recomputation and the commit hook
// succeed. On failure the comparison stays pending.
func (e *Engine) Apply(ctx context.Context, sel Selection) (*Merge, error) {
	e.mu.Lock()
	switch {
	case e.state == StateAwaitingSelection:
		e.state = StateApplying
	case e.pending == nil && e.state == StateIdle:
		e.mu.Unlock()
		return nil, ErrNoPendingComparison
	default:
		err := &ConflictError{State: e.state}
		if e.pending != nil {
			err.PendingID = e.pending.diff.ID
		}
		e.mu.Unlock()
		return nil, err
	}
	p := e.pending
	e.mu.Unlock()

	m := &Merge{DiffID: p.diff.ID}
	if sel.empty(p.diff) {
		e.logger.Info("nothing accepted, comparison closed", slog.String("id", p.diff.ID))
		e.settle(StateIdle, nil)
		return m, nil
	}

	var snap computed.Snapshot
	if e.computed != nil {
		snap = e.computed.Snapshot()
	}
	fail := func(err error) (*Merge, error) {
		if e.computed != nil {
			e.computed.Restore(snap)
		}
		e.settle(StateAwaitingSelection, p)
		return nil, err
	}

	staged := p.existing.Clone()
	applied, err := stage(staged, p.candidate, p.diff, sel)
	if err != nil {
		return fail(err)
	}
	m.Applied = applied

	if e.computed != nil {
		report, err := e.computed.Recompute(ctx, staged)
		if err != nil {
			return fail(fmt.Errorf("failed to recompute computed parameters: %w", err))
		}
		m.Report = report
	}
	if e.commit != nil {
		if err := e.commit(staged); err != nil {
			return fail(fmt.Errorf("failed to commit merged dataset: %w", err))
		}
	}

	*p.existing = *staged
	m.Superseded = true

	removed := slices.Clone(applied.RemovedColumns)
	removed = append(removed, m.Report.StaleNames()...)
	m.Pruned = e.prune(removed)

	e.logger.Info("comparison applied",
		slog.String("id", p.diff.ID),
		slog.Int("added_columns", len(applied.AddedColumns)),
		slog.Int("removed_columns", len(applied.RemovedColumns)),
		slog.Int("added_rows", len(applied.AddedRows)),
		slog.Int("removed_rows", len(applied.RemovedRows)),
		slog.Int("values", applied.Values),
		slog.Int("stale_computed", len(m.Report.Failed)),
	)
	e.settle(StateIdle, nil)
	return m, nil
}

// prune removes the plotted columns among names from the views. Failures are
// logged; the merge has already been committed.
func (e *Engine) prune(names []string) []string {
	if e.views == nil || len(names) == 0 {
		return nil
	}
	plotted := e.views.PlottedColumns()
	var out []string
	for _, n := range names {
		if slices.Contains(plotted, n) && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	if err := e.views.RemoveColumnsFromViews(out); err != nil {
		e.logger.Warn("failed to prune views", slog.Any("columns", out), slog.String("error", err.Error()))
		return nil
	}
	return out
}

// stage applies sel to staged in order: rows, then columns, then values.
func stage(staged, candidate *dataset.Dataset, d *DiffResult, sel Selection) (Applied, error) {
	var a Applied
	missing := dataset.Int(catalog.FlagMissing)

	if sel.AddRows && len(d.AddedRows) > 0 {
		shared := intersect(comparedColumns(staged), candidate.Table.ColumnNames())
		flags := staged.ColumnsByRole(false, catalog.RoleFlag)
		for _, id := range d.AddedRows {
			if err := staged.Table.AppendRow(id); err != nil {
				return a, err
			}
			for _, col := range shared {
				v, _ := candidate.Table.Get(id, col)
				if err := staged.Table.Set(id, col, v); err != nil {
					return a, err
				}
			}
			for _, flag := range flags {
				if slices.Contains(shared, flag) {
					continue
				}
				if err := staged.Table.Set(id, flag, missing); err != nil {
					return a, err
				}
			}
		}
		a.AddedRows = slices.Clone(d.AddedRows)
	}

	if sel.RemoveRows && len(d.RemovedRows) > 0 {
		for _, id := range d.RemovedRows {
			staged.Table.DropRow(id)
		}
		a.RemovedRows = slices.Clone(d.RemovedRows)
	}

	if sel.AddColumns && len(d.AddedColumns) > 0 {
		for _, name := range d.AddedColumns {
			if err := copyColumn(staged, candidate, name); err != nil {
				return a, err
			}
		}
		a.AddedColumns = slices.Clone(d.AddedColumns)
	}

	if sel.RemoveColumns && len(d.RemovedColumns) > 0 {
		for _, name := range d.RemovedColumns {
			if flag, ok := staged.Catalog.PairedFlag(name); ok && !slices.Contains(d.RemovedColumns, flag) {
				staged.DropColumn(flag)
				a.RemovedColumns = append(a.RemovedColumns, flag)
			}
			staged.DropColumn(name)
			a.RemovedColumns = append(a.RemovedColumns, name)
		}
	}

	n, err := applyValues(staged, d, sel)
	if err != nil {
		return a, err
	}
	a.Values = n

	staged.NormalizeSentinels()
	created, err := staged.EnsureFlagColumns()
	if err != nil {
		return a, err
	}
	markMissing(staged, created)
	staged.RefreshEmptyRoles()
	recordMoves(staged, a)
	return a, nil
}

// markMissing sets the missing flag in the new flag columns wherever the
// parameter has no value.
func markMissing(ds *dataset.Dataset, flags []string) {
	missing := dataset.Int(catalog.FlagMissing)
	for _, flag := range flags {
		param, ok := ds.Table.Column(catalog.ParamName(flag))
		if !ok {
			continue
		}
		col, _ := ds.Table.Column(flag)
		for i := 0; i < param.Len(); i++ {
			if param.Get(i).IsNull() {
				col.Set(i, missing)
			}
		}
	}
}

// copyColumn adds the candidate column name to staged, aligned on row identity.
// Rows unknown to the candidate are filled with the missing flag or null.
func copyColumn(staged, candidate *dataset.Dataset, name string) error {
	if staged.Table.HasColumn(name) {
		return &catalog.DuplicateColumnError{Name: name}
	}
	src, ok := candidate.Table.Column(name)
	if !ok {
		return fmt.Errorf("%w: %s", dataset.ErrUnknownColumn, name)
	}
	meta, _ := candidate.Catalog.Get(name)

	fill := dataset.Null()
	if meta.HasRole(catalog.RoleFlag) {
		fill = dataset.Int(catalog.FlagMissing)
	}
	col := dataset.NewFilledColumn(name, src.Kind, staged.Table.Len(), fill)
	for i, id := range staged.Table.IDs() {
		if v, ok := candidate.Table.Get(id, name); ok {
			col.Set(i, v)
		}
	}
	return staged.AddColumn(col, *meta)
}

// applyValues copies the accepted value diffs into staged and returns how many
// cells were written.
func applyValues(staged *dataset.Dataset, d *DiffResult, sel Selection) (int, error) {
	n := 0
	for _, v := range sel.acceptedValues(d) {
		if !staged.Table.HasRow(v.ID) || !staged.Table.HasColumn(v.Column) {
			continue
		}
		if err := staged.Table.Set(v.ID, v.Column, v.New); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// recordMoves appends one audit entry per non-empty category.
func recordMoves(ds *dataset.Dataset, a Applied) {
	if len(a.AddedColumns) > 0 {
		ds.AppendMove(dataset.Move{
			Action:      dataset.ActionAddColumns,
			Description: "Added columns: " + strings.Join(a.AddedColumns, ", "),
		})
	}
	if len(a.RemovedColumns) > 0 {
		ds.AppendMove(dataset.Move{
			Action:      dataset.ActionDelColumns,
			Description: "Deleted columns: " + strings.Join(a.RemovedColumns, ", "),
		})
	}
	if len(a.AddedRows) > 0 {
		ds.AppendMove(dataset.Move{
			Action:      dataset.ActionAddRows,
			Value:       fmt.Sprint(len(a.AddedRows)),
			Description: fmt.Sprintf("Added rows: %d", len(a.AddedRows)),
		})
	}
	if len(a.RemovedRows) > 0 {
		ds.AppendMove(dataset.Move{
			Action:      dataset.ActionDelRows,
			Value:       fmt.Sprint(len(a.RemovedRows)),
			Description: fmt.Sprintf("Deleted rows: %d", len(a.RemovedRows)),
		})
	}
	if a.Values > 0 {
		ds.AppendMove(dataset.Move{
			Action:      dataset.ActionUpdValues,
			Value:       fmt.Sprint(a.Values),
			Description: fmt.Sprintf("Updated values: %d", a.Values),
		})
	}
}
