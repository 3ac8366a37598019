package reconcile

import (
	"context"
	"slices"
	"sort"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// comparedRoles are the authoritative column roles. Computed columns are derived
// and never compared.
var comparedRoles = []catalog.Role{catalog.RoleRequired, catalog.RoleParam, catalog.RoleFlag, catalog.RoleNonQC}

// ValueDiff is one differing cell of a row present in both datasets.
type ValueDiff struct {
	ID     string        `json:"hash_id"`
	Column string        `json:"column"`
	Old    dataset.Value `json:"-"`
	New    dataset.Value `json:"-"`

	// FlagReset marks a flag cell rewritten to the unset value because the
	// paired parameter changed.
	FlagReset bool `json:"flag_reset,omitempty"`
}

// ParamChange is one row of the grouped diff view of a parameter.
type ParamChange struct {
	HashID    string `json:"hash_id"`
	Castno    string `json:"castno"`
	Btlnbr    string `json:"btlnbr"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	OldParam  string `json:"old_param_value"`
	NewParam  string `json:"new_param_value"`
	OldFlag   string `json:"old_flag_value"`
	NewFlag   string `json:"new_flag_value"`
	Changed   string `json:"changed"`
}

// Change kinds of a ParamChange.
const (
	ChangedBoth  = "both"
	ChangedParam = "param"
	ChangedFlag  = "flag"
)

// DiffResult describes how a candidate dataset differs from the live one.
type DiffResult struct {
	ID             string      `json:"id"`
	AddedColumns   []string    `json:"added_columns"`
	RemovedColumns []string    `json:"removed_columns"`
	AddedRows      []string    `json:"added_rows"`
	RemovedRows    []string    `json:"removed_rows"`
	ValueDiffs     []ValueDiff `json:"value_diffs"`

	// RemovedPlotted are removed columns referenced by the plot layout.
	RemovedPlotted []string `json:"removed_plotted,omitempty"`

	// StaleComputed are plotted computed parameters that lose an input when the
	// removed columns are dropped.
	StaleComputed []string `json:"stale_computed,omitempty"`

	Modified bool `json:"modified"`

	groups map[string]map[string][]ParamChange
}

// FlagResets counts the value diffs that are forced flag resets.
func (d *DiffResult) FlagResets() int {
	n := 0
	for _, v := range d.ValueDiffs {
		if v.FlagReset {
			n++
		}
	}
	return n
}

// ByParameter groups the value diffs by parameter and then by station. Flag
// diffs are reported under their parameter.
func (d *DiffResult) ByParameter() map[string]map[string][]ParamChange {
	out := make(map[string]map[string][]ParamChange, len(d.groups))
	for param, stations := range d.groups {
		out[param] = make(map[string][]ParamChange, len(stations))
		for stn, changes := range stations {
			out[param][stn] = slices.Clone(changes)
		}
	}
	return out
}

// Parameters returns the grouped parameter names, sorted.
func (d *DiffResult) Parameters() []string {
	names := make([]string, 0, len(d.groups))
	for p := range d.groups {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

func comparedColumns(ds *dataset.Dataset) []string {
	var out []string
	for _, name := range ds.ColumnsByRole(false, comparedRoles...) {
		if !ds.Catalog.HasRole(name, catalog.RoleComputed) {
			out = append(out, name)
		}
	}
	return out
}

// minus returns the elements of a missing from b, in the order of a.
func minus(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if !set[s] {
			out = append(out, s)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

// diff computes the column, row and value differences. Flag cells of the
// candidate are reset in place when their parameter changed.
func diff(ctx context.Context, existing, candidate *dataset.Dataset) (*DiffResult, error) {
	oldCols, newCols := comparedColumns(existing), comparedColumns(candidate)

	d := &DiffResult{
		AddedColumns:   minus(newCols, oldCols),
		RemovedColumns: minus(oldCols, newCols),
		AddedRows:      minus(candidate.Table.IDs(), existing.Table.IDs()),
		RemovedRows:    minus(existing.Table.IDs(), candidate.Table.IDs()),
	}
	sort.Strings(d.AddedColumns)
	sort.Strings(d.RemovedColumns)

	columns := intersect(oldCols, newCols)
	rows := intersect(existing.Table.IDs(), candidate.Table.IDs())
	unset := dataset.Int(catalog.FlagUnset)

	seen := make(map[[2]string]int)
	record := func(id, col string, old, cur dataset.Value, reset bool) {
		key := [2]string{id, col}
		if i, ok := seen[key]; ok {
			d.ValueDiffs[i].New = cur
			d.ValueDiffs[i].FlagReset = d.ValueDiffs[i].FlagReset || reset
			return
		}
		seen[key] = len(d.ValueDiffs)
		d.ValueDiffs = append(d.ValueDiffs, ValueDiff{ID: id, Column: col, Old: old, New: cur, FlagReset: reset})
	}

	for _, id := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, col := range columns {
			old, _ := existing.Table.Get(id, col)
			cur, _ := candidate.Table.Get(id, col)
			if dataset.Equal(old, cur) {
				continue
			}
			record(id, col, old, cur, false)

			if !existing.Catalog.HasRole(col, catalog.RoleParam) || cur.IsNull() {
				continue
			}
			flag, ok := existing.Catalog.PairedFlag(col)
			if !ok || !candidate.Catalog.HasRole(flag, catalog.RoleFlag) || slices.Contains(d.AddedColumns, flag) {
				continue
			}
			if v, _ := candidate.Table.Get(id, flag); dataset.Equal(v, unset) {
				continue
			}
			if err := candidate.Table.Set(id, flag, unset); err != nil {
				return nil, err
			}
			if oldFlag, _ := existing.Table.Get(id, flag); !dataset.Equal(oldFlag, unset) {
				record(id, flag, oldFlag, unset, true)
			} else if i, ok := seen[[2]string{id, flag}]; ok {
				// the reset made the flag cell equal again
				d.ValueDiffs[i].New = unset
				d.ValueDiffs[i].FlagReset = true
			}
		}
	}
	d.ValueDiffs = slices.DeleteFunc(d.ValueDiffs, func(v ValueDiff) bool { return dataset.Equal(v.Old, v.New) })

	d.Modified = len(d.AddedColumns)+len(d.RemovedColumns)+len(d.AddedRows)+len(d.RemovedRows)+len(d.ValueDiffs) > 0
	d.groups = group(existing, candidate, d.ValueDiffs)
	return d, nil
}

// group builds the ByParameter view.
func group(existing, candidate *dataset.Dataset, diffs []ValueDiff) map[string]map[string][]ParamChange {
	groups := make(map[string]map[string][]ParamChange)
	done := make(map[[2]string]bool)

	for _, v := range diffs {
		param := v.Column
		if catalog.IsFlagName(param) {
			param = catalog.ParamName(param)
		}
		if done[[2]string{param, v.ID}] {
			continue
		}
		done[[2]string{param, v.ID}] = true

		flag := catalog.FlagName(param)
		cell := func(ds *dataset.Dataset, col string) (dataset.Value, string) {
			val, ok := ds.Table.Get(v.ID, col)
			if !ok {
				return dataset.Null(), ""
			}
			return val, val.String()
		}
		oldP, oldPS := cell(existing, param)
		newP, newPS := cell(candidate, param)
		oldF, oldFS := cell(existing, flag)
		newF, newFS := cell(candidate, flag)

		ident := existing.Identity(v.ID)
		change := ParamChange{
			HashID:    v.ID,
			Castno:    ident.Cast,
			Btlnbr:    ident.Bottle,
			Latitude:  ident.Latitude,
			Longitude: ident.Longitude,
			OldParam:  oldPS,
			NewParam:  newPS,
			OldFlag:   oldFS,
			NewFlag:   newFS,
		}
		paramChanged, flagChanged := !dataset.Equal(oldP, newP), !dataset.Equal(oldF, newF)
		switch {
		case paramChanged && flagChanged:
			change.Changed = ChangedBoth
		case paramChanged:
			change.Changed = ChangedParam
		default:
			change.Changed = ChangedFlag
		}

		if groups[param] == nil {
			groups[param] = make(map[string][]ParamChange)
		}
		groups[param][ident.Station] = append(groups[param][ident.Station], change)
	}
	return groups
}
