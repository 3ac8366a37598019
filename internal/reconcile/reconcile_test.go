package reconcile

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/computed"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
	"github.com/leapstack-labs/cruiseqc/internal/testutil"
)

type fakeViews struct {
	plotted []string
	removed [][]string
	err     error
}

func (v *fakeViews) PlottedColumns() []string { return v.plotted }

func (v *fakeViews) RemoveColumnsFromViews(cols []string) error {
	if v.err != nil {
		return v.err
	}
	v.removed = append(v.removed, cols)
	return nil
}

var (
	required = []catalog.Role{catalog.RoleRequired}
	param    = []catalog.Role{catalog.RoleParam}
	flag     = []catalog.Role{catalog.RoleFlag}
)

func addColumn(t *testing.T, ds *dataset.Dataset, name string, kind dataset.Kind, roles []catalog.Role, values ...dataset.Value) {
	t.Helper()
	col := dataset.NewColumn(name, kind, ds.Table.Len())
	for i, v := range values {
		col.Set(i, v)
	}
	require.NoError(t, ds.AddColumn(col, catalog.ColumnMeta{Roles: roles, Export: true}))
}

// cruise builds two bottles at station 1 and one at station 2.
func cruise(t *testing.T) *dataset.Dataset {
	t.Helper()
	tbl := dataset.NewTable()
	require.NoError(t, tbl.SetIDs([]string{"r1", "r2", "r3"}))
	ds := dataset.New(tbl, catalog.New(nil))

	i, f := dataset.Int, dataset.Float
	addColumn(t, ds, "STNNBR", dataset.KindInt, required, i(1), i(1), i(2))
	addColumn(t, ds, "CASTNO", dataset.KindInt, required, i(1), i(1), i(1))
	addColumn(t, ds, "BTLNBR", dataset.KindInt, required, i(1), i(2), i(1))
	addColumn(t, ds, "LATITUDE", dataset.KindFloat, required, f(-10.5), f(-10.5), f(-11))
	addColumn(t, ds, "LONGITUDE", dataset.KindFloat, required, f(20.25), f(20.25), f(21))
	addColumn(t, ds, "DATE", dataset.KindInt, required, i(20190406), i(20190406), i(20190407))
	addColumn(t, ds, "SALNTY", dataset.KindFloat, param, f(10), f(34.5), f(34.1))
	addColumn(t, ds, "SALNTY_FLAG_W", dataset.KindInt, flag, i(3), i(2), i(2))
	addColumn(t, ds, "OXYGEN", dataset.KindFloat, param, f(210.1), f(211.2), f(212.3))
	addColumn(t, ds, "OXYGEN_FLAG_W", dataset.KindInt, flag, i(2), i(2), i(2))
	return ds
}

func set(t *testing.T, ds *dataset.Dataset, id, col string, v dataset.Value) {
	t.Helper()
	require.NoError(t, ds.Table.Set(id, col, v))
}

func get(t *testing.T, ds *dataset.Dataset, id, col string) dataset.Value {
	t.Helper()
	v, ok := ds.Table.Get(id, col)
	require.True(t, ok, "missing cell %s/%s", id, col)
	return v
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	return New(cfg)
}

func TestCompare_FlagResetOnValueChange(t *testing.T) {
	existing := cruise(t)
	candidate := existing.Clone()
	set(t, candidate, "r1", "SALNTY", dataset.Float(12))

	e := newEngine(t, Config{})
	d, err := e.Compare(context.Background(), existing, candidate)
	require.NoError(t, err)

	require.Len(t, d.ValueDiffs, 2)
	assert.Equal(t, "SALNTY", d.ValueDiffs[0].Column)
	assert.False(t, d.ValueDiffs[0].FlagReset)
	assert.Equal(t, ValueDiff{
		ID: "r1", Column: "SALNTY_FLAG_W",
		Old: dataset.Int(3), New: dataset.Int(catalog.FlagUnset), FlagReset: true,
	}, d.ValueDiffs[1])
	assert.Equal(t, int64(catalog.FlagUnset), get(t, candidate, "r1", "SALNTY_FLAG_W").Int)
	assert.True(t, d.Modified)
	assert.Equal(t, 1, d.FlagResets())
	assert.Equal(t, StateAwaitingSelection, e.State())

	m, err := e.Apply(context.Background(), AcceptAll())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Applied.Values)
	assert.Equal(t, 12.0, get(t, existing, "r1", "SALNTY").Float)
	assert.Equal(t, int64(catalog.FlagUnset), get(t, existing, "r1", "SALNTY_FLAG_W").Int)
	assert.Equal(t, StateIdle, e.State())

	last := existing.Moves[len(existing.Moves)-1]
	assert.Equal(t, dataset.ActionUpdValues, last.Action)
	assert.Equal(t, "Updated values: 2", last.Description)
}

func TestCompare_FlagReset(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(t *testing.T, cand *dataset.Dataset)
		want    []ValueDiff
		wantNew int64
	}{
		{
			name: "existing flag already unset",
			edit: func(t *testing.T, cand *dataset.Dataset) {
				set(t, cand, "r2", "SALNTY", dataset.Float(35))
			},
			want: []ValueDiff{
				{ID: "r2", Column: "SALNTY", Old: dataset.Float(34.5), New: dataset.Float(35)},
			},
			wantNew: 2,
		},
		{
			name: "candidate flag changed too",
			edit: func(t *testing.T, cand *dataset.Dataset) {
				set(t, cand, "r2", "SALNTY", dataset.Float(35))
				set(t, cand, "r2", "SALNTY_FLAG_W", dataset.Int(4))
			},
			want: []ValueDiff{
				{ID: "r2", Column: "SALNTY", Old: dataset.Float(34.5), New: dataset.Float(35)},
			},
			wantNew: 2,
		},
		{
			name: "null candidate value keeps its flag",
			edit: func(t *testing.T, cand *dataset.Dataset) {
				set(t, cand, "r1", "SALNTY", dataset.Null())
				set(t, cand, "r1", "SALNTY_FLAG_W", dataset.Int(catalog.FlagMissing))
			},
			want: []ValueDiff{
				{ID: "r1", Column: "SALNTY", Old: dataset.Float(10), New: dataset.Value{Kind: dataset.KindFloat}},
				{ID: "r1", Column: "SALNTY_FLAG_W", Old: dataset.Int(3), New: dataset.Int(catalog.FlagMissing)},
			},
			wantNew: catalog.FlagMissing,
		},
		{
			name: "flag only change",
			edit: func(t *testing.T, cand *dataset.Dataset) {
				set(t, cand, "r3", "OXYGEN_FLAG_W", dataset.Int(4))
			},
			want: []ValueDiff{
				{ID: "r3", Column: "OXYGEN_FLAG_W", Old: dataset.Int(2), New: dataset.Int(4)},
			},
			wantNew: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := cruise(t)
			candidate := existing.Clone()
			tt.edit(t, candidate)

			d, err := newEngine(t, Config{}).Compare(context.Background(), existing, candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.ValueDiffs)
			if tt.wantNew >= 0 {
				id, col := tt.want[0].ID, catalog.FlagName(tt.want[0].Column)
				assert.Equal(t, tt.wantNew, get(t, candidate, id, col).Int)
			}
		})
	}
}

func TestCompare_FloatTolerance(t *testing.T) {
	tests := []struct {
		name     string
		old, new dataset.Value
		diff     bool
	}{
		{"identical", dataset.Float(1), dataset.Float(1), false},
		{"one ulp at one", dataset.Float(1), dataset.Float(math.Nextafter(1, 2)), false},
		{"two ulps at one", dataset.Float(1), dataset.Float(1 + 2*dataset.Epsilon), true},
		{"relative at large magnitude", dataset.Float(1000), dataset.Float(math.Nextafter(1000, 2000)), false},
		{"clearly different", dataset.Float(34.5), dataset.Float(34.6), true},
		{"both null", dataset.Null(), dataset.Null(), false},
		{"NaN against NaN", dataset.Float(math.NaN()), dataset.Float(math.NaN()), false},
		{"NaN against number", dataset.Float(math.NaN()), dataset.Float(1), true},
		{"number against NaN", dataset.Float(1), dataset.Float(math.NaN()), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := cruise(t)
			set(t, existing, "r3", "OXYGEN", tt.old)
			candidate := existing.Clone()
			set(t, candidate, "r3", "OXYGEN", tt.new)

			d, err := newEngine(t, Config{}).Compare(context.Background(), existing, candidate)
			require.NoError(t, err)

			var got bool
			for _, v := range d.ValueDiffs {
				if v.Column == "OXYGEN" {
					got = true
				}
			}
			assert.Equal(t, tt.diff, got)
			assert.Equal(t, tt.diff, d.Modified)
		})
	}
}

func TestCompare_Structure(t *testing.T) {
	existing := cruise(t)
	candidate := existing.Clone()
	candidate.DropColumn("OXYGEN")
	candidate.DropColumn("OXYGEN_FLAG_W")
	addColumn(t, candidate, "NITRAT", dataset.KindFloat, param, dataset.Float(1.5), dataset.Float(1.6), dataset.Float(1.7))
	addColumn(t, candidate, "NITRAT_FLAG_W", dataset.KindInt, flag, dataset.Int(2), dataset.Int(3), dataset.Int(2))
	require.True(t, candidate.Table.DropRow("r2"))
	require.NoError(t, candidate.Table.AppendRow("r4"))
	for col, v := range map[string]dataset.Value{
		"STNNBR": dataset.Int(3), "CASTNO": dataset.Int(1), "BTLNBR": dataset.Int(1),
		"LATITUDE": dataset.Float(-12), "LONGITUDE": dataset.Float(22), "DATE": dataset.Int(20190408),
		"SALNTY": dataset.Float(33.9), "SALNTY_FLAG_W": dataset.Int(2),
		"NITRAT": dataset.Float(1.8), "NITRAT_FLAG_W": dataset.Int(2),
	} {
		set(t, candidate, "r4", col, v)
	}

	// computed columns are never compared
	addColumn(t, existing, "DOUBLE", dataset.KindFloat, []catalog.Role{catalog.RoleComputed}, dataset.Float(1))

	d, err := newEngine(t, Config{}).Compare(context.Background(), existing, candidate)
	require.NoError(t, err)

	assert.Equal(t, []string{"NITRAT", "NITRAT_FLAG_W"}, d.AddedColumns)
	assert.Equal(t, []string{"OXYGEN", "OXYGEN_FLAG_W"}, d.RemovedColumns)
	assert.Equal(t, []string{"r4"}, d.AddedRows)
	assert.Equal(t, []string{"r2"}, d.RemovedRows)
	assert.Empty(t, d.ValueDiffs)
	assert.True(t, d.Modified)
}

func TestCompare_Conflict(t *testing.T) {
	existing := cruise(t)
	e := newEngine(t, Config{})

	first, err := e.Compare(context.Background(), existing, existing.Clone())
	require.NoError(t, err)
	assert.False(t, first.Modified)

	_, err = e.Compare(context.Background(), existing, existing.Clone())
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, StateAwaitingSelection, conflict.State)
	assert.Equal(t, first.ID, conflict.PendingID)

	pending, ok := e.Pending()
	require.True(t, ok)
	assert.Same(t, first, pending)

	e.Discard()
	e.Discard()
	assert.Equal(t, StateIdle, e.State())
	_, ok = e.Pending()
	assert.False(t, ok)

	_, err = e.Compare(context.Background(), existing, existing.Clone())
	assert.NoError(t, err)
}

func TestCompare_Canceled(t *testing.T) {
	existing := cruise(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(t, Config{})
	_, err := e.Compare(ctx, existing, existing.Clone())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateIdle, e.State())
}

func TestApply_NoPendingComparison(t *testing.T) {
	_, err := newEngine(t, Config{}).Apply(context.Background(), AcceptAll())
	assert.ErrorIs(t, err, ErrNoPendingComparison)
}

func TestApply_EmptySelectionLeavesDatasetUntouched(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
	}{
		{"nothing accepted", AcceptNone()},
		{"unchanged row", Selection{Values: []ValueChoice{{ID: "r2", Param: "SALNTY", AcceptParam: true, AcceptFlag: true}}}},
		{"added row", Selection{Values: []ValueChoice{{ID: "r9", Param: "SALNTY", AcceptParam: true}}}},
		{"unknown parameter", Selection{Values: []ValueChoice{{ID: "r1", Param: "NOPE", AcceptParam: true, AcceptFlag: true}}}},
		{"unchanged parameter", Selection{Values: []ValueChoice{{ID: "r1", Param: "OXYGEN", AcceptParam: true}}}},
		{"unchecked choice", Selection{Values: []ValueChoice{{ID: "r1", Param: "SALNTY"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := cruise(t)
			before := existing.Table.Records()
			candidate := existing.Clone()
			set(t, candidate, "r1", "SALNTY", dataset.Float(12))
			require.NoError(t, candidate.Table.AppendRow("r9"))

			commits := 0
			e := newEngine(t, Config{Commit: func(*dataset.Dataset) error { commits++; return nil }})
			d, err := e.Compare(context.Background(), existing, candidate)
			require.NoError(t, err)
			assert.True(t, d.Modified)

			m, err := e.Apply(context.Background(), tt.sel)
			require.NoError(t, err)
			assert.True(t, m.Applied.Empty())
			assert.False(t, m.Superseded)
			assert.Equal(t, before, existing.Table.Records())
			assert.Empty(t, existing.Moves)
			assert.Zero(t, commits)
			assert.Equal(t, StateIdle, e.State())
		})
	}
}

func TestApply_Structure(t *testing.T) {
	existing := cruise(t)
	candidate := existing.Clone()
	candidate.DropColumn("OXYGEN")
	candidate.DropColumn("OXYGEN_FLAG_W")
	addColumn(t, candidate, "NITRAT", dataset.KindFloat, param, dataset.Float(1.5), dataset.Float(-999), dataset.Float(1.7))
	require.True(t, candidate.Table.DropRow("r3"))
	require.NoError(t, candidate.Table.AppendRow("r4"))
	set(t, candidate, "r4", "STNNBR", dataset.Int(3))
	set(t, candidate, "r4", "SALNTY", dataset.Float(33.9))

	e := newEngine(t, Config{})
	_, err := e.Compare(context.Background(), existing, candidate)
	require.NoError(t, err)

	t.Run("rows only", func(t *testing.T) {
		existing := existing.Clone()
		e := newEngine(t, Config{})
		_, err := e.Compare(context.Background(), existing, candidate.Clone())
		require.NoError(t, err)

		m, err := e.Apply(context.Background(), Selection{AddRows: true, RemoveRows: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"r4"}, m.Applied.AddedRows)
		assert.Equal(t, []string{"r3"}, m.Applied.RemovedRows)
		assert.Equal(t, []string{"r1", "r2", "r4"}, existing.Table.IDs())

		assert.Equal(t, 33.9, get(t, existing, "r4", "SALNTY").Float)
		assert.Equal(t, int64(catalog.FlagMissing), get(t, existing, "r4", "OXYGEN_FLAG_W").Int,
			"flag absent from the candidate defaults to missing")
		assert.True(t, get(t, existing, "r4", "OXYGEN").IsNull())
		assert.False(t, existing.Table.HasColumn("NITRAT"))

		actions := []string{}
		for _, mv := range existing.Moves {
			actions = append(actions, mv.Action)
		}
		assert.Equal(t, []string{dataset.ActionAddRows, dataset.ActionDelRows}, actions)
	})

	t.Run("everything", func(t *testing.T) {
		m, err := e.Apply(context.Background(), AcceptAll())
		require.NoError(t, err)
		assert.Equal(t, []string{"NITRAT"}, m.Applied.AddedColumns)
		assert.ElementsMatch(t, []string{"OXYGEN", "OXYGEN_FLAG_W"}, m.Applied.RemovedColumns)

		assert.False(t, existing.Catalog.Has("OXYGEN"))
		assert.False(t, existing.Catalog.Has("OXYGEN_FLAG_W"))
		assert.True(t, existing.Catalog.HasRole("NITRAT", catalog.RoleParam))
		assert.True(t, get(t, existing, "r2", "NITRAT").IsNull(), "sentinels are normalized")

		flagCol := catalog.FlagName("NITRAT")
		require.True(t, existing.Catalog.HasRole(flagCol, catalog.RoleFlag), "missing flag column is created")
		assert.Equal(t, int64(catalog.FlagMissing), get(t, existing, "r2", flagCol).Int)
		assert.Equal(t, int64(catalog.FlagUnset), get(t, existing, "r1", flagCol).Int)
	})
}

func TestApply_GranularValues(t *testing.T) {
	existing := cruise(t)
	candidate := existing.Clone()
	set(t, candidate, "r1", "SALNTY", dataset.Float(12))
	set(t, candidate, "r3", "OXYGEN", dataset.Float(300))

	e := newEngine(t, Config{})
	_, err := e.Compare(context.Background(), existing, candidate)
	require.NoError(t, err)

	m, err := e.Apply(context.Background(), Selection{Values: []ValueChoice{
		{ID: "r1", Param: "SALNTY", AcceptParam: true},
		{ID: "r3", Param: "OXYGEN", AcceptFlag: true},
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Applied.Values)
	assert.Equal(t, 12.0, get(t, existing, "r1", "SALNTY").Float)
	assert.Equal(t, int64(3), get(t, existing, "r1", "SALNTY_FLAG_W").Int, "flag reset was not accepted")
	assert.Equal(t, 212.3, get(t, existing, "r3", "OXYGEN").Float)
}

func TestByParameter(t *testing.T) {
	existing := cruise(t)
	candidate := existing.Clone()
	set(t, candidate, "r1", "SALNTY", dataset.Float(12))
	set(t, candidate, "r3", "SALNTY_FLAG_W", dataset.Int(4))
	set(t, candidate, "r2", "OXYGEN", dataset.Float(200))

	d, err := newEngine(t, Config{}).Compare(context.Background(), existing, candidate)
	require.NoError(t, err)

	assert.Equal(t, []string{"OXYGEN", "SALNTY"}, d.Parameters())
	groups := d.ByParameter()

	require.Len(t, groups["SALNTY"]["1"], 1)
	assert.Equal(t, ParamChange{
		HashID: "r1", Castno: "1", Btlnbr: "1", Latitude: "-10.5", Longitude: "20.25",
		OldParam: "10", NewParam: "12", OldFlag: "3", NewFlag: "2",
		Changed: ChangedBoth,
	}, groups["SALNTY"]["1"][0])

	require.Len(t, groups["SALNTY"]["2"], 1)
	assert.Equal(t, ChangedFlag, groups["SALNTY"]["2"][0].Changed)

	require.Len(t, groups["OXYGEN"]["1"], 1)
	assert.Equal(t, ChangedParam, groups["OXYGEN"]["1"][0].Changed)
	assert.Equal(t, "r2", groups["OXYGEN"]["1"][0].HashID)

	groups["SALNTY"]["1"][0].NewParam = "changed"
	assert.Equal(t, "12", d.ByParameter()["SALNTY"]["1"][0].NewParam)
}

func newComputed(t *testing.T, ds *dataset.Dataset, views *fakeViews, names ...string) *computed.Engine {
	t.Helper()
	p := 2
	ce, err := computed.NewEngine(computed.Config{
		Definitions: []computed.Definition{
			{Name: "OXY2", Equation: "OXYGEN * 2", Precision: &p},
			{Name: "SAL2", Equation: "SALNTY * 2", Precision: &p},
		},
		Views:  views,
		Logger: testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	for _, name := range names {
		r := ce.Add(context.Background(), ds, name, false)
		require.True(t, r.Success, r.Reason)
	}
	return ce
}

func TestApply_RecomputesAndPrunes(t *testing.T) {
	existing := cruise(t)
	views := &fakeViews{plotted: []string{"OXYGEN", "OXY2", "SALNTY"}}
	ce := newComputed(t, existing, views, "OXY2", "SAL2")

	candidate := existing.Clone()
	candidate.DropColumn("OXYGEN")
	candidate.DropColumn("OXYGEN_FLAG_W")
	set(t, candidate, "r2", "SALNTY", dataset.Float(35))

	e := newEngine(t, Config{Computed: ce, Views: views})
	d, err := e.Compare(context.Background(), existing, candidate)
	require.NoError(t, err)
	assert.Equal(t, []string{"OXYGEN"}, d.RemovedPlotted)
	assert.Equal(t, []string{"OXY2"}, d.StaleComputed)

	m, err := e.Apply(context.Background(), AcceptAll())
	require.NoError(t, err)

	assert.Equal(t, []string{"OXY2"}, m.Report.StaleNames())
	assert.Equal(t, []string{"SAL2"}, m.Report.Recomputed)
	assert.Equal(t, computed.StateStale, ce.State("OXY2"))
	assert.False(t, existing.Table.HasColumn("OXY2"))
	assert.Equal(t, 70.0, get(t, existing, "r2", "SAL2").Float)

	assert.Equal(t, []string{"OXYGEN", "OXY2"}, m.Pruned)
	assert.Equal(t, [][]string{{"OXYGEN", "OXY2"}}, views.removed)
}

func TestApply_PruneFailureIsNotFatal(t *testing.T) {
	existing := cruise(t)
	views := &fakeViews{plotted: []string{"OXYGEN"}, err: errors.New("disk full")}
	candidate := existing.Clone()
	candidate.DropColumn("OXYGEN")

	e := newEngine(t, Config{Views: views})
	_, err := e.Compare(context.Background(), existing, candidate)
	require.NoError(t, err)

	m, err := e.Apply(context.Background(), AcceptAll())
	require.NoError(t, err)
	assert.Empty(t, m.Pruned)
	assert.False(t, existing.Table.HasColumn("OXYGEN"))
}

func TestApply_CommitFailureRollsBack(t *testing.T) {
	existing := cruise(t)
	ce := newComputed(t, existing, nil, "OXY2")
	before := existing.Table.Records()

	candidate := existing.Clone()
	candidate.DropColumn("OXYGEN")
	candidate.DropColumn("OXYGEN_FLAG_W")
	set(t, candidate, "r1", "SALNTY", dataset.Float(12))

	var staged *dataset.Dataset
	e := newEngine(t, Config{Computed: ce, Commit: func(ds *dataset.Dataset) error {
		staged = ds
		return errors.New("disk full")
	}})
	_, err := e.Compare(context.Background(), existing, candidate)
	require.NoError(t, err)

	_, err = e.Apply(context.Background(), AcceptAll())
	require.ErrorContains(t, err, "disk full")

	require.NotNil(t, staged)
	assert.False(t, staged.Table.HasColumn("OXYGEN"))
	assert.Equal(t, before, existing.Table.Records())
	assert.Equal(t, computed.StateComputed, ce.State("OXY2"), "computed states are restored")
	assert.Equal(t, StateAwaitingSelection, e.State(), "comparison stays pending")

	e.SetCommit(nil)
	_, err = e.Apply(context.Background(), AcceptAll())
	require.NoError(t, err)
	assert.False(t, existing.Table.HasColumn("OXYGEN"))
}

func TestApply_ComputedNameCollision(t *testing.T) {
	existing := cruise(t)
	ce := newComputed(t, existing, nil, "SAL2")
	candidate := existing.Clone()
	candidate.DropColumn("SAL2")
	addColumn(t, candidate, "SAL2", dataset.KindFloat, param, dataset.Float(1), dataset.Float(2), dataset.Float(3))

	e := newEngine(t, Config{Computed: ce})
	d, err := e.Compare(context.Background(), existing, candidate)
	require.NoError(t, err)
	require.Equal(t, []string{"SAL2"}, d.AddedColumns)

	_, err = e.Apply(context.Background(), Selection{AddColumns: true})
	var dup *catalog.DuplicateColumnError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "SAL2", dup.Name)
	assert.Equal(t, StateAwaitingSelection, e.State())
}
