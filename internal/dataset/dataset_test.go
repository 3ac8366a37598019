package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	ids := []string{"r1", "r2"}
	cols := []*Column{
		NewFilledColumn("STNNBR", KindInt, 2, Int(1)),
		NewFilledColumn("CASTNO", KindInt, 2, Int(1)),
		NewColumn("BTLNBR", KindInt, 2),
		NewFilledColumn("LATITUDE", KindFloat, 2, Float(-10.5)),
		NewFilledColumn("LONGITUDE", KindFloat, 2, Float(20.25)),
		NewFloatColumn("SALNTY", []float64{34.5, 35.1}),
	}
	cols[2].Set(0, Int(1))
	cols[2].Set(1, Int(2))
	tbl, err := NewTableFromColumns(ids, cols)
	require.NoError(t, err)

	cat := catalog.New(nil)
	for _, name := range []string{"STNNBR", "CASTNO", "BTLNBR", "LATITUDE", "LONGITUDE"} {
		require.NoError(t, cat.AddColumn(name, catalog.ColumnMeta{Roles: []catalog.Role{catalog.RoleRequired}, Export: true}))
	}
	require.NoError(t, cat.AddColumn("SALNTY", catalog.ColumnMeta{
		Roles: []catalog.Role{catalog.RoleParam}, DataType: catalog.TypeFloat, Precision: catalog.Precision(1), Export: true,
	}))
	ds := New(tbl, cat)
	ds.SetClock(func() time.Time { return fixedNow })
	return ds
}

func TestDataset_EnsureFlagColumn(t *testing.T) {
	ds := newTestDataset(t)

	created, err := ds.EnsureFlagColumn("SALNTY")
	require.NoError(t, err)
	assert.True(t, created)

	meta, ok := ds.Catalog.Get("SALNTY_FLAG_W")
	require.True(t, ok)
	assert.True(t, meta.HasRole(catalog.RoleFlag))
	assert.True(t, meta.HasRole(catalog.RoleCreated))

	col, ok := ds.Table.Column("SALNTY_FLAG_W")
	require.True(t, ok)
	assert.True(t, col.AllEqual(Int(catalog.FlagUnset)))
	require.Len(t, ds.Moves, 1)
	assert.Equal(t, ActionAddFlagColumn, ds.Moves[0].Action)

	created, err = ds.EnsureFlagColumn("SALNTY")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, ds.Moves, 1)
}

func TestDataset_UpdateFlagValue(t *testing.T) {
	ds := newTestDataset(t)
	_, err := ds.EnsureFlagColumn("SALNTY")
	require.NoError(t, err)
	before := len(ds.Moves)

	require.NoError(t, ds.UpdateFlagValue("SALNTY_FLAG_W", 3, []string{"r2"}))

	v, _ := ds.Table.Get("r2", "SALNTY_FLAG_W")
	assert.Equal(t, Int(3), v)
	v, _ = ds.Table.Get("r1", "SALNTY_FLAG_W")
	assert.Equal(t, Int(2), v)

	require.Len(t, ds.Moves, before+1)
	m := ds.Moves[len(ds.Moves)-1]
	assert.Equal(t, ActionQCUpdate, m.Action)
	assert.Equal(t, fixedNow, m.Date)
	assert.Equal(t,
		"SALNTY_FLAG_W flag was updated to 3, in [station 1, cast number 1, bottle 2, latitude -10.5, longitude 20.25]",
		m.Description)
	assert.NotEmpty(t, m.ID)
}

func TestDataset_UpdateFlagValue_Errors(t *testing.T) {
	ds := newTestDataset(t)
	_, err := ds.EnsureFlagColumn("SALNTY")
	require.NoError(t, err)
	before := len(ds.Moves)

	err = ds.UpdateFlagValue("SALNTY", 3, []string{"r1"})
	assert.True(t, errors.Is(err, ErrNotFlagColumn))

	err = ds.UpdateFlagValue("SALNTY_FLAG_W", 12, []string{"r1"})
	assert.True(t, errors.Is(err, ErrInvalidFlag))

	err = ds.UpdateFlagValue("SALNTY_FLAG_W", 4, []string{"r1", "nope"})
	assert.True(t, errors.Is(err, ErrUnknownRow))

	v, _ := ds.Table.Get("r1", "SALNTY_FLAG_W")
	assert.Equal(t, Int(2), v, "partial update must not happen")
	assert.Len(t, ds.Moves, before)
}

func TestDataset_CloneIsolation(t *testing.T) {
	ds := newTestDataset(t)
	cp := ds.Clone()

	require.NoError(t, cp.Table.Set("r1", "SALNTY", Float(1)))
	cp.DropColumn("LONGITUDE")
	require.True(t, cp.Table.DropRow("r2"))

	v, _ := ds.Table.Get("r1", "SALNTY")
	assert.Equal(t, Float(34.5), v)
	assert.True(t, ds.Table.HasColumn("LONGITUDE"))
	assert.True(t, ds.Catalog.Has("LONGITUDE"))
	assert.Equal(t, 2, ds.Table.Len())
	assert.Equal(t, []string{"SALNTY"}, cp.ColumnsByRole(false, catalog.RoleParam))
}

func TestDataset_NormalizeSentinels(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.Table.Set("r1", "SALNTY", Float(-999)))

	assert.Equal(t, 1, ds.NormalizeSentinels())
	v, _ := ds.Table.Get("r1", "SALNTY")
	assert.True(t, v.IsNull())
}

func TestDataset_RefreshEmptyRoles(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.AddColumn(
		NewFilledColumn("OXYGEN_FLAG_W", KindInt, 2, Int(catalog.FlagMissing)),
		catalog.ColumnMeta{Roles: []catalog.Role{catalog.RoleFlag}, Export: true},
	))

	ds.RefreshEmptyRoles()
	meta, _ := ds.Catalog.Get("OXYGEN_FLAG_W")
	assert.True(t, meta.HasRole(catalog.RoleEmpty))
	assert.False(t, meta.Export)

	require.NoError(t, ds.Table.Set("r1", "OXYGEN_FLAG_W", Int(2)))
	ds.RefreshEmptyRoles()
	assert.False(t, meta.HasRole(catalog.RoleEmpty))
	assert.True(t, meta.Export)
}

func TestTable_DropRowReindexes(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.Table.AppendRow("r3"))
	require.True(t, ds.Table.DropRow("r1"))

	i, ok := ds.Table.RowIndex("r3")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	v, _ := ds.Table.Get("r3", "SALNTY")
	assert.True(t, v.IsNull())
	assert.False(t, ds.Table.DropRow("r1"))
}

func TestTableRecordsRoundTrip(t *testing.T) {
	ds := newTestDataset(t)
	recs := ds.Table.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"STNNBR", "CASTNO", "BTLNBR", "LATITUDE", "LONGITUDE", "SALNTY"}, recs[0])
	assert.Equal(t, []string{"1", "1", "2", "-10.5", "20.25", "35.1"}, recs[2])

	tbl, err := TableFromRecords(recs, map[string]Kind{"STNNBR": KindInt, "SALNTY": KindFloat})
	require.NoError(t, err)
	col, _ := tbl.Column("SALNTY")
	assert.Equal(t, KindFloat, col.Kind)
	col, _ = tbl.Column("LATITUDE")
	assert.Equal(t, KindString, col.Kind)
}
