package catalog

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLayout struct {
	names   []string
	allNull map[string]bool
}

func (f fakeLayout) ColumnNames() []string    { return f.names }
func (f fakeLayout) AllNull(name string) bool { return f.allNull[name] }

func TestCatalog_AddColumn_Duplicate(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.AddColumn("SALNTY", ColumnMeta{Roles: []Role{RoleParam}}))

	err := c.AddColumn("SALNTY", ColumnMeta{Roles: []Role{RoleFlag}})
	var dup *DuplicateColumnError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "SALNTY", dup.Name)
}

func TestCatalog_AddColumn_Defaults(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.AddColumn("CTDTMP", ColumnMeta{Roles: []Role{RoleParam, RoleParam}}))

	m, ok := c.Get("CTDTMP")
	require.True(t, ok)
	assert.Equal(t, "CTDTMP", m.ExternalName)
	assert.Equal(t, TypeNone, m.DataType)
	assert.Equal(t, []Role{RoleParam}, m.Roles)
}

func TestCatalog_AddColumn_UnknownRole(t *testing.T) {
	c := New(nil)
	err := c.AddColumn("X", ColumnMeta{Roles: []Role{"bogus"}})
	require.Error(t, err)
	assert.False(t, c.Has("X"))
}

func TestCatalog_ColumnsByRole_TableOrder(t *testing.T) {
	layout := fakeLayout{
		names:   []string{"STNNBR", "SALNTY", "OXYGEN", "SALNTY_FLAG_W", "OXYGEN_FLAG_W"},
		allNull: map[string]bool{"OXYGEN": true},
	}
	c := New(layout)
	// Register in a different order than the table.
	require.NoError(t, c.AddColumn("OXYGEN_FLAG_W", ColumnMeta{Roles: []Role{RoleFlag}}))
	require.NoError(t, c.AddColumn("OXYGEN", ColumnMeta{Roles: []Role{RoleParam}}))
	require.NoError(t, c.AddColumn("SALNTY_FLAG_W", ColumnMeta{Roles: []Role{RoleFlag}}))
	require.NoError(t, c.AddColumn("SALNTY", ColumnMeta{Roles: []Role{RoleParam}}))
	require.NoError(t, c.AddColumn("STNNBR", ColumnMeta{Roles: []Role{RoleRequired}}))

	tests := []struct {
		name    string
		discard bool
		roles   []Role
		want    []string
	}{
		{"params", false, []Role{RoleParam}, []string{"SALNTY", "OXYGEN"}},
		{"params without empty", true, []Role{RoleParam}, []string{"SALNTY"}},
		{"union", false, []Role{RoleRequired, RoleFlag}, []string{"STNNBR", "SALNTY_FLAG_W", "OXYGEN_FLAG_W"}},
		{"none", false, []Role{RoleComputed}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ColumnsByRole(tt.discard, tt.roles...))
		})
	}
}

func TestCatalog_NeedsFlag(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.AddColumn("SALNTY", ColumnMeta{Roles: []Role{RoleParam}}))
	require.NoError(t, c.AddColumn("CTDPRS", ColumnMeta{Roles: []Role{RoleParam, RoleNonQC}}))
	require.NoError(t, c.AddColumn("OXYGEN", ColumnMeta{Roles: []Role{RoleParam}}))
	require.NoError(t, c.AddColumn("OXYGEN_FLAG_W", ColumnMeta{Roles: []Role{RoleFlag}}))

	assert.True(t, c.NeedsFlag("SALNTY"))
	assert.False(t, c.NeedsFlag("CTDPRS"))
	assert.False(t, c.NeedsFlag("OXYGEN"))
	assert.False(t, c.NeedsFlag("MISSING"))
}

func TestCatalog_RolesMutation(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.AddColumn("SALNTY", ColumnMeta{Roles: []Role{RoleParam}}))
	require.NoError(t, c.AddRoles("SALNTY", RoleEmpty, RoleBasic))
	assert.True(t, c.HasRole("SALNTY", RoleEmpty))

	c.RemoveRoles("SALNTY", RoleEmpty)
	assert.False(t, c.HasRole("SALNTY", RoleEmpty))
	assert.True(t, c.HasRole("SALNTY", RoleBasic))

	assert.Error(t, c.AddRoles("NOPE", RoleParam))
}

func TestCatalog_JSONRoundTrip(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.AddColumn("SALNTY", ColumnMeta{
		ExternalName: "SALINITY",
		Roles:        []Role{RoleParam},
		Unit:         "PSS-78",
		Precision:    Precision(4),
		DataType:     TypeFloat,
		Export:       true,
	}))
	require.NoError(t, c.AddColumn("SALNTY_FLAG_W", ColumnMeta{
		Roles:    []Role{RoleFlag, RoleCreated},
		DataType: TypeInteger,
		Export:   true,
	}))

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"external_name":"SALINITY"`)
	assert.Contains(t, string(data), `"attrs":["param"]`)

	restored := New(nil)
	require.NoError(t, json.Unmarshal(data, restored))
	m, ok := restored.Get("SALNTY")
	require.True(t, ok)
	assert.Equal(t, 4, m.PrecisionOr(-1))
	assert.Equal(t, "PSS-78", m.Unit)
	flag, ok := restored.Get("SALNTY_FLAG_W")
	require.True(t, ok)
	assert.Nil(t, flag.Precision)
	assert.Equal(t, []Role{RoleCreated, RoleFlag}, flag.Roles)
}

func TestCatalog_CloneIsDeep(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.AddColumn("SALNTY", ColumnMeta{Roles: []Role{RoleParam}, Precision: Precision(3)}))

	cp := c.Clone(nil)
	require.NoError(t, cp.AddRoles("SALNTY", RoleEmpty))
	m, _ := cp.Get("SALNTY")
	*m.Precision = 1

	orig, _ := c.Get("SALNTY")
	assert.False(t, orig.HasRole(RoleEmpty))
	assert.Equal(t, 3, *orig.Precision)
}

func TestFlagNames(t *testing.T) {
	assert.Equal(t, "SALNTY_FLAG_W", FlagName("SALNTY"))
	assert.True(t, IsFlagName("SALNTY_FLAG_W"))
	assert.False(t, IsFlagName("_FLAG_W"))
	assert.Equal(t, "SALNTY", ParamName("SALNTY_FLAG_W"))
	assert.True(t, ValidFlag(0))
	assert.True(t, ValidFlag(9))
	assert.False(t, ValidFlag(10))
	assert.False(t, ValidFlag(-1))
}
