// Package dataset holds the live tabular cruise data: a table keyed by row identity,
// the column catalog that describes it, and the append-only audit log of changes.
package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/cruiseqc/internal/catalog"
)

// Sentinel errors for row and column operations.
var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrUnknownRow    = errors.New("unknown row")
	ErrNotFlagColumn = errors.New("not a flag column")
	ErrInvalidFlag   = errors.New("invalid flag value")
)

// Format is the dialect a dataset was loaded from.
type Format string

// Source formats.
const (
	FormatWHP Format = "whp"
	FormatCSV Format = "csv"
)

// Source records where a dataset came from, for export round-tripping.
type Source struct {
	Path      string   `json:"path"`
	Format    Format   `json:"format"`
	FirstLine string   `json:"first_line"`
	Metadata  []string `json:"metadata"`
}

// Dataset is a table, its catalog and its audit log.
type Dataset struct {
	Table   *Table
	Catalog *catalog.Catalog
	Moves   []Move
	Source  Source

	clock func() time.Time
}

// New binds a table and a catalog into a dataset.
func New(t *Table, c *catalog.Catalog) *Dataset {
	c.Bind(t)
	return &Dataset{Table: t, Catalog: c, clock: time.Now}
}

// SetClock overrides the time source used for audit entries.
func (d *Dataset) SetClock(clock func() time.Time) {
	d.clock = clock
}

// Now returns the current time from the dataset clock.
func (d *Dataset) Now() time.Time {
	if d.clock == nil {
		return time.Now()
	}
	return d.clock()
}

// Clone returns a deep copy that can be mutated without affecting d.
func (d *Dataset) Clone() *Dataset {
	t := d.Table.Clone()
	out := &Dataset{
		Table:   t,
		Catalog: d.Catalog.Clone(t),
		Moves:   append([]Move(nil), d.Moves...),
		Source:  d.Source,
		clock:   d.clock,
	}
	out.Source.Metadata = append([]string(nil), d.Source.Metadata...)
	return out
}

// ColumnsByRole delegates to the catalog, ordered by table position.
func (d *Dataset) ColumnsByRole(discardAllNull bool, roles ...catalog.Role) []string {
	return d.Catalog.ColumnsByRole(discardAllNull, roles...)
}

// AddColumn registers col in both the catalog and the table.
func (d *Dataset) AddColumn(col *Column, meta catalog.ColumnMeta) error {
	if err := d.Catalog.AddColumn(col.Name, meta); err != nil {
		return err
	}
	if err := d.Table.AddColumn(col); err != nil {
		d.Catalog.Remove(col.Name)
		return err
	}
	return nil
}

// DropColumn removes a column from both the table and the catalog.
func (d *Dataset) DropColumn(name string) {
	d.Table.DropColumn(name)
	d.Catalog.Remove(name)
}

// EnsureFlagColumn creates the flag column for param, filled with FlagUnset, when a
// QC-able parameter has none. It reports whether a column was created.
func (d *Dataset) EnsureFlagColumn(param string) (bool, error) {
	if !d.Catalog.NeedsFlag(param) {
		return false, nil
	}
	flag := catalog.FlagName(param)
	if d.Table.HasColumn(flag) {
		// Column present but never classified.
		if !d.Catalog.Has(flag) {
			return true, d.Catalog.AddColumn(flag, flagMeta(flag, false))
		}
		return false, d.Catalog.AddRoles(flag, catalog.RoleFlag)
	}
	col := NewFilledColumn(flag, KindInt, d.Table.Len(), Int(catalog.FlagUnset))
	if err := d.AddColumn(col, flagMeta(flag, true)); err != nil {
		return false, err
	}
	d.AppendMove(Move{
		Action:      ActionAddFlagColumn,
		Param:       flag,
		Value:       fmt.Sprint(catalog.FlagUnset),
		Description: fmt.Sprintf("%s flag column was created with value %d", flag, catalog.FlagUnset),
	})
	return true, nil
}

// EnsureFlagColumns runs EnsureFlagColumn for every parameter and returns the created flags.
func (d *Dataset) EnsureFlagColumns() ([]string, error) {
	var created []string
	for _, p := range d.ColumnsByRole(false, catalog.RoleParam) {
		ok, err := d.EnsureFlagColumn(p)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, catalog.FlagName(p))
		}
	}
	return created, nil
}

func flagMeta(name string, created bool) catalog.ColumnMeta {
	roles := []catalog.Role{catalog.RoleFlag}
	if created {
		roles = append(roles, catalog.RoleCreated)
	}
	return catalog.ColumnMeta{
		ExternalName: name,
		Roles:        roles,
		Precision:    catalog.Precision(0),
		DataType:     catalog.TypeInteger,
		Export:       true,
	}
}

// UpdateFlagValue sets column to value for every row in ids and appends one audit
// entry per row. Either every row is updated or none is.
func (d *Dataset) UpdateFlagValue(column string, value int64, ids []string) error {
	if !d.Catalog.HasRole(column, catalog.RoleFlag) {
		return fmt.Errorf("%w: %s", ErrNotFlagColumn, column)
	}
	if !catalog.ValidFlag(value) {
		return fmt.Errorf("%w: %d", ErrInvalidFlag, value)
	}
	var missing []string
	for _, id := range ids {
		if !d.Table.HasRow(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRow, strings.Join(missing, ", "))
	}
	for _, id := range ids {
		if err := d.Table.Set(id, column, Int(value)); err != nil {
			return err
		}
		ident := d.Identity(id)
		desc := fmt.Sprintf(
			"%s flag was updated to %d, in [station %s, cast number %s, bottle %s, latitude %s, longitude %s]",
			column, value, ident.Station, ident.Cast, ident.Bottle, ident.Latitude, ident.Longitude,
		)
		d.AppendMove(Move{
			Action:      ActionQCUpdate,
			Station:     ident.Station,
			Cast:        ident.Cast,
			Bottle:      ident.Bottle,
			Latitude:    ident.Latitude,
			Longitude:   ident.Longitude,
			Param:       column,
			Value:       fmt.Sprint(value),
			Description: desc,
		})
	}
	return nil
}

// Identity returns the identity tuple of row id as canonical strings.
func (d *Dataset) Identity(id string) Identity {
	get := func(col string) string {
		v, _ := d.Table.Get(id, col)
		return v.String()
	}
	return Identity{
		Station:   get("STNNBR"),
		Cast:      get("CASTNO"),
		Bottle:    get("BTLNBR"),
		Latitude:  get("LATITUDE"),
		Longitude: get("LONGITUDE"),
	}
}

// AppendMove timestamps m, assigns it an id and appends it to the audit log.
func (d *Dataset) AppendMove(m Move) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Date.IsZero() {
		m.Date = d.Now()
	}
	d.Moves = append(d.Moves, m)
}

// NormalizeSentinels turns -999 style placeholders into nulls and returns how many
// cells changed.
func (d *Dataset) NormalizeSentinels() int {
	changed := 0
	for _, name := range d.Table.ColumnNames() {
		col, _ := d.Table.Column(name)
		for i := 0; i < col.Len(); i++ {
			v := col.Get(i)
			if !v.Valid {
				continue
			}
			if isSentinelValue(v) {
				col.Set(i, Null())
				changed++
			}
		}
	}
	return changed
}

func isSentinelValue(v Value) bool {
	switch v.Kind {
	case KindInt:
		return v.Int == -999 || v.Int == -9999
	case KindFloat:
		return v.Float == -999 || v.Float == -9999
	default:
		return IsNullSentinel(v.Str)
	}
}

// RefreshEmptyRoles marks all-null parameters and all-missing flags as empty and
// excludes them from export; columns that gained data lose the role.
func (d *Dataset) RefreshEmptyRoles() {
	missing := Int(catalog.FlagMissing)
	for _, name := range d.ColumnsByRole(false, catalog.RoleParam, catalog.RoleFlag) {
		meta, _ := d.Catalog.Get(name)
		col, ok := d.Table.Column(name)
		if !ok {
			continue
		}
		empty := col.AllNull()
		if meta.HasRole(catalog.RoleFlag) && !empty {
			empty = col.AllEqual(missing)
		}
		switch {
		case empty && !meta.HasRole(catalog.RoleEmpty):
			_ = d.Catalog.AddRoles(name, catalog.RoleEmpty)
			meta.Export = false
		case !empty && meta.HasRole(catalog.RoleEmpty):
			d.Catalog.RemoveRoles(name, catalog.RoleEmpty)
			meta.Export = true
		}
	}
}
