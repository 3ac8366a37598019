// Package catalog holds the column metadata registry of a cruise dataset.
//
// The catalog records, for every column, its roles (required, param, flag, ...),
// unit, decimal precision, original header name and export eligibility. Ordering
// queries follow the physical column order of the table the catalog is bound to,
// never the order columns were registered in.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Layout exposes the live column order of the table a catalog describes.
type Layout interface {
	ColumnNames() []string
	AllNull(name string) bool
}

// DuplicateColumnError is returned when a column is registered twice.
type DuplicateColumnError struct {
	Name string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("column %q already exists", e.Name)
}

// Catalog maps column names to their metadata.
type Catalog struct {
	metas  map[string]*ColumnMeta
	layout Layout
}

// New creates an empty catalog bound to layout. layout may be nil, in which case
// ordering falls back to sorted names.
func New(layout Layout) *Catalog {
	return &Catalog{
		metas:  make(map[string]*ColumnMeta),
		layout: layout,
	}
}

// Bind attaches the catalog to a table layout.
func (c *Catalog) Bind(layout Layout) {
	c.layout = layout
}

// AddColumn registers a column. Roles are deduplicated; unknown roles are rejected.
func (c *Catalog) AddColumn(name string, meta ColumnMeta) error {
	if _, exists := c.metas[name]; exists {
		return &DuplicateColumnError{Name: name}
	}
	for _, r := range meta.Roles {
		if !r.Valid() {
			return fmt.Errorf("column %q: unknown role %q", name, r)
		}
	}
	m := meta.clone()
	m.Roles = normalizeRoles(m.Roles)
	if m.ExternalName == "" {
		m.ExternalName = name
	}
	if m.DataType == "" {
		m.DataType = TypeNone
	}
	c.metas[name] = m
	return nil
}

// Remove deletes a column from the catalog. Removing an unknown column is a no-op.
func (c *Catalog) Remove(name string) {
	delete(c.metas, name)
}

// Get returns the metadata for name.
func (c *Catalog) Get(name string) (*ColumnMeta, bool) {
	m, ok := c.metas[name]
	return m, ok
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	_, ok := c.metas[name]
	return ok
}

// HasRole reports whether name is registered with role r.
func (c *Catalog) HasRole(name string, r Role) bool {
	m, ok := c.metas[name]
	return ok && m.HasRole(r)
}

// AddRoles adds roles to an existing column.
func (c *Catalog) AddRoles(name string, roles ...Role) error {
	m, ok := c.metas[name]
	if !ok {
		return fmt.Errorf("column %q is not in the catalog", name)
	}
	m.Roles = normalizeRoles(append(m.Roles, roles...))
	return nil
}

// RemoveRoles strips roles from an existing column.
func (c *Catalog) RemoveRoles(name string, roles ...Role) {
	m, ok := c.metas[name]
	if !ok {
		return
	}
	drop := make(map[Role]bool, len(roles))
	for _, r := range roles {
		drop[r] = true
	}
	kept := m.Roles[:0]
	for _, r := range m.Roles {
		if !drop[r] {
			kept = append(kept, r)
		}
	}
	m.Roles = kept
}

// Len returns the number of registered columns.
func (c *Catalog) Len() int {
	return len(c.metas)
}

// Names returns all registered names in table order.
func (c *Catalog) Names() []string {
	return c.ordered(func(string, *ColumnMeta) bool { return true })
}

// ColumnsByRole returns the columns holding any of roles, ordered by their position
// in the bound table. With discardAllNull, columns whose every value is null are skipped.
func (c *Catalog) ColumnsByRole(discardAllNull bool, roles ...Role) []string {
	return c.ordered(func(name string, m *ColumnMeta) bool {
		if !m.HasAnyRole(roles...) {
			return false
		}
		if discardAllNull && c.layout != nil && c.layout.AllNull(name) {
			return false
		}
		return true
	})
}

// PairedFlag returns the flag column registered for param, if any.
func (c *Catalog) PairedFlag(param string) (string, bool) {
	flag := FlagName(param)
	if c.HasRole(flag, RoleFlag) {
		return flag, true
	}
	return "", false
}

// NeedsFlag reports whether param is a QC-able parameter without a flag column.
func (c *Catalog) NeedsFlag(param string) bool {
	m, ok := c.metas[param]
	if !ok || !m.HasRole(RoleParam) {
		return false
	}
	if m.HasAnyRole(RoleNonQC, RoleFlag, RoleRequired, RoleComputed) {
		return false
	}
	_, paired := c.PairedFlag(param)
	return !paired
}

// Clone returns a deep copy bound to layout.
func (c *Catalog) Clone(layout Layout) *Catalog {
	out := New(layout)
	for name, m := range c.metas {
		out.metas[name] = m.clone()
	}
	return out
}

// MarshalJSON encodes the catalog as an object keyed by column name.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.metas)
}

// UnmarshalJSON decodes a catalog document produced by MarshalJSON.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	var metas map[string]*ColumnMeta
	if err := json.Unmarshal(data, &metas); err != nil {
		return err
	}
	c.metas = make(map[string]*ColumnMeta, len(metas))
	for name, m := range metas {
		if m == nil {
			continue
		}
		m.Roles = normalizeRoles(m.Roles)
		c.metas[name] = m
	}
	return nil
}

func (c *Catalog) ordered(keep func(string, *ColumnMeta) bool) []string {
	var out []string
	if c.layout == nil {
		names := make([]string, 0, len(c.metas))
		for name := range c.metas {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if keep(name, c.metas[name]) {
				out = append(out, name)
			}
		}
		return out
	}
	for _, name := range c.layout.ColumnNames() {
		m, ok := c.metas[name]
		if ok && keep(name, m) {
			out = append(out, name)
		}
	}
	return out
}
