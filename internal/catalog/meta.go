package catalog

// ColumnMeta describes a single dataset column.
type ColumnMeta struct {
	ExternalName string   `json:"external_name"`
	Roles        []Role   `json:"attrs"`
	Unit         string   `json:"unit"`
	Precision    *int     `json:"precision"`
	DataType     DataType `json:"data_type"`
	Export       bool     `json:"export"`
}

// Precision is a helper to build the optional precision field.
func Precision(n int) *int {
	return &n
}

// HasRole reports whether the column holds role r.
func (m *ColumnMeta) HasRole(r Role) bool {
	for _, have := range m.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the column holds at least one of roles.
func (m *ColumnMeta) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if m.HasRole(r) {
			return true
		}
	}
	return false
}

// PrecisionOr returns the precision or def when not applicable.
func (m *ColumnMeta) PrecisionOr(def int) int {
	if m.Precision == nil {
		return def
	}
	return *m.Precision
}

func (m *ColumnMeta) clone() *ColumnMeta {
	c := *m
	c.Roles = append([]Role(nil), m.Roles...)
	if m.Precision != nil {
		p := *m.Precision
		c.Precision = &p
	}
	return &c
}
