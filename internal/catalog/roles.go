package catalog

import "sort"

// Role classifies what a column is used for. A column may hold several roles.
type Role string

// Column roles.
const (
	RoleRequired Role = "required"
	RoleParam    Role = "param"
	RoleFlag     Role = "flag"
	RoleNonQC    Role = "non_qc"
	RoleComputed Role = "computed"
	RoleBasic    Role = "basic"
	RoleCreated  Role = "created"
	RoleEmpty    Role = "empty"
)

var knownRoles = map[Role]bool{
	RoleRequired: true,
	RoleParam:    true,
	RoleFlag:     true,
	RoleNonQC:    true,
	RoleComputed: true,
	RoleBasic:    true,
	RoleCreated:  true,
	RoleEmpty:    true,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return knownRoles[r]
}

// DataType is the logical type recorded for a column.
type DataType string

// Column data types.
const (
	TypeString  DataType = "string"
	TypeInteger DataType = "integer"
	TypeFloat   DataType = "float"
	TypeDate    DataType = "date"
	TypeTime    DataType = "time"
	TypeNone    DataType = "none"
)

// normalizeRoles deduplicates and sorts roles so that catalogs serialize deterministically.
func normalizeRoles(roles []Role) []Role {
	seen := make(map[Role]bool, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
