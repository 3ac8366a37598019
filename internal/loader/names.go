package loader

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
)

// Alias maps alternative source names onto a canonical column name.
type Alias struct {
	Canonical string
	Aliases   []string
}

// aliasTable is reproduced exactly for round-trip fidelity.
var aliasTable = []Alias{
	{"EXPOCODE", []string{"CRUISE", "CRUISENO"}},
	{"STNNBR", []string{"STATION"}},
	{"CASTNO", []string{"CAST"}},
	{"BTLNBR", []string{"BOTTLE"}},
	{"CTDPRS", []string{"PRESSURE"}},
	{"CTDTMP", []string{"TEMPERATURE"}},
	{"SALNTY", []string{"SALINITY", "CTDSAL"}},
	{"NITRAT", []string{"NITRATE"}},
	{"NITRIT", []string{"NITRITE"}},
	{"PHSPHT", []string{"PHOSPHATE"}},
	{"SILCAT", []string{"SILICATE"}},
	{"TCARBN", []string{"TCO2", "DIC", "CT"}},
	{"ALKALI", []string{"TALK", "ALK"}},
	{"PH_TOT", []string{"PHTS", "PHTS25", "PHTS25P0", "PH_TOT25P0"}},
	{"PH_SWS", []string{"PHSWS", "PHSWS25", "PHSWS25P0", "PH_SWS25P0"}},
	{"NO2_NO3", []string{"NO2NO3"}},
	{"CFC_11", []string{"CFC11"}},
	{"CFC_12", []string{"CFC12"}},
}

// conditionalAliases only apply when their canonical column is absent.
var conditionalAliases = map[string]bool{"CTDSAL": true}

var canonicalOf = func() map[string]string {
	m := make(map[string]string)
	for _, a := range aliasTable {
		for _, alias := range a.Aliases {
			m[alias] = a.Canonical
		}
	}
	return m
}()

// Aliases returns a copy of the alias table.
func Aliases() []Alias {
	out := make([]Alias, len(aliasTable))
	for i, a := range aliasTable {
		out[i] = Alias{Canonical: a.Canonical, Aliases: append([]string(nil), a.Aliases...)}
	}
	return out
}

var upper = cases.Upper(language.Und)

var sanitizer = strings.NewReplacer("PH_TS", "PH_TOT", "-", "_", "+", "_")

// Sanitize upper-cases name, drops whitespace and replaces - and + with _.
func Sanitize(name string) string {
	name = strings.Join(strings.Fields(name), "")
	return sanitizer.Replace(upper.String(name))
}

// normalizeNames maps raw header names onto canonical column names. The result is
// parallel to raw. A rename that lands on a name already in use is rejected.
func (l *Loader) normalizeNames(raw []string) ([]string, error) {
	names := make([]string, len(raw))
	taken := make(map[string]int, len(raw))
	for i, r := range raw {
		names[i] = Sanitize(r)
		if j, dup := taken[names[i]]; dup {
			return nil, l.invalid([]string{raw[j], r}, nil, "columns %s and %s have the same name", raw[j], r)
		}
		taken[names[i]] = i
	}

	rename := func(i int, target string) error {
		if j, ok := taken[target]; ok && j != i {
			return l.invalid([]string{raw[i], raw[j]}, nil,
				"column %s is an alias of %s, which is also present", raw[i], target)
		}
		delete(taken, names[i])
		names[i] = target
		taken[target] = i
		return nil
	}

	for i, name := range names {
		base, suffix := name, ""
		if catalog.IsFlagName(name) {
			base, suffix = catalog.ParamName(name), catalog.FlagSuffix
		}
		canonical, ok := canonicalOf[base]
		if !ok || conditionalAliases[base] {
			continue
		}
		if err := rename(i, canonical+suffix); err != nil {
			return nil, err
		}
	}

	// Conditional aliases see the result of the plain renames.
	for base := range conditionalAliases {
		canonical := canonicalOf[base]
		i, ok := taken[base]
		if !ok {
			continue
		}
		if _, present := taken[canonical]; present {
			continue
		}
		if err := rename(i, canonical); err != nil {
			return nil, err
		}
		if fi, ok := taken[catalog.FlagName(base)]; ok {
			if err := rename(fi, catalog.FlagName(canonical)); err != nil {
				return nil, err
			}
		}
	}

	// XF style flags of alias targets.
	for _, a := range aliasTable {
		flag := catalog.FlagName(a.Canonical)
		i, ok := taken[a.Canonical+"F"]
		if !ok {
			continue
		}
		if _, exists := taken[flag]; exists {
			continue
		}
		if err := rename(i, flag); err != nil {
			return nil, err
		}
	}
	return names, nil
}
