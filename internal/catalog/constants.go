package catalog

import "strings"

// FlagSuffix is appended to a parameter name to form its WOCE flag column name.
const FlagSuffix = "_FLAG_W"

// Flag sentinels and the valid flag range.
const (
	FlagUnset   = 2 // default QC value, "needs (re)qualification"
	FlagMissing = 9 // measurement not available
	FlagMin     = 0
	FlagMax     = 9
)

// ScratchColumn is the reserved name for throwaway evaluation results.
const ScratchColumn = "AUX"

// RequiredColumns must be present after normalization and synthesis.
var RequiredColumns = []string{"STNNBR", "CASTNO", "BTLNBR", "LATITUDE", "LONGITUDE", "DATE"}

// IdentityColumns form the row identity tuple, in hashing order.
var IdentityColumns = []string{"STNNBR", "CASTNO", "BTLNBR", "LATITUDE", "LONGITUDE"}

// OptionalRequired columns are classified as required when present but are not mandatory.
var OptionalRequired = []string{"EXPOCODE"}

// NonQCParams are parameters that never receive a QC flag.
var NonQCParams = []string{
	"CTDPRS", "DEPTH", "SECT", "SECT_ID", "TIME", "PH_TMP",
	"DAY", "MONTH", "YEAR", "HOUR", "MINUTE",
}

// BasicParams are created empty when missing so computed parameters can rely on them.
var BasicParams = []string{
	"CTDSAL", "SALNTY", "CTDOXY", "OXYGEN", "NITRAT", "PHSPHT",
	"NITRIT", "NO2_NO3", "CTDPRS", "DEPTH", "CTDTMP", "SAMPNO",
}

// FlagName returns the flag column name paired with param.
func FlagName(param string) string {
	return param + FlagSuffix
}

// IsFlagName reports whether name looks like a flag column.
func IsFlagName(name string) bool {
	return strings.HasSuffix(name, FlagSuffix) && len(name) > len(FlagSuffix)
}

// ParamName returns the parameter a flag column belongs to.
func ParamName(flag string) string {
	return strings.TrimSuffix(flag, FlagSuffix)
}

// ValidFlag reports whether v is inside the WOCE flag range.
func ValidFlag(v int64) bool {
	return v >= FlagMin && v <= FlagMax
}
