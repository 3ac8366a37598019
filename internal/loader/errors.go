package loader

import (
	"fmt"
	"strconv"
	"strings"
)

// Scope names the in-progress object a caller must discard when a load fails.
type Scope string

// Rollback scopes.
const (
	ScopeFreshLoad Scope = "fresh_load"
	ScopeCandidate Scope = "candidate"
)

// ValidationError is a fatal problem with an input file. No dataset is produced.
type ValidationError struct {
	Scope   Scope
	Columns []string
	Rows    []int
	Msg     string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if len(e.Columns) > 0 {
		fmt.Fprintf(&b, " [columns: %s]", strings.Join(e.Columns, ", "))
	}
	if len(e.Rows) > 0 {
		rows := make([]string, len(e.Rows))
		for i, r := range e.Rows {
			rows[i] = strconv.Itoa(r)
		}
		fmt.Fprintf(&b, " [rows: %s]", strings.Join(rows, ", "))
	}
	return b.String()
}

// Rollback returns the scope the caller should discard.
func (e *ValidationError) Rollback() Scope {
	return e.Scope
}

func (l *Loader) invalid(cols []string, rows []int, format string, args ...any) *ValidationError {
	return &ValidationError{
		Scope:   l.scope,
		Columns: cols,
		Rows:    rows,
		Msg:     fmt.Sprintf(format, args...),
	}
}
