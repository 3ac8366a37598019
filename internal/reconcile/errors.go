package reconcile

import (
	"errors"
	"fmt"
)

// ErrNoPendingComparison is returned by Apply when there is nothing to apply.
var ErrNoPendingComparison = errors.New("no comparison is awaiting a selection")

// ConflictError is returned by Compare while another comparison is in progress
// or awaiting a selection.
type ConflictError struct {
	State     State
	PendingID string
}

func (e *ConflictError) Error() string {
	if e.PendingID == "" {
		return fmt.Sprintf("a comparison is already in progress (%s)", e.State)
	}
	return fmt.Sprintf("comparison %s is %s; apply or discard it first", e.PendingID, e.State)
}
