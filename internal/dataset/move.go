package dataset

import (
	"time"
)

// Audit log actions.
const (
	ActionQCUpdate      = "QC Update"
	ActionAddColumns    = "[ADD] Columns"
	ActionDelColumns    = "[DEL] Columns"
	ActionAddRows       = "[ADD] Rows"
	ActionDelRows       = "[DEL] Rows"
	ActionUpdValues     = "[UPD] Values"
	ActionAddComputed   = "[ADD] Computed parameter"
	ActionDelComputed   = "[DEL] Computed parameter"
	ActionAddFlagColumn = "[ADD] Flag column"
)

// MoveDateLayout is the timestamp format of audit log entries.
const MoveDateLayout = "2006-01-02 15:04:05"

// MovesHeader is the column layout of the exported audit log.
var MovesHeader = []string{
	"date", "action", "stnnbr", "castno", "btlnbr",
	"latitude", "longitude", "param", "value", "description",
}

// Move is one entry of the append-only audit log.
type Move struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Action      string    `json:"action"`
	Station     string    `json:"stnnbr,omitempty"`
	Cast        string    `json:"castno,omitempty"`
	Bottle      string    `json:"btlnbr,omitempty"`
	Latitude    string    `json:"latitude,omitempty"`
	Longitude   string    `json:"longitude,omitempty"`
	Param       string    `json:"param,omitempty"`
	Value       string    `json:"value,omitempty"`
	Description string    `json:"description"`
}

// Record renders the entry in MovesHeader order.
func (m Move) Record() []string {
	return []string{
		m.Date.Format(MoveDateLayout), m.Action,
		m.Station, m.Cast, m.Bottle, m.Latitude, m.Longitude,
		m.Param, m.Value, m.Description,
	}
}

// Identity is the physical identity of a row.
type Identity struct {
	Station   string
	Cast      string
	Bottle    string
	Latitude  string
	Longitude string
}

// Fields returns the identity in hashing order.
func (id Identity) Fields() []string {
	return []string{id.Station, id.Cast, id.Bottle, id.Latitude, id.Longitude}
}
