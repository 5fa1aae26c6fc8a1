package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names the operation an Event records.
type EventKind string

const (
	EventPay               EventKind = "PAY"
	EventPrint             EventKind = "PRINT"
	EventConfigure         EventKind = "CONFIGURE"
	EventTap               EventKind = "TAP"
	EventRedeem            EventKind = "REDEEM"
	EventSetFee            EventKind = "SET_FEE"
	EventCreateProject     EventKind = "CREATE_PROJECT"
	EventTransferOwnership EventKind = "TRANSFER_OWNERSHIP"
	EventAcceptGovernance  EventKind = "ACCEPT_GOVERNANCE"
)

// Event is the structured record emitted for every committed mutation.
// Amounts are decimal strings keyed by role ("amount", "tickets", "fee", ...).
type Event struct {
	ID        string            `json:"id"`
	ProjectID uint64            `json:"project_id"`
	Kind      EventKind         `json:"kind"`
	Amounts   map[string]string `json:"amounts"`
	Actor     Address           `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Note      string            `json:"note,omitempty"`
}

// NewEvent stamps a fresh event id.
func NewEvent(projectID uint64, kind EventKind, actor Address, ts time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Kind:      kind,
		Amounts:   make(map[string]string),
		Actor:     actor,
		Timestamp: ts,
	}
}
