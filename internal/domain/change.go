package domain

import "time"

// ChangeEvent is the kind of row-level mutation reported by the change feed.
type ChangeEvent string

const (
	ChangeInsert ChangeEvent = "INSERT"
	ChangeUpdate ChangeEvent = "UPDATE"
	ChangeDelete ChangeEvent = "DELETE"

	// ChangeAny matches every event in a subscription filter.
	ChangeAny ChangeEvent = "*"
)

// Change is one notification of the change feed.
type Change struct {
	Table      string      `json:"table"`
	Event      ChangeEvent `json:"event"`
	OwnerID    string      `json:"user_id"`
	BookmarkID string      `json:"id"`
	At         time.Time   `json:"at"`
}

// Matches reports whether the change is selected by the given event filter.
func (c Change) Matches(event ChangeEvent) bool {
	return event == "" || event == ChangeAny || event == c.Event
}
