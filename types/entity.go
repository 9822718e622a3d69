package types

import "time"

// Entity carries the creation and last-mutation timestamps of a persisted
// aggregate. Embed it in aggregates that are written to a store.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity stamped at now.
func NewEntity(now time.Time) Entity {
	now = now.UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch moves UpdatedAt forward to now. It never moves it backwards, so a
// skewed clock cannot make a newer revision look older.
func (e *Entity) Touch(now time.Time) {
	now = now.UTC()
	if now.After(e.UpdatedAt) {
		e.UpdatedAt = now
	}
}

// Clock returns the current time. The engine reads time only through a Clock
// so expiry can be tested deterministically.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }
