package types

import (
	"testing"
	"time"
)

func TestNewEntity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))
	e := NewEntity(now)

	if !e.CreatedAt.Equal(now) || !e.UpdatedAt.Equal(now) {
		t.Fatalf("expected both timestamps at %v, got %+v", now, e)
	}
	if e.CreatedAt.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", e.CreatedAt.Location())
	}
}

func TestTouchIsMonotonic(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEntity(start)

	e.Touch(start.Add(time.Hour))
	if !e.UpdatedAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected UpdatedAt to advance, got %v", e.UpdatedAt)
	}

	e.Touch(start)
	if !e.UpdatedAt.Equal(start.Add(time.Hour)) {
		t.Errorf("Touch moved UpdatedAt backwards to %v", e.UpdatedAt)
	}
	if !e.CreatedAt.Equal(start) {
		t.Errorf("CreatedAt changed: %v", e.CreatedAt)
	}
}
