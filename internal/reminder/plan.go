// Package reminder computes when notifications about a confirmed session should fire.
package reminder

import (
	"errors"
	"time"
)

// Type labels a reminder by its offset.
type Type string

const (
	// TypeDayBefore fires 24 hours before the session starts.
	TypeDayBefore Type = "24_hours"
	// TypeHourBefore fires one hour before the session starts.
	TypeHourBefore Type = "1_hour"
	// TypeCustom fires at a caller supplied offset.
	TypeCustom Type = "custom"
)

// Offset pairs a reminder type with how long before the start it fires.
type Offset struct {
	Type   Type
	Before time.Duration
}

// Schedule is one computed fire time.
type Schedule struct {
	Type Type
	At   time.Time
}

// ErrInvalidOffset indicates an offset that would not fire strictly before the start.
var ErrInvalidOffset = errors.New("reminder: offset must be positive")

// DefaultOffsets returns the day-before and hour-before offsets.
func DefaultOffsets() []Offset {
	return []Offset{
		{Type: TypeDayBefore, Before: 24 * time.Hour},
		{Type: TypeHourBefore, Before: time.Hour},
	}
}

// Custom builds a custom offset.
func Custom(before time.Duration) Offset {
	return Offset{Type: TypeCustom, Before: before}
}

// Plan computes the fire times for a session starting at start. Instants that
// already lie in the past are kept; suppressing stale sends is the delivery
// side's job. Offsets sharing a type are collapsed to the first occurrence.
func Plan(start time.Time, offsets []Offset) ([]Schedule, error) {
	if start.IsZero() {
		return nil, errors.New("reminder: start is required")
	}
	if len(offsets) == 0 {
		offsets = DefaultOffsets()
	}

	seen := make(map[Type]struct{}, len(offsets))
	out := make([]Schedule, 0, len(offsets))
	for _, offset := range offsets {
		if offset.Before <= 0 {
			return nil, ErrInvalidOffset
		}
		if _, ok := seen[offset.Type]; ok {
			continue
		}
		seen[offset.Type] = struct{}{}
		out = append(out, Schedule{Type: offset.Type, At: start.Add(-offset.Before).UTC()})
	}
	return out, nil
}
