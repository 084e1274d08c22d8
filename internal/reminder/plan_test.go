package reminder

import (
	"errors"
	"testing"
	"time"
)

func TestPlan_DefaultOffsets(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	got, err := Plan(start, nil)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(got))
	}

	want := map[Type]time.Time{
		TypeDayBefore:  time.Date(2025, time.February, 28, 10, 0, 0, 0, time.UTC),
		TypeHourBefore: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, s := range got {
		if !s.At.Equal(want[s.Type]) {
			t.Fatalf("%s fires at %s, want %s", s.Type, s.At, want[s.Type])
		}
		if !s.At.Before(start) {
			t.Fatalf("%s must fire before start", s.Type)
		}
	}
}

func TestPlan_NormalizesToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*60*60)
	start := time.Date(2025, time.March, 1, 19, 0, 0, 0, loc)
	got, err := Plan(start, []Offset{Custom(30 * time.Minute)})
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if got[0].At.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", got[0].At.Location())
	}
	if want := time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC); !got[0].At.Equal(want) {
		t.Fatalf("custom fires at %s, want %s", got[0].At, want)
	}
}

func TestPlan_RejectsNonPositiveOffsets(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	if _, err := Plan(start, []Offset{Custom(0)}); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset, got %v", err)
	}
}

func TestPlan_CollapsesDuplicateTypes(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	got, err := Plan(start, []Offset{Custom(time.Hour), Custom(2 * time.Hour)})
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected duplicates to collapse, got %d", len(got))
	}
}

func TestPlan_RequiresStart(t *testing.T) {
	t.Parallel()

	if _, err := Plan(time.Time{}, nil); err == nil {
		t.Fatal("expected error for zero start")
	}
}
