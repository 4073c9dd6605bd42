package pdr

import (
	"testing"
	"time"
)

func TestFYLabel(t *testing.T) {
	cases := []struct {
		date  time.Time
		label string
	}{
		{time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC), "2024-2025"},
		{time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), "2025-2026"},
		{time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "2025-2026"},
		{time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), "2025-2026"},
	}
	for _, tc := range cases {
		if got := FYLabel(tc.date); got != tc.label {
			t.Errorf("FYLabel(%s) = %q, want %q", tc.date.Format("2006-01-02"), got, tc.label)
		}
	}
}

func TestFYBounds(t *testing.T) {
	start, end := FYBounds(time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC))
	if !start.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %s", start)
	}
	if !end.Equal(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end = %s", end)
	}

	start, end = FYBounds(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if start.Year() != 2024 || end.Year() != 2025 {
		t.Fatalf("pre-July date must map to the prior financial year: %s - %s", start, end)
	}
}
