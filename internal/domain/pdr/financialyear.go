package pdr

import (
	"fmt"
	"time"
)

// The review period follows the Australian financial year, 1 July to 30 June.

// FYLabel returns the financial-year label covering t, e.g. "2025-2026" for
// any date from 1 Jul 2025 through 30 Jun 2026.
func FYLabel(t time.Time) string {
	year := t.Year()
	if t.Month() < time.July {
		year--
	}
	return fmt.Sprintf("%d-%d", year, year+1)
}

// FYBounds returns the inclusive start and end dates for the financial year
// covering t, in t's location.
func FYBounds(t time.Time) (start, end time.Time) {
	year := t.Year()
	if t.Month() < time.July {
		year--
	}
	start = time.Date(year, time.July, 1, 0, 0, 0, 0, t.Location())
	end = time.Date(year+1, time.June, 30, 0, 0, 0, 0, t.Location())
	return start, end
}
