// Package timeslice splits a date window into labeled calendar-aligned
// sub-ranges so each partition walk stays small and independently resumable.
package timeslice

import (
	"fmt"
	"time"
)

// Mode selects how the window is partitioned.
type Mode string

const (
	// ModeNone keeps the whole window as a single slice.
	ModeNone Mode = "none"

	// ModeYear slices by calendar year.
	ModeYear Mode = "year"

	// ModeMonth slices by calendar month.
	ModeMonth Mode = "month"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModeYear, ModeMonth:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("slice mode must be none, year or month, got %q", s)
	}
}

// Slice is one bounded date sub-range. Start and End are inclusive UTC days.
type Slice struct {
	Label string
	Start time.Time
	End   time.Time
}

// StartDay returns the slice start formatted as YYYY-MM-DD.
func (s Slice) StartDay() string { return s.Start.Format("2006-01-02") }

// EndDay returns the slice end formatted as YYYY-MM-DD.
func (s Slice) EndDay() string { return s.End.Format("2006-01-02") }

// Split partitions [start, end] into ordered, disjoint slices.
//
// ModeNone yields a single slice labeled "all". Year and month modes walk
// calendar buckets from the one containing start through the one containing
// end; each emitted slice is clipped to the window, so the first and last
// bucket may be partial. Concatenating the results reproduces [start, end]
// with no gaps and no overlaps.
func Split(mode Mode, start, end time.Time) ([]Slice, error) {
	start = dayUTC(start)
	end = dayUTC(end)
	if end.Before(start) {
		return nil, fmt.Errorf("slice window end %s is before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	if mode == ModeNone {
		return []Slice{{Label: "all", Start: start, End: end}}, nil
	}

	var slices []Slice
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		var bucketStart, bucketEnd time.Time
		var label string

		switch mode {
		case ModeYear:
			bucketStart = time.Date(cursor.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
			bucketEnd = time.Date(cursor.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
			label = fmt.Sprintf("%04d", cursor.Year())
			cursor = time.Date(cursor.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
		case ModeMonth:
			bucketStart = time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, time.UTC)
			nextMonth := bucketStart.AddDate(0, 1, 0)
			bucketEnd = nextMonth.AddDate(0, 0, -1)
			label = fmt.Sprintf("%04d-%02d", cursor.Year(), int(cursor.Month()))
			cursor = nextMonth
		default:
			return nil, fmt.Errorf("unknown slice mode %q", mode)
		}

		if bucketEnd.Before(start) || bucketStart.After(end) {
			continue
		}

		clippedStart := bucketStart
		if clippedStart.Before(start) {
			clippedStart = start
		}
		clippedEnd := bucketEnd
		if clippedEnd.After(end) {
			clippedEnd = end
		}

		slices = append(slices, Slice{Label: label, Start: clippedStart, End: clippedEnd})
	}
	return slices, nil
}

func dayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
