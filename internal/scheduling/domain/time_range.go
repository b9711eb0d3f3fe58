package domain

import (
	"fmt"
	"sort"
	"time"
)

// TimeRange is the half-open interval [start, end). The zero value is not a
// valid range; construct with NewTimeRange.
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange returns ErrInvalidRange unless start is strictly before end.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !start.Before(end) {
		return TimeRange{}, fmt.Errorf("%w: %s is not before %s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeRange{start: start, end: end}, nil
}

func (r TimeRange) Start() time.Time        { return r.start }
func (r TimeRange) End() time.Time          { return r.end }
func (r TimeRange) Duration() time.Duration { return r.end.Sub(r.start) }

// IsValid reports whether the range satisfies start < end. Only the zero value
// and hand-built ranges can fail it.
func (r TimeRange) IsValid() bool {
	return r.start.Before(r.end)
}

// Overlaps uses the half-open predicate: ranges that only touch do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.start.Before(other.end) && other.start.Before(r.end)
}

// Contains reports whether other lies entirely inside r.
func (r TimeRange) Contains(other TimeRange) bool {
	return !other.start.Before(r.start) && !other.end.After(r.end)
}

// Intersect returns the common part of both ranges, if any.
func (r TimeRange) Intersect(other TimeRange) (TimeRange, bool) {
	if !r.Overlaps(other) {
		return TimeRange{}, false
	}
	start, end := r.start, r.end
	if other.start.After(start) {
		start = other.start
	}
	if other.end.Before(end) {
		end = other.end
	}
	return TimeRange{start: start, end: end}, true
}

// CoveredBy reports whether the union of ranges covers r without gaps.
func (r TimeRange) CoveredBy(ranges []TimeRange) bool {
	sorted := append([]TimeRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start.Before(sorted[j].start) })

	cursor := r.start
	for _, rg := range sorted {
		if !rg.end.After(cursor) {
			continue
		}
		if rg.start.After(cursor) {
			return false
		}
		cursor = rg.end
		if !cursor.Before(r.end) {
			return true
		}
	}
	return !cursor.Before(r.end)
}

// Dates lists the local calendar dates, as midnight in loc, that r touches.
// The end instant is exclusive, so a range ending exactly at midnight does not
// touch the following date.
func (r TimeRange) Dates(loc *time.Location) []time.Time {
	if !r.IsValid() {
		return nil
	}
	first := DateOf(r.start, loc)
	last := DateOf(r.end.Add(-time.Nanosecond), loc)

	var dates []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.start.Format(time.RFC3339), r.end.Format(time.RFC3339))
}

// DateOf truncates t to midnight of its calendar date in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayRange spans one full local date. It follows wall-clock midnights, so DST
// days are 23 or 25 hours long.
func DayRange(date time.Time, loc *time.Location) TimeRange {
	start := DateOf(date, loc)
	return TimeRange{start: start, end: start.AddDate(0, 0, 1)}
}
