package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Frequency of a recurrence rule. Only weekly rules exist today.
type Frequency string

const FrequencyWeekly Frequency = "WEEKLY"

const dateLayout = "2006-01-02"

// RecurrenceRule repeats a range on selected weekdays up to and including
// horizonEnd. It is immutable and validated on construction and decode.
type RecurrenceRule struct {
	frequency  Frequency
	daysOfWeek []time.Weekday
	horizonEnd time.Time
}

// NewRecurrenceRule validates and normalizes a rule. horizonEnd is reduced to
// its calendar date.
func NewRecurrenceRule(frequency Frequency, daysOfWeek []time.Weekday, horizonEnd time.Time) (RecurrenceRule, error) {
	if Frequency(strings.ToUpper(string(frequency))) != FrequencyWeekly {
		return RecurrenceRule{}, fmt.Errorf("%w: unsupported frequency %q", ErrInvalidRecurrence, frequency)
	}
	if len(daysOfWeek) == 0 {
		return RecurrenceRule{}, fmt.Errorf("%w: at least one day of week is required", ErrInvalidRecurrence)
	}
	if horizonEnd.IsZero() {
		return RecurrenceRule{}, fmt.Errorf("%w: horizon end is required", ErrInvalidRecurrence)
	}

	days := make([]time.Weekday, 0, len(daysOfWeek))
	for _, d := range daysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return RecurrenceRule{}, fmt.Errorf("%w: day of week %d out of range", ErrInvalidRecurrence, d)
		}
		if !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)

	return RecurrenceRule{
		frequency:  FrequencyWeekly,
		daysOfWeek: days,
		horizonEnd: time.Date(horizonEnd.Year(), horizonEnd.Month(), horizonEnd.Day(), 0, 0, 0, 0, time.UTC),
	}, nil
}

func (r RecurrenceRule) Frequency() Frequency { return r.frequency }

// DaysOfWeek returns a sorted copy.
func (r RecurrenceRule) DaysOfWeek() []time.Weekday { return slices.Clone(r.daysOfWeek) }

// HorizonEnd is the last calendar date an occurrence may fall on, as midnight UTC.
func (r RecurrenceRule) HorizonEnd() time.Time { return r.horizonEnd }

// HorizonEndIn is the exclusive end of the horizon date in loc.
func (r RecurrenceRule) HorizonEndIn(loc *time.Location) time.Time {
	y, m, d := r.horizonEnd.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}

// Matches reports whether weekday is one of the selected days.
func (r RecurrenceRule) Matches(weekday time.Weekday) bool {
	return slices.Contains(r.daysOfWeek, weekday)
}

type recurrenceJSON struct {
	Frequency  Frequency      `json:"frequency"`
	DaysOfWeek []time.Weekday `json:"days_of_week"`
	HorizonEnd string         `json:"horizon_end"`
}

func (r RecurrenceRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(recurrenceJSON{
		Frequency:  r.frequency,
		DaysOfWeek: r.daysOfWeek,
		HorizonEnd: r.horizonEnd.Format(dateLayout),
	})
}

// UnmarshalJSON runs the same validation as NewRecurrenceRule, so stored or
// transported rules are never trusted as opaque blobs.
func (r *RecurrenceRule) UnmarshalJSON(data []byte) error {
	var raw recurrenceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	horizon, err := time.Parse(dateLayout, raw.HorizonEnd)
	if err != nil {
		return fmt.Errorf("%w: horizon_end: %v", ErrInvalidRecurrence, err)
	}
	rule, err := NewRecurrenceRule(raw.Frequency, raw.DaysOfWeek, horizon)
	if err != nil {
		return err
	}
	*r = rule
	return nil
}

// ParseWeekdays accepts names or abbreviations such as "mon,wed,fri".
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		day, ok := weekdayNames[part]
		if !ok && len(part) >= 3 {
			day, ok = weekdayNames[part[:3]]
		}
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRecurrence, part)
		}
		days = append(days, day)
	}
	return days, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}
