package services

import (
	"fmt"
	"iter"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// RecurrenceExpander projects an anchor range onto the dates a rule selects.
// Wall-clock time of day is kept in the service time zone, so occurrences
// across a DST change keep their local start.
type RecurrenceExpander struct {
	policy domain.Policy
}

// NewRecurrenceExpander creates an expander bound by policy limits.
func NewRecurrenceExpander(policy domain.Policy) *RecurrenceExpander {
	return &RecurrenceExpander{policy: policy}
}

// Validate rejects rules that end before the anchor or run past the horizon
// limit.
func (e *RecurrenceExpander) Validate(rule domain.RecurrenceRule, anchor domain.TimeRange) error {
	if !anchor.IsValid() {
		return domain.ErrInvalidRange
	}
	loc := e.policy.Loc()
	end := rule.HorizonEndIn(loc)
	if !end.After(anchor.Start()) {
		return fmt.Errorf("%w: horizon ends before the first occurrence", domain.ErrInvalidRecurrence)
	}
	if limit := e.policy.MaxRecurrenceHorizon; limit > 0 && end.Sub(anchor.Start()) > limit {
		return fmt.Errorf("%w: horizon exceeds %s", domain.ErrInvalidRecurrence, limit)
	}
	return nil
}

// Expand yields one range per matching date from the anchor date through the
// horizon date. The anchor itself is only yielded when its weekday matches.
// The sequence is bounded only by the horizon and is a pure function of its
// inputs; Plan enforces the occurrence cap.
func (e *RecurrenceExpander) Expand(rule domain.RecurrenceRule, anchor domain.TimeRange) iter.Seq[domain.TimeRange] {
	return func(yield func(domain.TimeRange) bool) {
		if !anchor.IsValid() {
			return
		}
		loc := e.policy.Loc()
		duration := anchor.Duration()

		r, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Dtstart:   anchor.Start().In(loc),
			Until:     rule.HorizonEndIn(loc).Add(-time.Second),
			Byweekday: toRRuleWeekdays(rule.DaysOfWeek()),
		})
		if err != nil {
			return
		}

		next := r.Iterator()
		for {
			start, ok := next()
			if !ok {
				return
			}
			occurrence, err := domain.NewTimeRange(start.UTC(), start.Add(duration).UTC())
			if err != nil {
				return
			}
			if !yield(occurrence) {
				return
			}
		}
	}
}

// Plan validates the rule and collects its occurrences. A rule that selects no
// date at all, or more dates than Policy.MaxOccurrences, is invalid.
func (e *RecurrenceExpander) Plan(rule domain.RecurrenceRule, anchor domain.TimeRange) ([]domain.TimeRange, error) {
	if err := e.Validate(rule, anchor); err != nil {
		return nil, err
	}
	limit := e.policy.MaxOccurrences
	var occurrences []domain.TimeRange
	for occurrence := range e.Expand(rule, anchor) {
		if limit > 0 && len(occurrences) == limit {
			return nil, fmt.Errorf("%w: series has more than %d occurrences", domain.ErrInvalidRecurrence, limit)
		}
		occurrences = append(occurrences, occurrence)
	}
	if len(occurrences) == 0 {
		return nil, fmt.Errorf("%w: rule selects no dates", domain.ErrInvalidRecurrence)
	}
	return occurrences, nil
}

func toRRuleWeekdays(days []time.Weekday) []rrule.Weekday {
	out := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, rruleWeekdays[d])
	}
	return out
}
