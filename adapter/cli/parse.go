package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)

// ParseID parses a required uuid flag or argument.
func ParseID(name, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("%s is required", name)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

// ParseIDs parses a list of uuids.
func ParseIDs(name string, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := ParseID(name, v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseInstant accepts RFC 3339 or "YYYY-MM-DD HH:MM" in loc.
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("time is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DateTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, use RFC 3339 or YYYY-MM-DD HH:MM", value)
	}
	return t, nil
}

// ParseDate parses YYYY-MM-DD in loc; empty means today.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return domain.DateOf(time.Now(), loc), nil
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", value)
	}
	return t, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekdays parses "mon,wed,fri". Full names are accepted too.
func ParseWeekdays(value string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if len(part) > 3 {
			part = part[:3]
		}
		day, ok := weekdays[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}

// ParseRecurrence builds a weekly rule from --repeat and --until. It returns
// nil when neither is set.
func ParseRecurrence(days, until string, loc *time.Location) (*domain.RecurrenceRule, error) {
	if days == "" && until == "" {
		return nil, nil
	}
	if days == "" || until == "" {
		return nil, errors.New("--repeat and --until must be given together")
	}
	weekdays, err := ParseWeekdays(days)
	if err != nil {
		return nil, err
	}
	horizon, err := ParseDate(until, loc)
	if err != nil {
		return nil, err
	}
	rule, err := domain.NewRecurrenceRule(domain.FrequencyWeekly, weekdays, horizon)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
