package database

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is how SQLite stores instants: fixed width UTC, so text order is
// time order and range predicates work in plain SQL.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

var sqliteReadLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// Rebind rewrites ? placeholders into the driver's style. Question marks
// inside single-quoted literals are left alone.
func Rebind(d Driver, query string) string {
	if d != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TimeArg encodes t as a query argument for d.
func TimeArg(d Driver, t time.Time) any {
	if d == DriverSQLite {
		return t.UTC().Format(TimeLayout)
	}
	return t.UTC()
}

// NullTimeArg is TimeArg for optional instants.
func NullTimeArg(d Driver, t *time.Time) any {
	if t == nil {
		return nil
	}
	return TimeArg(d, *t)
}

// Timestamp scans an instant stored either natively or as SQLite text.
type Timestamp struct {
	Time time.Time
}

func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		ts.Time = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("timestamp: unsupported source %T", src)
	}
}

func (ts *Timestamp) parse(s string) error {
	for _, layout := range sqliteReadLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: cannot parse %q", s)
}

// Value keeps Timestamp usable as an argument for either driver.
func (ts Timestamp) Value() (driver.Value, error) { return ts.Time.UTC(), nil }

// NullTimestamp is a Timestamp that may be NULL.
type NullTimestamp struct {
	Timestamp
	Valid bool
}

func (nts *NullTimestamp) Scan(src any) error {
	if src == nil {
		nts.Valid = false
		return nil
	}
	nts.Valid = true
	return nts.Timestamp.Scan(src)
}

// Ptr returns nil when the column was NULL.
func (nts NullTimestamp) Ptr() *time.Time {
	if !nts.Valid {
		return nil
	}
	t := nts.Time
	return &t
}
