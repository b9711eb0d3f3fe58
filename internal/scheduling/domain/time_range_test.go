package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 6, 3, hour, minute, 0, 0, time.UTC)
}

func mustRange(t *testing.T, start, end time.Time) domain.TimeRange {
	t.Helper()
	r, err := domain.NewTimeRange(start, end)
	require.NoError(t, err)
	return r
}

func TestNewTimeRange(t *testing.T) {
	_, err := domain.NewTimeRange(at(10, 0), at(10, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = domain.NewTimeRange(at(11, 0), at(10, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	r, err := domain.NewTimeRange(at(10, 0), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, r.Duration())
	assert.True(t, r.IsValid())
	assert.False(t, domain.TimeRange{}.IsValid())
}

func TestTimeRange_Overlaps(t *testing.T) {
	base := mustRange(t, at(10, 0), at(12, 0))

	tests := []struct {
		name  string
		other domain.TimeRange
		want  bool
	}{
		{"identical", mustRange(t, at(10, 0), at(12, 0)), true},
		{"partial tail", mustRange(t, at(11, 0), at(13, 0)), true},
		{"partial head", mustRange(t, at(9, 0), at(10, 30)), true},
		{"inside", mustRange(t, at(10, 30), at(11, 0)), true},
		{"enclosing", mustRange(t, at(8, 0), at(14, 0)), true},
		{"touching end", mustRange(t, at(12, 0), at(13, 0)), false},
		{"touching start", mustRange(t, at(9, 0), at(10, 0)), false},
		{"disjoint", mustRange(t, at(14, 0), at(15, 0)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base), "overlap is symmetric")
		})
	}
}

func TestTimeRange_ContainsAndIntersect(t *testing.T) {
	day := mustRange(t, at(9, 0), at(17, 0))

	assert.True(t, day.Contains(mustRange(t, at(9, 0), at(17, 0))))
	assert.True(t, day.Contains(mustRange(t, at(10, 0), at(12, 0))))
	assert.False(t, day.Contains(mustRange(t, at(16, 0), at(18, 0))))

	part, ok := day.Intersect(mustRange(t, at(16, 0), at(18, 0)))
	require.True(t, ok)
	assert.Equal(t, at(16, 0), part.Start())
	assert.Equal(t, at(17, 0), part.End())

	_, ok = day.Intersect(mustRange(t, at(17, 0), at(18, 0)))
	assert.False(t, ok)
}

func TestTimeRange_CoveredBy(t *testing.T) {
	candidate := mustRange(t, at(10, 0), at(14, 0))

	tests := []struct {
		name   string
		blocks []domain.TimeRange
		want   bool
	}{
		{"single enclosing block", []domain.TimeRange{mustRange(t, at(9, 0), at(17, 0))}, true},
		{"adjacent blocks", []domain.TimeRange{mustRange(t, at(12, 0), at(15, 0)), mustRange(t, at(9, 0), at(12, 0))}, true},
		{"overlapping blocks", []domain.TimeRange{mustRange(t, at(9, 0), at(12, 30)), mustRange(t, at(12, 0), at(14, 0))}, true},
		{"gap between blocks", []domain.TimeRange{mustRange(t, at(9, 0), at(11, 0)), mustRange(t, at(12, 0), at(15, 0))}, false},
		{"starts late", []domain.TimeRange{mustRange(t, at(10, 30), at(15, 0))}, false},
		{"ends early", []domain.TimeRange{mustRange(t, at(9, 0), at(13, 0))}, false},
		{"no blocks", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, candidate.CoveredBy(tt.blocks))
		})
	}
}

func TestTimeRange_Dates(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)

	overnight := mustRange(t, time.Date(2024, 6, 3, 20, 0, 0, 0, loc), time.Date(2024, 6, 4, 8, 0, 0, 0, loc))
	dates := overnight.Dates(loc)
	require.Len(t, dates, 2)
	assert.Equal(t, 3, dates[0].Day())
	assert.Equal(t, 4, dates[1].Day())

	untilMidnight := mustRange(t, time.Date(2024, 6, 3, 20, 0, 0, 0, loc), time.Date(2024, 6, 4, 0, 0, 0, 0, loc))
	assert.Len(t, untilMidnight.Dates(loc), 1, "end is exclusive")

	// 23:00 UTC on the 3rd is already the 4th in UTC+2.
	utcLate := mustRange(t, time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC), time.Date(2024, 6, 3, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, 4, utcLate.Dates(loc)[0].Day())
}

func TestDayRange_FollowsWallClock(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	springForward := domain.DayRange(time.Date(2024, 3, 31, 12, 0, 0, 0, london), london)
	assert.Equal(t, 23*time.Hour, springForward.Duration())

	normal := domain.DayRange(time.Date(2024, 6, 3, 12, 0, 0, 0, london), london)
	assert.Equal(t, 24*time.Hour, normal.Duration())
}
