package services_test

import (
	"slices"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekly(t *testing.T, horizon time.Time, days ...time.Weekday) domain.RecurrenceRule {
	t.Helper()
	rule, err := domain.NewRecurrenceRule(domain.FrequencyWeekly, days, horizon)
	require.NoError(t, err)
	return rule
}

func starts(seq []domain.TimeRange) []time.Time {
	out := make([]time.Time, len(seq))
	for i, r := range seq {
		out[i] = r.Start()
	}
	return out
}

func TestRecurrenceExpander_Weekly(t *testing.T) {
	expander := services.NewRecurrenceExpander(domain.DefaultPolicy())
	anchor := mustRange(t, at(3, 10, 0), at(3, 12, 0))
	rule := weekly(t, at(19, 0, 0), time.Monday, time.Wednesday)

	occurrences := slices.Collect(expander.Expand(rule, anchor))

	assert.Equal(t, []time.Time{
		at(3, 10, 0), at(5, 10, 0),
		at(10, 10, 0), at(12, 10, 0),
		at(17, 10, 0), at(19, 10, 0),
	}, starts(occurrences))
	for _, o := range occurrences {
		assert.Equal(t, 2*time.Hour, o.Duration())
	}
}

func TestRecurrenceExpander_HorizonDateIsInclusive(t *testing.T) {
	expander := services.NewRecurrenceExpander(domain.DefaultPolicy())
	anchor := mustRange(t, at(3, 10, 0), at(3, 12, 0))

	occurrences := slices.Collect(expander.Expand(weekly(t, at(24, 0, 0), time.Monday), anchor))

	assert.Equal(t, []time.Time{at(3, 10, 0), at(10, 10, 0), at(17, 10, 0), at(24, 10, 0)}, starts(occurrences))
}

func TestRecurrenceExpander_AnchorOffRule(t *testing.T) {
	expander := services.NewRecurrenceExpander(domain.DefaultPolicy())
	anchor := mustRange(t, at(4, 10, 0), at(4, 12, 0))

	occurrences := slices.Collect(expander.Expand(weekly(t, at(12, 0, 0), time.Monday), anchor))

	assert.Equal(t, []time.Time{at(10, 10, 0)}, starts(occurrences))
}

func TestRecurrenceExpander_KeepsLocalTimeAcrossDST(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	policy := domain.DefaultPolicy()
	policy.Location = london
	expander := services.NewRecurrenceExpander(policy)

	anchor := mustRange(t, time.Date(2024, 3, 25, 9, 0, 0, 0, london), time.Date(2024, 3, 25, 11, 0, 0, 0, london))
	rule := weekly(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), time.Monday)

	occurrences := slices.Collect(expander.Expand(rule, anchor))

	require.Len(t, occurrences, 2)
	assert.Equal(t, time.Date(2024, 3, 25, 9, 0, 0, 0, time.UTC), occurrences[0].Start())
	assert.Equal(t, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), occurrences[1].Start())
	assert.Equal(t, 2*time.Hour, occurrences[1].Duration())
}

func TestRecurrenceExpander_Restartable(t *testing.T) {
	expander := services.NewRecurrenceExpander(domain.DefaultPolicy())
	seq := expander.Expand(weekly(t, at(30, 0, 0), time.Tuesday, time.Thursday), mustRange(t, at(3, 9, 0), at(3, 10, 0)))

	first := slices.Collect(seq)
	second := slices.Collect(seq)

	assert.Len(t, first, 8)
	assert.Equal(t, first, second)

	var partial []domain.TimeRange
	for o := range seq {
		partial = append(partial, o)
		if len(partial) == 2 {
			break
		}
	}
	assert.Equal(t, first[:2], partial)
}

func TestRecurrenceExpander_Limits(t *testing.T) {
	anchor := mustRange(t, at(3, 10, 0), at(3, 12, 0))

	t.Run("series longer than max occurrences is rejected", func(t *testing.T) {
		policy := domain.DefaultPolicy()
		policy.MaxOccurrences = 3
		expander := services.NewRecurrenceExpander(policy)

		occurrences, err := expander.Plan(weekly(t, at(24, 0, 0), time.Monday), anchor)
		require.ErrorIs(t, err, domain.ErrInvalidRecurrence)
		assert.Contains(t, err.Error(), "more than 3")
		assert.Nil(t, occurrences)

		// Expand itself is bounded by the horizon only.
		assert.Len(t, slices.Collect(expander.Expand(weekly(t, at(24, 0, 0), time.Monday), anchor)), 4)
	})

	t.Run("series at exactly max occurrences is planned", func(t *testing.T) {
		policy := domain.DefaultPolicy()
		policy.MaxOccurrences = 4
		expander := services.NewRecurrenceExpander(policy)

		occurrences, err := expander.Plan(weekly(t, at(24, 0, 0), time.Monday), anchor)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(3, 10, 0), at(10, 10, 0), at(17, 10, 0), at(24, 10, 0)}, starts(occurrences))
	})

	t.Run("horizon before anchor", func(t *testing.T) {
		expander := services.NewRecurrenceExpander(domain.DefaultPolicy())
		_, err := expander.Plan(weekly(t, at(2, 0, 0), time.Monday), anchor)
		assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)
	})

	t.Run("horizon beyond limit", func(t *testing.T) {
		policy := domain.DefaultPolicy()
		policy.MaxRecurrenceHorizon = 7 * 24 * time.Hour
		expander := services.NewRecurrenceExpander(policy)
		_, err := expander.Plan(weekly(t, at(30, 0, 0), time.Monday), anchor)
		assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)
	})

	t.Run("no matching dates", func(t *testing.T) {
		expander := services.NewRecurrenceExpander(domain.DefaultPolicy())
		_, err := expander.Plan(weekly(t, at(4, 0, 0), time.Friday), anchor)
		assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)
	})
}
