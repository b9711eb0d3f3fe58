package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecurrenceRule(t *testing.T) {
	horizon := time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)

	rule, err := domain.NewRecurrenceRule("weekly", []time.Weekday{time.Friday, time.Monday, time.Monday}, horizon)
	require.NoError(t, err)

	assert.Equal(t, domain.FrequencyWeekly, rule.Frequency())
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, rule.DaysOfWeek())
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), rule.HorizonEnd())
	assert.True(t, rule.Matches(time.Friday))
	assert.False(t, rule.Matches(time.Tuesday))
}

func TestNewRecurrenceRule_Invalid(t *testing.T) {
	horizon := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		freq domain.Frequency
		days []time.Weekday
		end  time.Time
	}{
		{"daily frequency", "DAILY", []time.Weekday{time.Monday}, horizon},
		{"no days", domain.FrequencyWeekly, nil, horizon},
		{"day out of range", domain.FrequencyWeekly, []time.Weekday{7}, horizon},
		{"missing horizon", domain.FrequencyWeekly, []time.Weekday{time.Monday}, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewRecurrenceRule(tt.freq, tt.days, tt.end)
			assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)
		})
	}
}

func TestRecurrenceRule_JSON(t *testing.T) {
	rule, err := domain.NewRecurrenceRule(domain.FrequencyWeekly, []time.Weekday{time.Monday, time.Wednesday}, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	data, err := json.Marshal(rule)
	require.NoError(t, err)
	assert.JSONEq(t, `{"frequency":"WEEKLY","days_of_week":[1,3],"horizon_end":"2024-06-30"}`, string(data))

	var decoded domain.RecurrenceRule
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rule, decoded)

	err = json.Unmarshal([]byte(`{"frequency":"MONTHLY","days_of_week":[1],"horizon_end":"2024-06-30"}`), &decoded)
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)

	err = json.Unmarshal([]byte(`{"frequency":"WEEKLY","days_of_week":[1],"horizon_end":"June"}`), &decoded)
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)
}

func TestRecurrenceRule_HorizonEndIn(t *testing.T) {
	rule, err := domain.NewRecurrenceRule(domain.FrequencyWeekly, []time.Weekday{time.Monday}, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	loc := time.FixedZone("UTC+2", 2*60*60)

	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, loc), rule.HorizonEndIn(loc))
}

func TestParseWeekdays(t *testing.T) {
	days, err := domain.ParseWeekdays("mon, Wednesday,fri")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, days)

	_, err = domain.ParseWeekdays("mon,funday")
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)
}
