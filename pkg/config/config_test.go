package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EVENT_BROKER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, BrokerInProcess, cfg.EventBroker)
	assert.Equal(t, 24*time.Hour, cfg.Scheduling.LateCancellationWindow)
	assert.True(t, cfg.Scheduling.OpenWhenNoAvailability)
	assert.True(t, cfg.Scheduling.EmergencySkipsLeadTime)
	assert.False(t, cfg.Scheduling.EmergencySkipsPastStart)
	assert.Equal(t, "@every 5m", cfg.SweepSchedule)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("EVENT_BROKER", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LATE_CANCELLATION_WINDOW", "48h")
	t.Setenv("MIN_LEAD_TIME", "2h")
	t.Setenv("OPEN_WHEN_NO_AVAILABILITY", "false")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, BrokerKafka, cfg.EventBroker)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 48*time.Hour, cfg.Scheduling.LateCancellationWindow)
	assert.Equal(t, 2*time.Hour, cfg.Scheduling.MinLeadTime)
	assert.False(t, cfg.Scheduling.OpenWhenNoAvailability)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
}

func TestLoad_PolicyFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: Europe/Berlin
late_cancellation_window: 12h
min_lead_time: 30m
max_occurrences: 10
`), 0o600))
	t.Setenv("SCHEDULING_POLICY_FILE", path)
	t.Setenv("MIN_LEAD_TIME", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Europe/Berlin", cfg.Scheduling.Timezone)
	assert.Equal(t, 12*time.Hour, cfg.Scheduling.LateCancellationWindow)
	assert.Equal(t, time.Hour, cfg.Scheduling.MinLeadTime)
	assert.Equal(t, 10, cfg.Scheduling.MaxOccurrences)
	assert.True(t, cfg.Scheduling.OpenWhenNoAvailability, "keys missing from the file keep defaults")
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoad_PolicyFileErrors(t *testing.T) {
	t.Setenv("SCHEDULING_POLICY_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{EventBroker: BrokerInProcess, Scheduling: DefaultSchedulingPolicy()}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown broker", func(c *Config) { c.EventBroker = "sqs" }},
		{"kafka without brokers", func(c *Config) { c.EventBroker = BrokerKafka }},
		{"bad timezone", func(c *Config) { c.Scheduling.Timezone = "Mars/Olympus" }},
		{"zero cancellation window", func(c *Config) { c.Scheduling.LateCancellationWindow = 0 }},
		{"negative lead time", func(c *Config) { c.Scheduling.MinLeadTime = -time.Minute }},
		{"calendar sync without url", func(c *Config) { c.CalendarSyncEnabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
