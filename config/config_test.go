package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("SKYLINE_DB_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
http:
  address: ":8080"
database:
  driver: postgres
  host: localhost
  port: 5432
  user: skyline
  password: ${SKYLINE_DB_PASSWORD}
  name: skyline
  ssl_mode: disable
booking:
  refund_rate: 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "host=localhost port=5432 user=skyline password=s3cret dbname=skyline sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 0.8, cfg.Booking.RefundRate)
	assert.Equal(t, 6, cfg.Booking.PNRLength)
	assert.Equal(t, 5, cfg.Booking.PNRMaxAttempts)
	assert.Equal(t, 3, cfg.Booking.MaxConflictRetries)
	assert.Len(t, cfg.Pricing.OccupancyTiers, 3)
	assert.Equal(t, 1.05, cfg.Pricing.UndatedMultiplier)
	assert.Equal(t, 5, cfg.Demand.IntervalMinutes)
	assert.Equal(t, 0.5, cfg.Demand.FactorMin)
	assert.Equal(t, 3.0, cfg.Demand.FactorMax)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestApplyDefaults_FullRefundByDefault(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 1.0, cfg.Booking.RefundRate)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 0.9, cfg.Demand.StepMin)
	assert.Equal(t, 1.1, cfg.Demand.StepMax)
}

func TestApplyDefaults_DropsEmptyBrokers(t *testing.T) {
	cfg := Config{Kafka: KafkaConfig{Brokers: []string{"", "kafka:9092", ""}}}
	cfg.ApplyDefaults()

	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "catalog.yaml", cfg.Catalog.Path)
}
