package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRatesOverridesDefaults(t *testing.T) {
	rates, err := ParseRates([]byte(`
api_call_unit_rate: "0.002"
storage_free_gb: 50
services:
  analytics: "10"
  backup: 2.5
`))
	require.NoError(t, err)
	assert.True(t, rates.APICallUnitRate.Equal(decimal.RequireFromString("0.002")))
	assert.True(t, rates.FreeStorageGiB.Equal(decimal.NewFromInt(50)))
	assert.True(t, rates.IoTUnitRate.Equal(decimal.NewFromInt(1)))
	assert.True(t, rates.StoragePerGBRate.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, rates.ServiceRates["backup"].Equal(decimal.RequireFromString("2.5")))
}

func TestParseRatesRejectsNegative(t *testing.T) {
	_, err := ParseRates([]byte(`iot_unit_rate: "-1"`))
	assert.Error(t, err)
}

func TestParseRatesRejectsGarbage(t *testing.T) {
	_, err := ParseRates([]byte(`api_call_unit_rate: cheap`))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/billing")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SHUTDOWN_TIMEOUT", "3")
	t.Setenv("READING_STORE", "")
	t.Setenv("BILLING_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireServe())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 3*time.Second, cfg.ShutdownWait)
	assert.Equal(t, ReadingStorePostgres, cfg.ReadingStore)
}

func TestValidateInfluxRequiresURL(t *testing.T) {
	t.Setenv("READING_STORE", "influx")
	t.Setenv("INFLUX_URL", "")
	t.Setenv("BILLING_CONFIG", "")
	_, err := Load()
	assert.Error(t, err)
}
