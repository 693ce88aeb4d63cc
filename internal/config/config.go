package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	billing "energy-billing/internal/billing/domain"
)

// Reading store backends.
const (
	ReadingStorePostgres = "postgres"
	ReadingStoreInflux   = "influx"
)

// Config holds process configuration.
type Config struct {
	DatabaseURL  string
	HTTPAddr     string
	LogLevel     string
	JWTSecret    string
	ReadingStore string
	ShutdownWait time.Duration

	Influx InfluxConfig
	Kafka  KafkaConfig

	BillingConfigPath string
	Rates             billing.Rates
}

// InfluxConfig selects the InfluxDB reading store.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// KafkaConfig selects the upstream billing topic. An empty broker list
// disables the consumer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Enabled reports whether the consumer should run.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:  getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:     getenvDefault("LOG_LEVEL", "info"),
		JWTSecret:    getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ReadingStore: strings.ToLower(getenvDefault("READING_STORE", ReadingStorePostgres)),
		ShutdownWait: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Influx: InfluxConfig{
			URL:    getenvDefault("INFLUX_URL", ""),
			Token:  getenvDefault("INFLUX_TOKEN", ""),
			Org:    getenvDefault("INFLUX_ORG", ""),
			Bucket: getenvDefault("INFLUX_BUCKET", "energy"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getenvDefault("KAFKA_BROKERS", "")),
			Topic:   getenvDefault("KAFKA_TOPIC", "billing.upstream"),
			GroupID: getenvDefault("KAFKA_GROUP_ID", "energy-billing"),
		},
		BillingConfigPath: getenvDefault("BILLING_CONFIG", ""),
		Rates:             billing.DefaultRates(),
	}

	if cfg.BillingConfigPath != "" {
		rates, err := LoadRatesFile(cfg.BillingConfigPath)
		if err != nil {
			return Config{}, err
		}
		cfg.Rates = rates
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	switch c.ReadingStore {
	case ReadingStorePostgres:
	case ReadingStoreInflux:
		if c.Influx.URL == "" || c.Influx.Org == "" {
			return errors.New("config: INFLUX_URL and INFLUX_ORG are required for the influx reading store")
		}
	default:
		return fmt.Errorf("config: unknown READING_STORE %q", c.ReadingStore)
	}
	return c.Rates.Validate()
}

// RequireServe checks the settings the HTTP server needs.
func (c Config) RequireServe() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	return nil
}

type ratesFile struct {
	APICallUnitRate  *string           `yaml:"api_call_unit_rate"`
	IoTUnitRate      *string           `yaml:"iot_unit_rate"`
	StorageFreeGB    *string           `yaml:"storage_free_gb"`
	StoragePerGBRate *string           `yaml:"storage_per_gb_rate"`
	Services         map[string]string `yaml:"services"`
}

// LoadRatesFile reads a YAML rate card. Missing keys keep their defaults.
func LoadRatesFile(path string) (billing.Rates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return billing.Rates{}, fmt.Errorf("config: read billing rates: %w", err)
	}
	return ParseRates(data)
}

// ParseRates parses a YAML rate card over the default rates.
func ParseRates(data []byte) (billing.Rates, error) {
	var file ratesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return billing.Rates{}, fmt.Errorf("config: parse billing rates: %w", err)
	}
	rates := billing.DefaultRates()
	for _, field := range []struct {
		name string
		raw  *string
		dst  *decimal.Decimal
	}{
		{"api_call_unit_rate", file.APICallUnitRate, &rates.APICallUnitRate},
		{"iot_unit_rate", file.IoTUnitRate, &rates.IoTUnitRate},
		{"storage_free_gb", file.StorageFreeGB, &rates.FreeStorageGiB},
		{"storage_per_gb_rate", file.StoragePerGBRate, &rates.StoragePerGBRate},
	} {
		if field.raw == nil {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(*field.raw))
		if err != nil {
			return billing.Rates{}, fmt.Errorf("config: %s: %w", field.name, err)
		}
		*field.dst = v
	}
	for id, raw := range file.Services {
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return billing.Rates{}, fmt.Errorf("config: service %s: %w", id, err)
		}
		rates.ServiceRates[id] = v
	}
	if err := rates.Validate(); err != nil {
		return billing.Rates{}, err
	}
	return rates, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
