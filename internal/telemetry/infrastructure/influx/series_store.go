package influx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/shopspring/decimal"

	telemetry "energy-billing/internal/telemetry/domain"
)

const (
	defaultReadingMeasurement  = "energy_usage"
	defaultForecastMeasurement = "energy_forecast"
	readingField               = "usage"
	forecastField              = "forecast"
)

// Config holds InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// SeriesStore reads readings and forecasts from an InfluxDB v2 bucket.
type SeriesStore struct {
	client              influxdb2.Client
	query               api.QueryAPI
	bucket              string
	readingMeasurement  string
	forecastMeasurement string
}

// NewSeriesStore connects and verifies the server is healthy.
func NewSeriesStore(ctx context.Context, cfg Config) (*SeriesStore, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, errors.New("influx store: url and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("influx store: health check: %w", err)
	}
	return &SeriesStore{
		client:              client,
		query:               client.QueryAPI(cfg.Org),
		bucket:              cfg.Bucket,
		readingMeasurement:  defaultReadingMeasurement,
		forecastMeasurement: defaultForecastMeasurement,
	}, nil
}

// Close releases the client.
func (s *SeriesStore) Close() {
	if s != nil && s.client != nil {
		s.client.Close()
	}
}

// Readings returns readings of a company within [From, To).
func (s *SeriesStore) Readings(ctx context.Context, companyID string, window telemetry.Range) ([]telemetry.MeterReading, error) {
	if companyID == "" {
		return nil, telemetry.ErrInvalidQuery
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	result, err := s.query.Query(ctx, rangeQuery(s.bucket, s.readingMeasurement, readingField, companyID, window))
	if err != nil {
		return nil, fmt.Errorf("influx store: readings: %w", err)
	}
	defer result.Close()

	var readings []telemetry.MeterReading
	for result.Next() {
		record := result.Record()
		usage, err := toDecimal(record.Value())
		if err != nil {
			return nil, err
		}
		deviceID, _ := record.ValueByKey("device_id").(string)
		readings = append(readings, telemetry.MeterReading{
			DeviceID:  deviceID,
			CompanyID: companyID,
			Timestamp: record.Time().UTC(),
			Usage:     usage,
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx store: readings: %w", err)
	}
	return readings, nil
}

// Forecasts returns forecasts of a company within [From, To).
func (s *SeriesStore) Forecasts(ctx context.Context, companyID string, window telemetry.Range) ([]telemetry.ForecastPoint, error) {
	if companyID == "" {
		return nil, telemetry.ErrInvalidQuery
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	result, err := s.query.Query(ctx, rangeQuery(s.bucket, s.forecastMeasurement, forecastField, companyID, window))
	if err != nil {
		return nil, fmt.Errorf("influx store: forecasts: %w", err)
	}
	defer result.Close()

	var points []telemetry.ForecastPoint
	for result.Next() {
		record := result.Record()
		value, err := toDecimal(record.Value())
		if err != nil {
			return nil, err
		}
		points = append(points, telemetry.ForecastPoint{
			CompanyID: companyID,
			Timestamp: record.Time().UTC(),
			Forecast:  value,
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx store: forecasts: %w", err)
	}
	return points, nil
}

func rangeQuery(bucket, measurement, field, companyID string, window telemetry.Range) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q and r._field == %q and r.company_id == %q)
  |> sort(columns: ["_time"])`,
		bucket,
		window.From.UTC().Format(time.RFC3339Nano),
		window.To.UTC().Format(time.RFC3339Nano),
		measurement,
		field,
		strings.TrimSpace(companyID),
	)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint64:
		return decimal.NewFromString(strconv.FormatUint(n, 10))
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("influx store: unsupported value type %T", v)
	}
}
