package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rates holds the unit prices for metered usage and the flat-rate service catalog.
type Rates struct {
	APICallUnitRate  decimal.Decimal
	IoTUnitRate      decimal.Decimal
	FreeStorageGiB   decimal.Decimal
	StoragePerGBRate decimal.Decimal
	ServiceRates     map[string]decimal.Decimal
}

// DefaultRates returns the stock price list with an empty service catalog.
func DefaultRates() Rates {
	return Rates{
		APICallUnitRate:  decimal.RequireFromString("0.001"),
		IoTUnitRate:      decimal.NewFromInt(1),
		FreeStorageGiB:   decimal.NewFromInt(20),
		StoragePerGBRate: decimal.RequireFromString("0.5"),
		ServiceRates:     map[string]decimal.Decimal{},
	}
}

// Validate rejects negative rates.
func (r Rates) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"api_call_unit_rate":  r.APICallUnitRate,
		"iot_unit_rate":       r.IoTUnitRate,
		"free_storage_gib":    r.FreeStorageGiB,
		"storage_per_gb_rate": r.StoragePerGBRate,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s is negative", ErrInvalidRates, name)
		}
	}
	for id, v := range r.ServiceRates {
		if id == "" {
			return fmt.Errorf("%w: empty service id", ErrInvalidRates)
		}
		if v.IsNegative() {
			return fmt.Errorf("%w: service %s is negative", ErrInvalidRates, id)
		}
	}
	return nil
}

// FlatRate looks up the flat charge of a service.
func (r Rates) FlatRate(serviceID string) (decimal.Decimal, error) {
	rate, ok := r.ServiceRates[serviceID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	return rate, nil
}
