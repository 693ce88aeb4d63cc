package billing

import (
	"context"
	"time"
)

// MeteredUsageFact is one company's billable consumption for one date.
type MeteredUsageFact struct {
	ID                   string
	CompanyID            string
	UsageDate            time.Time
	APICallCount         int64
	IoTInstallationCount int64
	DatabaseStorageBytes int64
	UpdatedAt            time.Time
}

// Validate checks fact invariants.
func (f MeteredUsageFact) Validate() error {
	if f.ID == "" {
		return ErrEmptyID
	}
	if f.CompanyID == "" {
		return ErrEmptyCompanyID
	}
	if f.UsageDate.IsZero() {
		return ErrInvalidDate
	}
	if f.APICallCount < 0 || f.IoTInstallationCount < 0 || f.DatabaseStorageBytes < 0 {
		return ErrNegativeQuantity
	}
	return nil
}

// UsageFactRepository stores metered usage facts. Get returns (nil, nil) when missing.
type UsageFactRepository interface {
	Get(ctx context.Context, id string) (*MeteredUsageFact, error)
	Save(ctx context.Context, fact *MeteredUsageFact) error
	// ListByCompanyBetween returns facts with from <= usage date <= to, ascending by date.
	ListByCompanyBetween(ctx context.Context, companyID string, from, to time.Time) ([]MeteredUsageFact, error)
}
