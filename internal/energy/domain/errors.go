package energy

import "errors"

var (
	// ErrInvalidRange is returned when the end date precedes the start date.
	ErrInvalidRange = errors.New("energy: invalid date range")
	// ErrInvalidDate is returned when a civil date cannot be parsed.
	ErrInvalidDate = errors.New("energy: invalid date")
	// ErrNilLocation is returned when aggregation has no timezone.
	ErrNilLocation = errors.New("energy: nil location")
	// ErrNegativeQuantity is returned when a reading or forecast is negative.
	ErrNegativeQuantity = errors.New("energy: negative quantity")
	// ErrInvalidGranularity is returned for an unsupported bucket granularity.
	ErrInvalidGranularity = errors.New("energy: invalid granularity")
)
