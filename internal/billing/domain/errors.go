package billing

import "errors"

var (
	// ErrEmptyID is returned when an entity has no id.
	ErrEmptyID = errors.New("billing: empty id")
	// ErrEmptyCompanyID is returned when an entity has no company.
	ErrEmptyCompanyID = errors.New("billing: empty company id")
	// ErrNegativeQuantity is returned when a metered quantity is negative.
	ErrNegativeQuantity = errors.New("billing: negative quantity")
	// ErrInvalidDate is returned when a required date is zero.
	ErrInvalidDate = errors.New("billing: invalid date")
	// ErrInvalidWindow is returned when a subscription ends before it starts.
	ErrInvalidWindow = errors.New("billing: subscription ends before it starts")
	// ErrConflictingEndDate is returned when an edit both sets and clears an end date.
	ErrConflictingEndDate = errors.New("billing: end date both set and cleared")
	// ErrInvalidRates is returned when a configured rate is negative.
	ErrInvalidRates = errors.New("billing: invalid rates")
	// ErrUnknownService is returned when a service has no configured flat rate.
	ErrUnknownService = errors.New("billing: unknown service")
	// ErrUsageFactNotFound is returned when a metered usage fact is missing.
	ErrUsageFactNotFound = errors.New("billing: usage fact not found")
	// ErrSubscriptionNotFound is returned when a subscription is missing.
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")
	// ErrPaymentNotFound is returned when a payment is missing.
	ErrPaymentNotFound = errors.New("billing: payment not found")
	// ErrNilEntity is returned when saving a nil entity.
	ErrNilEntity = errors.New("billing: nil entity")
)

// IsNotFound reports whether err is one of the billing reference-not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUsageFactNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
