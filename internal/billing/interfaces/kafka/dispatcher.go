package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	billingapp "energy-billing/internal/billing/application"
	billing "energy-billing/internal/billing/domain"
	"energy-billing/internal/observability/logging"
	"energy-billing/internal/observability/metrics"
)

// Upstream message types.
const (
	TypeMeteredUsageUpdated   = "metered_usage.updated"
	TypeSubscriptionCreated   = "subscription.created"
	TypeSubscriptionUpdated   = "subscription.updated"
	TypeSubscriptionCancelled = "subscription.cancelled"
)

// ErrMalformedMessage is returned for messages that cannot be decoded.
var ErrMalformedMessage = errors.New("billing consumer: malformed message")

// ErrUnknownType is returned for messages of an unsupported type.
var ErrUnknownType = errors.New("billing consumer: unknown message type")

// UsageUpdater edits metered usage.
type UsageUpdater interface {
	UpdateMeteredUsage(ctx context.Context, fact billing.MeteredUsageFact) (billingapp.RecalculationReport, error)
}

// SubscriptionEditor edits subscriptions.
type SubscriptionEditor interface {
	Create(ctx context.Context, sub billing.Subscription) (billing.Subscription, billingapp.RecalculationReport, error)
	Update(ctx context.Context, id string, change billingapp.SubscriptionChange) (billing.Subscription, billingapp.RecalculationReport, error)
	Cancel(ctx context.Context, id string) (billing.Subscription, billingapp.RecalculationReport, error)
}

type envelope struct {
	Type         string               `json:"type"`
	UsageFact    *usageFactPayload    `json:"usage_fact,omitempty"`
	Subscription *subscriptionPayload `json:"subscription,omitempty"`
}

type usageFactPayload struct {
	ID                   string `json:"id"`
	CompanyID            string `json:"company_id"`
	UsageDate            string `json:"usage_date"`
	APICallCount         int64  `json:"api_call_count"`
	IoTInstallationCount int64  `json:"iot_installation_count"`
	DatabaseStorageBytes int64  `json:"database_storage_bytes"`
}

type subscriptionPayload struct {
	ID           string  `json:"id"`
	CompanyID    string  `json:"company_id"`
	ServiceID    string  `json:"service_id"`
	StartDate    string  `json:"start_date"`
	EndDate      *string `json:"end_date"`
	ClearEndDate bool    `json:"clear_end_date"`
}

// Dispatcher routes upstream billing messages to the billing services.
type Dispatcher struct {
	usage         UsageUpdater
	subscriptions SubscriptionEditor
	logger        *zap.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(usage UsageUpdater, subscriptions SubscriptionEditor, logger *zap.Logger) (*Dispatcher, error) {
	if usage == nil {
		return nil, errors.New("billing dispatcher: nil usage service")
	}
	if subscriptions == nil {
		return nil, errors.New("billing dispatcher: nil subscription service")
	}
	return &Dispatcher{usage: usage, subscriptions: subscriptions, logger: logging.OrNop(logger).Named("billing-consumer")}, nil
}

// Dispatch decodes one message and applies it. The returned report is empty
// when the message fails before any recalculation.
func (d *Dispatcher) Dispatch(ctx context.Context, value []byte) (report billingapp.RecalculationReport, err error) {
	msgType := "unknown"
	defer func() {
		result := metrics.ResultSuccess
		switch {
		case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownType):
			result = metrics.ResultSkipped
		case err != nil:
			result = metrics.ResultError
		case len(report.Failed) > 0:
			result = metrics.ResultError
		}
		metrics.IncConsumerMessage(msgType, result)
	}()

	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	msgType = env.Type

	switch env.Type {
	case TypeMeteredUsageUpdated:
		if env.UsageFact == nil {
			return report, fmt.Errorf("%w: missing usage_fact", ErrMalformedMessage)
		}
		fact, err := env.UsageFact.toDomain()
		if err != nil {
			return report, err
		}
		return d.usage.UpdateMeteredUsage(ctx, fact)

	case TypeSubscriptionCreated, TypeSubscriptionUpdated, TypeSubscriptionCancelled:
		if env.Subscription == nil || env.Subscription.ID == "" {
			return report, fmt.Errorf("%w: missing subscription id", ErrMalformedMessage)
		}
		return d.dispatchSubscription(ctx, env.Type, *env.Subscription)

	default:
		return report, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func (d *Dispatcher) dispatchSubscription(ctx context.Context, msgType string, p subscriptionPayload) (billingapp.RecalculationReport, error) {
	if msgType == TypeSubscriptionCancelled {
		_, report, err := d.subscriptions.Cancel(ctx, p.ID)
		return report, err
	}

	end, err := parseOptionalDay(p.EndDate)
	if err != nil {
		return billingapp.RecalculationReport{}, err
	}
	if msgType == TypeSubscriptionUpdated {
		change := billingapp.SubscriptionChange{ServiceID: p.ServiceID, EndDate: end, ClearEndDate: p.ClearEndDate}
		if p.StartDate != "" {
			if change.StartDate, err = parseDay(p.StartDate); err != nil {
				return billingapp.RecalculationReport{}, err
			}
		}
		_, report, err := d.subscriptions.Update(ctx, p.ID, change)
		return report, err
	}

	start, err := parseDay(p.StartDate)
	if err != nil {
		return billingapp.RecalculationReport{}, err
	}
	_, report, err := d.subscriptions.Create(ctx, billing.Subscription{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		ServiceID: p.ServiceID,
		StartDate: start,
		EndDate:   end,
	})
	return report, err
}

func (p usageFactPayload) toDomain() (billing.MeteredUsageFact, error) {
	date, err := parseDay(p.UsageDate)
	if err != nil {
		return billing.MeteredUsageFact{}, err
	}
	return billing.MeteredUsageFact{
		ID:                   p.ID,
		CompanyID:            p.CompanyID,
		UsageDate:            date,
		APICallCount:         p.APICallCount,
		IoTInstallationCount: p.IoTInstallationCount,
		DatabaseStorageBytes: p.DatabaseStorageBytes,
	}, nil
}

func parseDay(raw string) (time.Time, error) {
	d, err := billing.ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedMessage, raw)
	}
	return d, nil
}

func parseOptionalDay(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := parseDay(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
