package http

import (
	"time"

	"github.com/shopspring/decimal"

	billingapp "energy-billing/internal/billing/application"
	billing "energy-billing/internal/billing/domain"
)

const dateLayout = "2006-01-02"

type usageFactRequest struct {
	CompanyID            string `json:"company_id"`
	UsageDate            string `json:"usage_date"`
	APICallCount         int64  `json:"api_call_count"`
	IoTInstallationCount int64  `json:"iot_installation_count"`
	DatabaseStorageBytes int64  `json:"database_storage_bytes"`
}

type subscriptionRequest struct {
	ID        string  `json:"id,omitempty"`
	CompanyID string  `json:"company_id"`
	ServiceID string  `json:"service_id"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
}

// An absent or null end_date keeps the current end; clear_end_date reopens the subscription.
type subscriptionChangeRequest struct {
	ServiceID    string  `json:"service_id,omitempty"`
	StartDate    string  `json:"start_date,omitempty"`
	EndDate      *string `json:"end_date"`
	ClearEndDate bool    `json:"clear_end_date,omitempty"`
}

type paymentRequest struct {
	ID                   string `json:"id,omitempty"`
	MeteredUsageID       string `json:"metered_usage_id"`
	StorageUsageBytes    int64  `json:"storage_usage_bytes"`
	ScheduledPaymentDate string `json:"scheduled_payment_date,omitempty"`
}

type recalculateRequest struct {
	CompanyID  string   `json:"company_id,omitempty"`
	PaymentIDs []string `json:"payment_ids,omitempty"`
}

type failure struct {
	PaymentID string `json:"payment_id"`
	Error     string `json:"error"`
}

type reportResponse struct {
	Trigger string    `json:"trigger"`
	Updated []string  `json:"updated"`
	Failed  []failure `json:"failed"`
}

type subscriptionResponse struct {
	ID        string  `json:"id"`
	CompanyID string  `json:"company_id"`
	ServiceID string  `json:"service_id"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type subscriptionResult struct {
	Subscription subscriptionResponse `json:"subscription"`
	Report       reportResponse       `json:"recalculation"`
}

type paymentResponse struct {
	ID                     string          `json:"id"`
	CompanyID              string          `json:"company_id"`
	MeteredUsageID         string          `json:"metered_usage_id"`
	SubscriptionServiceIDs []string        `json:"subscription_service_ids"`
	StorageUsageBytes      int64           `json:"storage_usage_bytes"`
	Amount                 decimal.Decimal `json:"amount"`
	Status                 string          `json:"status"`
	UsageDate              string          `json:"usage_date"`
	ScheduledPaymentDate   string          `json:"scheduled_payment_date,omitempty"`
}

type summaryResponse struct {
	CompanyID             string          `json:"company_id"`
	From                  string          `json:"from"`
	To                    string          `json:"to"`
	APICallCount          int64           `json:"api_call_count"`
	IoTInstallationCount  int64           `json:"iot_installation_count"`
	DatabaseStorageBytes  int64           `json:"database_storage_bytes"`
	ServiceIDs            []string        `json:"service_ids"`
	APICallAmount         decimal.Decimal `json:"api_call_amount"`
	IoTInstallationAmount decimal.Decimal `json:"iot_installation_amount"`
	StorageAmount         decimal.Decimal `json:"storage_amount"`
	SubscriptionAmount    decimal.Decimal `json:"subscription_amount"`
	Amount                decimal.Decimal `json:"amount"`
}

func toReport(r billingapp.RecalculationReport) reportResponse {
	out := reportResponse{Trigger: r.Trigger, Updated: r.Updated, Failed: []failure{}}
	if out.Updated == nil {
		out.Updated = []string{}
	}
	for _, f := range r.Failed {
		out.Failed = append(out.Failed, failure{PaymentID: f.PaymentID, Error: f.Err.Error()})
	}
	return out
}

func toSubscription(s billing.Subscription) subscriptionResponse {
	out := subscriptionResponse{
		ID:        s.ID,
		CompanyID: s.CompanyID,
		ServiceID: s.ServiceID,
		StartDate: s.StartDate.Format(dateLayout),
	}
	if s.EndDate != nil {
		end := s.EndDate.Format(dateLayout)
		out.EndDate = &end
	}
	return out
}

func toPayment(p billing.Payment) paymentResponse {
	out := paymentResponse{
		ID:                     p.ID,
		CompanyID:              p.CompanyID,
		MeteredUsageID:         p.MeteredUsageID,
		SubscriptionServiceIDs: p.SubscriptionServiceIDs,
		StorageUsageBytes:      p.StorageUsageBytes,
		Amount:                 p.Amount,
		Status:                 string(p.Status),
		UsageDate:              p.UsageDate.Format(dateLayout),
	}
	if out.SubscriptionServiceIDs == nil {
		out.SubscriptionServiceIDs = []string{}
	}
	if !p.ScheduledPaymentDate.IsZero() {
		out.ScheduledPaymentDate = p.ScheduledPaymentDate.Format(dateLayout)
	}
	return out
}

type statementResponse struct {
	CompanyID   string            `json:"company_id"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Total       decimal.Decimal   `json:"total"`
	PaidTotal   decimal.Decimal   `json:"paid_total"`
	Outstanding decimal.Decimal   `json:"outstanding"`
	Payments    []paymentResponse `json:"payments"`
}

func toStatement(s billing.Statement) statementResponse {
	out := statementResponse{
		CompanyID:   s.CompanyID,
		From:        s.From.Format(dateLayout),
		To:          s.To.Format(dateLayout),
		Total:       s.Total,
		PaidTotal:   s.PaidTotal,
		Outstanding: s.Outstanding,
		Payments:    make([]paymentResponse, 0, len(s.Payments)),
	}
	for _, p := range s.Payments {
		out.Payments = append(out.Payments, toPayment(p))
	}
	return out
}

func toSummary(s billing.PeriodSummary) summaryResponse {
	return summaryResponse{
		CompanyID:             s.CompanyID,
		From:                  s.From.Format(dateLayout),
		To:                    s.To.Format(dateLayout),
		APICallCount:          s.APICallCount,
		IoTInstallationCount:  s.IoTInstallationCount,
		DatabaseStorageBytes:  s.DatabaseStorageBytes,
		ServiceIDs:            s.ServiceIDs,
		APICallAmount:         s.APICallAmount,
		IoTInstallationAmount: s.IoTInstallationAmount,
		StorageAmount:         s.StorageAmount,
		SubscriptionAmount:    s.SubscriptionAmount,
		Amount:                s.Amount,
	}
}

func parseOptionalDay(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := billing.ParseDay(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
