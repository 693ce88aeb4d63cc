package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apihttp "energy-billing/internal/api/http"
	"energy-billing/internal/audit"
	"energy-billing/internal/auth"
	billingapp "energy-billing/internal/billing/application"
	billing "energy-billing/internal/billing/domain"
	"energy-billing/internal/observability/logging"
)

// UsageUpdater edits metered usage.
type UsageUpdater interface {
	UpdateMeteredUsage(ctx context.Context, fact billing.MeteredUsageFact) (billingapp.RecalculationReport, error)
}

// SubscriptionManager edits subscriptions.
type SubscriptionManager interface {
	Get(ctx context.Context, id string) (*billing.Subscription, error)
	Create(ctx context.Context, sub billing.Subscription) (billing.Subscription, billingapp.RecalculationReport, error)
	Update(ctx context.Context, id string, change billingapp.SubscriptionChange) (billing.Subscription, billingapp.RecalculationReport, error)
	Cancel(ctx context.Context, id string) (billing.Subscription, billingapp.RecalculationReport, error)
}

// PaymentManager creates and recalculates payments.
type PaymentManager interface {
	Get(ctx context.Context, id string) (*billing.Payment, error)
	Create(ctx context.Context, in billingapp.NewPayment) (billing.Payment, error)
	RecalculateCompany(ctx context.Context, companyID string) (billingapp.RecalculationReport, error)
	RecalculatePayments(ctx context.Context, ids []string) (billingapp.RecalculationReport, error)
	Statement(ctx context.Context, companyID string, from, to time.Time) (billing.Statement, error)
}

// Summarizer prices billing periods.
type Summarizer interface {
	SummarizePeriod(ctx context.Context, companyID string, from, to time.Time) (billing.PeriodSummary, error)
}

// FactReader loads usage facts. Get returns (nil, nil) when missing.
type FactReader interface {
	Get(ctx context.Context, id string) (*billing.MeteredUsageFact, error)
}

// Services groups the billing use cases served over HTTP.
type Services struct {
	Usage         UsageUpdater
	Subscriptions SubscriptionManager
	Payments      PaymentManager
	Summary       Summarizer
	Facts         FactReader
}

// Handler serves /api/v1/billing.
type Handler struct {
	svc         Services
	checker     auth.CompanyTenantChecker
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(svc Services, checker auth.CompanyTenantChecker, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if svc.Usage == nil || svc.Subscriptions == nil || svc.Payments == nil || svc.Summary == nil || svc.Facts == nil {
		return nil, errors.New("billing handler: missing service")
	}
	return &Handler{svc: svc, checker: checker, auditLogger: auditLogger, logger: logging.OrNop(logger)}, nil
}

// Register mounts the handler routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/billing/summary", h.handleSummary)
	mux.HandleFunc("/api/v1/billing/statements", h.handleStatement)
	mux.HandleFunc("/api/v1/billing/usage-facts/", h.handleUsageFact)
	mux.HandleFunc("/api/v1/billing/subscriptions", h.handleSubscriptions)
	mux.HandleFunc("/api/v1/billing/subscriptions/", h.handleSubscriptions)
	mux.HandleFunc("/api/v1/billing/payments", h.handlePayments)
	mux.HandleFunc("/api/v1/billing/payments/", h.handlePayments)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	companyID, err := apihttp.RequiredQuery(r, "company_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	from, err := queryDay(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ensureTenant(r, companyID); err != nil {
		h.fail(w, r, err)
		return
	}
	summary, err := h.svc.Summary.SummarizePeriod(r.Context(), companyID, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, toSummary(summary))
}

// GET /api/v1/billing/statements?company_id=&from=&to=
func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	companyID, err := apihttp.RequiredQuery(r, "company_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	from, err := queryDay(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ensureTenant(r, companyID); err != nil {
		h.fail(w, r, err)
		return
	}
	stmt, err := h.svc.Payments.Statement(r.Context(), companyID, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, toStatement(stmt))
}

// PUT /api/v1/billing/usage-facts/{id}
func (h *Handler) handleUsageFact(w http.ResponseWriter, r *http.Request) {
	parts := apihttp.PathTail(r.URL.Path, "/api/v1/billing/usage-facts")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req usageFactRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	usageDate, err := billing.ParseDay(req.UsageDate)
	if err != nil {
		h.fail(w, r, apihttp.BadRequest("usage_date must be YYYY-MM-DD"))
		return
	}
	if err := h.ensureTenant(r, req.CompanyID); err != nil {
		h.fail(w, r, err)
		return
	}
	existing, err := h.svc.Facts.Get(r.Context(), parts[0])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if existing != nil && existing.CompanyID != req.CompanyID {
		h.fail(w, r, apihttp.BadRequest("company_id cannot change"))
		return
	}

	report, err := h.svc.Usage.UpdateMeteredUsage(r.Context(), billing.MeteredUsageFact{
		ID:                   parts[0],
		CompanyID:            req.CompanyID,
		UsageDate:            usageDate,
		APICallCount:         req.APICallCount,
		IoTInstallationCount: req.IoTInstallationCount,
		DatabaseStorageBytes: req.DatabaseStorageBytes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, toReport(report))
	h.audit(r, "billing.usage_fact.update", "usage_fact", parts[0], req.CompanyID, report)
}

// POST /subscriptions, GET|PUT /subscriptions/{id}, POST /subscriptions/{id}/cancel
func (h *Handler) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	parts := apihttp.PathTail(r.URL.Path, "/api/v1/billing/subscriptions")
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.createSubscription(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		sub, ok := h.loadSubscription(w, r, parts[0])
		if ok {
			apihttp.WriteJSON(w, http.StatusOK, toSubscription(*sub))
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.updateSubscription(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		h.cancelSubscription(w, r, parts[0])
	case len(parts) > 2 || (len(parts) == 2 && parts[1] != "cancel"):
		http.NotFound(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := billing.ParseDay(req.StartDate)
	if err != nil {
		h.fail(w, r, apihttp.BadRequest("start_date must be YYYY-MM-DD"))
		return
	}
	end, err := parseOptionalDay(req.EndDate)
	if err != nil {
		h.fail(w, r, apihttp.BadRequest("end_date must be YYYY-MM-DD"))
		return
	}
	if err := h.ensureTenant(r, req.CompanyID); err != nil {
		h.fail(w, r, err)
		return
	}
	sub, report, err := h.svc.Subscriptions.Create(r.Context(), billing.Subscription{
		ID:        req.ID,
		CompanyID: req.CompanyID,
		ServiceID: req.ServiceID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, subscriptionResult{Subscription: toSubscription(sub), Report: toReport(report)})
	h.audit(r, "billing.subscription.create", "subscription", sub.ID, sub.CompanyID, report)
}

func (h *Handler) updateSubscription(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.loadSubscription(w, r, id); !ok {
		return
	}
	var req subscriptionChangeRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var change billingapp.SubscriptionChange
	change.ServiceID = req.ServiceID
	if req.StartDate != "" {
		start, err := billing.ParseDay(req.StartDate)
		if err != nil {
			h.fail(w, r, apihttp.BadRequest("start_date must be YYYY-MM-DD"))
			return
		}
		change.StartDate = start
	}
	end, err := parseOptionalDay(req.EndDate)
	if err != nil {
		h.fail(w, r, apihttp.BadRequest("end_date must be YYYY-MM-DD"))
		return
	}
	change.EndDate = end
	change.ClearEndDate = req.ClearEndDate

	sub, report, err := h.svc.Subscriptions.Update(r.Context(), id, change)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, subscriptionResult{Subscription: toSubscription(sub), Report: toReport(report)})
	h.audit(r, "billing.subscription.update", "subscription", sub.ID, sub.CompanyID, report)
}

func (h *Handler) cancelSubscription(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.loadSubscription(w, r, id); !ok {
		return
	}
	sub, report, err := h.svc.Subscriptions.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, subscriptionResult{Subscription: toSubscription(sub), Report: toReport(report)})
	h.audit(r, "billing.subscription.cancel", "subscription", sub.ID, sub.CompanyID, report)
}

// loadSubscription fetches a subscription and checks its tenant.
func (h *Handler) loadSubscription(w http.ResponseWriter, r *http.Request, id string) (*billing.Subscription, bool) {
	sub, err := h.svc.Subscriptions.Get(r.Context(), id)
	if err == nil {
		err = h.ensureTenant(r, sub.CompanyID)
	}
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return sub, true
}

// POST /payments, GET /payments/{id}, POST /payments/recalculate
func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	parts := apihttp.PathTail(r.URL.Path, "/api/v1/billing/payments")
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.createPayment(w, r)
	case len(parts) == 1 && parts[0] == "recalculate" && r.Method == http.MethodPost:
		h.recalculate(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		p, ok := h.loadPayment(w, r, parts[0])
		if ok {
			apihttp.WriteJSON(w, http.StatusOK, toPayment(*p))
		}
	case len(parts) > 1:
		http.NotFound(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var scheduled time.Time
	if req.ScheduledPaymentDate != "" {
		var err error
		if scheduled, err = billing.ParseDay(req.ScheduledPaymentDate); err != nil {
			h.fail(w, r, apihttp.BadRequest("scheduled_payment_date must be YYYY-MM-DD"))
			return
		}
	}
	fact, err := h.svc.Facts.Get(r.Context(), req.MeteredUsageID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if fact == nil {
		h.fail(w, r, billing.ErrUsageFactNotFound)
		return
	}
	if err := h.ensureTenant(r, fact.CompanyID); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Payments.Create(r.Context(), billingapp.NewPayment{
		ID:                   req.ID,
		MeteredUsageID:       req.MeteredUsageID,
		StorageUsageBytes:    req.StorageUsageBytes,
		ScheduledPaymentDate: scheduled,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, toPayment(p))
	h.audit(r, "billing.payment.create", "payment", p.ID, p.CompanyID, billingapp.RecalculationReport{Updated: []string{p.ID}})
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var (
		report billingapp.RecalculationReport
		err    error
	)
	switch {
	case req.CompanyID != "" && len(req.PaymentIDs) == 0:
		if err := h.ensureTenant(r, req.CompanyID); err != nil {
			h.fail(w, r, err)
			return
		}
		report, err = h.svc.Payments.RecalculateCompany(r.Context(), req.CompanyID)
	case req.CompanyID == "" && len(req.PaymentIDs) > 0:
		for _, id := range req.PaymentIDs {
			if _, ok := h.loadPayment(w, r, id); !ok {
				return
			}
		}
		report, err = h.svc.Payments.RecalculatePayments(r.Context(), req.PaymentIDs)
	default:
		h.fail(w, r, apihttp.BadRequest("exactly one of company_id or payment_ids is required"))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, toReport(report))
	h.audit(r, "billing.payment.recalculate", "payment", strings.Join(req.PaymentIDs, ","), req.CompanyID, report)
}

func (h *Handler) loadPayment(w http.ResponseWriter, r *http.Request, id string) (*billing.Payment, bool) {
	p, err := h.svc.Payments.Get(r.Context(), id)
	if err == nil {
		err = h.ensureTenant(r, p.CompanyID)
	}
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return p, true
}

func (h *Handler) ensureTenant(r *http.Request, companyID string) error {
	if strings.TrimSpace(companyID) == "" {
		return apihttp.BadRequest("company_id is required")
	}
	return apihttp.EnsureCompanyTenant(r, h.checker, companyID)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apihttp.RespondError(w, r, h.logger, err)
}

func (h *Handler) audit(r *http.Request, action, resourceType, resourceID, companyID string, report billingapp.RecalculationReport) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, action, resourceType, resourceID, companyID)
	entry.Trigger = report.Trigger
	entry.UpdatedCount = len(report.Updated)
	entry.FailedPaymentIDs = report.FailedIDs()
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func queryDay(r *http.Request, key string) (time.Time, error) {
	raw, err := apihttp.RequiredQuery(r, key)
	if err != nil {
		return time.Time{}, err
	}
	d, err := billing.ParseDay(raw)
	if err != nil {
		return time.Time{}, apihttp.BadRequest(fmt.Sprintf("%s must be YYYY-MM-DD", key))
	}
	return d, nil
}
