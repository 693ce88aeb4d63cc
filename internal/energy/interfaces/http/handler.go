package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apihttp "energy-billing/internal/api/http"
	"energy-billing/internal/auth"
	energyapp "energy-billing/internal/energy/application"
	energy "energy-billing/internal/energy/domain"
	"energy-billing/internal/observability/logging"
	telemetry "energy-billing/internal/telemetry/domain"
)

// EnergyReader is the reconciliation surface served over HTTP.
type EnergyReader interface {
	ReadEnergy(ctx context.Context, q energyapp.Query) (energyapp.SummaryResponse, error)
	GetRealtimeAndLastMonth(ctx context.Context, companyID string, filters ...telemetry.ReadingFilter) (energyapp.PairedResponse, error)
	GetThisAndLastMonth(ctx context.Context, companyID string, filters ...telemetry.ReadingFilter) (energyapp.PairedResponse, error)
}

// Handler serves /api/v1/energy.
type Handler struct {
	service EnergyReader
	checker auth.CompanyTenantChecker
	logger  *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service EnergyReader, checker auth.CompanyTenantChecker, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("energy handler: nil service")
	}
	return &Handler{service: service, checker: checker, logger: logging.OrNop(logger)}, nil
}

// Register mounts the handler routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/energy", h.handleRange)
	mux.HandleFunc("/api/v1/energy/realtime", h.handleRealtime)
	mux.HandleFunc("/api/v1/energy/monthly", h.handleMonthly)
}

func (h *Handler) handleRange(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.begin(w, r)
	if !ok {
		return
	}
	start, err := energy.ParseDate(r.URL.Query().Get("start_date"))
	if err != nil {
		apihttp.RespondError(w, r, h.logger, err)
		return
	}
	var end energy.Date
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		if end, err = energy.ParseDate(raw); err != nil {
			apihttp.RespondError(w, r, h.logger, err)
			return
		}
	}
	q := energyapp.Query{CompanyID: companyID, StartDate: start, EndDate: end}.WithFilters(deviceFilters(r)...)
	resp, err := h.service.ReadEnergy(r.Context(), q)
	if err != nil {
		apihttp.RespondError(w, r, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRealtime(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.begin(w, r)
	if !ok {
		return
	}
	resp, err := h.service.GetRealtimeAndLastMonth(r.Context(), companyID, deviceFilters(r)...)
	if err != nil {
		apihttp.RespondError(w, r, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.begin(w, r)
	if !ok {
		return
	}
	resp, err := h.service.GetThisAndLastMonth(r.Context(), companyID, deviceFilters(r)...)
	if err != nil {
		apihttp.RespondError(w, r, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, resp)
}

// begin checks the method and tenant ownership and returns the company id.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return "", false
	}
	companyID, err := apihttp.RequiredQuery(r, "company_id")
	if err != nil {
		apihttp.RespondError(w, r, h.logger, err)
		return "", false
	}
	if err := apihttp.EnsureCompanyTenant(r, h.checker, companyID); err != nil {
		apihttp.RespondError(w, r, h.logger, err)
		return "", false
	}
	return companyID, true
}

// deviceFilters turns device_id and exclude_device_id query values,
// repeated or comma separated, into reading filters.
func deviceFilters(r *http.Request) []telemetry.ReadingFilter {
	return []telemetry.ReadingFilter{
		telemetry.ByDevices(splitValues(r.URL.Query()["device_id"])...),
		telemetry.ExcludeDevices(splitValues(r.URL.Query()["exclude_device_id"])...),
	}
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
