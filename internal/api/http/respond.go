package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"energy-billing/internal/auth"
	billing "energy-billing/internal/billing/domain"
	energy "energy-billing/internal/energy/domain"
	masterdata "energy-billing/internal/masterdata/domain"
	tariff "energy-billing/internal/tariff/domain"
	telemetry "energy-billing/internal/telemetry/domain"
)

// ErrBadRequest marks malformed request input.
var ErrBadRequest = errors.New("bad request")

var validationErrors = []error{
	ErrBadRequest,
	energy.ErrInvalidRange,
	energy.ErrInvalidDate,
	energy.ErrNegativeQuantity,
	energy.ErrInvalidGranularity,
	telemetry.ErrInvalidQuery,
	tariff.ErrEmptyCountryID,
	tariff.ErrNonPositiveRate,
	tariff.ErrInvalidHour,
	tariff.ErrOverlappingHours,
	billing.ErrEmptyID,
	billing.ErrEmptyCompanyID,
	billing.ErrNegativeQuantity,
	billing.ErrInvalidDate,
	billing.ErrInvalidWindow,
	billing.ErrConflictingEndDate,
	billing.ErrUnknownService,
	billing.ErrNilEntity,
}

// BadRequest wraps msg as a validation error.
func BadRequest(msg string) error {
	return &badRequest{msg: msg}
}

type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }
func (e *badRequest) Unwrap() error { return ErrBadRequest }

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, auth.ErrTenantMismatch), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, masterdata.ErrCompanyNotFound), billing.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, tariff.ErrTariffNotFound):
		return http.StatusUnprocessableEntity
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

// RespondError writes err as a JSON error. Internal errors are logged and
// their text is withheld from the client.
func RespondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
		msg = http.StatusText(status)
	}
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteJSON encodes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return BadRequest("invalid json: " + err.Error())
	}
	return nil
}

// EnsureCompanyTenant checks the authenticated tenant owns companyID.
func EnsureCompanyTenant(r *http.Request, checker auth.CompanyTenantChecker, companyID string) error {
	if checker == nil {
		return nil
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return nil
	}
	return checker.EnsureCompanyTenant(r.Context(), tenantID, companyID)
}

// RequiredQuery returns a trimmed query value or a validation error.
func RequiredQuery(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return "", BadRequest(key + " is required")
	}
	return value, nil
}

// PathTail returns the path segments after prefix.
func PathTail(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// Health serves a liveness check.
func Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
