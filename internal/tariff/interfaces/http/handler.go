package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	apihttp "energy-billing/internal/api/http"
	"energy-billing/internal/audit"
	"energy-billing/internal/auth"
	"energy-billing/internal/observability/logging"
	tariff "energy-billing/internal/tariff/domain"
	"energy-billing/internal/tariff/infrastructure/sheet"
)

const maxImportBytes = 10 << 20

// RateReader computes hourly price tables.
type RateReader interface {
	HourlyRates(ctx context.Context, companyID string) (map[string]map[int]tariff.HourRate, error)
}

// Importer stores tariff profiles.
type Importer interface {
	Import(ctx context.Context, profiles []tariff.Profile) (int, error)
}

// Handler serves /api/v1/tariffs.
type Handler struct {
	rates       RateReader
	importer    Importer
	checker     auth.CompanyTenantChecker
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(rates RateReader, importer Importer, checker auth.CompanyTenantChecker, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if rates == nil {
		return nil, errors.New("tariff handler: nil rate reader")
	}
	if importer == nil {
		return nil, errors.New("tariff handler: nil importer")
	}
	return &Handler{rates: rates, importer: importer, checker: checker, auditLogger: auditLogger, logger: logging.OrNop(logger)}, nil
}

// Register mounts the handler routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/tariffs/hourly-rates", h.handleHourlyRates)
	mux.HandleFunc("/api/v1/tariffs/import", h.handleImport)
}

type hourlyRatesResponse struct {
	Companies map[string]map[string]tariff.HourRate `json:"companies"`
}

func (h *Handler) handleHourlyRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if companyID != "" {
		if err := apihttp.EnsureCompanyTenant(r, h.checker, companyID); err != nil {
			apihttp.RespondError(w, r, h.logger, err)
			return
		}
	}
	tables, err := h.rates.HourlyRates(r.Context(), companyID)
	if err != nil {
		apihttp.RespondError(w, r, h.logger, err)
		return
	}

	resp := hourlyRatesResponse{Companies: make(map[string]map[string]tariff.HourRate, len(tables))}
	for id, table := range tables {
		if companyID == "" {
			err := apihttp.EnsureCompanyTenant(r, h.checker, id)
			if errors.Is(err, auth.ErrTenantMismatch) {
				continue
			}
			if err != nil {
				apihttp.RespondError(w, r, h.logger, err)
				return
			}
		}
		hours := make(map[string]tariff.HourRate, len(table))
		for hour, rate := range table {
			hours[strconv.Itoa(hour)] = rate
		}
		resp.Companies[id] = hours
	}
	apihttp.WriteJSON(w, http.StatusOK, resp)
}

type importResponse struct {
	Imported int `json:"imported"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	_ = r.Body.Close()
	if err != nil {
		apihttp.RespondError(w, r, h.logger, apihttp.BadRequest("read body error"))
		return
	}
	if len(body) > maxImportBytes {
		apihttp.RespondError(w, r, h.logger, apihttp.BadRequest("import too large"))
		return
	}

	profiles, err := parseProfiles(r.Header.Get("Content-Type"), body)
	if err != nil {
		apihttp.RespondError(w, r, h.logger, apihttp.BadRequest(err.Error()))
		return
	}
	n, err := h.importer.Import(r.Context(), profiles)
	if err != nil {
		apihttp.RespondError(w, r, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, importResponse{Imported: n})

	if h.auditLogger != nil {
		countries := make([]string, 0, len(profiles))
		for _, p := range profiles {
			countries = append(countries, p.CountryID)
		}
		entry := audit.FromRequest(r, "tariff.import", "tariff_profile", strings.Join(countries, ","), "")
		entry.UpdatedCount = n
		entry.ImportDigest = audit.Digest(body)
		if err := h.auditLogger.Log(r.Context(), entry); err != nil {
			h.logger.Warn("audit log failed", zap.String("action", entry.Action), zap.Error(err))
		}
	}
}

func parseProfiles(contentType string, body []byte) ([]tariff.Profile, error) {
	reader := bytes.NewReader(body)
	switch {
	case strings.Contains(contentType, "yaml"):
		return sheet.ReadYAML(reader)
	default:
		return sheet.ReadWorkbook(reader)
	}
}
