package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-billing/internal/audit"
	"energy-billing/internal/auth"
	masterdata "energy-billing/internal/masterdata/domain"
	mdmemory "energy-billing/internal/masterdata/infrastructure/memory"
	tariffapp "energy-billing/internal/tariff/application"
	tariff "energy-billing/internal/tariff/domain"
	tariffmemory "energy-billing/internal/tariff/infrastructure/memory"
)

type recordingAudit struct{ entries []audit.Entry }

func (a *recordingAudit) Log(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

func setup(t *testing.T) (*http.ServeMux, *tariffmemory.ProfileRepository, *recordingAudit) {
	t.Helper()
	companies := mdmemory.NewCompanyRepository(
		masterdata.Company{ID: "c1", TenantID: "t1", Type: masterdata.CompanyTypeCommercial, CountryID: "KR", Timezone: "Asia/Seoul"},
		masterdata.Company{ID: "c2", TenantID: "t2", Type: masterdata.CompanyTypeIndustrial, CountryID: "KR", Timezone: "Asia/Seoul"},
	)
	profiles := tariffmemory.NewProfileRepository(tariff.Profile{
		CountryID:         "KR",
		IndustrialRate:    decimal.RequireFromString("0.5"),
		CommercialRate:    decimal.RequireFromString("0.6319"),
		PeakMultiplier:    decimal.RequireFromString("1.5"),
		MidPeakMultiplier: decimal.RequireFromString("1.2"),
		OffPeakMultiplier: decimal.RequireFromString("0.8"),
		PeakHours:         []int{17, 18, 19},
	})
	rates, err := tariffapp.NewRateService(profiles, companies, nil)
	require.NoError(t, err)
	importer, err := tariffapp.NewImportService(profiles, nil)
	require.NoError(t, err)
	rec := &recordingAudit{}
	h, err := NewHandler(rates, importer, auth.NewCompanyChecker(companies), rec, nil)
	require.NoError(t, err)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux, profiles, rec
}

func withTenant(req *http.Request, tenantID string, role auth.Role) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), tenantID, role, "u1"))
}

func TestHourlyRatesScopedToTenant(t *testing.T) {
	mux, _, _ := setup(t)
	req := withTenant(httptest.NewRequest(http.MethodGet, "/api/v1/tariffs/hourly-rates", nil), "t1", auth.RoleViewer)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body hourlyRatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Companies, "c1")
	assert.NotContains(t, body.Companies, "c2")
	assert.Equal(t, "0.9479", body.Companies["c1"]["18"].Price.String())
	assert.Len(t, body.Companies["c1"], 24)
}

func TestHourlyRatesForeignCompanyForbidden(t *testing.T) {
	mux, _, _ := setup(t)
	req := withTenant(httptest.NewRequest(http.MethodGet, "/api/v1/tariffs/hourly-rates?company_id=c2", nil), "t1", auth.RoleViewer)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestImportYAML(t *testing.T) {
	mux, profiles, audits := setup(t)
	doc := `
tariffs:
  - country_id: JP
    industrial_rate: 0.4
    commercial_rate: 0.45
    peak_multiplier: 1.3
    mid_peak_multiplier: 1.1
    off_peak_multiplier: 0.7
    peak_hours: 13-16
    mid_peak_hours: 8-12
    off_peak_hours: 0-6
`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tariffs/import", strings.NewReader(doc))
	req.Header.Set("Content-Type", "application/yaml")
	req = withTenant(req, "t1", auth.RoleAdmin)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p, err := profiles.Get(context.Background(), "JP")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, "tariff.import", audits.entries[0].Action)
	assert.Equal(t, "JP", audits.entries[0].ResourceID)
}

func TestImportRejectsGarbage(t *testing.T) {
	mux, _, audits := setup(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tariffs/import", strings.NewReader("not a workbook"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, audits.entries)
}
