package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	masterdata "energy-billing/internal/masterdata/domain"
	mdmemory "energy-billing/internal/masterdata/infrastructure/memory"
	tariff "energy-billing/internal/tariff/domain"
	"energy-billing/internal/tariff/infrastructure/memory"
)

func profileKR() tariff.Profile {
	return tariff.Profile{
		CountryID:         "KR",
		IndustrialRate:    decimal.RequireFromString("0.5"),
		CommercialRate:    decimal.RequireFromString("0.6319"),
		PeakMultiplier:    decimal.RequireFromString("1.5"),
		MidPeakMultiplier: decimal.RequireFromString("1.2"),
		OffPeakMultiplier: decimal.RequireFromString("0.8"),
		PeakHours:         []int{17, 18, 19},
		MidPeakHours:      []int{9, 10},
		OffPeakHours:      []int{1, 2},
	}
}

func companies() *mdmemory.CompanyRepository {
	return mdmemory.NewCompanyRepository(
		masterdata.Company{ID: "c-com", TenantID: "t1", Type: masterdata.CompanyTypeCommercial, CountryID: "KR", Timezone: "Asia/Seoul"},
		masterdata.Company{ID: "c-ind", TenantID: "t1", Type: masterdata.CompanyTypeIndustrial, CountryID: "KR", Timezone: "Asia/Seoul"},
	)
}

func TestHourlyRatesSingleCompany(t *testing.T) {
	svc, err := NewRateService(memory.NewProfileRepository(profileKR()), companies(), nil)
	require.NoError(t, err)

	rates, err := svc.HourlyRates(context.Background(), "c-com")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	table := rates["c-com"]
	require.Len(t, table, 24)
	assert.Equal(t, tariff.BandPeak, table[18].Band)
	assert.Equal(t, "0.9479", table[18].Price.String())
	assert.Equal(t, tariff.BandUnknown, table[13].Band)
}

func TestHourlyRatesAllCompanies(t *testing.T) {
	svc, err := NewRateService(memory.NewProfileRepository(profileKR()), companies(), nil)
	require.NoError(t, err)

	rates, err := svc.HourlyRates(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.True(t, rates["c-ind"][9].Price.Equal(decimal.RequireFromString("0.6")))
}

func TestHourlyRatesMissingProfileIsFatal(t *testing.T) {
	dir := companies()
	require.NoError(t, dir.Save(context.Background(), &masterdata.Company{ID: "c-jp", TenantID: "t1", CountryID: "JP", Timezone: "Asia/Tokyo"}))
	svc, err := NewRateService(memory.NewProfileRepository(profileKR()), dir, nil)
	require.NoError(t, err)

	rates, err := svc.HourlyRates(context.Background(), "")
	assert.ErrorIs(t, err, tariff.ErrTariffNotFound)
	assert.Nil(t, rates)
}

func TestHourlyRatesUnknownCompany(t *testing.T) {
	svc, err := NewRateService(memory.NewProfileRepository(profileKR()), companies(), nil)
	require.NoError(t, err)

	_, err = svc.HourlyRates(context.Background(), "missing")
	assert.ErrorIs(t, err, masterdata.ErrCompanyNotFound)
}

func TestImportRejectsOverlapWithoutWriting(t *testing.T) {
	repo := memory.NewProfileRepository()
	svc, err := NewImportService(repo, nil)
	require.NoError(t, err)

	bad := profileKR()
	bad.CountryID = "JP"
	bad.OffPeakHours = []int{18}

	n, err := svc.Import(context.Background(), []tariff.Profile{profileKR(), bad})
	assert.ErrorIs(t, err, tariff.ErrOverlappingHours)
	assert.Zero(t, n)

	got, err := repo.Get(context.Background(), "KR")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err = svc.Import(context.Background(), []tariff.Profile{profileKR()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
