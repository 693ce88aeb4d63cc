package application

import (
	"time"

	"github.com/shopspring/decimal"

	energy "energy-billing/internal/energy/domain"
	tariff "energy-billing/internal/tariff/domain"
)

// Figures are the reconciled values shared by every report level.
type Figures struct {
	TotalUsage         decimal.Decimal `json:"totalUsage"`
	TotalForecastUsage decimal.Decimal `json:"totalForecastUsage"`
	UsageDifference    decimal.Decimal `json:"usageDifference"`
	TotalCost          decimal.Decimal `json:"totalCost"`
	TotalForecastCost  decimal.Decimal `json:"totalForecastCost"`
	CostDifference     decimal.Decimal `json:"costDifference"`
	DeviationRate      decimal.Decimal `json:"deviationRate"`
	ForecastAccuracy   decimal.Decimal `json:"forecastAccuracy"`
}

// HourlyReport is one hour bucket.
type HourlyReport struct {
	Time  string          `json:"time"`
	Price decimal.Decimal `json:"price"`
	Band  tariff.Band     `json:"band"`
	Figures
}

// DailyReport is one day bucket.
type DailyReport struct {
	Date string `json:"date"`
	Figures
	Hours []HourlyReport `json:"hours"`
}

// MonthlyReport is one month bucket.
type MonthlyReport struct {
	Month string `json:"month"`
	Figures
	Days []DailyReport `json:"days"`
}

// SummaryResponse is the reconciliation of one company over a date range.
type SummaryResponse struct {
	CompanyID string `json:"companyId"`
	Timezone  string `json:"timezone"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Figures
	Months []MonthlyReport `json:"months"`
}

// PairedResponse holds a current and a comparison reconciliation.
type PairedResponse struct {
	Current  SummaryResponse `json:"current"`
	Previous SummaryResponse `json:"previous"`
}

func figuresOf(t energy.Totals) Figures {
	return Figures{
		TotalUsage:         t.Usage,
		TotalForecastUsage: t.ForecastUsage,
		UsageDifference:    t.UsageDifference,
		TotalCost:          t.Cost,
		TotalForecastCost:  t.ForecastCost,
		CostDifference:     t.CostDifference,
		DeviationRate:      t.DeviationRate,
		ForecastAccuracy:   t.ForecastAccuracy,
	}
}

func toSummaryResponse(companyID string, loc *time.Location, start, end energy.Date, summary energy.Summary) SummaryResponse {
	resp := SummaryResponse{
		CompanyID: companyID,
		Timezone:  loc.String(),
		StartDate: start.String(),
		EndDate:   end.String(),
		Figures:   figuresOf(summary.Totals),
		Months:    make([]MonthlyReport, 0, len(summary.Months)),
	}
	for _, m := range summary.Months {
		month := MonthlyReport{Month: m.Key.String(), Figures: figuresOf(m.Totals), Days: make([]DailyReport, 0, len(m.Days))}
		for _, d := range m.Days {
			day := DailyReport{Date: d.Key.String(), Figures: figuresOf(d.Totals), Hours: make([]HourlyReport, 0, len(d.Hours))}
			for _, h := range d.Hours {
				day.Hours = append(day.Hours, HourlyReport{
					Time:    h.PeriodStart.Format(time.RFC3339),
					Price:   h.Price,
					Band:    h.Band,
					Figures: figuresOf(h.Totals),
				})
			}
			month.Days = append(month.Days, day)
		}
		resp.Months = append(resp.Months, month)
	}
	return resp
}
