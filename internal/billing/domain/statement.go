package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Statement lists a company's payments whose usage date falls in [From, To].
type Statement struct {
	CompanyID   string
	From        time.Time
	To          time.Time
	Payments    []Payment
	Total       decimal.Decimal
	PaidTotal   decimal.Decimal
	Outstanding decimal.Decimal
	GeneratedAt time.Time
}

// NewStatement totals payments and orders them by usage date, then id.
func NewStatement(companyID string, from, to time.Time, payments []Payment, now time.Time) Statement {
	stmt := Statement{
		CompanyID:   companyID,
		From:        Day(from),
		To:          Day(to),
		Payments:    make([]Payment, 0, len(payments)),
		Total:       decimal.Zero,
		PaidTotal:   decimal.Zero,
		Outstanding: decimal.Zero,
		GeneratedAt: now,
	}
	for _, p := range payments {
		stmt.Payments = append(stmt.Payments, p.Clone())
		stmt.Total = stmt.Total.Add(p.Amount)
		if p.Status == PaymentStatusPaid {
			stmt.PaidTotal = stmt.PaidTotal.Add(p.Amount)
		} else {
			stmt.Outstanding = stmt.Outstanding.Add(p.Amount)
		}
	}
	sort.SliceStable(stmt.Payments, func(i, j int) bool {
		a, b := stmt.Payments[i], stmt.Payments[j]
		if !a.UsageDate.Equal(b.UsageDate) {
			return a.UsageDate.Before(b.UsageDate)
		}
		return a.ID < b.ID
	})
	return stmt
}

// StatementWindow converts an inclusive date range to the half-open payment window.
func StatementWindow(from, to time.Time) Window {
	end := Day(to).AddDate(0, 0, 1)
	return Window{From: Day(from), To: &end}
}
