package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	tariff "energy-billing/internal/tariff/domain"
)

// DefaultSheet is the worksheet read when a workbook has more than one.
const DefaultSheet = "tariffs"

var columns = []string{
	"country_id",
	"industrial_rate",
	"commercial_rate",
	"peak_multiplier",
	"mid_peak_multiplier",
	"off_peak_multiplier",
	"peak_hours",
	"mid_peak_hours",
	"off_peak_hours",
}

// ErrMissingColumn is returned when the header row lacks a required column.
var ErrMissingColumn = errors.New("tariff sheet: missing column")

// ReadWorkbook parses tariff profiles from an XLSX workbook. The first row is
// a header naming the columns; hour cells hold lists such as "17,18,19" or "9-12".
func ReadWorkbook(r io.Reader) ([]tariff.Profile, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("tariff sheet: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	name := DefaultSheet
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("tariff sheet: workbook has no sheets")
		}
		name = sheets[0]
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("tariff sheet: read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, cell := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var profiles []tariff.Profile
	for n, row := range rows[1:] {
		cell := func(col string) string {
			i := index[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if cell("country_id") == "" {
			continue
		}
		profile, err := profileFromCells(cell)
		if err != nil {
			return nil, fmt.Errorf("tariff sheet: row %d: %w", n+2, err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func profileFromCells(cell func(string) string) (tariff.Profile, error) {
	profile := tariff.Profile{CountryID: cell("country_id")}
	decimals := []struct {
		col string
		dst *decimal.Decimal
	}{
		{"industrial_rate", &profile.IndustrialRate},
		{"commercial_rate", &profile.CommercialRate},
		{"peak_multiplier", &profile.PeakMultiplier},
		{"mid_peak_multiplier", &profile.MidPeakMultiplier},
		{"off_peak_multiplier", &profile.OffPeakMultiplier},
	}
	for _, d := range decimals {
		v, err := decimal.NewFromString(cell(d.col))
		if err != nil {
			return tariff.Profile{}, fmt.Errorf("%s: %w", d.col, err)
		}
		*d.dst = v
	}
	hours := []struct {
		col string
		dst *[]int
	}{
		{"peak_hours", &profile.PeakHours},
		{"mid_peak_hours", &profile.MidPeakHours},
		{"off_peak_hours", &profile.OffPeakHours},
	}
	for _, h := range hours {
		v, err := ParseHourList(cell(h.col))
		if err != nil {
			return tariff.Profile{}, fmt.Errorf("%s: %w", h.col, err)
		}
		*h.dst = v
	}
	return profile, nil
}

// ParseHourList parses "17,18,19", "9-12" or a mix of both.
func ParseHourList(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var hours []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, err
			}
			to, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, err
			}
			if from > to {
				return nil, fmt.Errorf("invalid hour range %q", part)
			}
			for h := from; h <= to; h++ {
				hours = append(hours, h)
			}
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, nil
}

// BuildWorkbook renders profiles in the layout ReadWorkbook accepts.
func BuildWorkbook(profiles []tariff.Profile) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", DefaultSheet); err != nil {
		return nil, err
	}
	for i, col := range columns {
		cellName, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(DefaultSheet, cellName, col)
	}
	for r, p := range profiles {
		values := []string{
			p.CountryID,
			p.IndustrialRate.String(),
			p.CommercialRate.String(),
			p.PeakMultiplier.String(),
			p.MidPeakMultiplier.String(),
			p.OffPeakMultiplier.String(),
			joinHours(p.PeakHours),
			joinHours(p.MidPeakHours),
			joinHours(p.OffPeakHours),
		}
		for c, v := range values {
			cellName, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellStr(DefaultSheet, cellName, v)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func joinHours(hours []int) string {
	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		parts = append(parts, strconv.Itoa(h))
	}
	return strings.Join(parts, ",")
}
