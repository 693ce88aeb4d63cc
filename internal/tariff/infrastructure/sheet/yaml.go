package sheet

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	tariff "energy-billing/internal/tariff/domain"
)

type yamlFile struct {
	Tariffs []yamlProfile `yaml:"tariffs"`
}

type yamlProfile struct {
	CountryID         string `yaml:"country_id"`
	IndustrialRate    string `yaml:"industrial_rate"`
	CommercialRate    string `yaml:"commercial_rate"`
	PeakMultiplier    string `yaml:"peak_multiplier"`
	MidPeakMultiplier string `yaml:"mid_peak_multiplier"`
	OffPeakMultiplier string `yaml:"off_peak_multiplier"`
	PeakHours         string `yaml:"peak_hours"`
	MidPeakHours      string `yaml:"mid_peak_hours"`
	OffPeakHours      string `yaml:"off_peak_hours"`
}

// ReadYAML parses a `tariffs:` list. Numbers are quoted strings or bare
// scalars; hours use the same list syntax as the workbook.
func ReadYAML(r io.Reader) ([]tariff.Profile, error) {
	var file yamlFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("tariff yaml: %w", err)
	}
	profiles := make([]tariff.Profile, 0, len(file.Tariffs))
	for i, raw := range file.Tariffs {
		values := map[string]string{
			"country_id":          raw.CountryID,
			"industrial_rate":     raw.IndustrialRate,
			"commercial_rate":     raw.CommercialRate,
			"peak_multiplier":     raw.PeakMultiplier,
			"mid_peak_multiplier": raw.MidPeakMultiplier,
			"off_peak_multiplier": raw.OffPeakMultiplier,
			"peak_hours":          raw.PeakHours,
			"mid_peak_hours":      raw.MidPeakHours,
			"off_peak_hours":      raw.OffPeakHours,
		}
		profile, err := profileFromCells(func(col string) string { return values[col] })
		if err != nil {
			return nil, fmt.Errorf("tariff yaml: entry %d: %w", i+1, err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}
