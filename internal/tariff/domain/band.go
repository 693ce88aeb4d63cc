package tariff

// Band classifies an hour-of-day for pricing.
type Band string

const (
	BandPeak    Band = "peak"
	BandMidPeak Band = "mid_peak"
	BandOffPeak Band = "off_peak"
	BandUnknown Band = "unknown"
)

// Valid reports whether b is a known band value.
func (b Band) Valid() bool {
	switch b {
	case BandPeak, BandMidPeak, BandOffPeak, BandUnknown:
		return true
	default:
		return false
	}
}
