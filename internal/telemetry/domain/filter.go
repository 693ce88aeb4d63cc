package telemetry

import "slices"

// ReadingFilter keeps a reading when it returns true.
type ReadingFilter func(MeterReading) bool

// ByDevices keeps readings of the listed devices. No ids keeps everything.
func ByDevices(deviceIDs ...string) ReadingFilter {
	if len(deviceIDs) == 0 {
		return nil
	}
	ids := slices.Clone(deviceIDs)
	return func(r MeterReading) bool {
		return slices.Contains(ids, r.DeviceID)
	}
}

// ExcludeDevices drops readings of the listed devices.
func ExcludeDevices(deviceIDs ...string) ReadingFilter {
	if len(deviceIDs) == 0 {
		return nil
	}
	ids := slices.Clone(deviceIDs)
	return func(r MeterReading) bool {
		return !slices.Contains(ids, r.DeviceID)
	}
}

// Apply returns the readings accepted by every non-nil filter. The input is not modified.
func Apply(readings []MeterReading, filters ...ReadingFilter) []MeterReading {
	active := make([]ReadingFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return readings
	}
	out := make([]MeterReading, 0, len(readings))
next:
	for _, r := range readings {
		for _, f := range active {
			if !f(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}
