// Package units converts the bridge's native m/s speeds into display units
// for reports. Everything on the wire and in the telemetry database stays in
// metres per second.
package units

// Recognised display units.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
)

const mphPerMPS = 2.2369362920544

// IsValid reports whether unit is one of the recognised display units.
func IsValid(unit string) bool {
	switch unit {
	case MPS, MPH, KMPH:
		return true
	}
	return false
}

// FromMPS converts a speed in m/s into the target display unit. Unknown
// units pass the value through unchanged.
func FromMPS(speedMPS float64, unit string) float64 {
	switch unit {
	case MPH:
		return speedMPS * mphPerMPS
	case KMPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// Label returns the axis label for a display unit.
func Label(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH:
		return "km/h"
	default:
		return "m/s"
	}
}
