package report

import (
	"errors"
	"fmt"
	"strings"
)

// Units selects the measurement system the report renders in. The device
// carries the same toggle in its units setting.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// ErrUnsupportedUnits is returned for an unknown units flag value.
var ErrUnsupportedUnits = errors.New("report: unsupported units")

// ParseUnits converts a flag value into a supported Units.
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric", "m", "si":
		return UnitsMetric, nil
	case "imperial", "ft", "us":
		return UnitsImperial, nil
	default:
		return UnitsMetric, fmt.Errorf("%w: %s", ErrUnsupportedUnits, s)
	}
}

// Depth renders a depth in meters in the selected system.
func (u Units) Depth(meters float64) string {
	if u == UnitsImperial {
		return fmt.Sprintf("%.1f ft", meters*3.28084)
	}
	return fmt.Sprintf("%.2f m", meters)
}

// Temperature renders a temperature in Celsius in the selected system.
func (u Units) Temperature(celsius float64) string {
	if u == UnitsImperial {
		return fmt.Sprintf("%.1f °F", celsius*9/5+32)
	}
	return fmt.Sprintf("%.1f °C", celsius)
}

// Duration renders whole minutes as h:mm.
func (u Units) Duration(minutes uint16) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}
