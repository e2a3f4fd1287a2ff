package conditions

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a temperature display unit.
type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
)

// ParseUnit accepts "C", "F", "celsius", "fahrenheit" and the settings-page labels
// such as "Fahrenheit (°F)". Anything unrecognized is Celsius.
func ParseUnit(s string) Unit {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "f" || strings.HasPrefix(s, "fahrenheit") || strings.Contains(s, "°f") {
		return Fahrenheit
	}
	return Celsius
}

// Symbol returns "°C" or "°F".
func (u Unit) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// Convert converts a Celsius value into u.
func (u Unit) Convert(celsius float64) float64 {
	if u == Fahrenheit {
		return CelsiusToFahrenheit(celsius)
	}
	return celsius
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// roundHalfUp rounds x.5 toward positive infinity.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// FormatTemperature renders a Celsius value as a rounded temperature in unit, e.g. "32°F".
func FormatTemperature(celsius float64, unit Unit) string {
	return fmt.Sprintf("%d%s", roundHalfUp(unit.Convert(celsius)), unit.Symbol())
}

// FormatDegrees renders a rounded value with a bare degree sign, e.g. "25°".
func FormatDegrees(celsius float64, unit Unit) string {
	return fmt.Sprintf("%d°", roundHalfUp(unit.Convert(celsius)))
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindDirection returns the 16-point compass label for deg, or "N/A" when unknown.
func WindDirection(deg *float64) string {
	if deg == nil || math.IsNaN(*deg) {
		return "N/A"
	}
	idx := roundHalfUp(*deg/22.5) % 16
	if idx < 0 {
		idx += 16
	}
	return compassPoints[idx]
}

// FormatWindSpeed renders a speed with one decimal and the unit label.
func FormatWindSpeed(speed float64, unit string) string {
	return fmt.Sprintf("%.1f %s", speed, unit)
}

func FormatPercent(v float64) string {
	return fmt.Sprintf("%d%%", roundHalfUp(v))
}

// FormatVisibility renders metres as kilometres; nil is "N/A".
func FormatVisibility(metres *int) string {
	if metres == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f km", float64(*metres)/1000)
}
