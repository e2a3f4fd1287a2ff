// Package conditions holds the lookup and formatting helpers used by the dashboard:
// weather-code descriptions, icon names, temperature units and wind direction.
package conditions

import "strings"

// Icon names match the icon set the dashboard pages reference.
const (
	IconSun      = "sun"
	IconCloudSun = "cloud-sun"
	IconCloud    = "cloud"
	IconRain     = "cloud-rain"
	IconSnow     = "snow"
	IconStorm    = "zap"
	IconFog      = "cloud-fog"
	IconWind     = "wind"
)

// ConditionForCode maps a WMO weather code to the label shown for current conditions.
func ConditionForCode(code int) string {
	switch {
	case code < 0:
		return "Cloudy"
	case code == 0:
		return "Clear Sky"
	case code <= 3:
		return "Partly Cloudy"
	case code <= 67:
		return "Rainy"
	case code <= 77:
		return "Snowy"
	case code <= 99:
		return "Thunderstorm"
	default:
		return "Cloudy"
	}
}

// DayConditionName maps a WMO weather code to the label used on forecast day cards.
func DayConditionName(code int) string {
	switch {
	case code < 0:
		return "Cloudy"
	case code == 0:
		return "Sunny"
	case code <= 3:
		return "Partly Cloudy"
	case code <= 67:
		return "Rainy"
	case code <= 99:
		return "Thunderstorm"
	default:
		return "Cloudy"
	}
}

// IconForCode returns the icon name for a WMO weather code.
func IconForCode(code int) string {
	switch {
	case code < 0:
		return IconCloud
	case code == 0:
		return IconSun
	case code <= 3:
		return IconCloudSun
	case code <= 67:
		return IconRain
	case code <= 77:
		return IconSnow
	case code <= 99:
		return IconStorm
	default:
		return IconCloud
	}
}

// IconForDescription picks an icon from a free-text description. Rules are
// checked in order, so "partly cloudy with rain" resolves to cloud-sun.
func IconForDescription(description string) string {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "clear"), strings.Contains(desc, "sunny"):
		return IconSun
	case strings.Contains(desc, "cloud"):
		if strings.Contains(desc, "partly") || strings.Contains(desc, "few") {
			return IconCloudSun
		}
		return IconCloud
	case strings.Contains(desc, "rain"), strings.Contains(desc, "drizzle"):
		return IconRain
	case strings.Contains(desc, "snow"):
		return IconSnow
	case strings.Contains(desc, "thunderstorm"), strings.Contains(desc, "storm"):
		return IconStorm
	case strings.Contains(desc, "mist"), strings.Contains(desc, "fog"):
		return IconFog
	case strings.Contains(desc, "wind"):
		return IconWind
	}
	return IconCloud
}
