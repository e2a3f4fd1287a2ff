package models

import (
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/conditions"
)

// Summary is the flattened current-weather view the dashboard pages render.
type Summary struct {
	City        string   `json:"city"`
	Country     string   `json:"country"`
	Temperature float64  `json:"temperature"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Wind        Wind     `json:"wind"`
	Clouds      Clouds   `json:"clouds"`
	Humidity    float64  `json:"humidity"`
	Pressure    *float64 `json:"pressure,omitempty"`
	FeelsLike   *float64 `json:"feels_like,omitempty"`
	TempMin     *float64 `json:"temp_min,omitempty"`
	TempMax     *float64 `json:"temp_max,omitempty"`
	Visibility  *int     `json:"visibility,omitempty"`
	Sunrise     string   `json:"sunrise,omitempty"`
	Sunset      string   `json:"sunset,omitempty"`
	Fallback    bool     `json:"fallback,omitempty"`
}

const (
	unknownPlace       = "Unknown"
	defaultDescription = "Clear Weather"
)

// SummaryFromObservation flattens an observation. Missing city, country and
// description get placeholder values. A missing or zero feels-like reading
// defaults to the temperature.
func SummaryFromObservation(o Observation) Summary {
	s := Summary{
		City:        o.City,
		Country:     o.Country,
		Temperature: o.Main.Temp,
		Description: o.PrimaryCondition().Description,
		Wind:        o.Wind,
		Clouds:      o.Clouds,
		Humidity:    o.Main.Humidity,
		Pressure:    o.Main.Pressure,
		FeelsLike:   o.Main.FeelsLike,
		TempMin:     o.Main.TempMin,
		TempMax:     o.Main.TempMax,
		Visibility:  o.Visibility,
	}
	if s.City == "" {
		s.City = unknownPlace
	}
	if s.Country == "" {
		s.Country = o.Sys.Country
	}
	if s.Country == "" {
		s.Country = unknownPlace
	}
	if s.Description == "" {
		s.Description = defaultDescription
	}
	s.Icon = conditions.IconForDescription(s.Description)
	if s.FeelsLike == nil || *s.FeelsLike == 0 {
		t := o.Main.Temp
		s.FeelsLike = &t
	}
	if o.Sys.Sunrise > 0 {
		s.Sunrise = time.Unix(o.Sys.Sunrise, 0).UTC().Format(time.RFC3339)
	}
	if o.Sys.Sunset > 0 {
		s.Sunset = time.Unix(o.Sys.Sunset, 0).UTC().Format(time.RFC3339)
	}
	return s
}

// FallbackSummary is served when no observation can be loaded.
func FallbackSummary() Summary {
	feels := 20.0
	return Summary{
		City:        unknownPlace,
		Country:     unknownPlace,
		Temperature: 20,
		Description: "Weather data unavailable",
		Icon:        conditions.IconForDescription("Weather data unavailable"),
		FeelsLike:   &feels,
		Fallback:    true,
	}
}

// TemperatureStats summarizes temperatures for the statistics page.
type TemperatureStats struct {
	Current    float64  `json:"current"`
	FeelsLike  float64  `json:"feelsLike"`
	Max        float64  `json:"max"`
	Min        float64  `json:"min"`
	Range      float64  `json:"range"`
	HourlyMin  *float64 `json:"hourlyMin,omitempty"`
	HourlyMax  *float64 `json:"hourlyMax,omitempty"`
	HourlyAvg  *float64 `json:"hourlyAvg,omitempty"`
	Fallback   bool     `json:"fallback,omitempty"`
	ReportNote string   `json:"reportNote,omitempty"`
}
