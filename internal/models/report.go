package models

import "time"

// CurrentConditions is the "current" block of an upstream forecast report.
type CurrentConditions struct {
	Temp          float64 `json:"temp"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	Precipitation float64 `json:"precipitation"`
	Condition     string  `json:"condition"`
	FeelsLike     float64 `json:"feelsLike"`
	WeatherCode   int     `json:"weatherCode"`
}

// HourlySeries holds parallel hourly arrays.
type HourlySeries struct {
	Time        []string  `json:"time"`
	Temperature []float64 `json:"temperature_2m"`
}

// DailySeries holds parallel daily arrays.
type DailySeries struct {
	Time           []string  `json:"time"`
	TemperatureMax []float64 `json:"temperature_2m_max"`
	TemperatureMin []float64 `json:"temperature_2m_min"`
	WeatherCode    []int     `json:"weather_code"`
}

// Report is the current, hourly and daily weather for one coordinate pair.
type Report struct {
	Location    string            `json:"location,omitempty"`
	Coordinates Coordinates       `json:"coordinates"`
	Current     CurrentConditions `json:"current"`
	Hourly      HourlySeries      `json:"hourly"`
	Daily       DailySeries       `json:"daily"`
	FetchedAt   time.Time         `json:"fetchedAt"`
	Stale       bool              `json:"stale,omitempty"` // served from stale cache
}

// DayForecast is one row of a report's daily series.
type DayForecast struct {
	Date        string
	Max         float64
	Min         float64
	WeatherCode int
}

// Days zips the daily series into rows. Rows beyond the shortest array are dropped.
func (r Report) Days() []DayForecast {
	n := len(r.Daily.Time)
	if len(r.Daily.TemperatureMax) < n {
		n = len(r.Daily.TemperatureMax)
	}
	if len(r.Daily.TemperatureMin) < n {
		n = len(r.Daily.TemperatureMin)
	}
	if len(r.Daily.WeatherCode) < n {
		n = len(r.Daily.WeatherCode)
	}
	out := make([]DayForecast, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, DayForecast{
			Date:        r.Daily.Time[i],
			Max:         r.Daily.TemperatureMax[i],
			Min:         r.Daily.TemperatureMin[i],
			WeatherCode: r.Daily.WeatherCode[i],
		})
	}
	return out
}
