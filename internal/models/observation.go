package models

import "time"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Condition is one entry of an observation's weather list.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// MainReadings holds the thermodynamic readings of an observation.
type MainReadings struct {
	Temp      float64  `json:"temp"`
	FeelsLike *float64 `json:"feels_like,omitempty"`
	TempMin   *float64 `json:"temp_min,omitempty"`
	TempMax   *float64 `json:"temp_max,omitempty"`
	Pressure  *float64 `json:"pressure,omitempty"`
	Humidity  float64  `json:"humidity"`
}

type Wind struct {
	Speed float64  `json:"speed"`
	Deg   *float64 `json:"deg,omitempty"`
}

type Clouds struct {
	All float64 `json:"all"`
}

type Sys struct {
	Country string `json:"country,omitempty"`
	Sunrise int64  `json:"sunrise,omitempty"`
	Sunset  int64  `json:"sunset,omitempty"`
}

// Observation is a stored current-weather record, shaped like the payload the
// dashboard admin panel and seed tool post to /api/weather.
type Observation struct {
	ID          string       `json:"id"`
	City        string       `json:"city"`
	Country     string       `json:"country"`
	Coordinates Coordinates  `json:"coordinates"`
	Weather     []Condition  `json:"weather"`
	Base        string       `json:"base,omitempty"`
	Main        MainReadings `json:"main"`
	Visibility  *int         `json:"visibility,omitempty"`
	Wind        Wind         `json:"wind"`
	Clouds      Clouds       `json:"clouds"`
	Dt          int64        `json:"dt"`
	Sys         Sys          `json:"sys"`
	Timezone    int          `json:"timezone"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// PrimaryCondition returns the first weather entry, or the zero Condition.
func (o Observation) PrimaryCondition() Condition {
	if len(o.Weather) == 0 {
		return Condition{}
	}
	return o.Weather[0]
}
