package models

// Location is a tracked place shown on the locations page.
type Location struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Region string  `json:"region,omitempty"`
}

// Coordinates returns the location's coordinates.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Lat: l.Lat, Lon: l.Lon}
}

// LocationPatch carries a partial update; nil fields are left unchanged.
type LocationPatch struct {
	Name   *string  `json:"name,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
	Region *string  `json:"region,omitempty"`
}

// Apply returns l with the non-nil patch fields applied.
func (p LocationPatch) Apply(l Location) Location {
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.Lat != nil {
		l.Lat = *p.Lat
	}
	if p.Lon != nil {
		l.Lon = *p.Lon
	}
	if p.Region != nil {
		l.Region = *p.Region
	}
	return l
}

// NamedLocation is a display name plus coordinates, used for the default dashboard location.
type NamedLocation struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func (n NamedLocation) Coordinates() Coordinates {
	return Coordinates{Lat: n.Lat, Lon: n.Lon}
}
