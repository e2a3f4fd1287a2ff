package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ErrCityEmpty is returned when a city or location name is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city is required")

// ErrCityTooLong is returned when a city name exceeds the maximum length.
var ErrCityTooLong = errors.New("city too long")

// ErrCityInvalidChars is returned when a city name contains disallowed characters.
var ErrCityInvalidChars = errors.New("city contains invalid characters")

// ErrInvalidCoordinates is returned when latitude or longitude is out of range or not a number.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ErrInvalidReading is returned when an observation carries an impossible reading.
var ErrInvalidReading = errors.New("invalid reading")

// MaxNameLength bounds city and location names, in runes.
const MaxNameLength = 100

// ValidateCity trims the input, enforces a length bound in runes and restricts to
// letters (Unicode), digits, space, comma, period, apostrophe and hyphen.
// Returns the trimmed name.
func ValidateCity(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityEmpty
	}
	if len(r) > MaxNameLength {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidateCoordinates checks latitude in [-90, 90] and longitude in [-180, 180].
func ValidateCoordinates(c models.Coordinates) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return fmt.Errorf("%w: not a number", ErrInvalidCoordinates)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, c.Lon)
	}
	return nil
}

// ValidateLocation validates the name and coordinates of a tracked location and
// returns it with the name and region trimmed.
func ValidateLocation(l models.Location) (models.Location, error) {
	name, err := ValidateCity(l.Name)
	if err != nil {
		return models.Location{}, err
	}
	if err := ValidateCoordinates(l.Coordinates()); err != nil {
		return models.Location{}, err
	}
	l.Name = name
	l.Region = strings.TrimSpace(l.Region)
	return l, nil
}

// ValidateObservation checks the fields the dashboard relies on. Humidity and
// cloudiness must be percentages and pressure, when present, positive.
func ValidateObservation(o models.Observation) (models.Observation, error) {
	city, err := ValidateCity(o.City)
	if err != nil {
		return models.Observation{}, err
	}
	o.City = city
	if o.Coordinates != (models.Coordinates{}) {
		if err := ValidateCoordinates(o.Coordinates); err != nil {
			return models.Observation{}, err
		}
	}
	if o.Main.Humidity < 0 || o.Main.Humidity > 100 {
		return models.Observation{}, fmt.Errorf("%w: humidity %v out of range (0-100)", ErrInvalidReading, o.Main.Humidity)
	}
	if o.Clouds.All < 0 || o.Clouds.All > 100 {
		return models.Observation{}, fmt.Errorf("%w: cloudiness %v out of range (0-100)", ErrInvalidReading, o.Clouds.All)
	}
	if o.Main.Pressure != nil && *o.Main.Pressure <= 0 {
		return models.Observation{}, fmt.Errorf("%w: pressure must be positive", ErrInvalidReading)
	}
	if o.Wind.Speed < 0 {
		return models.Observation{}, fmt.Errorf("%w: wind speed must not be negative", ErrInvalidReading)
	}
	return o, nil
}
