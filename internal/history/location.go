package history

import (
	"fmt"

	"github.com/kelvins/geocoder"
)

// Location is a tracked place. City/Country identify it; Lat/Lon may be
// supplied directly or resolved once via geocoding.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// Resolve fills in Lat/Lon via the Google geocoding API when they are not
// already set. geocoder.ApiKey must be configured by the caller.
func (l *Location) Resolve() error {
	if l.Lat != nil && l.Lon != nil {
		return nil
	}
	if geocoder.ApiKey == "" {
		return fmt.Errorf("location %s has no coordinates and no geocoder api key is configured", l.Key())
	}
	coords, err := geocoder.Geocoding(geocoder.Address{
		City:    l.City,
		Country: l.Country,
	})
	if err != nil {
		return fmt.Errorf("geocoding %s: %w", l.Key(), err)
	}
	l.Lat = &coords.Latitude
	l.Lon = &coords.Longitude
	return nil
}
