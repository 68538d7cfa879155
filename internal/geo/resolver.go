package geo

import (
	"context"
	"fmt"

	"github.com/kelvins/geocoder"

	"weather-client/internal/weather"
)

// Resolver converts a coordinate into a city/country pair.
type Resolver interface {
	ResolveCity(ctx context.Context, lat, lon float64) (weather.Place, error)
}

// GoogleResolver resolves coordinates through the Google Geocoding API. It is
// selected when a Google API key is configured; otherwise the OpenWeather
// reverse geocoder is used.
type GoogleResolver struct{}

// NewGoogleResolver configures the geocoder package with the API key.
func NewGoogleResolver(apiKey string) *GoogleResolver {
	geocoder.ApiKey = apiKey
	return &GoogleResolver{}
}

// ResolveCity reverse-geocodes the coordinate. The underlying library does
// not take a context; the call is bounded by its own HTTP timeout.
func (r *GoogleResolver) ResolveCity(ctx context.Context, lat, lon float64) (weather.Place, error) {
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{Latitude: lat, Longitude: lon})
	if err != nil {
		return weather.Place{}, fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if len(addresses) == 0 {
		return weather.Place{}, weather.ErrNoResult
	}

	a := addresses[0]
	return weather.Place{
		City:    a.City,
		Country: weather.CountryCode(a.Country),
		State:   a.State,
	}, nil
}
