package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"parcel-locator/internal/domain/locate"
)

var (
	ErrNotConfigured = errors.New("geocoder is not configured")
	ErrNoResult      = errors.New("no geocoding result")
)

// Result is one match returned by the geocoding service.
type Result struct {
	FormattedAddress string
	Location         locate.LatLng
	LocationType     string
	PostalCode       string
	City             string
}

type Geocoder interface {
	Geocode(ctx context.Context, query, country string) ([]Result, error)
	Reverse(ctx context.Context, point locate.LatLng) (string, error)
}

type GoogleGeocoder struct {
	client   *maps.Client
	language string
}

func NewGoogleGeocoder(apiKey, language string, opts ...maps.ClientOption) (*GoogleGeocoder, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleGeocoder{client: client, language: language}, nil
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, query, country string) ([]Result, error) {
	req := &maps.GeocodingRequest{
		Address:  query,
		Language: g.language,
	}
	if country != "" {
		req.Components = map[maps.Component]string{maps.ComponentCountry: strings.ToUpper(country)}
		req.Region = strings.ToLower(country)
	}

	resp, err := g.client.Geocode(ctx, req)
	if isZeroResults(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}

	results := make([]Result, 0, len(resp))
	for _, r := range resp {
		results = append(results, toResult(r))
	}
	return results, nil
}

func (g *GoogleGeocoder) Reverse(ctx context.Context, point locate.LatLng) (string, error) {
	resp, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: point.Lat, Lng: point.Lng},
		Language: g.language,
	})
	if isZeroResults(err) {
		return "", ErrNoResult
	}
	if err != nil {
		return "", fmt.Errorf("reverse geocode %f,%f: %w", point.Lat, point.Lng, err)
	}
	for _, r := range resp {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return "", ErrNoResult
}

// isZeroResults reports the ZERO_RESULTS status, which the maps client
// surfaces as an error.
func isZeroResults(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ZERO_RESULTS")
}

func toResult(r maps.GeocodingResult) Result {
	res := Result{
		FormattedAddress: r.FormattedAddress,
		Location:         locate.LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		LocationType:     r.Geometry.LocationType,
	}
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			switch t {
			case "postal_code":
				res.PostalCode = c.LongName
			case "locality":
				res.City = c.LongName
			}
		}
	}
	return res
}
