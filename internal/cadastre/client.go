package cadastre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrRegistry = errors.New("cadastral registry error")
	// ErrTruncated is returned with the parcels read so far when an area
	// holds more parcels than one listing may page through.
	ErrTruncated = errors.New("cadastral listing truncated")
)

const (
	defaultPageSize = 500
	defaultMaxPages = 40
	maxBodyBytes    = 32 << 20
)

// Parcel is one cadastral parcel as returned by the registry.
type Parcel struct {
	ID           string
	Section      string
	Number       string
	CommuneCode  string
	CommuneName  string
	Contenance   float64
	BuildingType string
	Geometry     orb.Geometry
}

type Commune struct {
	Code        string   `json:"code"`
	Name        string   `json:"nom"`
	PostalCodes []string `json:"codesPostaux"`
}

// Registry is the cadastral data source.
type Registry interface {
	ParcelsInArea(ctx context.Context, area orb.Polygon) ([]Parcel, error)
	CommunesForPostalCode(ctx context.Context, postalCode string) ([]Commune, error)
}

// APICartoClient reads parcels from the IGN API Carto cadastre module and
// communes from geo.api.gouv.fr.
type APICartoClient struct {
	baseURL     string
	communesURL string
	client      *http.Client
	pageSize    int
	maxPages    int
}

func NewAPICartoClient(baseURL, communesURL string, client *http.Client) *APICartoClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &APICartoClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		communesURL: strings.TrimRight(communesURL, "/"),
		client:      client,
		pageSize:    defaultPageSize,
		maxPages:    defaultMaxPages,
	}
}

// ParcelsInArea pages through the parcels intersecting area until a short
// page. A payload without a usable feature collection ends the listing.
// Past maxPages full pages the parcels read so far come back with
// ErrTruncated.
func (c *APICartoClient) ParcelsInArea(ctx context.Context, area orb.Polygon) ([]Parcel, error) {
	geom, err := geojson.NewGeometry(area).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode area: %w", err)
	}

	var parcels []Parcel
	for page := 0; ; page++ {
		if page == c.maxPages {
			return parcels, fmt.Errorf("%w: %d pages of %d", ErrTruncated, c.maxPages, c.pageSize)
		}

		q := url.Values{}
		q.Set("geom", string(geom))
		q.Set("_limit", strconv.Itoa(c.pageSize))
		q.Set("_start", strconv.Itoa(page*c.pageSize))

		body, err := c.get(ctx, c.baseURL+"/parcelle?"+q.Encode())
		if err != nil {
			return parcels, err
		}

		fc, err := geojson.UnmarshalFeatureCollection(body)
		if err != nil || fc == nil || len(fc.Features) == 0 {
			break
		}
		for _, f := range fc.Features {
			if p, ok := parcelFromFeature(f); ok {
				parcels = append(parcels, p)
			}
		}
		if len(fc.Features) < c.pageSize {
			break
		}
	}
	return parcels, nil
}

func (c *APICartoClient) CommunesForPostalCode(ctx context.Context, postalCode string) ([]Commune, error) {
	q := url.Values{}
	q.Set("codePostal", postalCode)
	q.Set("fields", "nom,code,codesPostaux")
	q.Set("format", "json")

	body, err := c.get(ctx, c.communesURL+"/communes?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var communes []Commune
	if err := json.Unmarshal(body, &communes); err != nil {
		return nil, nil
	}
	return communes, nil
}

func (c *APICartoClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistry, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRegistry, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRegistry, err)
	}
	return body, nil
}

func parcelFromFeature(f *geojson.Feature) (Parcel, bool) {
	if f == nil || f.Geometry == nil {
		return Parcel{}, false
	}
	props := f.Properties
	p := Parcel{
		ID:          firstProp(props, "id", "idu"),
		Section:     firstProp(props, "section"),
		Number:      firstProp(props, "numero"),
		CommuneName: firstProp(props, "nom_com"),
		CommuneCode: firstProp(props, "code_insee"),
		Contenance:  floatProp(props, "contenance"),
		// API Carto has no building data; other registries tag it.
		BuildingType: firstProp(props, "building_type", "usage", "nature"),
		Geometry:     f.Geometry,
	}
	if p.CommuneCode == "" {
		p.CommuneCode = firstProp(props, "code_dep") + firstProp(props, "code_com")
	}
	if p.ID == "" {
		if id, ok := f.ID.(string); ok {
			p.ID = id
		}
	}
	return p, p.ID != ""
}

// firstProp returns the first non-empty property among keys as a string.
// Registries disagree on whether codes are strings or numbers.
func firstProp(props geojson.Properties, keys ...string) string {
	for _, key := range keys {
		switch v := props[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func floatProp(props geojson.Properties, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}
