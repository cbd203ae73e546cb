package satellite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/visuals"
)

var ErrImagery = errors.New("satellite imagery unavailable")

const maxImageBytes = 8 << 20

// Imagery returns an aerial image centred on a point.
type Imagery interface {
	Fetch(ctx context.Context, p locate.LatLng) ([]byte, error)
}

// StaticImagery uses Google Static Maps when a key is set and the IGN
// orthophoto WMS otherwise.
type StaticImagery struct {
	googleKey     string
	googleBaseURL string
	orthoWMS      string
	client        *http.Client
}

func NewStaticImagery(googleKey, googleBaseURL, orthoWMS string, client *http.Client) *StaticImagery {
	if client == nil {
		client = http.DefaultClient
	}
	return &StaticImagery{googleKey: googleKey, googleBaseURL: googleBaseURL, orthoWMS: orthoWMS, client: client}
}

func (s *StaticImagery) URL(p locate.LatLng) string {
	if s.googleKey != "" {
		return visuals.StaticSatelliteURL(s.googleBaseURL, s.googleKey, p)
	}
	return visuals.OrthoURL(s.orthoWMS, p)
}

func (s *StaticImagery) Fetch(ctx context.Context, p locate.LatLng) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(p), nil)
	if err != nil {
		return nil, fmt.Errorf("build imagery request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImagery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrImagery, resp.StatusCode)
	}
	// WMS servers report errors as XML with a 200 status.
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: content type %q", ErrImagery, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrImagery, err)
	}
	return body, nil
}
