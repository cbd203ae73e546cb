package visuals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"parcel-locator/internal/domain/locate"
)

var (
	ErrOverlay = errors.New("cadastre overlay unavailable")
	ErrImagery = errors.New("imagery unavailable")
)

const maxOverlayBytes = 4 << 20

// FetchOverlay downloads the cadastre WMS image around p. It backs the
// service's own overlay route.
func (b *Builder) FetchOverlay(ctx context.Context, p locate.LatLng) ([]byte, string, error) {
	return b.fetchImage(ctx, CadastreWMSURL(b.cfg.CadastreWMS, p), ErrOverlay)
}

// FetchSatellite downloads the keyed Google satellite image around p.
func (b *Builder) FetchSatellite(ctx context.Context, p locate.LatLng) ([]byte, string, error) {
	if b.cfg.GoogleMapsKey == "" {
		return nil, "", ErrNotConfigured
	}
	return b.fetchImage(ctx, StaticSatelliteURL(b.cfg.GoogleBaseURL, b.cfg.GoogleMapsKey, p), ErrImagery)
}

// FetchStreetView downloads the keyed street-level image looking at p.
func (b *Builder) FetchStreetView(ctx context.Context, p locate.LatLng) ([]byte, string, error) {
	if b.cfg.GoogleMapsKey == "" {
		return nil, "", ErrNotConfigured
	}
	return b.fetchImage(ctx, streetViewURL(b.cfg.GoogleBaseURL, "/maps/api/streetview", b.cfg.GoogleMapsKey, p), ErrImagery)
}

// fetchImage returns the body and content type of an image answer. Upstream
// errors wrap sentinel and never echo u, which may hold a key.
func (b *Builder) fetchImage(ctx context.Context, u string, sentinel error) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request", sentinel)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", sentinel, unwrapURLError(err))
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(ct, "image/") {
		return nil, "", fmt.Errorf("%w: status %d, content type %q", sentinel, resp.StatusCode, ct)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOverlayBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", sentinel, err)
	}
	return body, ct, nil
}

// unwrapURLError drops the request URL from transport errors.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
