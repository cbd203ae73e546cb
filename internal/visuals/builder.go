package visuals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"parcel-locator/internal/domain/locate"
)

var ErrNotConfigured = errors.New("visual source is not configured")

type Config struct {
	GoogleMapsKey string
	// GoogleBaseURL overrides the Google Maps host, mostly for tests.
	GoogleBaseURL string
	CadastreWMTS  string
	CadastreWMS   string
	OrthoWMS      string
	PublicBaseURL string
	ProbeTimeout  time.Duration
}

// Builder produces the presentation assets of a candidate.
type Builder struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewBuilder(cfg Config, client *http.Client, log zerolog.Logger) *Builder {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	return &Builder{cfg: cfg, client: client, log: log}
}

// Defaults are the assets that need no network: a bare orthophoto request
// and a coordinate-only cadastre WMS request.
func (b *Builder) Defaults(p locate.LatLng) locate.CandidateVisuals {
	return locate.CandidateVisuals{
		SatelliteURL: OrthoURL(b.cfg.OrthoWMS, p),
		CadastreURL:  CadastreWMSURL(b.cfg.CadastreWMS, p),
	}
}

// Build resolves the three assets concurrently. The cadastre URL is never
// empty; the street view URL is empty when no imagery exists at p.
func (b *Builder) Build(ctx context.Context, p locate.LatLng) locate.CandidateVisuals {
	defaults := b.Defaults(p)

	var satellite, cadastre, streetView string
	var g errgroup.Group
	g.Go(func() error {
		satellite = b.satelliteChain(p).OrDefault(defaults.SatelliteURL).resolveLogged(ctx, b.log, "satellite")
		return nil
	})
	g.Go(func() error {
		cadastre = b.cadastreChain(p).OrDefault(defaults.CadastreURL).resolveLogged(ctx, b.log, "cadastre")
		return nil
	})
	g.Go(func() error {
		streetView, _ = b.streetViewChain(p).Optional(ctx)
		return nil
	})
	_ = g.Wait()

	return defaults.
		WithSatellite(satellite).
		WithCadastre(cadastre).
		WithStreetView(streetView)
}

func (g Guaranteed) resolveLogged(ctx context.Context, log zerolog.Logger, asset string) string {
	v, attempts := g.Resolve(ctx)
	for _, a := range attempts {
		if a.Err != nil {
			log.Debug().
				Err(a.Err).
				Str("asset", asset).
				Str("step", a.Step).
				Msg("visual step failed, falling back")
		}
	}
	return v
}

// googleProxied reports whether Google imagery can be served through the
// service's own routes.
func (b *Builder) googleProxied() bool {
	return b.cfg.GoogleMapsKey != "" && b.cfg.PublicBaseURL != ""
}

func (b *Builder) satelliteChain(p locate.LatLng) Chain {
	return Try("google_static", func(ctx context.Context) (string, error) {
		if !b.googleProxied() {
			return "", ErrNotConfigured
		}
		return ProxyURL(b.cfg.PublicBaseURL, SatelliteRoute, p), nil
	})
}

func (b *Builder) cadastreChain(p locate.LatLng) Chain {
	return Try("wmts_tile", func(ctx context.Context) (string, error) {
		if b.cfg.CadastreWMTS == "" {
			return "", ErrNotConfigured
		}
		u := CadastreTileURL(b.cfg.CadastreWMTS, p)
		if err := b.probeImage(ctx, u); err != nil {
			return "", err
		}
		return u, nil
	}).OrElse("proxy", func(ctx context.Context) (string, error) {
		if b.cfg.PublicBaseURL == "" {
			return "", ErrNotConfigured
		}
		return ProxyURL(b.cfg.PublicBaseURL, OverlayRoute, p), nil
	})
}

func (b *Builder) streetViewChain(p locate.LatLng) Chain {
	return Try("street_view", func(ctx context.Context) (string, error) {
		if !b.googleProxied() {
			return "", ErrNotConfigured
		}
		ok, err := b.streetViewAvailable(ctx, p)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return ProxyURL(b.cfg.PublicBaseURL, StreetViewRoute, p), nil
	})
}

// probeImage checks that u answers 200 with an image body.
func (b *Builder) probeImage(ctx context.Context, u string) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("probe content type %q", ct)
	}
	return nil
}

type streetViewMetadata struct {
	Status string `json:"status"`
}

func (b *Builder) streetViewAvailable(ctx context.Context, p locate.LatLng) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()

	u := streetViewURL(b.cfg.GoogleBaseURL, "/maps/api/streetview/metadata", b.cfg.GoogleMapsKey, p)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("metadata status %d", resp.StatusCode)
	}
	var meta streetViewMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return false, fmt.Errorf("decode metadata: %w", err)
	}
	return meta.Status == "OK", nil
}
