package visuals

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"parcel-locator/internal/domain/locate"
)

var bordeaux = locate.LatLng{Lat: 44.8378, Lng: -0.5792}

func TestBuildCadastreNeverEmpty(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	configs := []Config{
		{},
		{CadastreWMTS: failing.URL},
		{CadastreWMTS: failing.URL, CadastreWMS: failing.URL, OrthoWMS: failing.URL},
		{CadastreWMTS: "http://127.0.0.1:1/unreachable"},
	}
	for i, cfg := range configs {
		b := NewBuilder(cfg, failing.Client(), zerolog.Nop())
		v := b.Build(context.Background(), bordeaux)
		if v.CadastreURL == "" {
			t.Errorf("config %d: empty cadastre url", i)
		}
		if v.SatelliteURL == "" {
			t.Errorf("config %d: empty satellite url", i)
		}
		if v.StreetViewURL != "" {
			t.Errorf("config %d: unexpected street view %q", i, v.StreetViewURL)
		}
		if !strings.Contains(v.CadastreURL, "REQUEST=GetMap") {
			t.Errorf("config %d: expected coordinate WMS fallback, got %q", i, v.CadastreURL)
		}
	}
}

func TestBuildCadastreFallbackOrder(t *testing.T) {
	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("REQUEST") != "GetTile" {
			t.Errorf("unexpected request %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer tiles.Close()

	b := NewBuilder(Config{CadastreWMTS: tiles.URL, PublicBaseURL: "https://locator.example"}, tiles.Client(), zerolog.Nop())
	v := b.Build(context.Background(), bordeaux)
	if !strings.HasPrefix(v.CadastreURL, tiles.URL) || !strings.Contains(v.CadastreURL, "TILEMATRIX=17") {
		t.Errorf("expected tile url, got %q", v.CadastreURL)
	}

	b = NewBuilder(Config{PublicBaseURL: "https://locator.example/"}, tiles.Client(), zerolog.Nop())
	v = b.Build(context.Background(), bordeaux)
	if !strings.HasPrefix(v.CadastreURL, "https://locator.example/api/v1/cadastre/overlay?") {
		t.Errorf("expected proxy url, got %q", v.CadastreURL)
	}
}

func TestBuildStreetViewProbe(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/streetview/metadata" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		status := "ZERO_RESULTS"
		if strings.HasPrefix(r.URL.Query().Get("location"), "44.") {
			status = "OK"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":%q}`, status)
	}))
	defer google.Close()

	b := NewBuilder(Config{GoogleMapsKey: "secret", GoogleBaseURL: google.URL, PublicBaseURL: "https://locator.example/"}, google.Client(), zerolog.Nop())

	v := b.Build(context.Background(), bordeaux)
	if !strings.HasPrefix(v.StreetViewURL, "https://locator.example"+StreetViewRoute+"?") {
		t.Errorf("street view = %q", v.StreetViewURL)
	}
	if !strings.HasPrefix(v.SatelliteURL, "https://locator.example"+SatelliteRoute+"?") {
		t.Errorf("satellite = %q", v.SatelliteURL)
	}
	for _, u := range []string{v.SatelliteURL, v.CadastreURL, v.StreetViewURL} {
		if strings.Contains(u, "secret") {
			t.Errorf("maps key leaked in %q", u)
		}
	}

	v = b.Build(context.Background(), locate.LatLng{Lat: 48.8566, Lng: 2.3522})
	if v.StreetViewURL != "" {
		t.Errorf("street view should be omitted, got %q", v.StreetViewURL)
	}
}

func TestURLs(t *testing.T) {
	u := WMSGetMapURL("https://wms.example/ows", "LAYER", "image/png", bordeaux)
	if !strings.Contains(u, "CRS=EPSG%3A4326") || !strings.Contains(u, "TRANSPARENT=TRUE") {
		t.Errorf("unexpected WMS url %q", u)
	}
	if got := ProxyURL("https://x/", OverlayRoute, bordeaux); got != "https://x/api/v1/cadastre/overlay?lat=44.837800&lng=-0.579200" {
		t.Errorf("proxy url = %q", got)
	}
}

func TestBuildKeepsMapsKeyServerSide(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OK"}`)
	}))
	defer google.Close()

	// Without a public base URL the keyed images cannot be proxied.
	b := NewBuilder(Config{GoogleMapsKey: "secret", GoogleBaseURL: google.URL}, google.Client(), zerolog.Nop())
	v := b.Build(context.Background(), bordeaux)
	if strings.Contains(v.SatelliteURL, "secret") || !strings.Contains(v.SatelliteURL, OrthoLayer) {
		t.Errorf("satellite = %q, want the keyless orthophoto", v.SatelliteURL)
	}
	if v.StreetViewURL != "" {
		t.Errorf("street view = %q, want none", v.StreetViewURL)
	}
}
