package satellite

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parcel-locator/internal/domain/locate"
)

func TestStaticImageryFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("REQUEST") != "GetMap" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if strings.HasPrefix(r.URL.Query().Get("BBOX"), "0.") {
			w.Header().Set("Content-Type", "text/xml")
			w.Write([]byte("<ServiceExceptionReport/>"))
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xff, 0xd8})
	}))
	defer srv.Close()

	s := NewStaticImagery("", "", srv.URL, srv.Client())
	data, err := s.Fetch(context.Background(), locate.LatLng{Lat: 44.8, Lng: -0.5})
	if err != nil || len(data) != 2 {
		t.Fatalf("Fetch = %v, %v", data, err)
	}

	if _, err := s.Fetch(context.Background(), locate.LatLng{Lat: 0.001, Lng: 0.001}); !errors.Is(err, ErrImagery) {
		t.Errorf("err = %v, want ErrImagery", err)
	}
}

func TestStaticImageryPrefersGoogle(t *testing.T) {
	s := NewStaticImagery("key", "https://maps.example", "https://wms.example", nil)
	if u := s.URL(locate.LatLng{Lat: 1, Lng: 2}); !strings.HasPrefix(u, "https://maps.example/maps/api/staticmap?") {
		t.Errorf("url = %q", u)
	}
}
