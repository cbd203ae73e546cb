package visuals

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/maptile"

	"parcel-locator/internal/domain/locate"
)

const (
	GoogleMapsBaseURL = "https://maps.googleapis.com"

	DefaultOrthoWMSURL    = "https://data.geopf.fr/wms-r/wms"
	DefaultCadastreWMSURL = "https://data.geopf.fr/wms-v/ows"

	OrthoLayer  = "ORTHOIMAGERY.ORTHOPHOTOS"
	ParcelLayer = "CADASTRALPARCELS.PARCELLAIRE_EXPRESS"

	SatelliteZoom   = 19
	CadastreZoom    = maptile.Zoom(17)
	ImageSizePixels = 640
	// ViewHalfSideMeters is half the side of the square shown around a point.
	ViewHalfSideMeters = 60.0
)

// Routes of the service that serve images fetched server side. URLs handed
// to clients never carry the Maps key.
const (
	OverlayRoute    = "/api/v1/cadastre/overlay"
	SatelliteRoute  = "/api/v1/imagery/satellite"
	StreetViewRoute = "/api/v1/imagery/streetview"
)

func toPoint(p locate.LatLng) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

func latLng(p locate.LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

// StaticSatelliteURL is a Google Static Maps satellite image centred on p.
func StaticSatelliteURL(baseURL, key string, p locate.LatLng) string {
	q := url.Values{}
	q.Set("center", latLng(p))
	q.Set("zoom", strconv.Itoa(SatelliteZoom))
	q.Set("size", fmt.Sprintf("%dx%d", ImageSizePixels, ImageSizePixels))
	q.Set("maptype", "satellite")
	q.Set("key", key)
	return orDefault(baseURL, GoogleMapsBaseURL) + "/maps/api/staticmap?" + q.Encode()
}

func streetViewURL(baseURL, path, key string, p locate.LatLng) string {
	q := url.Values{}
	q.Set("location", latLng(p))
	q.Set("size", "640x400")
	q.Set("key", key)
	return orDefault(baseURL, GoogleMapsBaseURL) + path + "?" + q.Encode()
}

// WMSGetMapURL requests a square WMS 1.3.0 image around p. EPSG:4326 in
// WMS 1.3.0 uses lat,lng axis order.
func WMSGetMapURL(baseURL, layer, format string, p locate.LatLng) string {
	b := geo.NewBoundAroundPoint(toPoint(p), ViewHalfSideMeters)
	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.3.0")
	q.Set("REQUEST", "GetMap")
	q.Set("LAYERS", layer)
	q.Set("STYLES", "")
	q.Set("CRS", "EPSG:4326")
	q.Set("BBOX", fmt.Sprintf("%.7f,%.7f,%.7f,%.7f", b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon()))
	q.Set("WIDTH", strconv.Itoa(ImageSizePixels))
	q.Set("HEIGHT", strconv.Itoa(ImageSizePixels))
	q.Set("FORMAT", format)
	if format == "image/png" {
		q.Set("TRANSPARENT", "TRUE")
	}
	return baseURL + "?" + q.Encode()
}

func OrthoURL(baseURL string, p locate.LatLng) string {
	return WMSGetMapURL(orDefault(baseURL, DefaultOrthoWMSURL), OrthoLayer, "image/jpeg", p)
}

func CadastreWMSURL(baseURL string, p locate.LatLng) string {
	return WMSGetMapURL(orDefault(baseURL, DefaultCadastreWMSURL), ParcelLayer, "image/png", p)
}

// CadastreTileURL is the WMTS tile of the parcel layer containing p.
func CadastreTileURL(baseURL string, p locate.LatLng) string {
	t := maptile.At(toPoint(p), CadastreZoom)
	q := url.Values{}
	q.Set("SERVICE", "WMTS")
	q.Set("REQUEST", "GetTile")
	q.Set("VERSION", "1.0.0")
	q.Set("LAYER", ParcelLayer)
	q.Set("STYLE", "normal")
	q.Set("TILEMATRIXSET", "PM")
	q.Set("TILEMATRIX", strconv.Itoa(int(t.Z)))
	q.Set("TILEROW", strconv.FormatUint(uint64(t.Y), 10))
	q.Set("TILECOL", strconv.FormatUint(uint64(t.X), 10))
	q.Set("FORMAT", "image/png")
	return baseURL + "?" + q.Encode()
}

// ProxyURL points at one of the service's image routes for p.
func ProxyURL(publicBaseURL, route string, p locate.LatLng) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(p.Lng, 'f', 6, 64))
	return strings.TrimRight(publicBaseURL, "/") + route + "?" + q.Encode()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
