package vision

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"parcel-locator/internal/domain/locate"
)

var ErrNoGPS = errors.New("no gps position in image metadata")

type ExifData struct {
	Location *locate.LatLng
	// Heading is the camera direction in degrees from true north.
	Heading *float64
	TakenAt time.Time
}

// ReadEXIF decodes the embedded metadata of a JPEG/TIFF image. When the
// image has metadata but no usable position, the returned data still carries
// the heading and ErrNoGPS is returned alongside it.
func ReadEXIF(image []byte) (*ExifData, error) {
	x, err := exif.Decode(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGPS, err)
	}

	data := &ExifData{}
	if tag, err := x.Get(exif.GPSImgDirection); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			h := math.Mod(float64(num)/float64(den), 360)
			data.Heading = &h
		}
	}
	if t, err := x.DateTime(); err == nil {
		data.TakenAt = t
	}

	lat, lng, err := x.LatLong()
	if err != nil {
		return data, fmt.Errorf("%w: %v", ErrNoGPS, err)
	}
	if !validPosition(lat, lng) {
		return data, fmt.Errorf("%w: invalid position %f,%f", ErrNoGPS, lat, lng)
	}
	data.Location = &locate.LatLng{Lat: lat, Lng: lng}
	return data, nil
}

func validPosition(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
