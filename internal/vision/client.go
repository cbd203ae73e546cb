package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"parcel-locator/internal/domain/locate"
)

var (
	ErrNotConfigured    = errors.New("vision annotator is not configured")
	ErrAnnotationFailed = errors.New("image annotation failed")
)

const (
	maxLabels    = 30
	maxLandmarks = 5
	maxLogos     = 5
)

// Annotator returns the raw annotation of an image.
type Annotator interface {
	Annotate(ctx context.Context, image []byte) (*visionapi.AnnotateImageResponse, error)
}

type GoogleAnnotator struct {
	service *visionapi.Service
}

func NewGoogleAnnotator(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GoogleAnnotator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	return &GoogleAnnotator{service: svc}, nil
}

func (a *GoogleAnnotator) Annotate(ctx context.Context, image []byte) (*visionapi.AnnotateImageResponse, error) {
	return a.annotate(ctx, image, []*visionapi.Feature{
		{Type: "TEXT_DETECTION"},
		{Type: "LABEL_DETECTION", MaxResults: maxLabels},
		{Type: "LANDMARK_DETECTION", MaxResults: maxLandmarks},
		{Type: "LOGO_DETECTION", MaxResults: maxLogos},
	})
}

// Labels runs label detection only. Used on satellite tiles.
func (a *GoogleAnnotator) Labels(ctx context.Context, image []byte) ([]locate.Label, error) {
	resp, err := a.annotate(ctx, image, []*visionapi.Feature{
		{Type: "LABEL_DETECTION", MaxResults: maxLabels},
	})
	if err != nil {
		return nil, err
	}
	return ParseSignals(resp).Labels, nil
}

func (a *GoogleAnnotator) annotate(ctx context.Context, image []byte, features []*visionapi.Feature) (*visionapi.AnnotateImageResponse, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrAnnotationFailed)
	}

	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: features,
		}},
	}

	batch, err := a.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnnotationFailed, err)
	}
	if batch == nil || len(batch.Responses) == 0 || batch.Responses[0] == nil {
		return nil, fmt.Errorf("%w: empty response", ErrAnnotationFailed)
	}

	resp := batch.Responses[0]
	if resp.Error != nil && resp.Error.Code != 0 {
		return nil, fmt.Errorf("%w: %s (code %d)", ErrAnnotationFailed, resp.Error.Message, resp.Error.Code)
	}
	return resp, nil
}
