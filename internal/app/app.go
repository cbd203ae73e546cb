// Package app assembles the matching pipeline from configuration. It is
// shared by the HTTP server and the command-line tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"parcel-locator/internal/address"
	"parcel-locator/internal/cadastre"
	"parcel-locator/internal/config"
	"parcel-locator/internal/geocode"
	"parcel-locator/internal/repository"
	"parcel-locator/internal/satellite"
	"parcel-locator/internal/scoring"
	"parcel-locator/internal/service"
	"parcel-locator/internal/storage"
	"parcel-locator/internal/vision"
	"parcel-locator/internal/visuals"
)

// Components are the long-lived objects built by Build.
type Components struct {
	Service      *service.LocateService
	Visuals      *visuals.Builder
	Transactions *repository.TransactionRepository
}

// Build wires every collaborator. External services without credentials
// are left out and the pipeline degrades; database may be nil.
func Build(ctx context.Context, cfg *config.Config, database *gorm.DB, log zerolog.Logger) (*Components, error) {
	client := &http.Client{Timeout: cfg.Matching.HTTPTimeout}
	deps := service.Deps{
		Generator: address.NewGenerator(cfg.Matching.DefaultCountry),
	}

	annotator, err := vision.NewGoogleAnnotator(ctx, cfg.Google.VisionAPIKey)
	switch {
	case errors.Is(err, vision.ErrNotConfigured):
		log.Warn().Msg("vision api key not set, photos will only be matched on hints")
	case err != nil:
		return nil, fmt.Errorf("init vision annotator: %w", err)
	default:
		deps.Annotator = annotator
	}

	var geocoder geocode.Geocoder
	google, err := geocode.NewGoogleGeocoder(cfg.Google.MapsAPIKey, "fr")
	switch {
	case errors.Is(err, geocode.ErrNotConfigured):
		log.Warn().Msg("maps api key not set, geocoding disabled")
	case err != nil:
		return nil, fmt.Errorf("init geocoder: %w", err)
	default:
		geocoder = google
		deps.Reverse = google
	}
	rankerCfg := geocode.RankerConfig{
		Country: cfg.Matching.DefaultCountry,
		Workers: cfg.Matching.GeocodeWorkers,
	}
	if cfg.Google.MapsAPIKey != "" {
		rankerCfg.ImageBaseURL = cfg.PublicBaseURL
		if cfg.PublicBaseURL == "" {
			log.Warn().Msg("PUBLIC_BASE_URL not set, google satellite and street view images are not offered to clients")
		}
	}
	deps.Ranker = geocode.NewRanker(geocoder, rankerCfg, log)

	registry := cadastre.NewAPICartoClient(cfg.Cadastre.BaseURL, cfg.Cadastre.CommunesURL, client)
	deps.Enumerator = cadastre.NewEnumerator(registry, cfg.Matching.MaxRadiusMeters, log)

	imagery := satellite.NewStaticImagery(cfg.Google.MapsAPIKey, "", cfg.Cadastre.OrthoWMSURL, client)
	if annotator != nil {
		deps.Analyzer = satellite.NewAnalyzer(imagery, annotator, log)
	} else {
		deps.Analyzer = satellite.NewAnalyzer(imagery, nil, log)
	}

	builder := visuals.NewBuilder(visuals.Config{
		GoogleMapsKey: cfg.Google.MapsAPIKey,
		CadastreWMTS:  cfg.Cadastre.WMTSURL,
		CadastreWMS:   cfg.Cadastre.WMSURL,
		OrthoWMS:      cfg.Cadastre.OrthoWMSURL,
		PublicBaseURL: cfg.PublicBaseURL,
	}, client, log)
	deps.Visuals = builder

	weights := scoring.DefaultWeights()
	if cfg.Matching.ScoringWeightsFile != "" {
		w, err := scoring.LoadWeights(cfg.Matching.ScoringWeightsFile)
		if err != nil {
			return nil, fmt.Errorf("load scoring weights: %w", err)
		}
		weights = w
		log.Info().Str("file", cfg.Matching.ScoringWeightsFile).Msg("scoring weights loaded")
	}
	deps.Engine = scoring.NewEngine(weights)

	components := &Components{Visuals: builder}
	if database != nil {
		deps.Searches = repository.NewSearchRepository(database)
		components.Transactions = repository.NewTransactionRepository(database)
		deps.Transactions = components.Transactions
	}

	r2, err := storage.NewR2Client(cfg.R2)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		log.Warn().Msg("R2 storage not configured, photo uploads will be disabled")
	case err != nil:
		return nil, fmt.Errorf("init r2 client: %w", err)
	default:
		deps.Photos = r2
	}

	components.Service = service.NewLocateService(deps, service.Options{
		MatchWorkers:   cfg.Matching.MatchWorkers,
		RequestTimeout: cfg.Matching.RequestTimeout,
	}, log)
	return components, nil
}
