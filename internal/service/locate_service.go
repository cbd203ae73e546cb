package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"parcel-locator/internal/address"
	"parcel-locator/internal/cadastre"
	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/model"
	"parcel-locator/internal/repository"
	"parcel-locator/internal/scoring"
	"parcel-locator/internal/storage"
	"parcel-locator/internal/vision"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

const (
	// ExifMatchRadiusMeters is how far the nearest parcel may be from the
	// photo's GPS position for the position to be trusted.
	ExifMatchRadiusMeters = 30.0
	ExifScore             = 98
	// AnchorMinScore is the global score a geocoded address needs before the
	// zone parcels are ordered around it.
	AnchorMinScore = 0.6

	persistTimeout = 10 * time.Second
)

type AddressRanker interface {
	Rank(ctx context.Context, candidates []locate.AddressCandidate, c locate.Context) []locate.GeocodedCandidate
}

type ParcelEnumerator interface {
	ValidateZone(zone locate.SearchZone) error
	Enumerate(ctx context.Context, zone locate.SearchZone, propertyType locate.PropertyType, anchors []locate.LatLng) ([]locate.PropertyCandidate, error)
}

type SatelliteAnalyzer interface {
	Analyze(ctx context.Context, c locate.PropertyCandidate, source locate.ImageFeatures) locate.SatelliteAnalysis
}

type VisualsBuilder interface {
	Build(ctx context.Context, p locate.LatLng) locate.CandidateVisuals
}

type ReverseGeocoder interface {
	Reverse(ctx context.Context, p locate.LatLng) (string, error)
}

type SearchStore interface {
	Create(ctx context.Context, run *repository.SearchRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.SearchRun, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]repository.SearchRun, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

type TransactionSource interface {
	LatestForParcels(ctx context.Context, parcelIDs []string) (map[string]locate.ReferenceTransaction, error)
}

type PhotoStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// Deps are the collaborators of the service. Annotator, Reverse, Searches,
// Transactions and Photos are optional.
type Deps struct {
	Annotator    vision.Annotator
	Generator    *address.Generator
	Ranker       AddressRanker
	Enumerator   ParcelEnumerator
	Analyzer     SatelliteAnalyzer
	Visuals      VisualsBuilder
	Reverse      ReverseGeocoder
	Engine       *scoring.Engine
	Searches     SearchStore
	Transactions TransactionSource
	Photos       PhotoStore
}

type Options struct {
	MatchWorkers   int
	RequestTimeout time.Duration
}

type LocateService struct {
	deps Deps
	opts Options
	log  zerolog.Logger
}

func NewLocateService(deps Deps, opts Options, log zerolog.Logger) *LocateService {
	if opts.MatchWorkers <= 0 {
		opts.MatchWorkers = 8
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 45 * time.Second
	}
	if deps.Engine == nil {
		deps.Engine = scoring.NewEngine(scoring.DefaultWeights())
	}
	return &LocateService{deps: deps, opts: opts, log: log}
}

// Locate finds the parcels of the zone that best match the photo. When the
// deadline expires the candidates scored so far are returned and the result
// is marked partial.
func (s *LocateService) Locate(ctx context.Context, req locate.LocateRequest) (*locate.LocateResult, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: photo is required", ErrInvalidInput)
	}
	if err := s.deps.Enumerator.ValidateZone(req.Zone); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	switch req.PropertyType {
	case locate.PropertyTypeAny, locate.PropertyTypeHouse, locate.PropertyTypeApartment:
	default:
		return nil, fmt.Errorf("%w: unknown property type %q", ErrInvalidInput, req.PropertyType)
	}

	start := time.Now()
	result := &locate.LocateResult{
		SearchID:   uuid.New(),
		Method:     locate.MethodVisual,
		Candidates: []locate.RankedCandidate{},
		CreatedAt:  start.UTC(),
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	exifData, exifErr := vision.ReadEXIF(req.Image)
	if exifErr == nil && cadastre.Contains(req.Zone, *exifData.Location) {
		if c, ok := s.locateByGPS(runCtx, req, *exifData.Location); ok {
			result.Method = locate.MethodExif
			result.Candidates = []locate.RankedCandidate{c}
			result.Evaluated = 1
		}
	} else if exifErr == nil {
		s.log.Info().
			Float64("lat", exifData.Location.Lat).
			Float64("lng", exifData.Location.Lng).
			Msg("photo gps position outside search zone, ignored")
	}

	if result.Method == locate.MethodVisual {
		var heading *float64
		if exifData != nil {
			heading = exifData.Heading
		}
		if err := s.locateVisually(runCtx, req, heading, result); err != nil {
			return nil, err
		}
	}

	s.finish(ctx, req, result)

	s.log.Info().
		Str("search_id", result.SearchID.String()).
		Str("method", string(result.Method)).
		Int("evaluated", result.Evaluated).
		Int("candidates", len(result.Candidates)).
		Bool("partial", result.Partial).
		Dur("elapsed", time.Since(start)).
		Msg("locate request completed")

	return result, nil
}

// locateByGPS returns the parcel nearest to the photo position when it lies
// within ExifMatchRadiusMeters.
func (s *LocateService) locateByGPS(ctx context.Context, req locate.LocateRequest, gps locate.LatLng) (locate.RankedCandidate, bool) {
	parcels, err := s.deps.Enumerator.Enumerate(ctx, req.Zone, req.PropertyType, []locate.LatLng{gps})
	if err != nil || len(parcels) == 0 {
		s.log.Warn().
			Err(err).
			Msg("no parcel for photo gps position, falling back to visual matching")
		return locate.RankedCandidate{}, false
	}

	nearest := parcels[0]
	distance := geo.Distance(orb.Point{gps.Lng, gps.Lat}, orb.Point{nearest.Coordinates.Lng, nearest.Coordinates.Lat})
	if distance > ExifMatchRadiusMeters {
		s.log.Info().
			Float64("distance_m", distance).
			Str("parcel_id", nearest.ID).
			Msg("nearest parcel too far from photo gps position")
		return locate.RankedCandidate{}, false
	}

	var (
		visuals locate.CandidateVisuals
		addr    string
	)
	var g errgroup.Group
	g.Go(func() error {
		visuals = s.deps.Visuals.Build(ctx, nearest.Coordinates)
		return nil
	})
	g.Go(func() error {
		addr = s.reverseAddress(ctx, nearest)
		return nil
	})
	_ = g.Wait()

	score := locate.MatchingScore{Global: ExifScore, Details: locate.ScoreDetails{
		ArchitectureMatch: scoring.Neutral,
		PoolSimilarity:    scoring.Neutral,
		VegetationMatch:   scoring.Neutral,
		SurfaceMatch:      scoring.Neutral,
		OrientationMatch:  scoring.Neutral,
		ContextMatch:      scoring.Neutral,
	}}
	return locate.RankedCandidate{
		ParcelID:      nearest.ID,
		Address:       addr,
		Coordinates:   nearest.Coordinates,
		MatchingScore: score,
		Explanation:   scoring.ExplainGPS(addr, distance, ExifScore),
		Visuals:       visuals,
	}, true
}

func (s *LocateService) locateVisually(ctx context.Context, req locate.LocateRequest, heading *float64, result *locate.LocateResult) error {
	signals, err := s.annotate(ctx, req.Image)
	if err != nil {
		return err
	}

	hints := vision.ExtractHints(signals)
	features := vision.ExtractFeatures(signals, hints, vision.Overrides{Features: req.Hints, Heading: heading})
	result.Features = features

	s.log.Debug().
		Int("address_fragments", len(hints.AddressFragments)).
		Int("signs", len(hints.Signs)).
		Bool("pool", features.HasPool).
		Str("orientation", string(features.Orientation)).
		Msg("image features extracted")

	candidates := s.deps.Generator.Generate(signals.FullText, signals.Landmarks, signals.Labels, req.Context)
	hypotheses := s.deps.Ranker.Rank(ctx, candidates, req.Context)
	if hypotheses == nil {
		hypotheses = []locate.GeocodedCandidate{}
	}
	result.AddressHypotheses = hypotheses

	parcels, err := s.deps.Enumerator.Enumerate(ctx, req.Zone, req.PropertyType, anchors(hypotheses, req.Zone))
	if err != nil {
		// Past the deadline the zone was never evaluated.
		result.Partial = ctx.Err() != nil
		s.log.Warn().
			Err(err).
			Float64("lat", req.Zone.Center.Lat).
			Float64("lng", req.Zone.Center.Lng).
			Bool("partial", result.Partial).
			Msg("zone enumeration failed")
		return nil
	}

	refs := s.references(ctx, parcels, req.Reference)
	scored, partial := s.evaluate(ctx, parcels, features, req.Listing, refs)
	result.Evaluated = len(scored)
	result.Partial = partial || (len(parcels) == 0 && ctx.Err() != nil)

	ranked := scoring.Rank(scored)
	for i := range ranked {
		ranked[i].Explanation = scoring.Explain(ranked[i].Address, ranked[i].MatchingScore)
	}
	result.Candidates = ranked

	if features.HasPool && len(scored) > 0 && len(ranked) == 0 && withoutImagery(scored) {
		s.log.Warn().
			Int("evaluated", len(scored)).
			Msg("every candidate eliminated by the pool check with no satellite imagery, check the imagery provider")
	}
	return nil
}

// withoutImagery reports whether no candidate got a usable aerial image.
// Vegetation is only known once an image was decoded.
func withoutImagery(scored []locate.RankedCandidate) bool {
	for _, c := range scored {
		if c.Satellite.VegetationDense != nil {
			return false
		}
	}
	return true
}

func (s *LocateService) annotate(ctx context.Context, image []byte) (locate.VisionSignals, error) {
	if s.deps.Annotator == nil {
		s.log.Warn().Msg("vision annotator not configured, matching without image signals")
		return locate.VisionSignals{}, nil
	}
	resp, err := s.deps.Annotator.Annotate(ctx, image)
	if err != nil {
		s.log.Error().Err(err).Msg("image annotation failed")
		if !errors.Is(err, vision.ErrAnnotationFailed) {
			err = fmt.Errorf("%w: %v", vision.ErrAnnotationFailed, err)
		}
		return locate.VisionSignals{}, err
	}
	return vision.ParseSignals(resp), nil
}

// evaluate scores every parcel on a bounded pool of workers. Candidates not
// finished when ctx expires are left out.
func (s *LocateService) evaluate(
	ctx context.Context,
	parcels []locate.PropertyCandidate,
	features locate.ImageFeatures,
	listing *locate.ListingMetadata,
	refs map[string]*locate.ReferenceTransaction,
) ([]locate.RankedCandidate, bool) {
	var (
		mu     sync.Mutex
		scored = make([]locate.RankedCandidate, 0, len(parcels))
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(s.opts.MatchWorkers)
		for _, p := range parcels {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				c, ok := s.evaluateOne(ctx, p, features, listing, refs[p.ID])
				if ok {
					mu.Lock()
					scored = append(scored, c)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	out := append([]locate.RankedCandidate(nil), scored...)
	mu.Unlock()

	partial := ctx.Err() != nil && len(out) < len(parcels)
	if partial {
		s.log.Warn().
			Int("evaluated", len(out)).
			Int("parcels", len(parcels)).
			Msg("deadline reached, returning partial results")
	}
	return out, partial
}

// evaluateOne fetches the satellite analysis, the visuals and the address of
// a parcel concurrently, then scores it.
func (s *LocateService) evaluateOne(
	ctx context.Context,
	p locate.PropertyCandidate,
	features locate.ImageFeatures,
	listing *locate.ListingMetadata,
	ref *locate.ReferenceTransaction,
) (locate.RankedCandidate, bool) {
	var (
		analysis locate.SatelliteAnalysis
		visuals  locate.CandidateVisuals
		addr     string
	)
	var g errgroup.Group
	g.Go(func() error {
		analysis = s.deps.Analyzer.Analyze(ctx, p, features)
		return nil
	})
	g.Go(func() error {
		visuals = s.deps.Visuals.Build(ctx, p.Coordinates)
		return nil
	})
	g.Go(func() error {
		addr = s.reverseAddress(ctx, p)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return locate.RankedCandidate{}, false
	}

	score := s.deps.Engine.Score(features, analysis, p, listing, ref)
	s.log.Debug().
		Str("parcel_id", p.ID).
		Int("global", score.Global).
		Msg("candidate scored")

	return locate.RankedCandidate{
		ParcelID:      p.ID,
		Address:       addr,
		Coordinates:   p.Coordinates,
		MatchingScore: score,
		Visuals:       visuals,
		Satellite:     analysis,
	}, true
}

func (s *LocateService) reverseAddress(ctx context.Context, p locate.PropertyCandidate) string {
	if s.deps.Reverse == nil {
		return p.Address
	}
	addr, err := s.deps.Reverse.Reverse(ctx, p.Coordinates)
	if err != nil || addr == "" {
		s.log.Debug().
			Err(err).
			Str("parcel_id", p.ID).
			Msg("reverse geocoding failed, keeping parcel label")
		return p.Address
	}
	return addr
}

// references returns the sale used as price context for each parcel. A
// reference supplied with the request applies to every parcel.
func (s *LocateService) references(ctx context.Context, parcels []locate.PropertyCandidate, requested *locate.ReferenceTransaction) map[string]*locate.ReferenceTransaction {
	refs := make(map[string]*locate.ReferenceTransaction, len(parcels))
	if requested != nil {
		for _, p := range parcels {
			refs[p.ID] = requested
		}
		return refs
	}
	if s.deps.Transactions == nil || len(parcels) == 0 {
		return refs
	}

	ids := make([]string, 0, len(parcels))
	for _, p := range parcels {
		ids = append(ids, p.CadastreData.ParcelIDs...)
	}
	latest, err := s.deps.Transactions.LatestForParcels(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Int("parcels", len(ids)).Msg("failed to load reference transactions")
		return refs
	}
	for _, p := range parcels {
		for _, id := range p.CadastreData.ParcelIDs {
			if t, ok := latest[id]; ok {
				refs[p.ID] = &t
				break
			}
		}
	}
	return refs
}

// finish uploads the photo and records the run. Both are best effort and
// outlive the request deadline.
func (s *LocateService) finish(ctx context.Context, req locate.LocateRequest, result *locate.LocateResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if s.deps.Photos != nil {
		key := storage.PhotoKey(result.SearchID, req.Filename, result.CreatedAt)
		url, err := s.deps.Photos.Upload(ctx, key, bytes.NewReader(req.Image), int64(len(req.Image)), http.DetectContentType(req.Image))
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to upload photo")
		} else {
			result.PhotoURL = url
		}
	}

	if s.deps.Searches == nil {
		return
	}
	run, err := newSearchRun(req, result)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode search run")
		return
	}
	if err := s.deps.Searches.Create(ctx, run); err != nil {
		s.log.Error().
			Err(err).
			Str("search_id", result.SearchID.String()).
			Msg("failed to save search run")
	}
}

func newSearchRun(req locate.LocateRequest, result *locate.LocateResult) (*repository.SearchRun, error) {
	zone, err := json.Marshal(req.Zone)
	if err != nil {
		return nil, fmt.Errorf("marshal zone: %w", err)
	}
	searchCtx, err := json.Marshal(req.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	run := &repository.SearchRun{
		ID:             result.SearchID,
		UserID:         req.UserID,
		Method:         string(result.Method),
		Zone:           datatypes.JSON(zone),
		Context:        datatypes.JSON(searchCtx),
		Result:         datatypes.JSON(payload),
		CandidateCount: len(result.Candidates),
		Partial:        result.Partial,
		CreatedAt:      result.CreatedAt,
	}
	if len(result.Candidates) > 0 {
		run.TopScore = result.Candidates[0].MatchingScore.Global
	}
	if result.PhotoURL != "" {
		run.PhotoURL = &result.PhotoURL
	}
	return run, nil
}

// anchors are the confident geocoded addresses lying inside the zone.
func anchors(hypotheses []locate.GeocodedCandidate, zone locate.SearchZone) []locate.LatLng {
	var out []locate.LatLng
	for _, h := range hypotheses {
		if h.GlobalScore < AnchorMinScore {
			continue
		}
		p := locate.LatLng{Lat: h.Latitude, Lng: h.Longitude}
		if cadastre.Contains(zone, p) {
			out = append(out, p)
		}
	}
	return out
}

// AddressCandidates runs the address generator alone on a piece of text.
func (s *LocateService) AddressCandidates(text string, c locate.Context) ([]locate.AddressCandidate, error) {
	if text == "" && c.City == "" && c.PostalCode == "" {
		return nil, fmt.Errorf("%w: text or context is required", ErrInvalidInput)
	}
	return s.deps.Generator.Generate(text, nil, nil, c), nil
}

// GeocodeText generates address candidates from text and geocodes them.
func (s *LocateService) GeocodeText(ctx context.Context, text string, c locate.Context) ([]locate.GeocodedCandidate, error) {
	candidates, err := s.AddressCandidates(text, c)
	if err != nil {
		return nil, err
	}
	ranked := s.deps.Ranker.Rank(ctx, candidates, c)
	if ranked == nil {
		ranked = []locate.GeocodedCandidate{}
	}
	return ranked, nil
}

type SearchSummary struct {
	ID             string            `json:"id"`
	Method         string            `json:"method"`
	Zone           locate.SearchZone `json:"zone"`
	CandidateCount int               `json:"candidate_count"`
	TopScore       int               `json:"top_score"`
	Partial        bool              `json:"partial"`
	PhotoURL       *string           `json:"photo_url,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// GetSearch returns a stored run; only its owner and admins may read it.
func (s *LocateService) GetSearch(ctx context.Context, principal model.Principal, id uuid.UUID) (*locate.LocateResult, error) {
	if s.deps.Searches == nil {
		return nil, fmt.Errorf("%w: search history is disabled", ErrNotFound)
	}
	run, err := s.deps.Searches.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: search %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search: %w", err)
	}
	if !principal.CanRead(run.UserID) {
		return nil, ErrForbidden
	}

	var result locate.LocateResult
	if err := json.Unmarshal(run.Result, &result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return &result, nil
}

func (s *LocateService) ListSearches(ctx context.Context, principal model.Principal, limit, offset int) ([]SearchSummary, error) {
	if s.deps.Searches == nil {
		return []SearchSummary{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := s.deps.Searches.ListByUser(ctx, principal.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}

	out := make([]SearchSummary, 0, len(runs))
	for _, r := range runs {
		summary := SearchSummary{
			ID:             r.ID.String(),
			Method:         r.Method,
			CandidateCount: r.CandidateCount,
			TopScore:       r.TopScore,
			Partial:        r.Partial,
			PhotoURL:       r.PhotoURL,
			CreatedAt:      r.CreatedAt,
		}
		if len(r.Zone) > 0 {
			_ = json.Unmarshal(r.Zone, &summary.Zone)
		}
		out = append(out, summary)
	}
	return out, nil
}

// CleanupOldSearches deletes runs older than days.
func (s *LocateService) CleanupOldSearches(ctx context.Context, days int) (int64, error) {
	if s.deps.Searches == nil {
		return 0, nil
	}
	if days <= 0 {
		return 0, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}
	deleted, err := s.deps.Searches.DeleteOlderThan(ctx, days)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old searches")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old searches")
	}
	return deleted, nil
}
