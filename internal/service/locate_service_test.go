package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	visionapi "google.golang.org/api/vision/v1"

	"parcel-locator/internal/address"
	"parcel-locator/internal/cadastre"
	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/model"
	"parcel-locator/internal/repository"
	"parcel-locator/internal/scoring"
	"parcel-locator/internal/vision"
)

var bordeaux = locate.LatLng{Lat: 44.8378, Lng: -0.5792}

type fakeAnnotator struct {
	resp *visionapi.AnnotateImageResponse
	err  error
}

func (f fakeAnnotator) Annotate(context.Context, []byte) (*visionapi.AnnotateImageResponse, error) {
	return f.resp, f.err
}

type fakeRanker struct {
	out []locate.GeocodedCandidate
}

func (f fakeRanker) Rank(context.Context, []locate.AddressCandidate, locate.Context) []locate.GeocodedCandidate {
	return f.out
}

type fakeEnumerator struct {
	parcels []locate.PropertyCandidate
	err     error
	// block waits for the deadline, like a registry that never answers.
	block bool

	mu      sync.Mutex
	anchors []locate.LatLng
}

func (f *fakeEnumerator) ValidateZone(zone locate.SearchZone) error {
	return cadastre.NewEnumerator(nil, 5000, zerolog.Nop()).ValidateZone(zone)
}

func (f *fakeEnumerator) Enumerate(ctx context.Context, _ locate.SearchZone, _ locate.PropertyType, anchors []locate.LatLng) ([]locate.PropertyCandidate, error) {
	f.mu.Lock()
	f.anchors = anchors
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.parcels, f.err
}

type fakeAnalyzer struct {
	byID map[string]locate.SatelliteAnalysis
	slow map[string]bool
}

func (f fakeAnalyzer) Analyze(ctx context.Context, c locate.PropertyCandidate, _ locate.ImageFeatures) locate.SatelliteAnalysis {
	if f.slow[c.ID] {
		<-ctx.Done()
	}
	return f.byID[c.ID]
}

type fakeVisuals struct{}

func (fakeVisuals) Build(_ context.Context, p locate.LatLng) locate.CandidateVisuals {
	return locate.CandidateVisuals{SatelliteURL: "https://sat.example", CadastreURL: "https://cadastre.example"}
}

type fakeReverse struct{}

func (fakeReverse) Reverse(_ context.Context, p locate.LatLng) (string, error) {
	if p.Lat > 44.84 {
		return "", errors.New("zero results")
	}
	return "12 Rue des Lilas, 33000 Bordeaux", nil
}

type fakeSearches struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*repository.SearchRun
}

func newFakeSearches() *fakeSearches {
	return &fakeSearches{runs: map[uuid.UUID]*repository.SearchRun{}}
}

func (f *fakeSearches) Create(_ context.Context, run *repository.SearchRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = run
	return nil
}

func (f *fakeSearches) GetByID(_ context.Context, id uuid.UUID) (*repository.SearchRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return run, nil
}

func (f *fakeSearches) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]repository.SearchRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.SearchRun
	for _, r := range f.runs {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeSearches) DeleteOlderThan(context.Context, int) (int64, error) {
	return 0, nil
}

type fakeTransactions map[string]locate.ReferenceTransaction

func (f fakeTransactions) LatestForParcels(context.Context, []string) (map[string]locate.ReferenceTransaction, error) {
	return f, nil
}

type fakePhotos struct {
	key string
}

func (f *fakePhotos) Upload(_ context.Context, key string, body io.Reader, size int64, _ string) (string, error) {
	data, _ := io.ReadAll(body)
	if int64(len(data)) != size {
		return "", errors.New("size mismatch")
	}
	f.key = key
	return "https://photos.example/" + key, nil
}

func parcel(id string, lat float64, surface float64) locate.PropertyCandidate {
	return locate.PropertyCandidate{
		ID:           id,
		Address:      "Parcelle " + id + ", 33000 Bordeaux",
		Coordinates:  locate.LatLng{Lat: lat, Lng: bordeaux.Lng},
		CadastreData: locate.CadastreData{ParcelIDs: []string{id}, TerrainSurface: surface},
	}
}

func poolPhoto() *visionapi.AnnotateImageResponse {
	return &visionapi.AnnotateImageResponse{
		TextAnnotations: []*visionapi.EntityAnnotation{{Description: "A VENDRE\n12 rue des Lilas"}},
		LabelAnnotations: []*visionapi.EntityAnnotation{
			{Description: "Swimming pool", Score: 0.93},
			{Description: "House", Score: 0.88},
		},
	}
}

func newTestService(deps Deps, timeout time.Duration) *LocateService {
	if deps.Generator == nil {
		deps.Generator = address.NewGenerator("FR")
	}
	if deps.Ranker == nil {
		deps.Ranker = fakeRanker{}
	}
	if deps.Analyzer == nil {
		deps.Analyzer = fakeAnalyzer{}
	}
	if deps.Visuals == nil {
		deps.Visuals = fakeVisuals{}
	}
	return NewLocateService(deps, Options{MatchWorkers: 4, RequestTimeout: timeout}, zerolog.Nop())
}

func zone() locate.SearchZone {
	return locate.SearchZone{Center: bordeaux, RadiusMeters: 800}
}

func TestLocateRanksAndEliminates(t *testing.T) {
	enum := &fakeEnumerator{parcels: []locate.PropertyCandidate{
		parcel("A", 44.8380, 500),
		parcel("B", 44.8381, 500),
		parcel("C", 44.8382, 1000),
	}}
	searches := newFakeSearches()
	photos := &fakePhotos{}
	svc := newTestService(Deps{
		Annotator: fakeAnnotator{resp: poolPhoto()},
		Ranker: fakeRanker{out: []locate.GeocodedCandidate{
			{Address: "12 Rue des Lilas, 33000 Bordeaux", Latitude: 44.8379, Longitude: -0.5790, GlobalScore: 0.9},
			{Address: "Paris, France", Latitude: 48.85, Longitude: 2.35, GlobalScore: 0.95},
		}},
		Enumerator: enum,
		Analyzer: fakeAnalyzer{byID: map[string]locate.SatelliteAnalysis{
			"A": {PoolPresent: true, EstimatedSurface: 500},
			"B": {PoolPresent: false, EstimatedSurface: 500},
			"C": {PoolPresent: true, EstimatedSurface: 1000},
		}},
		Reverse:  fakeReverse{},
		Searches: searches,
		Photos:   photos,
	}, 5*time.Second)

	userID := uuid.New()
	res, err := svc.Locate(context.Background(), locate.LocateRequest{
		Image:    []byte("not a jpeg"),
		Filename: "facade.png",
		Zone:     zone(),
		Listing:  &locate.ListingMetadata{Surface: 500},
		UserID:   userID,
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}

	if res.Method != locate.MethodVisual || res.Partial || res.Evaluated != 3 {
		t.Errorf("method=%s partial=%v evaluated=%d", res.Method, res.Partial, res.Evaluated)
	}
	if !res.Features.HasPool {
		t.Error("pool not detected in photo")
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %+v", res.Candidates)
	}
	if res.Candidates[0].ParcelID != "A" || res.Candidates[1].ParcelID != "C" {
		t.Errorf("order = %s, %s", res.Candidates[0].ParcelID, res.Candidates[1].ParcelID)
	}
	for _, c := range res.Candidates {
		if c.Explanation == "" || c.Visuals.CadastreURL == "" {
			t.Errorf("candidate %s missing explanation or cadastre url", c.ParcelID)
		}
		if c.MatchingScore.Global <= scoring.MinGlobalScore {
			t.Errorf("candidate %s kept with %d", c.ParcelID, c.MatchingScore.Global)
		}
	}
	if res.Candidates[0].Address != "12 Rue des Lilas, 33000 Bordeaux" {
		t.Errorf("address = %q", res.Candidates[0].Address)
	}

	// Only the in-zone hypothesis anchors the enumeration.
	if len(enum.anchors) != 1 || enum.anchors[0].Lat != 44.8379 {
		t.Errorf("anchors = %+v", enum.anchors)
	}

	if res.PhotoURL == "" || photos.key == "" {
		t.Error("photo not uploaded")
	}
	stored, err := svc.GetSearch(context.Background(), model.Principal{UserID: userID, Role: model.UserRoleAgent}, res.SearchID)
	if err != nil {
		t.Fatalf("GetSearch: %v", err)
	}
	if len(stored.Candidates) != 2 || stored.Candidates[0].ParcelID != "A" {
		t.Errorf("stored = %+v", stored.Candidates)
	}
}

func TestLocateAnnotationFailureIsFatal(t *testing.T) {
	svc := newTestService(Deps{
		Annotator:  fakeAnnotator{err: errors.New("quota exceeded")},
		Enumerator: &fakeEnumerator{},
	}, time.Second)

	_, err := svc.Locate(context.Background(), locate.LocateRequest{Image: []byte("x"), Zone: zone()})
	if !errors.Is(err, vision.ErrAnnotationFailed) {
		t.Errorf("err = %v, want ErrAnnotationFailed", err)
	}
}

func TestLocateInvalidInput(t *testing.T) {
	svc := newTestService(Deps{Enumerator: &fakeEnumerator{}}, time.Second)
	tests := []struct {
		name string
		req  locate.LocateRequest
	}{
		{"no photo", locate.LocateRequest{Zone: zone()}},
		{"no radius", locate.LocateRequest{Image: []byte("x"), Zone: locate.SearchZone{Center: bordeaux}}},
		{"radius too large", locate.LocateRequest{Image: []byte("x"), Zone: locate.SearchZone{Center: bordeaux, RadiusMeters: 50000}}},
		{"bad property type", locate.LocateRequest{Image: []byte("x"), Zone: zone(), PropertyType: "castle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Locate(context.Background(), tt.req); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLocateDegradesWithoutCollaborators(t *testing.T) {
	svc := newTestService(Deps{Enumerator: &fakeEnumerator{err: errors.New("registry down")}}, time.Second)
	res, err := svc.Locate(context.Background(), locate.LocateRequest{Image: []byte("x"), Zone: zone()})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if res.Candidates == nil || len(res.Candidates) != 0 {
		t.Errorf("candidates = %+v", res.Candidates)
	}
}

func TestLocateDeadlineReturnsPartialResults(t *testing.T) {
	svc := newTestService(Deps{
		Enumerator: &fakeEnumerator{parcels: []locate.PropertyCandidate{
			parcel("fast1", 44.8380, 500),
			parcel("slow", 44.8381, 500),
			parcel("fast2", 44.8382, 500),
		}},
		Analyzer: fakeAnalyzer{
			byID: map[string]locate.SatelliteAnalysis{
				"fast1": {PoolPresent: true},
				"slow":  {PoolPresent: true},
				"fast2": {PoolPresent: true},
			},
			slow: map[string]bool{"slow": true},
		},
	}, 100*time.Millisecond)

	res, err := svc.Locate(context.Background(), locate.LocateRequest{Image: []byte("x"), Zone: zone()})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !res.Partial {
		t.Error("expected partial result")
	}
	if res.Evaluated != 2 || len(res.Candidates) != 2 {
		t.Errorf("evaluated=%d candidates=%d", res.Evaluated, len(res.Candidates))
	}
	for _, c := range res.Candidates {
		if c.ParcelID == "slow" {
			t.Error("unfinished candidate returned")
		}
	}
}

func TestLocateDeadlineDuringEnumerationIsPartial(t *testing.T) {
	svc := newTestService(Deps{
		Enumerator: &fakeEnumerator{block: true},
	}, 50*time.Millisecond)

	res, err := svc.Locate(context.Background(), locate.LocateRequest{Image: []byte("x"), Zone: zone()})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !res.Partial {
		t.Error("expected partial result when the deadline fires before evaluation")
	}
	if res.Evaluated != 0 || len(res.Candidates) != 0 {
		t.Errorf("evaluated=%d candidates=%d", res.Evaluated, len(res.Candidates))
	}
}

func TestLocateEnumerationErrorIsNotPartial(t *testing.T) {
	svc := newTestService(Deps{
		Enumerator: &fakeEnumerator{err: errors.New("registry down")},
	}, time.Second)

	res, err := svc.Locate(context.Background(), locate.LocateRequest{Image: []byte("x"), Zone: zone()})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if res.Partial || len(res.Candidates) != 0 {
		t.Errorf("partial=%v candidates=%d", res.Partial, len(res.Candidates))
	}
}

func TestLocateWarnsWhenPoolCheckRunsWithoutImagery(t *testing.T) {
	parcels := []locate.PropertyCandidate{parcel("A", 44.8380, 500), parcel("B", 44.8381, 500)}
	dense := true
	tests := []struct {
		name     string
		analyses map[string]locate.SatelliteAnalysis
		wantWarn bool
	}{
		{"no imagery", nil, true},
		{"imagery without pool", map[string]locate.SatelliteAnalysis{
			"A": {VegetationDense: &dense},
			"B": {VegetationDense: &dense},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			deps := Deps{
				Annotator:  fakeAnnotator{resp: poolPhoto()},
				Generator:  address.NewGenerator("FR"),
				Ranker:     fakeRanker{},
				Enumerator: &fakeEnumerator{parcels: parcels},
				Analyzer:   fakeAnalyzer{byID: tt.analyses},
				Visuals:    fakeVisuals{},
			}
			svc := NewLocateService(deps, Options{MatchWorkers: 2, RequestTimeout: time.Second}, zerolog.New(&logs))

			res, err := svc.Locate(context.Background(), locate.LocateRequest{Image: []byte("x"), Zone: zone()})
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if res.Evaluated != 2 || len(res.Candidates) != 0 {
				t.Fatalf("evaluated=%d candidates=%d", res.Evaluated, len(res.Candidates))
			}
			n := strings.Count(logs.String(), "no satellite imagery")
			if tt.wantWarn && n != 1 {
				t.Errorf("got %d imagery warnings, want exactly one:\n%s", n, logs.String())
			}
			if !tt.wantWarn && n != 0 {
				t.Errorf("unexpected imagery warning:\n%s", logs.String())
			}
		})
	}
}

func TestLocateByGPS(t *testing.T) {
	near := parcel("N", 44.83795, 400)
	svc := newTestService(Deps{
		Enumerator: &fakeEnumerator{parcels: []locate.PropertyCandidate{near, parcel("F", 44.8390, 400)}},
		Reverse:    fakeReverse{},
	}, time.Second)

	gps := locate.LatLng{Lat: 44.8380, Lng: bordeaux.Lng}
	c, ok := svc.locateByGPS(context.Background(), locate.LocateRequest{Zone: zone()}, gps)
	if !ok {
		t.Fatal("expected a gps match")
	}
	if c.ParcelID != "N" || c.MatchingScore.Global != ExifScore || c.Visuals.CadastreURL == "" {
		t.Errorf("candidate = %+v", c)
	}

	far := locate.LatLng{Lat: 44.8400, Lng: bordeaux.Lng}
	if _, ok := svc.locateByGPS(context.Background(), locate.LocateRequest{Zone: zone()}, far); ok {
		t.Error("parcel 230 m away accepted")
	}
}

func TestReferences(t *testing.T) {
	parcels := []locate.PropertyCandidate{parcel("A", 44.838, 500), parcel("B", 44.838, 500)}
	svc := newTestService(Deps{
		Enumerator:   &fakeEnumerator{},
		Transactions: fakeTransactions{"A": {ParcelID: "A", Price: 300000}},
	}, time.Second)

	refs := svc.references(context.Background(), parcels, nil)
	if refs["A"] == nil || refs["A"].Price != 300000 || refs["B"] != nil {
		t.Errorf("refs = %+v", refs)
	}

	override := &locate.ReferenceTransaction{Price: 410000}
	refs = svc.references(context.Background(), parcels, override)
	if refs["A"] != override || refs["B"] != override {
		t.Errorf("request reference not applied: %+v", refs)
	}
}

func TestGetSearchAccess(t *testing.T) {
	searches := newFakeSearches()
	owner := uuid.New()
	run := &repository.SearchRun{ID: uuid.New(), UserID: owner, Result: []byte(`{"method":"visual","candidates":[]}`)}
	searches.Create(context.Background(), run)

	svc := newTestService(Deps{Enumerator: &fakeEnumerator{}, Searches: searches}, time.Second)

	if _, err := svc.GetSearch(context.Background(), model.Principal{UserID: uuid.New(), Role: model.UserRoleAgent}, run.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("other user err = %v", err)
	}
	if _, err := svc.GetSearch(context.Background(), model.Principal{UserID: uuid.New(), Role: model.UserRoleAdmin}, run.ID); err != nil {
		t.Errorf("admin err = %v", err)
	}
	if _, err := svc.GetSearch(context.Background(), model.Principal{UserID: owner}, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}

	list, err := svc.ListSearches(context.Background(), model.Principal{UserID: owner}, 0, 0)
	if err != nil || len(list) != 1 {
		t.Errorf("ListSearches = %+v, %v", list, err)
	}
}

func TestAddressCandidates(t *testing.T) {
	svc := newTestService(Deps{Enumerator: &fakeEnumerator{}}, time.Second)
	if _, err := svc.AddressCandidates("", locate.Context{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
	got, err := svc.AddressCandidates("15 Rue de la Paix\n75002 Paris", locate.Context{City: "Paris", PostalCode: "75002"})
	if err != nil || len(got) == 0 || got[0].Score < 0.9 {
		t.Errorf("candidates = %+v, %v", got, err)
	}
}
