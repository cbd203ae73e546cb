package locate

import (
	"time"

	"github.com/google/uuid"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OCRWord is one word fragment from the text annotation, in reading order.
type OCRWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type Landmark struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Location    *LatLng `json:"location,omitempty"`
}

// VisionSignals is the parsed output of the annotation service for one image.
type VisionSignals struct {
	FullText  string     `json:"full_text"`
	Words     []OCRWord  `json:"words,omitempty"`
	Labels    []Label    `json:"labels,omitempty"`
	Landmarks []Landmark `json:"landmarks,omitempty"`
	Logos     []Label    `json:"logos,omitempty"`
}

// Context is the optional search context supplied with a request.
type Context struct {
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type CandidateSource string

const (
	SourceLandmark      CandidateSource = "landmark"
	SourcePattern       CandidateSource = "pattern"
	SourcePostalLine    CandidateSource = "postal_line"
	SourceVisualContext CandidateSource = "visual_context"
	SourceDetectedCity  CandidateSource = "detected_city"
	SourceContext       CandidateSource = "context"
)

// AddressCandidate is a textual address hypothesis. Score reflects textual
// plausibility only.
type AddressCandidate struct {
	RawText  string          `json:"raw_text"`
	Score    float64         `json:"score"`
	Source   CandidateSource `json:"source"`
	Location *LatLng         `json:"location,omitempty"`
}

type GeocodedCandidate struct {
	Address        string  `json:"address"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	GeocodingScore float64 `json:"geocoding_score"`
	GlobalScore    float64 `json:"global_score"`
	SourceText     string  `json:"source_text"`
	StreetViewURL  string  `json:"street_view_url,omitempty"`
	LocationType   string  `json:"location_type,omitempty"`
}

type ZoneConstraints struct {
	PostalCodes []string `json:"postal_codes,omitempty"`
	Communes    []string `json:"communes,omitempty"`
}

// SearchZone is the hard geographic boundary of a search.
type SearchZone struct {
	Center       LatLng          `json:"center"`
	RadiusMeters float64         `json:"radius_meters"`
	Constraints  ZoneConstraints `json:"constraints"`
}

type CadastreData struct {
	ParcelIDs      []string `json:"parcel_ids"`
	TerrainSurface float64  `json:"terrain_surface"`
}

// PropertyCandidate is one cadastral parcel inside the zone.
type PropertyCandidate struct {
	ID           string       `json:"id"`
	Address      string       `json:"address"`
	PostalCode   string       `json:"postal_code,omitempty"`
	City         string       `json:"city,omitempty"`
	CommuneCode  string       `json:"commune_code,omitempty"`
	Coordinates  LatLng       `json:"coordinates"`
	CadastreData CadastreData `json:"cadastre_data"`
	BuildingType string       `json:"building_type,omitempty"`
	// Outline is the parcel ring as lng/lat pairs; empty when the registry
	// returned no usable geometry.
	Outline [][2]float64 `json:"-"`
}

type Orientation string

const (
	OrientationUnknown Orientation = ""
	OrientationN       Orientation = "N"
	OrientationNE      Orientation = "NE"
	OrientationE       Orientation = "E"
	OrientationSE      Orientation = "SE"
	OrientationS       Orientation = "S"
	OrientationSW      Orientation = "SW"
	OrientationW       Orientation = "W"
	OrientationNW      Orientation = "NW"
)

// ImageFeatures are the exterior features detected in the source photo.
type ImageFeatures struct {
	HasPool            bool        `json:"has_pool"`
	PoolShape          string      `json:"pool_shape,omitempty"`
	VegetationDense    *bool       `json:"vegetation_dense,omitempty"`
	Orientation        Orientation `json:"orientation,omitempty"`
	ArchitectureLabels []string    `json:"architecture_labels,omitempty"`
}

type SatelliteAnalysis struct {
	PoolPresent         bool        `json:"pool_present"`
	PoolShape           string      `json:"pool_shape,omitempty"`
	VegetationDense     *bool       `json:"vegetation_dense,omitempty"`
	BuildingOrientation Orientation `json:"building_orientation,omitempty"`
	EstimatedSurface    float64     `json:"estimated_surface"`
}

type ScoreDetails struct {
	ArchitectureMatch int `json:"architecture_match"`
	PoolSimilarity    int `json:"pool_similarity"`
	VegetationMatch   int `json:"vegetation_match"`
	SurfaceMatch      int `json:"surface_match"`
	OrientationMatch  int `json:"orientation_match"`
	ContextMatch      int `json:"context_match"`
}

type MatchingScore struct {
	Global  int          `json:"global"`
	Details ScoreDetails `json:"details"`
}

// ListingMetadata comes from a listing URL extraction done upstream.
type ListingMetadata struct {
	Price   float64 `json:"price,omitempty"`
	Surface float64 `json:"surface,omitempty"`
}

// ReferenceTransaction is a recorded sale used as price context.
type ReferenceTransaction struct {
	ParcelID string    `json:"parcel_id,omitempty"`
	Price    float64   `json:"price"`
	Surface  float64   `json:"surface"`
	Date     time.Time `json:"date,omitempty"`
}

// CandidateVisuals always carries a cadastre URL; the street view URL is
// omitted when imagery is unavailable.
type CandidateVisuals struct {
	SatelliteURL  string `json:"satellite_url"`
	CadastreURL   string `json:"cadastre_url"`
	StreetViewURL string `json:"street_view_url,omitempty"`
}

type RankedCandidate struct {
	ParcelID      string            `json:"parcel_id"`
	Address       string            `json:"address"`
	Coordinates   LatLng            `json:"coordinates"`
	MatchingScore MatchingScore     `json:"matching_score"`
	Explanation   string            `json:"explanation"`
	Visuals       CandidateVisuals  `json:"visuals"`
	Satellite     SatelliteAnalysis `json:"satellite"`
}

type PropertyType string

const (
	PropertyTypeAny       PropertyType = ""
	PropertyTypeHouse     PropertyType = "house"
	PropertyTypeApartment PropertyType = "apartment"
)

type LocateRequest struct {
	Image        []byte                `json:"-"`
	Filename     string                `json:"filename,omitempty"`
	Zone         SearchZone            `json:"zone"`
	Context      Context               `json:"context"`
	PropertyType PropertyType          `json:"property_type,omitempty"`
	Listing      *ListingMetadata      `json:"listing,omitempty"`
	Reference    *ReferenceTransaction `json:"reference,omitempty"`
	// Hints are caller-supplied exterior features that override detection.
	Hints  *ImageFeatures `json:"hints,omitempty"`
	UserID uuid.UUID      `json:"-"`
}

type Method string

const (
	MethodExif   Method = "exif"
	MethodVisual Method = "visual"
)

type LocateResult struct {
	SearchID          uuid.UUID           `json:"search_id"`
	Method            Method              `json:"method"`
	Candidates        []RankedCandidate   `json:"candidates"`
	AddressHypotheses []GeocodedCandidate `json:"address_hypotheses"`
	Features          ImageFeatures       `json:"features"`
	Evaluated         int                 `json:"evaluated"`
	Partial           bool                `json:"partial"`
	PhotoURL          string              `json:"photo_url,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}
