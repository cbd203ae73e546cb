package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parcel-locator/internal/config"
	"parcel-locator/internal/domain/locate"
	"parcel-locator/internal/export"
	"parcel-locator/internal/http/middleware"
	"parcel-locator/internal/model"
	"parcel-locator/internal/service"
	"parcel-locator/internal/vision"
	"parcel-locator/internal/visuals"
)

const (
	maxPhotoBytes = 15 << 20
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Locator interface {
	Locate(ctx context.Context, req locate.LocateRequest) (*locate.LocateResult, error)
	AddressCandidates(text string, c locate.Context) ([]locate.AddressCandidate, error)
	GeocodeText(ctx context.Context, text string, c locate.Context) ([]locate.GeocodedCandidate, error)
	GetSearch(ctx context.Context, principal model.Principal, id uuid.UUID) (*locate.LocateResult, error)
	ListSearches(ctx context.Context, principal model.Principal, limit, offset int) ([]service.SearchSummary, error)
}

// ImageSource serves the images around a point that are fetched server side.
type ImageSource interface {
	FetchOverlay(ctx context.Context, p locate.LatLng) ([]byte, string, error)
	FetchSatellite(ctx context.Context, p locate.LatLng) ([]byte, string, error)
	FetchStreetView(ctx context.Context, p locate.LatLng) ([]byte, string, error)
}

type imageFetch func(ctx context.Context, p locate.LatLng) ([]byte, string, error)

type Handler struct {
	locator Locator
	images  ImageSource
	config  *config.Config
	log     zerolog.Logger
}

func NewHandler(
	locator Locator,
	images ImageSource,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		locator: locator,
		images:  images,
		config:  cfg,
		log:     log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.POST("/address/candidates", h.addressCandidates)
		public.POST("/address/geocode", h.geocodeAddress)
		public.GET("/cadastre/overlay", h.proxyImage("cadastre overlay", h.images.FetchOverlay))
		public.GET("/imagery/satellite", h.proxyImage("satellite image", h.images.FetchSatellite))
		public.GET("/imagery/streetview", h.proxyImage("street view image", h.images.FetchStreetView))
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/locate", h.locate)
		protected.GET("/searches", h.listSearches)
		protected.GET("/searches/:id", h.getSearch)
		protected.GET("/searches/:id/export", h.exportSearch)
	}
}

// locateParams is the JSON carried in the "params" form field next to the
// photo.
type locateParams struct {
	Zone         locate.SearchZone            `json:"zone"`
	Context      locate.Context               `json:"context"`
	PropertyType locate.PropertyType          `json:"property_type"`
	Listing      *locate.ListingMetadata      `json:"listing"`
	Reference    *locate.ReferenceTransaction `json:"reference"`
	Hints        *locate.ImageFeatures        `json:"hints"`
}

func (h *Handler) locate(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	if !principal.CanLocate() {
		c.JSON(http.StatusForbidden, errorResponse("role cannot submit photos"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes+(1<<20))
	if err := c.Request.ParseMultipartForm(maxPhotoBytes); err != nil {
		h.log.Warn().Err(err).Msg("failed to parse multipart request")
		c.JSON(http.StatusBadRequest, errorResponse("invalid multipart payload"))
		return
	}

	var params locateParams
	if raw := c.Request.FormValue("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid params: "+err.Error()))
			return
		}
	}

	photo, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("photo is required"))
		return
	}
	defer photo.Close()

	image, err := io.ReadAll(io.LimitReader(photo, maxPhotoBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("failed to read photo"))
		return
	}
	if len(image) > maxPhotoBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("photo is too large"))
		return
	}

	req := locate.LocateRequest{
		Image:        image,
		Filename:     header.Filename,
		Zone:         params.Zone,
		Context:      params.Context,
		PropertyType: params.PropertyType,
		Listing:      params.Listing,
		Reference:    params.Reference,
		Hints:        params.Hints,
		UserID:       principal.UserID,
	}

	h.log.Info().
		Str("user_id", principal.UserID.String()).
		Int("photo_bytes", len(image)).
		Float64("lat", params.Zone.Center.Lat).
		Float64("lng", params.Zone.Center.Lng).
		Float64("radius_m", params.Zone.RadiusMeters).
		Msg("processing locate request")

	result, err := h.locator.Locate(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

type addressRequest struct {
	Text    string         `json:"text"`
	Context locate.Context `json:"context"`
}

func (h *Handler) addressCandidates(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	candidates, err := h.locator.AddressCandidates(req.Text, req.Context)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(candidates))
}

func (h *Handler) geocodeAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	geocoded, err := h.locator.GeocodeText(c.Request.Context(), req.Text, req.Context)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(geocoded))
}

// proxyImage serves the image fetch returns around the lat/lng query.
func (h *Handler) proxyImage(asset string, fetch imageFetch) gin.HandlerFunc {
	return func(c *gin.Context) {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			c.JSON(http.StatusBadRequest, errorResponse("lat and lng are required"))
			return
		}

		body, contentType, err := fetch(c.Request.Context(), locate.LatLng{Lat: lat, Lng: lng})
		if errors.Is(err, visuals.ErrNotConfigured) {
			c.JSON(http.StatusNotFound, errorResponse(asset+" not configured"))
			return
		}
		if err != nil {
			h.log.Warn().Err(err).Float64("lat", lat).Float64("lng", lng).Msg(asset + " unavailable")
			c.JSON(http.StatusBadGateway, errorResponse(asset+" unavailable"))
			return
		}

		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, contentType, body)
	}
}

func (h *Handler) listSearches(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid limit"))
			return
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid offset"))
			return
		}
		offset = n
	}

	searches, err := h.locator.ListSearches(c.Request.Context(), principal, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(searches))
}

func (h *Handler) getSearch(c *gin.Context) {
	result, ok := h.loadSearch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) exportSearch(c *gin.Context) {
	result, ok := h.loadSearch(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteSearch(&buf, result); err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="search-%s.xlsx"`, result.SearchID))
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (h *Handler) loadSearch(c *gin.Context) (*locate.LocateResult, bool) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid search id"))
		return nil, false
	}

	result, err := h.locator.GetSearch(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	return result, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, errorResponse("forbidden"))
	case errors.Is(err, vision.ErrAnnotationFailed):
		h.log.Error().Err(err).Msg("annotation service error")
		c.JSON(http.StatusBadGateway, errorResponse("image annotation failed"))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": strings.TrimSpace(message),
	}
}
