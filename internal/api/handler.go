package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"spotwise-backend/internal/capture"
	"spotwise-backend/internal/detect"
	"spotwise-backend/internal/history"
	"spotwise-backend/internal/ingest"
	"spotwise-backend/internal/registry"
	"spotwise-backend/internal/reservation"
	"spotwise-backend/internal/stats"
)

// Ingestor runs a manual upload through the ingestion pipeline.
type Ingestor interface {
	Submit(ctx context.Context, img detect.Image, origin ingest.Origin) (ingest.Report, error)
	LastReport() (ingest.Report, bool)
}

// Visualizer proxies the detect-and-visualize endpoint.
type Visualizer interface {
	Visualize(ctx context.Context, img detect.Image) (*detect.VisualizeResponse, error)
}

// CaptureStatus reports the capture loop state.
type CaptureStatus interface {
	Status() capture.Status
}

// Deps are the services the handlers use. History, DB, Capture and Webpush
// may be nil when the matching feature is disabled.
type Deps struct {
	Store        *registry.Store
	Ingest       Ingestor
	Visualizer   Visualizer
	Reservations *reservation.Manager
	Navigator    *stats.Navigator
	History      history.Store
	DB           *gorm.DB
	Capture      CaptureStatus
	Webpush      *webpush.Options
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store        *registry.Store
	ingest       Ingestor
	visualizer   Visualizer
	reservations *reservation.Manager
	navigator    *stats.Navigator
	history      history.Store
	db           *gorm.DB
	capture      CaptureStatus
	webpush      *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:        d.Store,
		ingest:       d.Ingest,
		visualizer:   d.Visualizer,
		reservations: d.Reservations,
		navigator:    d.Navigator,
		history:      d.History,
		db:           d.DB,
		capture:      d.Capture,
		webpush:      d.Webpush,
	}
}

// errorStatus maps a service error to an HTTP status. Unknown errors get
// fallback.
func errorStatus(err error, fallback int) int {
	var statusErr *detect.StatusError
	switch {
	case errors.Is(err, reservation.ErrSpotNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrSpotOccupied), errors.Is(err, reservation.ErrSpotReserved):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrInvalidDuration), errors.Is(err, reservation.ErrInvalidArrival):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr), errors.Is(err, detect.ErrNoImage):
		return http.StatusBadGateway
	}
	return fallback
}

func abortWithError(c *gin.Context, err error, fallback int) {
	c.AbortWithStatusJSON(errorStatus(err, fallback), gin.H{"error": err.Error()})
}
