package thumbapi

import (
	"net/http"
	"time"

	"github.com/DMarby/thumbs/internal/handler"
	"github.com/DMarby/thumbs/internal/health"
	"github.com/DMarby/thumbs/internal/image"
	"github.com/DMarby/thumbs/internal/logger"
	"github.com/DMarby/thumbs/internal/tracing"
	"github.com/gorilla/mux"
)

// API is a http api serving thumbnails
type API struct {
	ImageProcessor image.Processor
	Cache          *image.Cache
	HealthChecker  *health.Checker
	Log            *logger.Logger
	Tracer         *tracing.Tracer
	HandlerTimeout time.Duration
}

// Utility methods for logging
func (a *API) logError(r *http.Request, message string, err error) {
	a.Log.Errorw(message, handler.LogFields(r, "error", err)...)
}

func (a *API) logDebug(r *http.Request, message string, err error) {
	a.Log.Debugw(message, handler.LogFields(r, "error", err)...)
}

// Router returns a http router
func (a *API) Router() http.Handler {
	router := mux.NewRouter()

	router.NotFoundHandler = handler.Handler(a.notFoundHandler)

	// Healthcheck
	if a.HealthChecker != nil {
		router.Handle("/health", handler.Health(a.HealthChecker)).Methods("GET").Name("health")
	}

	// Thumbnail routes, the identifier may contain slashes
	router.Handle("/thumbnail/{identifier:.+}", handler.Handler(a.thumbnailHandler)).Methods("GET").Name("thumbnail")

	// Query parameters:
	// ?width={width}&height={height} - Bounds of the thumbnail, required
	// ?min={0-255}&max={0-255} - Output intensity range
	// ?autocontrast - Stretch the intensity histogram to the output range

	routeMatcher := &handler.MuxRouteMatcher{Router: router}

	// Set up handlers for adding a request id, handling panics, request logging, metrics, tracing, setting CORS headers, and handler execution timeout
	return handler.AddRequestID(
		handler.Recovery(a.Log,
			handler.Logger(a.Log,
				handler.Metrics(
					handler.Tracer(a.Tracer,
						handler.CORS([]string{"ETag", handler.RequestIDHeader},
							http.TimeoutHandler(router, a.HandlerTimeout, "Something went wrong. Timed out.")),
						routeMatcher),
					routeMatcher),
				routeMatcher)))
}

// Handle not found errors
var notFoundError = &handler.Error{
	Message: "page not found",
	Code:    http.StatusNotFound,
}

func (a *API) notFoundHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return notFoundError
}
