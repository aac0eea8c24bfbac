package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-proxy/internal/observability"
)

// RouterOptions configures NewRouter. Zero values disable the optional pieces.
type RouterOptions struct {
	Logger         *zap.Logger
	RequestTimeout time.Duration
	RateLimiter    *rate.Limiter
	InFlight       *InFlightTracker
}

// NewRouter wires the public routes. Rate limiting and the request timeout apply
// to /weather only; /health and /metrics stay reachable under load.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(NotFound)
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(AccessLogMiddleware(logger))
	router.Use(MetricsMiddleware(opts.InFlight))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	var weather http.Handler = http.HandlerFunc(h.GetWeather)
	if opts.RequestTimeout > 0 {
		weather = TimeoutMiddleware(opts.RequestTimeout)(weather)
	}
	weather = RateLimitMiddleware(opts.RateLimiter)(weather)
	router.Handle("/weather", weather).Methods(http.MethodGet)

	return router
}
