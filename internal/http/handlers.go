package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/client"
	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
	"github.com/kjstillabower/weather-proxy/internal/validation"
)

// WeatherService is the lookup pipeline behind GET /weather.
type WeatherService interface {
	GetWeatherForCity(ctx context.Context, city string) (models.WeatherResult, error)
}

// HealthChecker reports cache backend reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather WeatherService
	cache   HealthChecker
	logger  *zap.Logger
}

func NewHandler(weather WeatherService, cache HealthChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{weather: weather, cache: cache, logger: logger}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	RedisConnected bool   `json:"redisConnected"`
}

// GetWeather handles GET /weather?city=.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(r.URL.Query().Get("city"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request", err.Error())
		return
	}

	result, err := h.weather.GetWeatherForCity(r.Context(), city)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeLookupError maps tagged client errors to status codes. Anything that is
// not a not-found is reported as the provider being unavailable.
func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	var cerr *client.Error
	if errors.As(err, &cerr) && cerr.Kind == client.KindNotFound {
		writeError(w, http.StatusNotFound, "City not found", cerr.Error())
		return
	}
	logger.Debug("upstream error", zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "Weather service unavailable", "Unable to fetch weather data from external provider")
}

// GetHealth handles GET /health. It always answers 200; an unreachable cache
// reports degraded because lookups still work without it.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	connected := h.cache != nil && h.cache.HealthCheck(r.Context())
	status := "healthy"
	if !connected {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: status, RedisConnected: connected})
}

// NotFound answers unknown routes in the standard error shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found", "No route for "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Detail: detail})
}
