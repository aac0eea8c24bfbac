package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
)

// KeyPrefix namespaces every weather entry.
const KeyPrefix = "weather-proxy:weather:"

// errEmptySnapshot marks a stored value (such as JSON null) that decodes without a city.
var errEmptySnapshot = errors.New("snapshot has no city")

// Store caches weather snapshots by city. Backend and decode failures are logged
// and absorbed: Get reports a miss and Set does nothing. Safe for concurrent use
// when the backend is.
type Store struct {
	backend   Backend
	ttl       time.Duration
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewStore wraps backend. opTimeout bounds each backend call; zero leaves the
// caller's deadline in charge.
func NewStore(backend Backend, ttl, opTimeout time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, ttl: ttl, opTimeout: opTimeout, logger: logger}
}

// Key returns the case-insensitive cache key for city.
func Key(city string) string {
	return KeyPrefix + strings.ToLower(city)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get returns the cached snapshot for city. The bool is false on miss and on any failure.
func (s *Store) Get(ctx context.Context, city string) (models.WeatherSnapshot, bool) {
	logger := observability.LoggerFromContext(ctx, s.logger)
	key := Key(city)
	start := time.Now()

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, ok, err := s.backend.Get(opCtx, key)
	if err != nil {
		observe("get", "error", start)
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return models.WeatherSnapshot{}, false
	}
	if !ok {
		observe("get", "miss", start)
		observability.CacheMissesTotal.Inc()
		return models.WeatherSnapshot{}, false
	}

	var snap models.WeatherSnapshot
	err = json.Unmarshal(raw, &snap)
	if err == nil && snap.City == "" {
		err = errEmptySnapshot
	}
	if err != nil {
		observe("get", "error", start)
		observability.CacheErrorsTotal.WithLabelValues("decode").Inc()
		logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return models.WeatherSnapshot{}, false
	}
	observe("get", "hit", start)
	observability.CacheHitsTotal.Inc()
	return snap, true
}

// Set stores snap under city with the configured TTL.
func (s *Store) Set(ctx context.Context, city string, snap models.WeatherSnapshot) {
	logger := observability.LoggerFromContext(ctx, s.logger)
	key := Key(city)
	start := time.Now()

	raw, err := json.Marshal(snap)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("encode").Inc()
		logger.Warn("cache entry unencodable", zap.String("key", key), zap.Error(err))
		return
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.backend.Set(opCtx, key, raw, s.ttl); err != nil {
		observe("set", "error", start)
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	observe("set", "success", start)
}

// HealthCheck pings the backend.
func (s *Store) HealthCheck(ctx context.Context) bool {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.backend.Ping(opCtx); err != nil {
		observability.LoggerFromContext(ctx, s.logger).Warn("cache health check failed", zap.Error(err))
		return false
	}
	return true
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func observe(op, result string, start time.Time) {
	observability.CacheOperationDurationSeconds.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
