package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/client"
	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
)

// WeatherCache is the fail-soft snapshot cache used by WeatherService.
// cache.Store implements it.
type WeatherCache interface {
	Get(ctx context.Context, city string) (models.WeatherSnapshot, bool)
	Set(ctx context.Context, city string, snap models.WeatherSnapshot)
}

// WeatherService resolves a city to current weather using cache-aside over the
// geocoding and forecast calls.
type WeatherService struct {
	client   client.WeatherClient
	cache    WeatherCache
	logger   *zap.Logger
	misses   *stampedeTracker
	coalesce *coalescer // nil unless enabled
}

func NewWeatherService(c client.WeatherClient, cache WeatherCache, logger *zap.Logger, coalesce bool) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WeatherService{
		client: c,
		cache:  cache,
		logger: logger,
		misses: newStampedeTracker(),
	}
	if coalesce {
		s.coalesce = newCoalescer()
	}
	return s
}

// GetWeatherForCity returns current weather for city. A cache hit makes no
// upstream calls and sets Cached. On a miss the fresh snapshot is written under
// city; nothing is written when geocoding or the forecast fails. Errors are the
// client's tagged *client.Error values, unchanged.
func (s *WeatherService) GetWeatherForCity(ctx context.Context, city string) (models.WeatherResult, error) {
	logger := observability.LoggerFromContext(ctx, s.logger)
	start := time.Now()

	if snap, ok := s.cache.Get(ctx, city); ok {
		observability.WeatherQueriesTotal.WithLabelValues("hit").Inc()
		logger.Debug("weather served", zap.String("city", city), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return models.WeatherResult{WeatherSnapshot: snap, Cached: true}, nil
	}

	key := strings.ToLower(city)
	concurrent, done := s.misses.track(key)
	defer done()
	if concurrent > 1 {
		observability.CacheStampedeDetectedTotal.Inc()
	}
	logger.Debug("cache miss, fetching upstream", zap.String("city", city))

	var (
		snap models.WeatherSnapshot
		err  error
	)
	if s.coalesce != nil {
		var shared bool
		snap, shared, err = s.coalesce.do(ctx, key, func(ctx context.Context) (models.WeatherSnapshot, error) {
			return s.fetchAndStore(ctx, city)
		})
		if shared {
			observability.RequestCoalescingHitsTotal.Inc()
		}
	} else {
		snap, err = s.fetchAndStore(ctx, city)
	}
	if err != nil {
		outcome := client.CategorizeError(err)
		observability.WeatherQueriesTotal.WithLabelValues(outcome).Inc()
		if client.KindOf(err) == client.KindNotFound {
			logger.Warn("city not found", zap.String("city", city))
		} else {
			logger.Error("weather lookup failed", zap.String("city", city), zap.String("outcome", outcome), zap.Error(err))
		}
		return models.WeatherResult{}, err
	}

	observability.WeatherQueriesTotal.WithLabelValues("miss").Inc()
	logger.Debug("weather served", zap.String("city", city), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return models.WeatherResult{WeatherSnapshot: snap, Cached: false}, nil
}

func (s *WeatherService) fetchAndStore(ctx context.Context, city string) (models.WeatherSnapshot, error) {
	geo, err := s.client.GeocodeCity(ctx, city)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	rec, err := s.client.FetchWeather(ctx, geo.Latitude, geo.Longitude)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	snap := models.NewWeatherSnapshot(geo, rec)
	s.cache.Set(ctx, city, snap)
	return snap, nil
}
