// Package app builds the long-lived objects of the proxy from a Config and hands
// them to the commands that need them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-proxy/internal/cache"
	"github.com/kjstillabower/weather-proxy/internal/circuitbreaker"
	"github.com/kjstillabower/weather-proxy/internal/client"
	"github.com/kjstillabower/weather-proxy/internal/config"
	httphandler "github.com/kjstillabower/weather-proxy/internal/http"
	"github.com/kjstillabower/weather-proxy/internal/observability"
	"github.com/kjstillabower/weather-proxy/internal/service"
)

// breakerComponent labels the single upstream breaker in metrics.
const breakerComponent = "open_meteo"

// App owns the proxy's singletons. Build with New; release with Close.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Breaker  *circuitbreaker.CircuitBreaker
	Client   *client.OpenMeteoClient
	Cache    *cache.Store
	Service  *service.WeatherService
	InFlight *httphandler.InFlightTracker
	Router   http.Handler
}

// New wires the cache backend, breaker, upstream client, service and router.
// Nothing is dialed: Redis and memcached connect on first use.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	store := cache.NewStore(backend, cfg.CacheTTL, cfg.CacheTimeout, logger)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailMax,
		Timeout:          cfg.CircuitBreakerResetTimeout,
		Component:        breakerComponent,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(breakerComponent, from.String(), to.String(), int(to))
			logger.Warn("circuit breaker state change",
				zap.String("component", breakerComponent),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(0)

	upstream, err := client.NewOpenMeteoClient(client.Options{
		GeocodingBaseURL: cfg.GeocodingBaseURL,
		ForecastBaseURL:  cfg.ForecastBaseURL,
		Timeout:          cfg.HTTPTimeout,
		MaxRetries:       cfg.MaxRetries,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		RetryMaxDelay:    cfg.RetryMaxDelay,
		Breaker:          breaker,
		Logger:           logger,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	svc := service.NewWeatherService(upstream, store, logger, cfg.CoalesceEnabled)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitRPS) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	inFlight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(httphandler.NewHandler(svc, store, logger), httphandler.RouterOptions{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		RateLimiter:    limiter,
		InFlight:       inFlight,
	})

	logger.Info("application configured",
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("breaker_fail_max", cfg.CircuitBreakerFailMax),
		zap.Duration("breaker_reset_timeout", cfg.CircuitBreakerResetTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("coalesce", cfg.CoalesceEnabled))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Breaker:  breaker,
		Client:   upstream,
		Cache:    store,
		Service:  svc,
		InFlight: inFlight,
		Router:   router,
	}, nil
}

func newBackend(cfg *config.Config) (cache.Backend, error) {
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		return cache.NewMemcachedBackend(cfg.MemcachedAddrs, cfg.CacheTimeout, cfg.MemcachedMaxIdleConns), nil
	case config.BackendInMemory:
		return cache.NewMemoryBackend(), nil
	default:
		b, err := cache.NewRedisBackend(cfg.RedisURL, cfg.CacheTimeout)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return b, nil
	}
}

// Server returns an http.Server for the router. WriteTimeout leaves headroom over
// the per-request timeout so timed-out lookups can still write their 503.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:              a.Config.Addr(),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      a.Config.RequestTimeout + 5*time.Second,
	}
}

// WarmCache runs the configured warm-up, scheduling refreshes when an interval is set.
func (a *App) WarmCache(ctx context.Context) (stop func(), err error) {
	if len(a.Config.WarmLocations) == 0 {
		return func() {}, nil
	}
	warmer := cache.NewCacheWarmer(a.Service, a.Logger)
	return warmer.Schedule(ctx, a.Config.WarmLocations, a.Config.WarmInterval)
}

// StartCacheWarming runs WarmCache in the background so a slow or failing
// upstream never delays startup. stop cancels warming and waits for it to exit.
func (a *App) StartCacheWarming(ctx context.Context) (stop func()) {
	if len(a.Config.WarmLocations) == 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		stopSchedule, err := a.WarmCache(ctx)
		if err != nil {
			a.Logger.Warn("cache warming disabled", zap.Error(err))
			return
		}
		<-ctx.Done()
		stopSchedule()
	}()
	return func() {
		cancel()
		<-done
	}
}

// Close releases pooled upstream connections and the cache backend.
func (a *App) Close() error {
	return errors.Join(a.Client.Close(), a.Cache.Close())
}
