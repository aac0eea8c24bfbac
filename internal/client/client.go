package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/circuitbreaker"
	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
)

// WeatherClient resolves cities and fetches current conditions from the upstream provider.
type WeatherClient interface {
	GeocodeCity(ctx context.Context, name string) (models.GeocodeResult, error)
	FetchWeather(ctx context.Context, latitude, longitude float64) (models.WeatherRecord, error)
}

const (
	endpointGeocoding = "geocoding"
	endpointForecast  = "forecast"

	userAgent = "weather-proxy/1.0"
)

// Options configures an OpenMeteoClient. Zero retry values fall back to
// 3 attempts with 1s..10s backoff.
type Options struct {
	GeocodingBaseURL string
	ForecastBaseURL  string
	Language         string
	Timeout          time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	// Breaker is optional; nil disables circuit breaking.
	Breaker *circuitbreaker.CircuitBreaker
	Logger  *zap.Logger
}

// OpenMeteoClient calls the Open-Meteo geocoding and forecast APIs. Every call
// goes through the shared breaker and a bounded retry on transport failures.
// Safe for concurrent use.
type OpenMeteoClient struct {
	geocodingURL   string
	forecastURL    string
	language       string
	timeout        time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
	logger         *zap.Logger

	mu   sync.Mutex
	http *resty.Client
}

func NewOpenMeteoClient(opts Options) (*OpenMeteoClient, error) {
	geocodingURL, err := baseURL(opts.GeocodingBaseURL)
	if err != nil {
		return nil, fmt.Errorf("geocoding base URL: %w", err)
	}
	forecastURL, err := baseURL(opts.ForecastBaseURL)
	if err != nil {
		return nil, fmt.Errorf("forecast base URL: %w", err)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 10 * time.Second
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenMeteoClient{
		geocodingURL:   geocodingURL,
		forecastURL:    forecastURL,
		language:       opts.Language,
		timeout:        opts.Timeout,
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		breaker:        opts.Breaker,
		logger:         logger,
	}, nil
}

func baseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// httpClient returns the shared resty client, creating it on first use or after Close.
func (c *OpenMeteoClient) httpClient() *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		c.http = resty.New().
			SetTimeout(c.timeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", userAgent).
			SetLogger(c.logger.Sugar())
	}
	return c.http
}

// Close releases pooled connections. Call during shutdown.
func (c *OpenMeteoClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		c.http.GetClient().CloseIdleConnections()
		c.http = nil
	}
	return nil
}

// callUpstream performs a protected GET and returns the JSON body. Transport
// failures are retried with exponential backoff; everything else returns at once.
func (c *OpenMeteoClient) callUpstream(ctx context.Context, endpoint, rawURL string, params map[string]string) ([]byte, error) {
	logger := observability.LoggerFromContext(ctx, c.logger)
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(endpoint).Inc()
			delay := c.calculateBackoff(attempt)
			logger.Warn("retrying upstream call",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &Error{Kind: KindUpstream, Op: endpoint, Err: ctx.Err()}
			case <-timer.C:
			}
		}

		body, err := c.protectedCall(ctx, endpoint, rawURL, params)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !isRetryable(ctx, err) {
			if KindOf(err) == KindTransport || KindOf(err) == KindUnknown {
				return nil, &Error{Kind: KindUpstream, Op: endpoint, Err: err}
			}
			return nil, err
		}
	}

	return nil, &Error{Kind: KindUpstream, Op: endpoint, Err: fmt.Errorf("exhausted %d attempts: %w", c.maxRetries, lastErr)}
}

func (c *OpenMeteoClient) protectedCall(ctx context.Context, endpoint, rawURL string, params map[string]string) ([]byte, error) {
	if c.breaker == nil {
		return c.doRequest(ctx, endpoint, rawURL, params)
	}
	var body []byte
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		b, err := c.doRequest(ctx, endpoint, rawURL, params)
		body = b
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, &Error{Kind: KindCircuitOpen, Op: endpoint, Err: err}
	}
	return body, err
}

// doRequest issues a single GET attempt.
func (c *OpenMeteoClient) doRequest(ctx context.Context, endpoint, rawURL string, params map[string]string) ([]byte, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, c.logger)

	req := c.httpClient().R().
		SetContext(ctx).
		SetQueryParams(params)
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.SetHeader("X-Request-ID", corrID)
	}

	logger.Debug("making external request", zap.String("endpoint", endpoint), zap.String("url", rawURL))
	resp, err := req.Get(rawURL)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(endpoint, "error").Observe(duration)
		return nil, &Error{Kind: KindTransport, Op: endpoint, Err: err}
	}

	status := statusLabel(resp.StatusCode())
	observability.UpstreamCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.UpstreamDuration.WithLabelValues(endpoint, status).Observe(duration)
	logger.Debug("external api response", zap.String("endpoint", endpoint), zap.Int("status_code", resp.StatusCode()))

	if !resp.IsSuccess() {
		return nil, &Error{Kind: KindUpstream, Op: endpoint, StatusCode: resp.StatusCode()}
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, &Error{Kind: KindUpstream, Op: endpoint, Err: errMalformedResponse}
	}
	return body, nil
}

// isRetryable reports whether err is a transport failure worth another attempt.
// Caller cancellation or deadline ends retrying.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return KindOf(err) == KindTransport
}

// calculateBackoff returns base*2^(attempt-1) plus up to 10% jitter, capped at retryMaxDelay.
func (c *OpenMeteoClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	jitter := delay * 0.1 * rand.Float64()
	delay += jitter
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	return time.Duration(delay)
}
