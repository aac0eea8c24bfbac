package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
	BackendInMemory  = "in_memory"
)

// Config holds service configuration. It is not modified after Load returns.
type Config struct {
	ServerPort string

	LogLevel  string
	LogFormat string

	CacheBackend          string
	RedisURL              string
	CacheTTL              time.Duration
	CacheTimeout          time.Duration
	MemcachedAddrs        string
	MemcachedMaxIdleConns int
	WarmLocations         []string
	WarmInterval          time.Duration

	ForecastBaseURL  string
	GeocodingBaseURL string
	HTTPTimeout      time.Duration

	CircuitBreakerFailMax      int
	CircuitBreakerResetTimeout time.Duration
	MaxRetries                 int
	RetryBaseDelay             time.Duration
	RetryMaxDelay              time.Duration
	RateLimitRPS               float64
	RateLimitBurst             int
	CoalesceEnabled            bool

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Cache struct {
		Backend    string `yaml:"backend"`
		RedisURL   string `yaml:"redis_url"`
		TTLSeconds int    `yaml:"ttl_seconds"`
		Timeout    string `yaml:"timeout"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Warm struct {
			Locations []string `yaml:"locations"`
			Interval  string   `yaml:"interval"`
		} `yaml:"warm"`
	} `yaml:"cache"`

	Upstream struct {
		ForecastBaseURL  string `yaml:"forecast_base_url"`
		GeocodingBaseURL string `yaml:"geocoding_base_url"`
		TimeoutSeconds   int    `yaml:"timeout_seconds"`
	} `yaml:"upstream"`

	Reliability struct {
		CircuitBreakerFailMax      int     `yaml:"circuit_breaker_fail_max"`
		CircuitBreakerResetTimeout int     `yaml:"circuit_breaker_reset_timeout"`
		MaxRetries                 int     `yaml:"max_retries"`
		RetryBaseDelay             string  `yaml:"retry_base_delay"`
		RetryMaxDelay              string  `yaml:"retry_max_delay"`
		RateLimitRPS               float64 `yaml:"rate_limit_rps"`
		RateLimitBurst             int     `yaml:"rate_limit_burst"`
		Coalesce                   bool    `yaml:"coalesce"`
	} `yaml:"reliability"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load builds the configuration from, in increasing precedence: defaults, the
// optional {CONFIG_DIR}/{ENV_NAME}.yaml file, and environment variables. A .env
// file in the working directory is loaded first but never overrides variables
// that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	fc, err := readFile()
	if err != nil {
		return nil, err
	}

	cfg := fromFile(fc)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile() (*fileConfig, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	path := filepath.Join(dir, env+".yaml")

	var fc fileConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &fc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

func fromFile(fc *fileConfig) *Config {
	cfg := &Config{
		ServerPort:            orDefault(fc.Server.Port, "8080"),
		LogLevel:              orDefault(fc.Log.Level, "INFO"),
		LogFormat:             orDefault(fc.Log.Format, "json"),
		CacheBackend:          orDefault(strings.ToLower(fc.Cache.Backend), BackendRedis),
		RedisURL:              orDefault(fc.Cache.RedisURL, "redis://localhost:6379/0"),
		CacheTTL:              seconds(fc.Cache.TTLSeconds, 300),
		CacheTimeout:          parseDuration(fc.Cache.Timeout, time.Second),
		MemcachedAddrs:        orDefault(fc.Cache.Memcached.Addrs, "localhost:11211"),
		MemcachedMaxIdleConns: fc.Cache.Memcached.MaxIdleConns,
		WarmLocations:         fc.Cache.Warm.Locations,
		WarmInterval:          parseDurationOrZero(fc.Cache.Warm.Interval, 0),

		ForecastBaseURL:  orDefault(fc.Upstream.ForecastBaseURL, "https://api.open-meteo.com/v1"),
		GeocodingBaseURL: orDefault(fc.Upstream.GeocodingBaseURL, "https://geocoding-api.open-meteo.com/v1"),
		HTTPTimeout:      seconds(fc.Upstream.TimeoutSeconds, 10),

		CircuitBreakerFailMax:      fc.Reliability.CircuitBreakerFailMax,
		CircuitBreakerResetTimeout: seconds(fc.Reliability.CircuitBreakerResetTimeout, 60),
		MaxRetries:                 fc.Reliability.MaxRetries,
		RetryBaseDelay:             parseDuration(fc.Reliability.RetryBaseDelay, time.Second),
		RetryMaxDelay:              parseDuration(fc.Reliability.RetryMaxDelay, 10*time.Second),
		RateLimitRPS:               fc.Reliability.RateLimitRPS,
		RateLimitBurst:             fc.Reliability.RateLimitBurst,
		CoalesceEnabled:            fc.Reliability.Coalesce,

		RequestTimeout:  parseDuration(fc.Request.Timeout, 60*time.Second),
		ShutdownTimeout: parseDuration(fc.Shutdown.Timeout, 30*time.Second),
	}
	if cfg.CircuitBreakerFailMax == 0 {
		cfg.CircuitBreakerFailMax = 5
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	return cfg
}

// applyEnv overrides file values with any set environment variables.
func applyEnv(cfg *Config) error {
	setString(&cfg.ServerPort, "SERVER_PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.CacheBackend, "CACHE_BACKEND")
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.MemcachedAddrs, "MEMCACHED_ADDRS")
	setString(&cfg.ForecastBaseURL, "OPEN_METEO_BASE_URL")
	setString(&cfg.GeocodingBaseURL, "GEOCODING_BASE_URL")
	if v, ok := lookup("WARM_LOCATIONS"); ok {
		cfg.WarmLocations = splitList(v)
	}

	if err := setSeconds(&cfg.CacheTTL, "CACHE_TTL_SECONDS"); err != nil {
		return err
	}
	if err := setSeconds(&cfg.HTTPTimeout, "HTTP_TIMEOUT_SECONDS"); err != nil {
		return err
	}
	if err := setSeconds(&cfg.CircuitBreakerResetTimeout, "CIRCUIT_BREAKER_RESET_TIMEOUT"); err != nil {
		return err
	}
	if err := setSeconds(&cfg.RequestTimeout, "REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&cfg.CircuitBreakerFailMax, "CIRCUIT_BREAKER_FAIL_MAX"); err != nil {
		return err
	}
	if err := setInt(&cfg.MaxRetries, "HTTP_MAX_RETRIES"); err != nil {
		return err
	}
	if err := setInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST"); err != nil {
		return err
	}
	if v, ok := lookup("RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = f
	}
	if v, ok := lookup("COALESCE_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COALESCE_ENABLED: %w", err)
		}
		cfg.CoalesceEnabled = b
	}
	return nil
}

// lookup returns a trimmed, non-empty environment value.
func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// setSeconds accepts a plain number of seconds or a Go duration ("90s", "1m").
func setSeconds(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(f * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %q is neither seconds nor a duration", key, v)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func seconds(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects unusable values and raises RequestTimeout above HTTPTimeout
// so a request can outlive at least one upstream attempt.
func validate(cfg *Config) error {
	if cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}
	if cfg.CircuitBreakerResetTimeout <= 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_RESET_TIMEOUT must be positive")
	}
	if cfg.CircuitBreakerFailMax < 1 {
		return fmt.Errorf("CIRCUIT_BREAKER_FAIL_MAX must be at least 1, got %d", cfg.CircuitBreakerFailMax)
	}
	if cfg.MaxRetries < 1 {
		return fmt.Errorf("HTTP_MAX_RETRIES must be at least 1, got %d", cfg.MaxRetries)
	}
	if cfg.RateLimitRPS < 0 || cfg.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	if cfg.RequestTimeout <= cfg.HTTPTimeout {
		cfg.RequestTimeout = cfg.HTTPTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case BackendRedis, BackendMemcached, BackendInMemory:
	default:
		return fmt.Errorf("cache backend must be redis, memcached or in_memory, got %q", cfg.CacheBackend)
	}
	for name, raw := range map[string]string{
		"OPEN_METEO_BASE_URL": cfg.ForecastBaseURL,
		"GEOCODING_BASE_URL":  cfg.GeocodingBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%s: invalid URL %q", name, raw)
		}
	}
	if cfg.CacheBackend == BackendRedis {
		if u, err := url.Parse(cfg.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss" && u.Scheme != "unix") {
			return fmt.Errorf("REDIS_URL: invalid URL %q", cfg.RedisURL)
		}
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}
