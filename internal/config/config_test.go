package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"ENV_NAME", "CONFIG_DIR", "SERVER_PORT", "LOG_LEVEL", "LOG_FORMAT", "CACHE_BACKEND",
	"REDIS_URL", "CACHE_TTL_SECONDS", "MEMCACHED_ADDRS", "OPEN_METEO_BASE_URL",
	"GEOCODING_BASE_URL", "CIRCUIT_BREAKER_FAIL_MAX", "CIRCUIT_BREAKER_RESET_TIMEOUT",
	"HTTP_TIMEOUT_SECONDS", "HTTP_MAX_RETRIES", "REQUEST_TIMEOUT", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "COALESCE_ENABLED", "WARM_LOCATIONS",
}

// isolate clears every variable Load reads and runs the test from an empty
// directory so no stray .env or config file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	chdir(t, dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// TestLoad_Defaults verifies Load succeeds with no file and no env.
func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checks := []struct {
		name      string
		got, want interface{}
	}{
		{"ServerPort", cfg.ServerPort, "8080"},
		{"LogLevel", cfg.LogLevel, "INFO"},
		{"CacheBackend", cfg.CacheBackend, BackendRedis},
		{"RedisURL", cfg.RedisURL, "redis://localhost:6379/0"},
		{"CacheTTL", cfg.CacheTTL, 300 * time.Second},
		{"ForecastBaseURL", cfg.ForecastBaseURL, "https://api.open-meteo.com/v1"},
		{"GeocodingBaseURL", cfg.GeocodingBaseURL, "https://geocoding-api.open-meteo.com/v1"},
		{"HTTPTimeout", cfg.HTTPTimeout, 10 * time.Second},
		{"CircuitBreakerFailMax", cfg.CircuitBreakerFailMax, 5},
		{"CircuitBreakerResetTimeout", cfg.CircuitBreakerResetTimeout, 60 * time.Second},
		{"MaxRetries", cfg.MaxRetries, 3},
		{"RetryBaseDelay", cfg.RetryBaseDelay, time.Second},
		{"RetryMaxDelay", cfg.RetryMaxDelay, 10 * time.Second},
		{"RequestTimeout", cfg.RequestTimeout, 60 * time.Second},
		{"RateLimitRPS", cfg.RateLimitRPS, 0.0},
		{"CoalesceEnabled", cfg.CoalesceEnabled, false},
		{"ShutdownTimeout", cfg.ShutdownTimeout, 30 * time.Second},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config", "staging.yaml"), `
server:
  port: "9090"
cache:
  backend: memcached
  ttl_seconds: 120
  memcached:
    addrs: "mc1:11211,mc2:11211"
  warm:
    locations: [London, Paris]
    interval: 10m
upstream:
  timeout_seconds: 5
reliability:
  circuit_breaker_fail_max: 3
  max_retries: 2
  retry_base_delay: 200ms
  rate_limit_rps: 50
  rate_limit_burst: 100
  coalesce: true
`)
	t.Setenv("ENV_NAME", "staging")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" || cfg.CacheBackend != BackendMemcached || cfg.CacheTTL != 120*time.Second {
		t.Errorf("server/cache = %q %q %v", cfg.ServerPort, cfg.CacheBackend, cfg.CacheTTL)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if len(cfg.WarmLocations) != 2 || cfg.WarmInterval != 10*time.Minute {
		t.Errorf("warm = %v every %v", cfg.WarmLocations, cfg.WarmInterval)
	}
	if cfg.HTTPTimeout != 5*time.Second || cfg.CircuitBreakerFailMax != 3 || cfg.MaxRetries != 2 || cfg.RetryBaseDelay != 200*time.Millisecond {
		t.Errorf("reliability = %+v", cfg)
	}
	if cfg.RateLimitRPS != 50 || cfg.RateLimitBurst != 100 || !cfg.CoalesceEnabled {
		t.Errorf("rate limit / coalesce = %v %d %v", cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.CoalesceEnabled)
	}
}

// TestLoad_EnvOverridesFile verifies environment variables win over YAML.
func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "cfg", "dev.yaml"), "cache:\n  ttl_seconds: 120\nserver:\n  port: \"9090\"\n")
	t.Setenv("CONFIG_DIR", filepath.Join(dir, "cfg"))
	t.Setenv("CACHE_TTL_SECONDS", "30")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("CACHE_BACKEND", "IN_MEMORY")
	t.Setenv("HTTP_MAX_RETRIES", "5")
	t.Setenv("CIRCUIT_BREAKER_RESET_TIMEOUT", "90s")
	t.Setenv("WARM_LOCATIONS", " London, ,Tokyo ")
	t.Setenv("COALESCE_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL != 30*time.Second || cfg.ServerPort != "7070" || cfg.CacheBackend != BackendInMemory {
		t.Errorf("overrides not applied: ttl=%v port=%q backend=%q", cfg.CacheTTL, cfg.ServerPort, cfg.CacheBackend)
	}
	if cfg.MaxRetries != 5 || cfg.CircuitBreakerResetTimeout != 90*time.Second {
		t.Errorf("MaxRetries=%d reset=%v", cfg.MaxRetries, cfg.CircuitBreakerResetTimeout)
	}
	if strings.Join(cfg.WarmLocations, "|") != "London|Tokyo" {
		t.Errorf("WarmLocations = %v", cfg.WarmLocations)
	}
	if !cfg.CoalesceEnabled || cfg.RateLimitRPS != 2.5 {
		t.Errorf("coalesce=%v rps=%v", cfg.CoalesceEnabled, cfg.RateLimitRPS)
	}
}

func TestLoad_DotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "SERVER_PORT=6060\nLOG_LEVEL=DEBUG\n")
	t.Setenv("LOG_LEVEL", "ERROR")
	// godotenv only fills unset variables; clear SERVER_PORT entirely.
	os.Unsetenv("SERVER_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "6060" {
		t.Errorf("ServerPort = %q, want value from .env", cfg.ServerPort)
	}
	if cfg.LogLevel != "ERROR" {
		t.Errorf("LogLevel = %q, want process env to win", cfg.LogLevel)
	}
}

func TestLoad_RequestTimeoutRaisedAboveHTTPTimeout(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_TIMEOUT_SECONDS", "10")
	t.Setenv("REQUEST_TIMEOUT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 11*time.Second {
		t.Errorf("RequestTimeout = %v, want 11s", cfg.RequestTimeout)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown backend", map[string]string{"CACHE_BACKEND": "disk"}, "cache backend"},
		{"zero fail max", map[string]string{"CIRCUIT_BREAKER_FAIL_MAX": "0"}, "CIRCUIT_BREAKER_FAIL_MAX"},
		{"zero retries", map[string]string{"HTTP_MAX_RETRIES": "0"}, "HTTP_MAX_RETRIES"},
		{"non-numeric retries", map[string]string{"HTTP_MAX_RETRIES": "three"}, "HTTP_MAX_RETRIES"},
		{"zero http timeout", map[string]string{"HTTP_TIMEOUT_SECONDS": "0"}, "HTTP_TIMEOUT_SECONDS"},
		{"bad ttl", map[string]string{"CACHE_TTL_SECONDS": "soon"}, "CACHE_TTL_SECONDS"},
		{"bad forecast url", map[string]string{"OPEN_METEO_BASE_URL": "api.open-meteo.com"}, "OPEN_METEO_BASE_URL"},
		{"bad redis url", map[string]string{"REDIS_URL": "http://localhost:6379"}, "REDIS_URL"},
		{"bad coalesce flag", map[string]string{"COALESCE_ENABLED": "maybe"}, "COALESCE_ENABLED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load() error = nil, cfg = %+v", cfg)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config", "dev.yaml"), "server: [unclosed\n")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		def  time.Duration
		want time.Duration
	}{
		{"", time.Second, time.Second},
		{"250ms", time.Second, 250 * time.Millisecond},
		{"garbage", time.Second, time.Second},
		{"-5s", time.Second, time.Second},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, tt.def); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
