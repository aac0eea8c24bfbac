package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kjstillabower/weather-proxy/internal/client"
	"github.com/kjstillabower/weather-proxy/internal/models"
)

type mockWeatherService struct {
	result   models.WeatherResult
	err      error
	lastCity string
	calls    int
}

func (m *mockWeatherService) GetWeatherForCity(ctx context.Context, city string) (models.WeatherResult, error) {
	m.calls++
	m.lastCity = city
	return m.result, m.err
}

type mockHealth bool

func (m mockHealth) HealthCheck(context.Context) bool { return bool(m) }

func strPtr(s string) *string { return &s }

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	NewRouter(h, RouterOptions{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

// TestHandler_GetWeather_Success verifies a successful lookup is returned as JSON
// with every documented field.
func TestHandler_GetWeather_Success(t *testing.T) {
	svc := &mockWeatherService{result: models.WeatherResult{
		WeatherSnapshot: models.WeatherSnapshot{
			City: "London", Country: strPtr("United Kingdom"), Latitude: 51.5074, Longitude: -0.1278,
			Temperature: 15.5, Humidity: 72, WeatherCode: 3, WindSpeed: 12.4,
		},
	}}
	w := serve(NewHandler(svc, mockHealth(true), nil), "/weather?city=London")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"city", "country", "latitude", "longitude", "temperature", "humidity", "weatherCode", "windSpeed", "timezone", "timestamp", "cached"} {
		if _, ok := body[field]; !ok {
			t.Errorf("response missing %q", field)
		}
	}
	if body["timezone"] != nil {
		t.Errorf("timezone = %v, want null", body["timezone"])
	}
	if svc.lastCity != "London" {
		t.Errorf("service city = %q", svc.lastCity)
	}
}

func TestHandler_GetWeather_TrimsCity(t *testing.T) {
	svc := &mockWeatherService{}
	serve(NewHandler(svc, nil, nil), "/weather?city=%20%20Paris%20")
	if svc.lastCity != "Paris" {
		t.Errorf("service city = %q, want Paris", svc.lastCity)
	}
}

func TestHandler_GetWeather_InvalidCity(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing", "/weather"},
		{"empty", "/weather?city="},
		{"whitespace", "/weather?city=%20%20"},
		{"too long", "/weather?city=" + strings.Repeat("a", 101)},
		{"control char", "/weather?city=Lon%00don"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWeatherService{}
			w := serve(NewHandler(svc, nil, nil), tt.target)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", w.Code)
			}
			if body := decodeError(t, w); body.Error == "" || body.Detail == "" {
				t.Errorf("error body = %+v", body)
			}
			if svc.calls != 0 {
				t.Errorf("service called %d times for invalid input", svc.calls)
			}
		})
	}
}

// TestHandler_GetWeather_ErrorMapping verifies each error kind maps to its status
// and that no internal detail leaks.
func TestHandler_GetWeather_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "not found",
			err:        &client.Error{Kind: client.KindNotFound, Op: "geocoding", City: "NoSuchCity"},
			wantStatus: http.StatusNotFound,
			wantDetail: "City not found: NoSuchCity",
		},
		{
			name:       "upstream status",
			err:        &client.Error{Kind: client.KindUpstream, Op: "forecast", StatusCode: 500},
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "Unable to fetch weather data from external provider",
		},
		{
			name:       "circuit open",
			err:        &client.Error{Kind: client.KindCircuitOpen, Op: "geocoding"},
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "Unable to fetch weather data from external provider",
		},
		{
			name:       "untagged error",
			err:        errors.New("secret internal failure"),
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "Unable to fetch weather data from external provider",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(NewHandler(&mockWeatherService{err: tt.err}, nil, nil), "/weather?city=NoSuchCity")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeError(t, w)
			if body.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", body.Detail, tt.wantDetail)
			}
			if strings.Contains(body.Detail, "secret") {
				t.Error("internal error text leaked to client")
			}
		})
	}
}

func TestHandler_GetWeather_NotFoundMentionsNotFound(t *testing.T) {
	err := &client.Error{Kind: client.KindNotFound, City: "NoSuchCity"}
	w := serve(NewHandler(&mockWeatherService{err: err}, nil, nil), "/weather?city=NoSuchCity")
	if !strings.Contains(strings.ToLower(w.Body.String()), "not found") {
		t.Errorf("body %s does not mention not found", w.Body.String())
	}
}

func TestHandler_GetHealth(t *testing.T) {
	tests := []struct {
		name          string
		cache         HealthChecker
		wantStatus    string
		wantConnected bool
	}{
		{"cache up", mockHealth(true), "healthy", true},
		{"cache down", mockHealth(false), "degraded", false},
		{"no cache", nil, "degraded", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(NewHandler(&mockWeatherService{}, tt.cache, nil), "/health")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var body HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus || body.RedisConnected != tt.wantConnected {
				t.Errorf("health = %+v, want %s/%v", body, tt.wantStatus, tt.wantConnected)
			}
		})
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	w := serve(NewHandler(&mockWeatherService{}, nil, nil), "/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body := decodeError(t, w); body.Error != "Not found" {
		t.Errorf("error = %q", body.Error)
	}
}
