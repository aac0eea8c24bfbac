// Package testhelpers provides fakes shared by package tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// City is a geocoding match served by FakeOpenMeteo.
type City struct {
	Name      string
	Latitude  float64
	Longitude float64
	Country   string
	Timezone  string
}

// London is the default city known to a new FakeOpenMeteo.
var London = City{Name: "London", Latitude: 51.5074, Longitude: -0.1278, Country: "United Kingdom", Timezone: "Europe/London"}

// FakeOpenMeteo serves the geocoding /v1/search and forecast /v1/forecast
// endpoints from one httptest server. Unknown cities return an empty result list.
type FakeOpenMeteo struct {
	Server *httptest.Server

	GeocodeCalls  atomic.Int32
	ForecastCalls atomic.Int32

	mu         sync.Mutex
	cities     map[string]City
	failStatus int
	requestIDs []string
}

// NewFakeOpenMeteo starts a fake that knows London. The server is closed on test cleanup.
func NewFakeOpenMeteo(t *testing.T) *FakeOpenMeteo {
	t.Helper()
	f := &FakeOpenMeteo{cities: map[string]City{"london": London}}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", f.search)
	mux.HandleFunc("/v1/forecast", f.forecast)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the value for both the geocoding and forecast base URLs.
func (f *FakeOpenMeteo) BaseURL() string { return f.Server.URL + "/v1" }

// AddCity makes name resolvable.
func (f *FakeOpenMeteo) AddCity(c City) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cities[strings.ToLower(c.Name)] = c
}

// FailWith makes every endpoint answer status; 0 restores normal responses.
func (f *FakeOpenMeteo) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// RequestIDs returns the X-Request-ID headers seen so far, in order.
func (f *FakeOpenMeteo) RequestIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requestIDs...)
}

func (f *FakeOpenMeteo) begin(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	f.requestIDs = append(f.requestIDs, r.Header.Get("X-Request-ID"))
	status := f.failStatus
	f.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	return true
}

func (f *FakeOpenMeteo) search(w http.ResponseWriter, r *http.Request) {
	f.GeocodeCalls.Add(1)
	if !f.begin(w, r) {
		return
	}
	f.mu.Lock()
	c, ok := f.cities[strings.ToLower(r.URL.Query().Get("name"))]
	f.mu.Unlock()

	resp := map[string]interface{}{"generationtime_ms": 0.4}
	if ok {
		resp["results"] = []map[string]interface{}{{
			"name":      c.Name,
			"latitude":  c.Latitude,
			"longitude": c.Longitude,
			"country":   c.Country,
			"timezone":  c.Timezone,
		}}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *FakeOpenMeteo) forecast(w http.ResponseWriter, r *http.Request) {
	f.ForecastCalls.Add(1)
	if !f.begin(w, r) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"latitude":  r.URL.Query().Get("latitude"),
		"longitude": r.URL.Query().Get("longitude"),
		"timezone":  "Europe/London",
		"current": map[string]interface{}{
			"time":                 "2024-01-15T12:00",
			"temperature_2m":       15.5,
			"relative_humidity_2m": 72,
			"weather_code":         3,
			"wind_speed_10m":       12.4,
		},
	})
}
