package testhelpers

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestFakeOpenMeteo_Search(t *testing.T) {
	f := NewFakeOpenMeteo(t)

	resp, err := http.Get(f.BaseURL() + "/search?name=LONDON")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Results []struct{ Name string } `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].Name != "London" {
		t.Errorf("results = %+v", body.Results)
	}
	if f.GeocodeCalls.Load() != 1 {
		t.Errorf("GeocodeCalls = %d, want 1", f.GeocodeCalls.Load())
	}
}

func TestFakeOpenMeteo_FailWith(t *testing.T) {
	f := NewFakeOpenMeteo(t)
	f.FailWith(http.StatusBadGateway)

	resp, err := http.Get(f.BaseURL() + "/forecast?latitude=1&longitude=2")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}
