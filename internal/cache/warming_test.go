package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

type mockWeatherFetcher struct {
	mu    sync.Mutex
	seen  []string
	calls int32
	err   error
}

func (m *mockWeatherFetcher) GetWeatherForCity(ctx context.Context, city string) (models.WeatherResult, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	m.seen = append(m.seen, city)
	m.mu.Unlock()
	if m.err != nil {
		return models.WeatherResult{}, m.err
	}
	return models.WeatherResult{WeatherSnapshot: models.WeatherSnapshot{City: city}}, nil
}

func TestCacheWarmer_Warm_Success(t *testing.T) {
	fetcher := &mockWeatherFetcher{}
	warmer := NewCacheWarmer(fetcher, nil)

	if err := warmer.Warm(context.Background(), []string{"London", "Paris"}); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("calls = %d, want 2", fetcher.calls)
	}
}

func TestCacheWarmer_Warm_EmptyLocations(t *testing.T) {
	fetcher := &mockWeatherFetcher{}
	warmer := NewCacheWarmer(fetcher, nil)

	if err := warmer.Warm(context.Background(), nil); err != nil {
		t.Fatalf("Warm(nil) error = %v", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("calls = %d, want 0", fetcher.calls)
	}
}

func TestCacheWarmer_Warm_FetcherError(t *testing.T) {
	fetcher := &mockWeatherFetcher{err: errors.New("api down")}
	warmer := NewCacheWarmer(fetcher, nil)

	err := warmer.Warm(context.Background(), []string{"London"})
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !strings.Contains(err.Error(), "warm London: api down") {
		t.Errorf("Warm() error = %q", err)
	}
}

// TestCacheWarmer_Schedule_Periodic verifies the initial warm runs immediately and
// the schedule refreshes until stopped.
func TestCacheWarmer_Schedule_Periodic(t *testing.T) {
	fetcher := &mockWeatherFetcher{}
	warmer := NewCacheWarmer(fetcher, nil)

	stop, err := warmer.Schedule(context.Background(), []string{"London"}, time.Second)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if atomic.LoadInt32(&fetcher.calls) != 1 {
		t.Fatalf("calls after Schedule = %d, want 1 (initial warm)", fetcher.calls)
	}

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&fetcher.calls) < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	stop()
	if atomic.LoadInt32(&fetcher.calls) < 2 {
		t.Errorf("calls = %d, want periodic refresh", fetcher.calls)
	}
	stop()
}

func TestCacheWarmer_Schedule_NoInterval(t *testing.T) {
	fetcher := &mockWeatherFetcher{}
	stop, err := NewCacheWarmer(fetcher, nil).Schedule(context.Background(), []string{"London"}, 0)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	stop()
	if fetcher.calls != 1 {
		t.Errorf("calls = %d, want 1", fetcher.calls)
	}
}
