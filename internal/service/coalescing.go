package service

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

// coalescer lets concurrent misses for the same key share one upstream fetch.
type coalescer struct {
	group singleflight.Group
}

func newCoalescer() *coalescer {
	return &coalescer{}
}

// do runs fn once per key among concurrent callers. The shared fetch is detached
// from any single caller's cancellation; each caller still stops waiting when its
// own ctx is done. shared reports whether the result was delivered to more than one caller.
func (c *coalescer) do(ctx context.Context, key string, fn func(ctx context.Context) (models.WeatherSnapshot, error)) (snap models.WeatherSnapshot, shared bool, err error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return models.WeatherSnapshot{}, res.Shared, res.Err
		}
		return res.Val.(models.WeatherSnapshot), res.Shared, nil
	case <-ctx.Done():
		return models.WeatherSnapshot{}, false, ctx.Err()
	}
}
