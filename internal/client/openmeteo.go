package client

import (
	"context"
	"errors"
	"strconv"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
)

const currentFields = "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m"

// GeocodeCity resolves name to its best geocoding match. A response without
// results yields a KindNotFound error carrying name.
func (c *OpenMeteoClient) GeocodeCity(ctx context.Context, name string) (models.GeocodeResult, error) {
	params := map[string]string{
		"name":     name,
		"count":    "1",
		"language": c.language,
		"format":   "json",
	}
	body, err := c.callUpstream(ctx, endpointGeocoding, c.geocodingURL+"/search", params)
	if err != nil {
		logUpstreamError(ctx, c.logger, endpointGeocoding, err)
		return models.GeocodeResult{}, err
	}

	first := gjson.GetBytes(body, "results.0")
	if !first.IsObject() {
		return models.GeocodeResult{}, &Error{Kind: KindNotFound, Op: endpointGeocoding, City: name}
	}
	lat, lon, resolved := first.Get("latitude"), first.Get("longitude"), first.Get("name")
	if lat.Type != gjson.Number || lon.Type != gjson.Number || resolved.Type != gjson.String {
		return models.GeocodeResult{}, &Error{Kind: KindUpstream, Op: endpointGeocoding, Err: errMalformedResponse}
	}

	return models.GeocodeResult{
		Name:      resolved.String(),
		Latitude:  lat.Float(),
		Longitude: lon.Float(),
		Country:   optionalString(first.Get("country")),
		Timezone:  optionalString(first.Get("timezone")),
	}, nil
}

// FetchWeather returns current conditions at the given coordinates.
func (c *OpenMeteoClient) FetchWeather(ctx context.Context, latitude, longitude float64) (models.WeatherRecord, error) {
	params := map[string]string{
		"latitude":  strconv.FormatFloat(latitude, 'f', -1, 64),
		"longitude": strconv.FormatFloat(longitude, 'f', -1, 64),
		"current":   currentFields,
		"timezone":  "auto",
	}
	body, err := c.callUpstream(ctx, endpointForecast, c.forecastURL+"/forecast", params)
	if err != nil {
		logUpstreamError(ctx, c.logger, endpointForecast, err)
		return models.WeatherRecord{}, err
	}

	values := gjson.GetManyBytes(body,
		"current.temperature_2m",
		"current.relative_humidity_2m",
		"current.weather_code",
		"current.wind_speed_10m",
	)
	for _, v := range values {
		if v.Type != gjson.Number {
			return models.WeatherRecord{}, &Error{Kind: KindUpstream, Op: endpointForecast, Err: errMalformedResponse}
		}
	}

	return models.WeatherRecord{
		Temperature: values[0].Float(),
		Humidity:    values[1].Float(),
		WeatherCode: int(values[2].Int()),
		WindSpeed:   values[3].Float(),
		Timezone:    optionalString(gjson.GetBytes(body, "timezone")),
		Timestamp:   optionalString(gjson.GetBytes(body, "current.time")),
	}, nil
}

func optionalString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	s := r.String()
	return &s
}

func logUpstreamError(ctx context.Context, fallback *zap.Logger, endpoint string, err error) {
	logger := observability.LoggerFromContext(ctx, fallback)
	var e *Error
	if errors.As(err, &e) && e.StatusCode != 0 {
		logger.Error("upstream api error", zap.String("endpoint", endpoint), zap.Int("status_code", e.StatusCode))
		return
	}
	logger.Error("upstream call failed", zap.String("endpoint", endpoint), zap.Error(err))
}
