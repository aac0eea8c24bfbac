package models

// GeocodeResult is the best match returned by the geocoding endpoint.
type GeocodeResult struct {
	Name      string
	Latitude  float64
	Longitude float64
	Country   *string
	Timezone  *string
}

// WeatherRecord is the current-conditions block returned by the forecast endpoint.
type WeatherRecord struct {
	Temperature float64 // °C
	Humidity    float64 // %
	WeatherCode int     // WMO code
	WindSpeed   float64 // km/h
	Timezone    *string
	Timestamp   *string // ISO-8601, as reported upstream
}

// WeatherSnapshot is a WeatherResult without the cached flag. It is the value
// persisted in the cache.
type WeatherSnapshot struct {
	City        string  `json:"city"`
	Country     *string `json:"country"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WeatherCode int     `json:"weatherCode"`
	WindSpeed   float64 `json:"windSpeed"`
	Timezone    *string `json:"timezone"`
	Timestamp   *string `json:"timestamp"`
}

// WeatherResult is the public response for a city lookup.
type WeatherResult struct {
	WeatherSnapshot
	Cached bool `json:"cached"`
}

// NewWeatherSnapshot combines a geocode match and a weather record. The
// forecast timezone wins; the geocode timezone is used when it is absent.
func NewWeatherSnapshot(geo GeocodeResult, rec WeatherRecord) WeatherSnapshot {
	tz := rec.Timezone
	if tz == nil {
		tz = geo.Timezone
	}
	return WeatherSnapshot{
		City:        geo.Name,
		Country:     geo.Country,
		Latitude:    geo.Latitude,
		Longitude:   geo.Longitude,
		Temperature: rec.Temperature,
		Humidity:    rec.Humidity,
		WeatherCode: rec.WeatherCode,
		WindSpeed:   rec.WindSpeed,
		Timezone:    tz,
		Timestamp:   rec.Timestamp,
	}
}
