package lookup

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/internal/services/cache"
	"github.com/sirupsen/logrus"
)

const weatherNamespace = "weather"

var weatherPattern = regexp.MustCompile(`(?i)\b(weather|temperature|forecast|rain(?:ing|y)?|snow(?:ing|y)?|sunny|cloudy|humid(?:ity)?|windy?|degrees|umbrella)\b`)

// WMO weather interpretation codes
var weatherConditions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func describeWeather(code int) string {
	if condition, ok := weatherConditions[code]; ok {
		return condition
	}
	return "Unknown"
}

// WeatherProvider looks up current conditions via Open-Meteo
type WeatherProvider struct {
	geocoder        *Geocoder
	forecastURL     string
	defaultLocation string
	client          *http.Client
	cache           cache.Service
	logger          *logrus.Logger
}

// NewWeatherProvider creates a weather provider
func NewWeatherProvider(geocoder *Geocoder, forecastURL, defaultLocation string, client *http.Client, c cache.Service, logger *logrus.Logger) *WeatherProvider {
	return &WeatherProvider{
		geocoder:        geocoder,
		forecastURL:     strings.TrimSuffix(forecastURL, "/"),
		defaultLocation: defaultLocation,
		client:          client,
		cache:           c,
		logger:          logger,
	}
}

// Triggered reports whether the message asks about the weather
func (p *WeatherProvider) Triggered(message string) bool {
	return weatherPattern.MatchString(message)
}

// Fetch returns weather context for a chat message, or nil when the message
// does not ask for it or the lookup fails.
func (p *WeatherProvider) Fetch(ctx context.Context, message string) *models.WeatherData {
	if !p.Triggered(message) {
		return nil
	}

	location := extractLocation(message)
	if location == "" {
		location = p.defaultLocation
	}
	if location == "" {
		p.logger.Debug("Weather requested without a location")
		return nil
	}

	data, err := p.forLocation(ctx, location)
	if err != nil {
		p.logger.WithError(err).WithField("location", location).Warn("Weather lookup failed")
		return nil
	}
	return data
}

// Lookup resolves weather for a free-form query without keyword gating
func (p *WeatherProvider) Lookup(ctx context.Context, query string) (*models.WeatherData, error) {
	location := extractLocation(query)
	if location == "" {
		location = strings.TrimSpace(query)
	}
	if location == "" {
		location = p.defaultLocation
	}
	if location == "" {
		return nil, fmt.Errorf("no location in query")
	}
	return p.forLocation(ctx, location)
}

func (p *WeatherProvider) forLocation(ctx context.Context, location string) (*models.WeatherData, error) {
	if cached, ok := p.cache.Get(ctx, weatherNamespace, location); ok {
		if data, ok := cached.(*models.WeatherData); ok {
			return data, nil
		}
	}

	place, err := p.geocoder.Resolve(ctx, location)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"%s/v1/forecast?latitude=%.4f&longitude=%.4f&current=temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m&timezone=auto",
		p.forecastURL, place.Latitude, place.Longitude,
	)

	var forecast struct {
		Current struct {
			Time                string  `json:"time"`
			Temperature         float64 `json:"temperature_2m"`
			RelativeHumidity    float64 `json:"relative_humidity_2m"`
			ApparentTemperature float64 `json:"apparent_temperature"`
			WeatherCode         int     `json:"weather_code"`
			WindSpeed           float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := getJSON(ctx, p.client, endpoint, &forecast); err != nil {
		return nil, fmt.Errorf("forecast for %s: %w", place.Name, err)
	}

	data := &models.WeatherData{
		Location:    place.Name,
		Country:     place.Country,
		Latitude:    place.Latitude,
		Longitude:   place.Longitude,
		Temperature: forecast.Current.Temperature,
		FeelsLike:   forecast.Current.ApparentTemperature,
		Humidity:    forecast.Current.RelativeHumidity,
		WindSpeed:   forecast.Current.WindSpeed,
		Condition:   describeWeather(forecast.Current.WeatherCode),
		ObservedAt:  forecast.Current.Time,
	}

	p.cache.Set(ctx, weatherNamespace, location, data)
	return data, nil
}

// FormatWeather renders weather data as prompt context
func FormatWeather(w *models.WeatherData) string {
	place := w.Location
	if w.Country != "" {
		place += ", " + w.Country
	}
	return fmt.Sprintf(
		"Current weather in %s (observed %s): %s, %.1f°C (feels like %.1f°C), humidity %.0f%%, wind %.1f km/h.",
		place, w.ObservedAt, w.Condition, w.Temperature, w.FeelsLike, w.Humidity, w.WindSpeed,
	)
}
