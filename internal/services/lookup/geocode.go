package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/anything-ai/anything-ai/internal/services/cache"
)

const geocodeNamespace = "geocode"

// Place is a resolved geocoding result
type Place struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// Geocoder resolves place names against the Open-Meteo geocoding API
type Geocoder struct {
	baseURL string
	client  *http.Client
	cache   cache.Service
}

// NewGeocoder creates a geocoder rooted at baseURL
func NewGeocoder(baseURL string, client *http.Client, c cache.Service) *Geocoder {
	return &Geocoder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		cache:   c,
	}
}

// Resolve returns the best match for name
func (g *Geocoder) Resolve(ctx context.Context, name string) (*Place, error) {
	if cached, ok := g.cache.Get(ctx, geocodeNamespace, name); ok {
		if place, ok := cached.(*Place); ok {
			return place, nil
		}
	}

	endpoint := fmt.Sprintf("%s/v1/search?name=%s&count=1&language=en&format=json", g.baseURL, url.QueryEscape(name))

	var result struct {
		Results []Place `json:"results"`
	}
	if err := getJSON(ctx, g.client, endpoint, &result); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", name, err)
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("no geocoding match for %q", name)
	}

	place := &result.Results[0]
	g.cache.Set(ctx, geocodeNamespace, name, place)
	return place, nil
}
