package lookup

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/internal/services/cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context is the optional enrichment gathered for one chat message
type Context struct {
	Weather *models.WeatherData
	Time    *models.TimeData
	Web     *models.WebContext
}

// Empty reports whether no provider contributed anything
func (c *Context) Empty() bool {
	return c == nil || (c.Weather == nil && c.Time == nil && c.Web == nil)
}

// Meta builds the meta stream event for the gathered context
func (c *Context) Meta() models.MetaEvent {
	meta := models.MetaEvent{Weather: c.Weather, Time: c.Time}
	if c.Web != nil {
		meta.WebResults = c.Web.Results
		lastUpdated := c.Web.LastUpdated
		meta.LastUpdated = &lastUpdated
	}
	return meta
}

// PromptText renders the context as a single block for the prompt
func (c *Context) PromptText() string {
	if c.Empty() {
		return ""
	}
	var parts []string
	if c.Weather != nil {
		parts = append(parts, FormatWeather(c.Weather))
	}
	if c.Time != nil {
		parts = append(parts, FormatTime(c.Time))
	}
	if c.Web != nil {
		parts = append(parts, FormatWebContext(c.Web))
	}
	return strings.Join(parts, "\n\n")
}

// Providers runs the weather, time and search lookups for a message
type Providers struct {
	Weather *WeatherProvider
	Time    *TimeProvider
	Search  *SearchProvider
	timeout time.Duration
	logger  *logrus.Logger
}

// NewProviders wires the providers against one HTTP client and cache
func NewProviders(cfg *config.LookupConfig, c cache.Service, logger *logrus.Logger) *Providers {
	client := &http.Client{Timeout: cfg.Timeout}
	geocoder := NewGeocoder(cfg.GeocodingURL, client, c)

	return &Providers{
		Weather: NewWeatherProvider(geocoder, cfg.ForecastURL, cfg.DefaultLocation, client, c, logger),
		Time:    NewTimeProvider(geocoder, cfg.DefaultLocation, logger),
		Search:  NewSearchProvider(cfg, client, c, logger),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Gather runs every provider concurrently. Providers never fail the
// request: a failed lookup is logged and omitted.
func (p *Providers) Gather(ctx context.Context, message string) *Context {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result := &Context{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Weather = p.Weather.Fetch(gctx, message)
		return nil
	})
	g.Go(func() error {
		result.Time = p.Time.Fetch(gctx, message)
		return nil
	})
	g.Go(func() error {
		result.Web = p.Search.ResolveWebContext(gctx, message)
		return nil
	})
	_ = g.Wait()

	p.logger.WithFields(logrus.Fields{
		"weather": result.Weather != nil,
		"time":    result.Time != nil,
		"web":     result.Web != nil,
	}).Debug("Gathered lookup context")

	return result
}
