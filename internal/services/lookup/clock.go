package lookup

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	// zone lookups must work on images without a zoneinfo directory
	_ "time/tzdata"

	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/sirupsen/logrus"
)

var timePattern = regexp.MustCompile(`(?i)\b(what time|time is it|current time|local time|time in|time zone|timezone|what day|what date|today's date|date today)\b`)

// TimeProvider reports the local time at a place
type TimeProvider struct {
	geocoder        *Geocoder
	defaultLocation string
	logger          *logrus.Logger
	now             func() time.Time
}

// NewTimeProvider creates a time provider
func NewTimeProvider(geocoder *Geocoder, defaultLocation string, logger *logrus.Logger) *TimeProvider {
	return &TimeProvider{
		geocoder:        geocoder,
		defaultLocation: defaultLocation,
		logger:          logger,
		now:             time.Now,
	}
}

// Triggered reports whether the message asks for the time or date
func (p *TimeProvider) Triggered(message string) bool {
	return timePattern.MatchString(message)
}

// Fetch returns time context for a chat message, or nil
func (p *TimeProvider) Fetch(ctx context.Context, message string) *models.TimeData {
	if !p.Triggered(message) {
		return nil
	}

	location := extractLocation(message)
	if location == "" {
		location = p.defaultLocation
	}

	data, err := p.forLocation(ctx, location)
	if err != nil {
		p.logger.WithError(err).WithField("location", location).Warn("Time lookup failed")
		return nil
	}
	return data
}

// Lookup resolves the time for a free-form query without keyword gating.
// An empty query reports UTC.
func (p *TimeProvider) Lookup(ctx context.Context, query string) (*models.TimeData, error) {
	location := extractLocation(query)
	if location == "" {
		location = strings.TrimSpace(query)
	}
	if location == "" {
		location = p.defaultLocation
	}
	return p.forLocation(ctx, location)
}

func (p *TimeProvider) forLocation(ctx context.Context, location string) (*models.TimeData, error) {
	name, zone := "UTC", "UTC"
	if location != "" {
		place, err := p.geocoder.Resolve(ctx, location)
		if err != nil {
			return nil, err
		}
		if place.Timezone == "" {
			return nil, fmt.Errorf("no timezone known for %s", place.Name)
		}
		name, zone = place.Name, place.Timezone
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", zone, err)
	}

	now := p.now().In(loc)
	return &models.TimeData{
		Location: name,
		Timezone: zone,
		ISO:      now.Format(time.RFC3339),
		Time:     now.Format("15:04"),
		Date:     now.Format("January 2, 2006"),
		Weekday:  now.Weekday().String(),
	}, nil
}

// FormatTime renders time data as prompt context
func FormatTime(t *models.TimeData) string {
	return fmt.Sprintf("Current local time in %s (%s): %s on %s, %s.", t.Location, t.Timezone, t.Time, t.Weekday, t.Date)
}
