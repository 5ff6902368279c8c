package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/anything-ai/anything-ai/internal/respond"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Allow(key string) bool
	Reset(key string)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter implements per-client rate limiting. A client is a user
// when authenticated, otherwise a remote IP.
type ClientRateLimiter struct {
	enabled         bool
	limiters        map[string]*limiterEntry
	mu              sync.Mutex
	limit           rate.Limit
	burst           int
	logger          *logrus.Logger
	cleanupInterval time.Duration
	idleTimeout     time.Duration
	done            chan struct{}
}

// NewRateLimiter creates a new rate limiter allowing MaxRequests per Window
func NewRateLimiter(cfg *config.RateLimitConfig, logger *logrus.Logger) *ClientRateLimiter {
	if !cfg.Enabled {
		return &ClientRateLimiter{enabled: false}
	}

	rl := &ClientRateLimiter{
		enabled:         true,
		limiters:        make(map[string]*limiterEntry),
		limit:           rate.Limit(float64(cfg.MaxRequests) / cfg.Window.Seconds()),
		burst:           cfg.MaxRequests,
		logger:          logger,
		cleanupInterval: 10 * time.Minute,
		idleTimeout:     2 * cfg.Window,
		done:            make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a client is allowed to make a request
func (r *ClientRateLimiter) Allow(key string) bool {
	if !r.enabled {
		return true
	}

	allowed := r.getLimiter(key).Allow()
	if !allowed {
		r.logger.WithField("client", key).Warn("Rate limit exceeded")
	}

	return allowed
}

// Reset resets the rate limiter for a client
func (r *ClientRateLimiter) Reset(key string) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.limiters, key)
	r.mu.Unlock()
}

// Stop ends the cleanup goroutine
func (r *ClientRateLimiter) Stop() {
	if r.enabled {
		close(r.done)
	}
}

func (r *ClientRateLimiter) getLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// cleanup removes limiters that have been idle long enough to be full again
func (r *ClientRateLimiter) cleanup() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.mu.Lock()
			for key, entry := range r.limiters {
				if now.Sub(entry.lastSeen) > r.idleTimeout {
					delete(r.limiters, key)
				}
			}
			r.mu.Unlock()
		}
	}
}

// RateLimit rejects requests over the limit with RATE_LIMIT_EXCEEDED
func RateLimit(limiter RateLimiter, responder *respond.Responder, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				metrics.RecordRateLimitExceeded()
				responder.Error(w, r, apperrors.New(apperrors.RateLimitExceeded, "too many requests").
					WithMessageID(i18n.MsgRateLimitExceeded))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if claims := ClaimsFrom(r.Context()); claims != nil {
		return "user:" + claims.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
