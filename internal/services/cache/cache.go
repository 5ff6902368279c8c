package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Service caches results of outbound lookups (geocoding, forecasts, searches)
type Service interface {
	Get(ctx context.Context, namespace, key string) (interface{}, bool)
	Set(ctx context.Context, namespace, key string, value interface{})
	Clear(ctx context.Context)
}

// Observer is told about hits and misses
type Observer interface {
	RecordCacheHit(namespace string)
	RecordCacheMiss(namespace string)
}

// Cache implements caching service
type Cache struct {
	enabled  bool
	cache    *cache.Cache
	logger   *logrus.Logger
	maxSize  int
	observer Observer
}

// NewCache creates a new cache service
func NewCache(cfg *config.CacheConfig, logger *logrus.Logger, observer Observer) Service {
	if !cfg.Enabled {
		return &Cache{enabled: false}
	}

	return &Cache{
		enabled:  true,
		cache:    cache.New(cfg.TTL, cfg.TTL*2),
		logger:   logger,
		maxSize:  cfg.MaxSize,
		observer: observer,
	}
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, namespace, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}

	val, found := c.cache.Get(c.generateKey(namespace, key))
	if c.observer != nil {
		if found {
			c.observer.RecordCacheHit(namespace)
		} else {
			c.observer.RecordCacheMiss(namespace)
		}
	}
	if found {
		c.logger.WithFields(logrus.Fields{
			"namespace": namespace,
			"key":       key,
		}).Debug("Cache hit")
	}
	return val, found
}

// Set stores a value with the default TTL
func (c *Cache) Set(ctx context.Context, namespace, key string, value interface{}) {
	if !c.enabled {
		return
	}

	if c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.logger.Warn("Cache size limit reached, clearing old entries")
		c.cache.DeleteExpired()
		if c.cache.ItemCount() >= c.maxSize {
			return
		}
	}

	c.cache.SetDefault(c.generateKey(namespace, key), value)
}

// Clear removes all cached entries
func (c *Cache) Clear(ctx context.Context) {
	if !c.enabled {
		return
	}

	c.cache.Flush()
	c.logger.Info("Cache cleared")
}

func (c *Cache) generateKey(namespace, key string) string {
	data := fmt.Sprintf("%s:%s", namespace, strings.ToLower(strings.TrimSpace(key)))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
