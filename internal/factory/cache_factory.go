package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/adapters/cache"
	"github.com/d0npedro/mailinvoicegrabber/internal/config"
	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

// CacheFactory creates classification caches
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{cfg: cfg, logger: logger}
}

// CreateCache creates a cache based on the configuration. A disabled cache
// returns nil, which the gateway treats as no caching.
func (f *CacheFactory) CreateCache() (core.ClassificationCache, error) {
	if !f.cfg.GetBool("cache.enabled") {
		return nil, nil
	}

	ttl, err := f.cfg.GetDuration("cache.ttl")
	if err != nil {
		return nil, fmt.Errorf("invalid cache.ttl: %w", err)
	}
	cleanupFreq, err := f.cfg.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid cache.cleanup_frequency: %w", err)
	}

	switch cacheType := f.cfg.GetString("cache.type"); cacheType {
	case "memory":
		return cache.NewMemoryCache(f.logger, ttl, cleanupFreq), nil
	case "sqlite":
		return cache.NewSQLiteCache(f.cfg.GetString("cache.sqlite_path"), f.logger, ttl, cleanupFreq)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheType)
	}
}
