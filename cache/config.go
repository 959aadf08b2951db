package cache

import (
	"github.com/goliatone/go-catalog-cache/internal/cacheinfra"
)

// Config sizes every cache client. TTL is the default for tags registered without
// a TTL of their own. It decodes from YAML.
type Config = cacheinfra.Config

// EarlyRefreshConfig enables background refreshes of hot entries.
type EarlyRefreshConfig = cacheinfra.EarlyRefreshConfig

// DefaultConfig returns the defaults tuned for catalog workloads.
func DefaultConfig() Config {
	return cacheinfra.DefaultConfig()
}

// NewCacheService constructs the default single-TTL cache service.
func NewCacheService(cfg Config) (CacheService, error) {
	svc, err := cacheinfra.NewSturdycService(cfg)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
