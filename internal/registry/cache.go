// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yokehq/yoke/pkg/resolve"
)

const (
	// DefaultTTL is how long fetched metadata stays cached.
	DefaultTTL = 10 * time.Minute
	// DefaultCleanupInterval is how often expired entries are purged.
	DefaultCleanupInterval = 30 * time.Minute
)

// CachedFetcher is a read-through cache in front of a MetadataFetcher.
// Fetch errors and metadata carrying a registry error are never cached.
type CachedFetcher struct {
	next   resolve.MetadataFetcher
	ttl    time.Duration
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewCachedFetcher wraps next. A non-positive ttl selects DefaultTTL.
func NewCachedFetcher(next resolve.MetadataFetcher, ttl time.Duration, logger *slog.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{
		next:   next,
		ttl:    ttl,
		cache:  gocache.New(ttl, DefaultCleanupInterval),
		logger: logger,
	}
}

// FetchAll implements resolve.MetadataFetcher.
func (c *CachedFetcher) FetchAll(ctx context.Context, name string) (*resolve.PackageMetadata, error) {
	if value, found := c.cache.Get(name); found {
		if meta, ok := value.(*resolve.PackageMetadata); ok {
			c.logger.Debug("registry cache hit", "package", name)
			return meta, nil
		}
		c.logger.Error("wrong type in registry cache", "package", name)
	}

	meta, err := c.next.FetchAll(ctx, name)
	if err != nil {
		return nil, err
	}
	if meta != nil && meta.Error == "" {
		c.cache.Set(name, meta, c.ttl)
	}
	return meta, nil
}

// Invalidate drops cached metadata for the given packages.
func (c *CachedFetcher) Invalidate(names ...string) {
	for _, name := range names {
		c.cache.Delete(name)
	}
}

// Flush drops every cached entry.
func (c *CachedFetcher) Flush() { c.cache.Flush() }

// Len returns the number of cached entries, including expired ones not yet purged.
func (c *CachedFetcher) Len() int { return c.cache.ItemCount() }
