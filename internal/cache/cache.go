package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	catalogKey = "workouts-catalog"

	// freecache refuses entries bigger than 1/1024 of its size,
	// 4MB leaves room for a ~4KB encoded catalog
	minCacheSize = 4 * 1024 * 1024
)

var _ workouts.CatalogCache = (*CatalogCache)(nil)

// CatalogCache keeps the JSON encoded catalog in a freecache instance.
type CatalogCache struct {
	cache     *freecache.Cache
	sizeBytes int
	ttl       time.Duration
}

func NewCatalogCache(sizeBytes int, ttl time.Duration) *CatalogCache {
	if sizeBytes < minCacheSize {
		sizeBytes = minCacheSize
	}
	return &CatalogCache{
		cache:     freecache.NewCache(sizeBytes),
		sizeBytes: sizeBytes,
		ttl:       ttl,
	}
}

func (c *CatalogCache) Get() (workouts.Catalog, bool) {
	catalogBytes, err := c.cache.Get([]byte(catalogKey))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Errorf("catalog cache, get: %s", err)
		}
		return nil, false
	}

	var catalog workouts.Catalog
	if err := json.Unmarshal(catalogBytes, &catalog); err != nil {
		log.Errorf("catalog cache, unmarshal: %s", err)
		return nil, false
	}
	return catalog, true
}

func (c *CatalogCache) Set(catalog workouts.Catalog) error {
	catalogBytes, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	// 0 means no expiry in freecache
	if err := c.cache.Set([]byte(catalogKey), catalogBytes, int(c.ttl.Seconds())); err != nil {
		if errors.Is(err, freecache.ErrLargeEntry) {
			return fmt.Errorf("catalog of %d bytes does not fit a %d bytes cache, raise catalog_cache_size_mb: %w",
				len(catalogBytes), c.sizeBytes, err)
		}
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *CatalogCache) Invalidate() {
	if c.cache.Del([]byte(catalogKey)) {
		log.Debugln("catalog cache invalidated")
	}
}
