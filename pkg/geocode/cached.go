package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"freezefit/pkg/cache"
	"freezefit/pkg/logger"
)

const (
	cacheKeyPrefix  = "geocode:"
	DefaultCacheTTL = 24 * time.Hour
)

// CachedGeocoder remembers successful lookups. Failures are not cached.
type CachedGeocoder struct {
	next  Geocoder
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedGeocoder(next Geocoder, c cache.Cache, ttl time.Duration, log *logger.Logger) *CachedGeocoder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedGeocoder{next: next, cache: c, ttl: ttl, log: log}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (*Coordinates, error) {
	key := cacheKey(address)

	var cached Coordinates
	if cache.GetJSON(ctx, g.cache, key, &cached) {
		return &cached, nil
	}

	coords, err := g.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, g.cache, key, coords, g.ttl); err != nil {
		g.log.Warn("Failed to cache geocode result", "error", err)
	}
	return coords, nil
}

func cacheKey(address string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return cacheKeyPrefix + hex.EncodeToString(sum[:12])
}
