package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// OfferCache implements domain.OfferCache: formatted order-book pages stored
// as JSON blobs under their book key with a short TTL.
type OfferCache struct {
	rdb *redis.Client
}

// NewOfferCache creates an OfferCache backed by the given Client.
func NewOfferCache(c *Client) *OfferCache {
	return &OfferCache{rdb: c.Underlying()}
}

// Get returns the cached offers for key, or domain.ErrNotFound when the key
// is absent or expired.
func (oc *OfferCache) Get(ctx context.Context, key string) ([]domain.FormattedOffer, error) {
	raw, err := oc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get offers %s: %w", key, err)
	}

	var offers []domain.FormattedOffer
	if err := json.Unmarshal(raw, &offers); err != nil {
		return nil, fmt.Errorf("redis: decode offers %s: %w", key, err)
	}
	return offers, nil
}

// Set stores offers under key for ttl.
func (oc *OfferCache) Set(ctx context.Context, key string, offers []domain.FormattedOffer, ttl time.Duration) error {
	raw, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("redis: encode offers %s: %w", key, err)
	}
	if err := oc.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set offers %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OfferCache = (*OfferCache)(nil)
