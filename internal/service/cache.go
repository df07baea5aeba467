package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const listingKey = "listing"

// ListingCache keeps the assembled listing in Redis (cache-aside).
// Concurrent misses share one load through singleflight.  A nil Redis
// client disables storage but keeps request coalescing.
type ListingCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
	group  singleflight.Group
}

func NewListingCache(rdb *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *ListingCache {
	if prefix == "" {
		prefix = "adspace:cache"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ListingCache{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

func (c *ListingCache) key() string { return c.prefix + ":" + listingKey }

func (c *ListingCache) enabled() bool { return c.rdb != nil && c.ttl > 0 }

// Load returns the cached listing or runs load and stores its result.
// Cache errors fall through to load.
func (c *ListingCache) Load(ctx context.Context, load func(context.Context) (*ListingResult, error)) (*ListingResult, error) {
	if c.enabled() {
		raw, err := c.rdb.Get(ctx, c.key()).Bytes()
		switch {
		case err == nil:
			var res ListingResult
			if jerr := json.Unmarshal(raw, &res); jerr == nil {
				return &res, nil
			}
			c.log.Warn("listing cache entry undecodable, reloading")
		case !errors.Is(err, redis.Nil):
			c.log.Warn("listing cache read failed", zap.Error(err))
		}
	}

	v, err, _ := c.group.Do(listingKey, func() (any, error) {
		// the load outlives a single cancelled caller
		res, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(context.WithoutCancel(ctx), res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ListingResult), nil
}

func (c *ListingCache) store(ctx context.Context, res *ListingResult) {
	if !c.enabled() {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		c.log.Warn("listing cache encode failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.key(), b, c.ttl).Err(); err != nil {
		c.log.Warn("listing cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached listing after a mint or rent, together with
// any cached HTTP responses sharing the prefix.
func (c *ListingCache) Invalidate(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	var keys []string
	iter := c.rdb.Scan(ctx, 0, c.prefix+":*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("listing cache scan failed", zap.Error(err))
		keys = []string{c.key()}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("listing cache invalidate failed", zap.Error(err))
	}
}
