// Package redis provides a read-through cache for detail lookups, conserving
// catalog API quota across closely spaced runs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/channelscout/channelscout/internal/scrape"
)

const keyPrefix = "channelscout:details:"

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Enricher wraps another Enricher with a TTL-bounded cache. Cache failures
// degrade to the underlying lookup, never to an error.
type Enricher struct {
	next   scrape.Enricher
	rdb    redis.Cmdable
	ttl    time.Duration
	clock  scrape.Clock
	logger *zap.Logger
}

// NewEnricher wraps next with caching through rdb.
func NewEnricher(next scrape.Enricher, rdb redis.Cmdable, ttl time.Duration, clock scrape.Clock, logger *zap.Logger) *Enricher {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{next: next, rdb: rdb, ttl: ttl, clock: clock, logger: logger}
}

// Details serves from cache when possible. A hit still counts as an
// enrichment, so ObservedAt is restamped with the current clock.
func (e *Enricher) Details(ctx context.Context, id scrape.ChannelID) (scrape.Channel, bool, error) {
	key := keyPrefix + string(id)

	data, err := e.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var ch scrape.Channel
		if uerr := json.Unmarshal(data, &ch); uerr == nil && ch.ID == id {
			ch.ObservedAt = e.clock.Now()
			return ch, true, nil
		}
		e.logger.Warn("cache entry corrupt, refetching", zap.String("channel_id", string(id)))
	} else if !errors.Is(err, redis.Nil) {
		e.logger.Warn("cache read failed", zap.String("channel_id", string(id)), zap.Error(err))
	}

	ch, found, err := e.next.Details(ctx, id)
	if err != nil || !found {
		return ch, found, err
	}

	if data, merr := json.Marshal(ch); merr == nil {
		if serr := e.rdb.Set(ctx, key, data, e.ttl).Err(); serr != nil {
			e.logger.Warn("cache write failed", zap.String("channel_id", string(id)), zap.Error(serr))
		}
	}
	return ch, true, nil
}
