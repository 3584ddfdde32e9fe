package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/channelscout/channelscout/internal/scrape"
)

type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

type countingEnricher struct {
	channel scrape.Channel
	found   bool
	err     error
	calls   int
}

func (e *countingEnricher) Details(_ context.Context, id scrape.ChannelID) (scrape.Channel, bool, error) {
	e.calls++
	ch := e.channel
	ch.ID = id
	return ch, e.found, e.err
}

func newTestCache(t *testing.T, next scrape.Enricher, ttl time.Duration, clock scrape.Clock) *Enricher {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewEnricher(next, rdb, ttl, clock, nil)
}

func TestDetailsCachesSecondLookup(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Unix(1700000000, 0).UTC(), step: time.Second}
	next := &countingEnricher{
		channel: scrape.Channel{Title: "Cached", Subscribers: 4000},
		found:   true,
	}
	cache := newTestCache(t, next, time.Minute, clock)

	first, found, err := cache.Details(context.Background(), "UC-a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, next.calls)

	second, found, err := cache.Details(context.Background(), "UC-a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, next.calls, "second lookup must be served from cache")
	require.Equal(t, first.Title, second.Title)
	require.Equal(t, first.Subscribers, second.Subscribers)
	require.True(t, second.ObservedAt.After(first.ObservedAt),
		"cache hit still restamps the observation time")
}

func TestDetailsMissPassesThrough(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Unix(1700000000, 0).UTC(), step: time.Second}
	next := &countingEnricher{found: false}
	cache := newTestCache(t, next, time.Minute, clock)

	_, found, err := cache.Details(context.Background(), "UC-gone")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = cache.Details(context.Background(), "UC-gone")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 2, next.calls, "absent channels are never cached")
}

func TestDetailsDegradesWhenCacheIsDown(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Unix(1700000000, 0).UTC(), step: time.Second}
	next := &countingEnricher{
		channel: scrape.Channel{Title: "Direct", Subscribers: 1200},
		found:   true,
	}

	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewEnricher(next, rdb, time.Minute, clock, nil)
	srv.Close()

	ch, found, err := cache.Details(context.Background(), "UC-a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Direct", ch.Title)
	require.Equal(t, 1, next.calls)
}

func TestDetailsExpiredEntryRefetches(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Unix(1700000000, 0).UTC(), step: time.Second}
	next := &countingEnricher{
		channel: scrape.Channel{Title: "Fresh"},
		found:   true,
	}

	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewEnricher(next, rdb, time.Minute, clock, nil)

	_, _, err := cache.Details(context.Background(), "UC-a")
	require.NoError(t, err)

	srv.FastForward(2 * time.Minute)

	_, _, err = cache.Details(context.Background(), "UC-a")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
}
