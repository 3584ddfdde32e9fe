package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/channelscout/channelscout/internal/scrape"
)

func ch(id scrape.ChannelID, subs int64, observed time.Time) scrape.Channel {
	return scrape.Channel{ID: id, Subscribers: subs, ObservedAt: observed}
}

func TestUpsertIsIdempotentPerID(t *testing.T) {
	t.Parallel()

	store := NewChannelStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.Upsert(ctx, ch("a", 100, base)))
	require.NoError(t, store.Upsert(ctx, ch("a", 200, base.Add(time.Minute))))

	require.Equal(t, 1, store.Len())
	got, ok := store.Get("a")
	require.True(t, ok)
	require.Equal(t, int64(200), got.Subscribers, "last write wins on every field")
}

func TestListRecentOrdersByObservedAtDescending(t *testing.T) {
	t.Parallel()

	store := NewChannelStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.Upsert(ctx, ch("oldest", 1, base)))
	require.NoError(t, store.Upsert(ctx, ch("newest", 2, base.Add(2*time.Minute))))
	require.NoError(t, store.Upsert(ctx, ch("middle", 3, base.Add(time.Minute))))

	got, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, scrape.ChannelID("newest"), got[0].ID)
	require.Equal(t, scrape.ChannelID("middle"), got[1].ID)
}

func TestListRecentBreaksTiesByWriteOrder(t *testing.T) {
	t.Parallel()

	store := NewChannelStore()
	ctx := context.Background()
	ts := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.Upsert(ctx, ch("first", 1, ts)))
	require.NoError(t, store.Upsert(ctx, ch("second", 2, ts)))

	got, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, scrape.ChannelID("second"), got[0].ID)
	require.Equal(t, scrape.ChannelID("first"), got[1].ID)
}

func TestEnsureSchemaIsCheap(t *testing.T) {
	t.Parallel()

	store := NewChannelStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))
	require.Equal(t, 2, store.SchemaCalls())
}
