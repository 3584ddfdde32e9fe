package scrape

import (
	"context"
	"time"
)

// Discoverer returns one page of candidate channel IDs for a keyword, in the
// catalog's relevance order. The sequence is at most limit long. A transport
// or quota failure surfaces as *ExternalError and aborts the whole run.
type Discoverer interface {
	Search(ctx context.Context, keyword string, limit int) ([]ChannelID, error)
}

// Enricher looks up detail attributes for one candidate. The second return is
// false when the catalog reports the channel as gone; that is a normal
// outcome, not an error. Transport or quota failures surface as
// *ExternalError and are recoverable per candidate.
type Enricher interface {
	Details(ctx context.Context, id ChannelID) (Channel, bool, error)
}

// ChannelStore persists enriched channels keyed by channel ID.
type ChannelStore interface {
	// EnsureSchema performs idempotent structural initialization.
	EnsureSchema(ctx context.Context) error
	// Upsert inserts or fully replaces the row for ch.ID, atomically.
	Upsert(ctx context.Context, ch Channel) error
	// ListRecent returns up to limit channels ordered by ObservedAt descending.
	ListRecent(ctx context.Context, limit int) ([]Channel, error)
}

// Publisher pushes run events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes digests for content-addressed archive paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
