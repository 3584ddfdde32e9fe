// Package memory contains in-memory store implementations for tests and
// local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/channelscout/channelscout/internal/scrape"
)

// ChannelStore keeps channels in a map keyed by channel ID. It implements
// scrape.ChannelStore.
type ChannelStore struct {
	mu       sync.RWMutex
	channels map[scrape.ChannelID]entry
	seq      int
	schema   int
}

type entry struct {
	channel scrape.Channel
	seq     int
}

// NewChannelStore returns an empty memory ChannelStore.
func NewChannelStore() *ChannelStore {
	return &ChannelStore{channels: make(map[scrape.ChannelID]entry)}
}

// EnsureSchema counts invocations; always succeeds.
func (s *ChannelStore) EnsureSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema++
	return nil
}

// Upsert replaces any existing row for ch.ID.
func (s *ChannelStore) Upsert(_ context.Context, ch scrape.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.channels[ch.ID] = entry{channel: ch, seq: s.seq}
	return nil
}

// ListRecent returns up to limit channels ordered by ObservedAt descending,
// ties broken by most recent write.
func (s *ChannelStore) ListRecent(_ context.Context, limit int) ([]scrape.Channel, error) {
	if limit <= 0 {
		return nil, &scrape.ValidationError{Field: "limit", Reason: "must be positive"}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]entry, 0, len(s.channels))
	for _, e := range s.channels {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.channel.ObservedAt.Equal(b.channel.ObservedAt) {
			return a.channel.ObservedAt.After(b.channel.ObservedAt)
		}
		return a.seq > b.seq
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]scrape.Channel, len(entries))
	for i, e := range entries {
		out[i] = e.channel
	}
	return out, nil
}

// Len reports the number of stored channels.
func (s *ChannelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

// SchemaCalls reports how many times EnsureSchema ran.
func (s *ChannelStore) SchemaCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema
}

// Get returns the stored channel for id, if present.
func (s *ChannelStore) Get(id scrape.ChannelID) (scrape.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.channels[id]
	return e.channel, ok
}
