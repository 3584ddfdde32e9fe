// Package postgres provides the Postgres-backed channel store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/channelscout/channelscout/internal/scrape"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ChannelStoreConfig controls the Postgres connection pool used for channel
// rows.
type ChannelStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// ChannelStore persists enriched channels keyed uniquely by channel_id. It
// implements scrape.ChannelStore.
type ChannelStore struct {
	pool  dbPool
	table string
}

// NewChannelStore creates a Postgres-backed ChannelStore using the provided
// config.
func NewChannelStore(ctx context.Context, cfg ChannelStoreConfig) (*ChannelStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "youtube_channels"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ChannelStore{pool: pool, table: table}, nil
}

// NewChannelStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewChannelStoreWithPool(pool dbPool, table string) (*ChannelStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "youtube_channels"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ChannelStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ChannelStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the channel table if it does not exist. Safe to call
// on every run.
func (s *ChannelStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	channel_id VARCHAR(255) UNIQUE NOT NULL,
	channel_title TEXT,
	channel_link TEXT,
	subscribers BIGINT,
	views BIGINT,
	videos BIGINT,
	country TEXT,
	business_email TEXT,
	scraped_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ DEFAULT NOW()
)`, s.table)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return &scrape.StorageError{Op: "ensure schema", Err: err}
	}
	return nil
}

// Upsert inserts or fully replaces the row for ch.ID in one statement.
func (s *ChannelStore) Upsert(ctx context.Context, ch scrape.Channel) error {
	if ch.ID == "" {
		return &scrape.StorageError{Op: "upsert", Err: fmt.Errorf("channel id is required")}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	channel_id,
	channel_title,
	channel_link,
	subscribers,
	views,
	videos,
	country,
	business_email,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (channel_id) DO UPDATE SET
	channel_title = EXCLUDED.channel_title,
	channel_link = EXCLUDED.channel_link,
	subscribers = EXCLUDED.subscribers,
	views = EXCLUDED.views,
	videos = EXCLUDED.videos,
	country = EXCLUDED.country,
	business_email = EXCLUDED.business_email,
	scraped_at = EXCLUDED.scraped_at`, s.table)

	args := []any{
		string(ch.ID),
		ch.Title,
		ch.Link,
		ch.Subscribers,
		ch.Views,
		ch.Videos,
		ch.Country,
		nullableText(ch.Email),
		ch.ObservedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return &scrape.StorageError{Op: "upsert", Err: err}
	}
	return nil
}

// ListRecent returns up to limit channels, most recently observed first.
func (s *ChannelStore) ListRecent(ctx context.Context, limit int) ([]scrape.Channel, error) {
	if limit <= 0 {
		return nil, &scrape.ValidationError{Field: "limit", Reason: "must be positive"}
	}
	query := fmt.Sprintf(`
SELECT channel_id, channel_title, channel_link, subscribers, views, videos,
	country, business_email, scraped_at
FROM %s
ORDER BY scraped_at DESC
LIMIT $1`, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, &scrape.StorageError{Op: "list recent", Err: err}
	}
	defer rows.Close()

	var out []scrape.Channel
	for rows.Next() {
		var (
			ch    scrape.Channel
			id    string
			email *string
		)
		if err := rows.Scan(
			&id,
			&ch.Title,
			&ch.Link,
			&ch.Subscribers,
			&ch.Views,
			&ch.Videos,
			&ch.Country,
			&email,
			&ch.ObservedAt,
		); err != nil {
			return nil, &scrape.StorageError{Op: "list recent", Err: err}
		}
		ch.ID = scrape.ChannelID(id)
		if email != nil {
			ch.Email = *email
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, &scrape.StorageError{Op: "list recent", Err: err}
	}
	return out, nil
}

// nullableText maps the empty string to NULL so absent e-mails are stored as
// NULL, matching the uniqueness-free TEXT column.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
