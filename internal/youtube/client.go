// Package youtube implements catalog discovery and channel enrichment against
// a YouTube Data API v3 compatible endpoint.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/channelscout/channelscout/internal/metrics"
	"github.com/channelscout/channelscout/internal/scrape"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Config captures the parameters for the API client.
type Config struct {
	APIKey      string
	BaseURL     string // defaults to the public Data API endpoint
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// ArchivePrefix prefixes raw detail payload paths in the blob store.
	ArchivePrefix string
}

// Client calls the search and channels endpoints. It implements
// scrape.Discoverer and scrape.Enricher.
type Client struct {
	cfg     Config
	httpc   *http.Client
	clock   scrape.Clock
	archive scrape.BlobStore
	hasher  scrape.Hasher
	retry   retryPolicy
	logger  *zap.Logger
}

// New constructs a Client. archive may be nil to disable raw payload
// archiving; hasher is only consulted when archive is set.
func New(cfg Config, clock scrape.Clock, archive scrape.BlobStore, hasher scrape.Hasher, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		clock:   clock,
		archive: archive,
		hasher:  hasher,
		retry:   newRetryPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffMax),
		logger:  logger,
	}
}

// ChannelLink derives the public profile URL for a channel ID.
func ChannelLink(id scrape.ChannelID) string {
	return "https://www.youtube.com/channel/" + string(id)
}

type searchResponse struct {
	Items []struct {
		Snippet struct {
			ChannelID string `json:"channelId"`
		} `json:"snippet"`
	} `json:"items"`
}

type channelListResponse struct {
	Items []struct {
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Country     string `json:"country"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount looseCount `json:"subscriberCount"`
			ViewCount       looseCount `json:"viewCount"`
			VideoCount      looseCount `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// looseCount decodes a non-negative count that the API may send as a quoted
// string, a number, or not at all. Malformed or negative values decode to 0;
// bad data is a data-quality fact, not a pipeline fault.
type looseCount int64

func (c *looseCount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		*c = 0
		return nil
	}
	*c = looseCount(n)
	return nil
}

// Search returns up to limit candidate channel IDs for keyword, in the
// catalog's relevance order.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]scrape.ChannelID, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "channel")
	q.Set("q", keyword)
	q.Set("maxResults", strconv.Itoa(limit))

	var resp searchResponse
	if _, err := c.getJSON(ctx, "search", q, &resp); err != nil {
		return nil, err
	}

	ids := make([]scrape.ChannelID, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet.ChannelID == "" {
			continue
		}
		ids = append(ids, scrape.ChannelID(item.Snippet.ChannelID))
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Details fetches enrichment attributes for one channel. The second return is
// false when the catalog no longer knows the ID.
func (c *Client) Details(ctx context.Context, id scrape.ChannelID) (scrape.Channel, bool, error) {
	q := url.Values{}
	q.Set("part", "snippet,statistics,brandingSettings")
	q.Set("id", string(id))

	var resp channelListResponse
	body, err := c.getJSON(ctx, "channels", q, &resp)
	if err != nil {
		return scrape.Channel{}, false, err
	}
	if len(resp.Items) == 0 {
		return scrape.Channel{}, false, nil
	}
	c.archiveRaw(ctx, id, body)

	item := resp.Items[0]
	ch := scrape.Channel{
		ID:          id,
		Title:       item.Snippet.Title,
		Link:        ChannelLink(id),
		Subscribers: int64(item.Statistics.SubscriberCount),
		Views:       int64(item.Statistics.ViewCount),
		Videos:      int64(item.Statistics.VideoCount),
		Country:     item.Snippet.Country,
		ObservedAt:  c.clock.Now(),
	}
	if ch.Country == "" {
		ch.Country = "Unknown"
	}
	if email, ok := scrape.ExtractEmail(item.Snippet.Description); ok {
		ch.Email = email
	}
	return ch, true, nil
}

// archiveRaw writes the raw detail payload to the blob store, content
// addressed by digest. Best effort; archive failures never fail enrichment.
func (c *Client) archiveRaw(ctx context.Context, id scrape.ChannelID, body []byte) {
	if c.archive == nil || c.hasher == nil {
		return
	}
	digest, err := c.hasher.Hash(body)
	if err != nil {
		c.logger.Warn("hash payload failed", zap.String("channel_id", string(id)), zap.Error(err))
		return
	}
	prefix := strings.Trim(c.cfg.ArchivePrefix, "/")
	path := fmt.Sprintf("%s/%s.json", string(id), digest)
	if prefix != "" {
		path = prefix + "/" + path
	}
	uri, err := c.archive.PutObject(ctx, path, "application/json", body)
	if err != nil {
		c.logger.Warn("archive payload failed", zap.String("channel_id", string(id)), zap.Error(err))
		return
	}
	c.logger.Debug("payload archived", zap.String("channel_id", string(id)), zap.String("uri", uri))
}

// getJSON performs a GET with retry on transient failures and decodes the
// response. The returned error is always a *scrape.ExternalError.
func (c *Client) getJSON(ctx context.Context, op string, q url.Values, out any) ([]byte, error) {
	q.Set("key", c.cfg.APIKey)
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + op + "?" + q.Encode()

	for attempt := 0; ; attempt++ {
		body, status, err := c.doOnce(ctx, op, endpoint)
		switch {
		case err != nil:
			if c.retry.shouldRetry(err, 0, attempt) {
				if werr := c.retry.wait(ctx, attempt); werr == nil {
					c.logger.Debug("retrying catalog call", zap.String("op", op), zap.Int("attempt", attempt+1))
					continue
				}
			}
			return nil, &scrape.ExternalError{Op: op, Err: err}
		case status == http.StatusOK:
			if uerr := json.Unmarshal(body, out); uerr != nil {
				return nil, &scrape.ExternalError{Op: op, Err: fmt.Errorf("malformed response: %w", uerr)}
			}
			return body, nil
		case status == http.StatusTooManyRequests:
			if c.retry.shouldRetry(nil, status, attempt) {
				if werr := c.retry.wait(ctx, attempt); werr == nil {
					continue
				}
			}
			return nil, &scrape.ExternalError{Op: op, Quota: true, Err: fmt.Errorf("status %d", status)}
		case status == http.StatusForbidden && isQuotaBody(body):
			return nil, &scrape.ExternalError{Op: op, Quota: true, Err: fmt.Errorf("status %d", status)}
		case status >= 500:
			if c.retry.shouldRetry(nil, status, attempt) {
				if werr := c.retry.wait(ctx, attempt); werr == nil {
					continue
				}
			}
			return nil, &scrape.ExternalError{Op: op, Err: fmt.Errorf("status %d", status)}
		default:
			return nil, &scrape.ExternalError{Op: op, Err: fmt.Errorf("status %d", status)}
		}
	}
}

func (c *Client) doOnce(ctx context.Context, op, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	metrics.ObserveCatalogCall(op, time.Since(start))
	if err != nil {
		return nil, 0, fmt.Errorf("%s request: %w", op, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("close response body failed", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

type apiErrorBody struct {
	Error struct {
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func isQuotaBody(body []byte) bool {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	for _, e := range parsed.Error.Errors {
		switch e.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
