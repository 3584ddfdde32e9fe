package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	archivememory "github.com/channelscout/channelscout/internal/archive/memory"
	"github.com/channelscout/channelscout/internal/hash/sha256"
	"github.com/channelscout/channelscout/internal/scrape"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testClock() fixedClock {
	return fixedClock{now: time.Unix(1700000000, 0).UTC()}
}

func newTestClient(baseURL string, maxRetries int) *Client {
	return New(Config{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		MaxRetries:  maxRetries,
		BackoffBase: time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
	}, testClock(), nil, nil, nil)
}

func TestSearchReturnsIDsInOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "gardening", q.Get("q"))
		require.Equal(t, "channel", q.Get("type"))
		require.Equal(t, "snippet", q.Get("part"))
		require.Equal(t, "10", q.Get("maxResults"))
		require.Equal(t, "test-key", q.Get("key"))

		_, _ = w.Write([]byte(`{"items":[
			{"snippet":{"channelId":"UC-first"}},
			{"snippet":{"channelId":"UC-second"}},
			{"snippet":{}}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	ids, err := client.Search(context.Background(), "gardening", 10)
	require.NoError(t, err)
	require.Equal(t, []scrape.ChannelID{"UC-first", "UC-second"}, ids)
}

func TestSearchQuotaExceeded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"errors":[{"reason":"quotaExceeded"}]}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2)
	_, err := client.Search(context.Background(), "gardening", 10)
	require.Error(t, err)

	var external *scrape.ExternalError
	require.ErrorAs(t, err, &external)
	require.True(t, external.Quota)
	require.Equal(t, "search", external.Op)
}

func TestSearchRetriesTransientServerError(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"snippet":{"channelId":"UC-ok"}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2)
	ids, err := client.Search(context.Background(), "gardening", 5)
	require.NoError(t, err)
	require.Equal(t, []scrape.ChannelID{"UC-ok"}, ids)
	require.Equal(t, int32(2), attempts.Load())
}

func TestSearchExhaustedRetriesOn429(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	_, err := client.Search(context.Background(), "gardening", 5)
	require.Error(t, err)

	var external *scrape.ExternalError
	require.ErrorAs(t, err, &external)
	require.True(t, external.Quota)
}

func TestDetailsParsesFullRecord(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "UC-abc", q.Get("id"))
		require.Equal(t, "snippet,statistics,brandingSettings", q.Get("part"))

		_, _ = w.Write([]byte(`{"items":[{
			"snippet":{
				"title":"Garden Gnomes",
				"description":"For sponsorships mail gnomes@garden.example first.",
				"country":"DE"
			},
			"statistics":{
				"subscriberCount":"15400",
				"viewCount":"2000000",
				"videoCount":"321"
			}
		}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	ch, found, err := client.Details(context.Background(), "UC-abc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, scrape.ChannelID("UC-abc"), ch.ID)
	require.Equal(t, "Garden Gnomes", ch.Title)
	require.Equal(t, "https://www.youtube.com/channel/UC-abc", ch.Link)
	require.Equal(t, int64(15400), ch.Subscribers)
	require.Equal(t, int64(2000000), ch.Views)
	require.Equal(t, int64(321), ch.Videos)
	require.Equal(t, "DE", ch.Country)
	require.Equal(t, "gnomes@garden.example", ch.Email)
	require.Equal(t, testClock().Now(), ch.ObservedAt)
}

func TestDetailsFallbacksOnMissingOrMalformedFields(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{
			"snippet":{"title":"Sparse","description":"no contact info"},
			"statistics":{"viewCount":"not-a-number","videoCount":-3}
		}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	ch, found, err := client.Details(context.Background(), "UC-sparse")
	require.NoError(t, err, "bad numbers are data quality, not failures")
	require.True(t, found)
	require.Zero(t, ch.Subscribers)
	require.Zero(t, ch.Views)
	require.Zero(t, ch.Videos)
	require.Equal(t, "Unknown", ch.Country)
	require.Empty(t, ch.Email)
}

func TestDetailsNotFoundIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	_, found, err := client.Details(context.Background(), "UC-deleted")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDetailsTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	_, _, err := client.Details(context.Background(), "UC-abc")
	require.Error(t, err)

	var external *scrape.ExternalError
	require.ErrorAs(t, err, &external)
	require.Equal(t, "details", external.Op)
	require.False(t, external.Quota)
}

func TestDetailsArchivesRawPayload(t *testing.T) {
	t.Parallel()

	payload := `{"items":[{"snippet":{"title":"Archived"},"statistics":{"subscriberCount":"5"}}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	archive := archivememory.New()
	client := New(Config{
		APIKey:        "test-key",
		BaseURL:       srv.URL,
		ArchivePrefix: "channels",
	}, testClock(), archive, sha256.New(), nil)

	_, found, err := client.Details(context.Background(), "UC-arch")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, archive.Len())

	digest, err := sha256.New().Hash([]byte(payload))
	require.NoError(t, err)
	stored, ok := archive.Object("channels/UC-arch/" + digest + ".json")
	require.True(t, ok)
	require.Equal(t, payload, string(stored))
}

func TestLooseCountForms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want int64
	}{
		{`"1000"`, 1000},
		{`1000`, 1000},
		{`"abc"`, 0},
		{`null`, 0},
		{`"-5"`, 0},
	}
	for _, tc := range cases {
		var c looseCount
		require.NoError(t, c.UnmarshalJSON([]byte(tc.raw)))
		require.Equal(t, tc.want, int64(c), "raw=%s", tc.raw)
	}
}

func TestChannelLink(t *testing.T) {
	t.Parallel()

	link := ChannelLink("UC-xyz")
	require.True(t, strings.HasSuffix(link, "/channel/UC-xyz"))
}
