package knowledge

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridocs/trainforge/internal/types"
)

// fakeHTTPClient serves canned responses per URL and counts calls.
type fakeHTTPClient struct {
	mu        sync.Mutex
	calls     map[string]int
	responses map[string]fakeResponse
}

type fakeResponse struct {
	status      int
	contentType string
	body        string
	err         error
}

func newFakeHTTPClient() *fakeHTTPClient {
	return &fakeHTTPClient{calls: map[string]int{}, responses: map[string]fakeResponse{}}
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, _ time.Duration) (int, http.Header, []byte, error) {
	f.mu.Lock()
	f.calls[url]++
	f.mu.Unlock()

	r, ok := f.responses[url]
	if !ok {
		return 404, http.Header{}, nil, nil
	}
	if r.err != nil {
		return 0, nil, nil, r.err
	}
	h := http.Header{}
	h.Set("Content-Type", r.contentType)
	return r.status, h, []byte(r.body), nil
}

func (f *fakeHTTPClient) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// memCache is an in-memory types.CacheStore with controllable timestamps.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	stamps  map[string]time.Time
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, stamps: map[string]time.Time{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, time.Time{}, false, m.getErr
	}
	data, ok := m.entries[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return data, m.stamps[key], true, nil
}

func (m *memCache) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	m.stamps[key] = time.Now()
	return nil
}

func fetcherConfig() *types.Config {
	cfg := types.Default()
	cfg.CacheEnabled = true
	return cfg
}

func TestFetchAllPreservesInputOrder(t *testing.T) {
	client := newFakeHTTPClient()
	client.responses["https://a.example"] = fakeResponse{status: 200, contentType: "text/plain", body: "alpha content here"}
	client.responses["https://b.example"] = fakeResponse{status: 200, contentType: "text/plain", body: "beta content here"}
	client.responses["https://c.example"] = fakeResponse{status: 200, contentType: "text/plain", body: "gamma content here"}

	f := NewFetcher(client, newMemCache(), fetcherConfig())
	got := f.FetchAll(context.Background(), []string{"https://c.example", "https://a.example", "https://b.example"})

	require.Len(t, got, 3)
	assert.Equal(t, "https://c.example", got[0].URL)
	assert.Equal(t, "https://a.example", got[1].URL)
	assert.Equal(t, "https://b.example", got[2].URL)
	assert.Equal(t, "gamma content here", got[0].Content)
}

func TestFetchAllRecordsPerURLFailures(t *testing.T) {
	client := newFakeHTTPClient()
	client.responses["https://ok.example"] = fakeResponse{status: 200, contentType: "text/html",
		body: "<html><head><title>Guide</title></head><body><p>useful text</p></body></html>"}
	client.responses["https://down.example"] = fakeResponse{status: 500, contentType: "text/plain", body: "oops"}
	client.responses["https://gone.example"] = fakeResponse{err: errors.New("connection refused")}

	f := NewFetcher(client, newMemCache(), fetcherConfig())
	got := f.FetchAll(context.Background(), []string{"https://ok.example", "https://down.example", "https://gone.example"})

	require.Len(t, got, 3)
	assert.Empty(t, got[0].Error)
	assert.Equal(t, "Guide", got[0].Title)
	assert.Equal(t, types.MediaWeb, got[0].MediaType)
	assert.Contains(t, got[0].Content, "useful text")

	assert.Contains(t, got[1].Error, "non-2xx status: 500")
	assert.Empty(t, got[1].Content)

	assert.Contains(t, got[2].Error, "connection refused")
}

func TestFetchHTMLStripsChrome(t *testing.T) {
	client := newFakeHTTPClient()
	client.responses["https://page.example"] = fakeResponse{status: 200, contentType: "text/html",
		body: `<html><head><title>T</title><script>var x=1;</script><style>.a{}</style></head>
<body><nav>menu items</nav><p>the real content &amp; more</p><footer>copyright</footer></body></html>`}

	f := NewFetcher(client, newMemCache(), fetcherConfig())
	got := f.FetchAll(context.Background(), []string{"https://page.example"})

	require.Len(t, got, 1)
	require.Empty(t, got[0].Error)
	assert.Contains(t, got[0].Content, "the real content & more")
	assert.NotContains(t, got[0].Content, "menu items")
	assert.NotContains(t, got[0].Content, "copyright")
	assert.NotContains(t, got[0].Content, "var x=1")
}

func TestFetchTruncatesAtWordBoundary(t *testing.T) {
	longBody := strings.Repeat("reasonably sized words repeated forever ", 100)
	client := newFakeHTTPClient()
	client.responses["https://long.example"] = fakeResponse{status: 200, contentType: "text/plain", body: longBody}

	cfg := fetcherConfig()
	cfg.MaxContentLengthPerSource = 500
	f := NewFetcher(client, newMemCache(), cfg)
	got := f.FetchAll(context.Background(), []string{"https://long.example"})

	require.Len(t, got, 1)
	assert.LessOrEqual(t, len(got[0].Content), 500)
	assert.False(t, strings.HasSuffix(got[0].Content, " "))
	// The cut never splits a word: the content must end with a complete
	// word from the source vocabulary.
	words := strings.Fields(got[0].Content)
	last := words[len(words)-1]
	assert.Contains(t, []string{"reasonably", "sized", "words", "repeated", "forever"}, last)
}

func TestFetchSecondCallHitsCache(t *testing.T) {
	client := newFakeHTTPClient()
	client.responses["https://cached.example"] = fakeResponse{status: 200, contentType: "text/plain", body: "cache me"}

	cache := newMemCache()
	f := NewFetcher(client, cache, fetcherConfig())

	first := f.FetchAll(context.Background(), []string{"https://cached.example"})
	second := f.FetchAll(context.Background(), []string{"https://cached.example"})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Content, second[0].Content)
	assert.Equal(t, 1, client.callCount("https://cached.example"), "second fetch must not hit the network")
}

func TestFetchExpiredCacheRefetches(t *testing.T) {
	client := newFakeHTTPClient()
	client.responses["https://stale.example"] = fakeResponse{status: 200, contentType: "text/plain", body: "fresh"}

	cache := newMemCache()
	f := NewFetcher(client, cache, fetcherConfig())

	f.FetchAll(context.Background(), []string{"https://stale.example"})
	// Age the entry past the TTL.
	cache.mu.Lock()
	for k := range cache.stamps {
		cache.stamps[k] = time.Now().Add(-25 * time.Hour)
	}
	cache.mu.Unlock()

	f.FetchAll(context.Background(), []string{"https://stale.example"})
	assert.Equal(t, 2, client.callCount("https://stale.example"))
}

func TestFetchCorruptCacheIsAMiss(t *testing.T) {
	client := newFakeHTTPClient()
	client.responses["https://corrupt.example"] = fakeResponse{status: 200, contentType: "text/plain", body: "recovered"}

	cache := newMemCache()
	require.NoError(t, cache.Put(context.Background(), CacheKey("https://corrupt.example"), []byte("{not json")))

	f := NewFetcher(client, cache, fetcherConfig())
	got := f.FetchAll(context.Background(), []string{"https://corrupt.example"})
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Error)
	assert.Equal(t, "recovered", got[0].Content)
}

func TestFetchCacheErrorIsAMiss(t *testing.T) {
	client := newFakeHTTPClient()
	client.responses["https://err.example"] = fakeResponse{status: 200, contentType: "text/plain", body: "still works"}

	cache := newMemCache()
	cache.getErr = errors.New("disk unhappy")

	f := NewFetcher(client, cache, fetcherConfig())
	got := f.FetchAll(context.Background(), []string{"https://err.example"})
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Error)
	assert.Equal(t, "still works", got[0].Content)
}

func TestFetchFailuresAreNotCached(t *testing.T) {
	client := newFakeHTTPClient()
	client.responses["https://flaky.example"] = fakeResponse{status: 500, contentType: "text/plain", body: ""}

	cache := newMemCache()
	f := NewFetcher(client, cache, fetcherConfig())

	f.FetchAll(context.Background(), []string{"https://flaky.example"})
	f.FetchAll(context.Background(), []string{"https://flaky.example"})
	assert.Equal(t, 2, client.callCount("https://flaky.example"), "failures must be retried, not served from cache")
}

func TestTruncateAtWordBoundaryEdgeCases(t *testing.T) {
	assert.Equal(t, "short", truncateAtWordBoundary("short", 100))
	assert.Equal(t, "", truncateAtWordBoundary("", 10))
	assert.Equal(t, "onewordthatislong", truncateAtWordBoundary("onewordthatislong", 100))
	// No space inside the window: hard cut.
	assert.Equal(t, "abcdefghij", truncateAtWordBoundary("abcdefghijklmno", 10))
}
