// Package knowledge implements the knowledge fetcher + cache collaborator
//: concurrent URL retrieval bounded to a configurable fan-out,
// content-type dispatch (HTML/PDF/plain text), whitespace normalization,
// truncation, and a TTL file cache shared across jobs on a host.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/veridocs/trainforge/internal/common"
	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/types"
)

// Fetcher retrieves knowledge URLs for a job. It never fails the
// pipeline: any per-URL failure is recorded on the returned
// types.KnowledgeSource's Error field.
type Fetcher struct {
	http              types.HTTPClient
	cache             types.CacheStore
	maxConcurrent     int
	urlTimeout        time.Duration
	cacheTTL          time.Duration
	cacheEnabled      bool
	maxContentLength  int
}

// NewFetcher constructs a Fetcher from the knowledge-fetching config
// options.
func NewFetcher(client types.HTTPClient, cache types.CacheStore, cfg *types.Config) *Fetcher {
	return &Fetcher{
		http:             client,
		cache:            cache,
		maxConcurrent:    cfg.MaxConcurrentFetches,
		urlTimeout:       cfg.URLTimeout(),
		cacheTTL:         cfg.CacheTTL(),
		cacheEnabled:     cfg.CacheEnabled && cache != nil,
		maxContentLength: cfg.MaxContentLengthPerSource,
	}
}

// cacheRecord is the on-disk shape of a cache entry: one file per URL, keyed by a stable hash of the URL.
type cacheRecord struct {
	FetchedAt time.Time        `json:"fetched_at"`
	URL       string           `json:"url"`
	Title     string           `json:"title"`
	MediaType types.MediaType  `json:"media_type"`
	Content   string           `json:"content"`
	Error     string           `json:"error"`
}

// FetchAll dispatches all URL fetches concurrently, bounded to
// maxConcurrent in flight, and returns one types.KnowledgeSource per URL
// in input order.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []types.KnowledgeSource {
	results := make([]types.KnowledgeSource, len(urls))

	limit := f.maxConcurrent
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			results[i] = f.fetchOne(gctx, url)
			return nil
		})
	}
	_ = g.Wait() // fetchOne never returns an error; per-URL failures live in the result.

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) types.KnowledgeSource {
	if f.cacheEnabled {
		if rec, ok := f.readCache(ctx, url); ok {
			return recordToSource(rec)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, f.urlTimeout)
	defer cancel()

	source := f.fetchAndNormalize(callCtx, url)

	if f.cacheEnabled && source.Error == "" {
		f.writeCache(ctx, url, source)
	}
	return source
}

func (f *Fetcher) readCache(ctx context.Context, url string) (cacheRecord, bool) {
	key := CacheKey(url)
	data, modTime, ok, err := f.cache.Get(ctx, key)
	if err != nil || !ok {
		return cacheRecord{}, false
	}
	var rec cacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		common.PipelineWarn(ctx, types.StageFetchKnowledge, "cache_corrupt", map[string]interface{}{"url": url})
		return cacheRecord{}, false
	}
	if time.Since(modTime) > f.cacheTTL {
		return cacheRecord{}, false
	}
	return rec, true
}

func (f *Fetcher) writeCache(ctx context.Context, url string, source types.KnowledgeSource) {
	rec := cacheRecord{
		FetchedAt: source.FetchedAt,
		URL:       source.URL,
		Title:     source.Title,
		MediaType: source.MediaType,
		Content:   source.Content,
		Error:     source.Error,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := f.cache.Put(ctx, CacheKey(url), data); err != nil {
		logger.GetLogger(ctx).Warnf("knowledge cache write failed for %s: %v", url, err)
	}
}

func recordToSource(rec cacheRecord) types.KnowledgeSource {
	return types.KnowledgeSource{
		URL:       rec.URL,
		Title:     rec.Title,
		Content:   rec.Content,
		MediaType: rec.MediaType,
		Error:     rec.Error,
		FetchedAt: rec.FetchedAt,
	}
}

func (f *Fetcher) fetchAndNormalize(ctx context.Context, url string) types.KnowledgeSource {
	status, headers, body, err := f.http.Get(ctx, url, f.urlTimeout)
	now := time.Now()
	if err != nil {
		return types.KnowledgeSource{URL: url, Error: fmt.Sprintf("fetch failed: %v", err), FetchedAt: now}
	}
	if status < 200 || status >= 300 {
		return types.KnowledgeSource{URL: url, Error: fmt.Sprintf("non-2xx status: %d", status), FetchedAt: now}
	}

	contentType := headers.Get("Content-Type")
	title, text, mediaType, err := decodeBody(contentType, body)
	if err != nil {
		return types.KnowledgeSource{URL: url, Error: fmt.Sprintf("decode failed: %v", err), FetchedAt: now}
	}

	text = normalizeWhitespace(text)
	text = truncateAtWordBoundary(text, f.maxContentLength)

	return types.KnowledgeSource{
		URL:       url,
		Title:     title,
		Content:   text,
		MediaType: mediaType,
		FetchedAt: now,
	}
}

func decodeBody(contentType string, body []byte) (title, text string, mediaType types.MediaType, err error) {
	switch {
	case strings.Contains(contentType, "text/html"):
		title, text, err = stripHTMLTags(string(body))
		return title, text, types.MediaWeb, err
	case strings.Contains(contentType, "application/pdf"):
		text, err = extractPDFText(body)
		return "", text, types.MediaPDF, err
	default:
		return "", string(body), types.MediaText, nil
	}
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// truncateAtWordBoundary truncates s to at most maxLen bytes, cutting back
// to the last space inside that prefix. A prefix with no space in it is cut
// at exactly maxLen bytes, splitting the word there.
func truncateAtWordBoundary(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
