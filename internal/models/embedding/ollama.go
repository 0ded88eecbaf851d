// Package embedding implements the pipeline's optional EmbeddingService
// against a local Ollama instance, with pooled batch embedding and a
// NaN-tolerant retry ladder.
package embedding

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/panjf2000/ants/v2"

	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/models/utils/ollama"
)

const defaultFallbackDimensions = 1024

// OllamaEmbedder implements pipeline.EmbeddingService against a local
// Ollama instance, with progressive-truncation retry on NaN-producing
// inputs. Embedding failures never fail a job, only the semantic path for
// the affected texts.
type OllamaEmbedder struct {
	service              *ollama.Service
	pool                 *ants.Pool
	modelName            string
	truncatePromptTokens int
	fallbackDimensions   int
	batchSize            int
}

// NewOllamaEmbedder constructs an OllamaEmbedder. pool bounds the
// concurrency of sub-batch embedding calls; a nil pool disables batching
// (requests are issued as one call per Embed invocation).
func NewOllamaEmbedder(service *ollama.Service, pool *ants.Pool, modelName string, truncatePromptTokens, fallbackDimensions int) *OllamaEmbedder {
	if modelName == "" {
		modelName = "nomic-embed-text"
	}
	if truncatePromptTokens == 0 {
		truncatePromptTokens = 511
	}
	if fallbackDimensions == 0 {
		fallbackDimensions = defaultFallbackDimensions
	}
	batchSize := 5
	if v := os.Getenv("BATCH_EMBED_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			batchSize = n
		}
	}
	return &OllamaEmbedder{
		service:              service,
		pool:                 pool,
		modelName:            modelName,
		truncatePromptTokens: truncatePromptTokens,
		fallbackDimensions:   fallbackDimensions,
		batchSize:            batchSize,
	}
}

// Embed implements pipeline.EmbeddingService. Texts are chunked into
// batchSize-sized groups and embedded concurrently (bounded by the
// embedder's pool), then reassembled in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = PreprocessTextForEmbedding(t)
	}
	texts = cleaned

	if e.pool == nil || len(texts) <= e.batchSize {
		return e.batchEmbedWithRetry(ctx, texts, 1.0)
	}

	results := make([][]float32, len(texts))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			embedded, err := e.batchEmbedWithRetry(ctx, texts[start:end], 1.0)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			copy(results[start:end], embedded)
		})
		if submitErr != nil {
			wg.Done()
			return nil, fmt.Errorf("submit embed batch: %w", submitErr)
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// batchEmbedWithRetry attempts embedding with progressive text truncation
// when Ollama reports NaN/Inf-producing inputs: 100% -> 70% -> 50% -> 30%
// -> first 512 characters -> zero-vector fallback. The final fallback
// never returns an error; a degraded vector beats a failed job.
func (e *OllamaEmbedder) batchEmbedWithRetry(ctx context.Context, texts []string, ratio float64) ([][]float32, error) {
	processedTexts := texts
	if ratio < 1.0 && ratio > 0.2 {
		processedTexts = make([]string, len(texts))
		for i, text := range texts {
			processedTexts[i] = TruncateTextWithRatio(text, ratio)
		}
		logger.GetLogger(ctx).Warnf("retrying embedding with %.0f%% text length", ratio*100)
	}

	req := &ollamaapi.EmbedRequest{
		Model:   e.modelName,
		Input:   processedTexts,
		Options: make(map[string]interface{}),
	}
	if e.truncatePromptTokens > 0 {
		req.Options["truncate"] = e.truncatePromptTokens
	}

	start := time.Now()
	resp, err := e.service.Embeddings(ctx, req)
	if err != nil {
		errMsg := err.Error()
		isNaNError := strings.Contains(errMsg, "NaN") ||
			strings.Contains(errMsg, "Inf") ||
			strings.Contains(errMsg, "invalid values")
		if !isNaNError {
			return nil, fmt.Errorf("embed texts: %w", err)
		}

		switch {
		case ratio >= 1.0:
			logger.GetLogger(ctx).Warnf("NaN error detected, retrying with 70%% text length")
			return e.batchEmbedWithRetry(ctx, texts, 0.7)
		case ratio > 0.6:
			logger.GetLogger(ctx).Warnf("NaN error persists, retrying with 50%% text length")
			return e.batchEmbedWithRetry(ctx, texts, 0.5)
		case ratio > 0.4:
			logger.GetLogger(ctx).Warnf("NaN error persists, retrying with 30%% text length")
			return e.batchEmbedWithRetry(ctx, texts, 0.3)
		case ratio > 0.2:
			logger.GetLogger(ctx).Warnf("NaN error persists, trying first 512 characters only")
			shortened := make([]string, len(texts))
			for i, text := range texts {
				if len(text) > 512 {
					shortened[i] = text[:512]
				} else {
					shortened[i] = text
				}
			}
			return e.batchEmbedWithRetry(ctx, shortened, 0.1)
		default:
			logger.GetLogger(ctx).Errorf("failed to embed texts after all retries, using zero vectors as fallback")
			fallback := make([][]float32, len(texts))
			for i := range fallback {
				fallback[i] = make([]float32, e.fallbackDimensions)
			}
			return fallback, nil
		}
	}

	logger.GetLogger(ctx).Debugf("embedding vector retrieval took: %v", time.Since(start))
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// GetModelName returns the configured model name.
func (e *OllamaEmbedder) GetModelName() string { return e.modelName }
