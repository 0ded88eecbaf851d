// Package pipeline implements the nine-stage transcript-to-training-document
// processor. It is a plain Go library: Run is the single
// synchronous entry point, and every external collaborator is an explicit
// constructor-injected interface, never a package-level singleton.
package pipeline

import (
	"context"
	"time"
)

// LLMService is the pipeline's synchronous LLM collaborator.
// Implementations must be safe for concurrent use: the step generator may
// call Generate from up to Config.MaxConcurrentGenerations goroutines at
// once.
type LLMService interface {
	Generate(ctx context.Context, prompt string, opts LLMOptions) (LLMResult, error)
}

// LLMOptions carries the fixed step-generation call parameters
// (temperature 0.2, top_p 0.85, max_tokens 1000) plus the caller-supplied
// timeout.
type LLMOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
}

// LLMResult is the LLM collaborator's response.
type LLMResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// EmbeddingService is the pipeline's optional embedding collaborator. A
// nil EmbeddingService, or one whose Embed calls fail, causes the
// segmenter and excerpt selector to fall back to their lexical paths.
type EmbeddingService interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ProgressSink receives non-blocking progress notifications at stage
// transitions and per-chunk generation completions. The
// pipeline never awaits a ProgressSink call.
type ProgressSink interface {
	OnProgress(descriptor StageDescriptor, fraction float64)
}

// NoopProgressSink discards all progress notifications.
type NoopProgressSink struct{}

func (NoopProgressSink) OnProgress(StageDescriptor, float64) {}
