package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridocs/trainforge/internal/types"
)

// echoLLM builds a step whose content restates the chunk verbatim, so the
// lexical source binder always finds strong transcript matches.
func echoLLM() *scriptedLLM {
	return &scriptedLLM{build: func(prompt string) string {
		chunk := prompt
		if i := strings.Index(prompt, "CHUNK:\n"); i >= 0 {
			chunk = prompt[i+len("CHUNK:\n"):]
		}
		if i := strings.Index(chunk, "\n\n"); i >= 0 {
			chunk = chunk[:i]
		}
		return "TITLE: Configure the pipeline component\n" +
			"OVERVIEW: Set up and verify the component described here.\n" +
			"CONTENT: " + chunk + "\n" +
			"KEY ACTIONS:\n" +
			"- Configure the pipeline component\n" +
			"- Verify the deployment output\n" +
			"- Check the component settings"
	}}
}

// runConfig disables embeddings and relaxes the confidence threshold:
// without the semantic term, lexical match scores top out well below what
// hybrid scoring reaches.
func runConfig() *Config {
	cfg := types.Default()
	cfg.EmbeddingEnabled = false
	cfg.MinConfidenceThreshold = 0.25
	cfg.TargetSteps = 8
	return cfg
}

func TestRunHappyPath(t *testing.T) {
	cfg := types.Default()
	cfg.EmbeddingEnabled = true
	p := New(echoLLM(), newHashEmbedder(), nil, cfg)
	sink := &recordingSink{}

	result, err := p.Run(context.Background(), Input{RawTranscriptText: instructionalTranscript(80)}, sink)
	require.Nil(t, err)
	require.NotEmpty(t, result.Steps)

	for _, step := range result.Steps {
		assert.True(t, step.Accepted)
		assert.GreaterOrEqual(t, len(step.Draft.Actions), 3)
		assert.LessOrEqual(t, len(step.Draft.Actions), 6)
		hasTranscript := false
		for _, src := range step.Sources {
			if src.Kind == SourceTranscript {
				hasTranscript = true
			}
		}
		assert.True(t, hasTranscript, "every accepted step needs a transcript source")
	}

	// Steps preserve chunk order.
	for i := 1; i < len(result.Steps); i++ {
		assert.Greater(t, result.Steps[i].Draft.ChunkID, result.Steps[i-1].Draft.ChunkID)
	}

	assert.GreaterOrEqual(t, result.Stats.AverageConfidence, 0.40)
	assert.Equal(t, 0.0, result.Stats.KnowledgeUsageRate, "no URLs were given")
	assert.Positive(t, result.Stats.InputTokens)

	fractions, _ := sink.snapshot()
	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1], "progress fraction regressed at %d", i)
	}
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestRunDeterministic(t *testing.T) {
	input := Input{RawTranscriptText: instructionalTranscript(60)}

	runOnce := func() *PipelineResult {
		p := New(echoLLM(), newHashEmbedder(), nil, func() *Config {
			cfg := types.Default()
			cfg.EmbeddingEnabled = true
			return cfg
		}())
		result, err := p.Run(context.Background(), input, nil)
		require.Nil(t, err)
		// Wall-clock durations differ between runs by nature.
		result.Stats.StageDurations = nil
		return result
	}

	assert.Equal(t, runOnce(), runOnce())
}

func TestRunInvalidInput(t *testing.T) {
	p := New(echoLLM(), nil, nil, runConfig())
	_, err := p.Run(context.Background(), Input{RawTranscriptText: "   "}, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindInvalidInput, err.Kind)
}

func TestRunSingleGreetingSentence(t *testing.T) {
	p := New(echoLLM(), nil, nil, runConfig())
	_, err := p.Run(context.Background(), Input{RawTranscriptText: "Hello and welcome everyone."}, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindInsufficientContent, err.Kind)
}

func TestRunWeakLLMOutputFailsWithNoValidSteps(t *testing.T) {
	weak := &scriptedLLM{build: func(string) string {
		return "TITLE: About components\n" +
			"CONTENT: A short note.\n" +
			"KEY ACTIONS:\n- Learn about components\n- Review the settings"
	}}
	p := New(weak, nil, nil, runConfig())
	_, err := p.Run(context.Background(), Input{RawTranscriptText: instructionalTranscript(40)}, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindNoValidSteps, err.Kind)
	assert.Contains(t, err.Message, "action count out of range")
}

func TestRunAllGenerationsFail(t *testing.T) {
	failing := &scriptedLLM{err: context.DeadlineExceeded}
	p := New(failing, nil, nil, runConfig())
	_, err := p.Run(context.Background(), Input{RawTranscriptText: instructionalTranscript(40)}, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindNoValidSteps, err.Kind)
	assert.Contains(t, err.Message, "generation failed")
}

func TestRunKnowledgeEnhancesConfidence(t *testing.T) {
	transcript := instructionalTranscript(60)
	knowledgeContent := strings.Repeat(
		"It is important to configure the pipeline component and verify the deployment output carefully. ", 30)
	fetcher := &staticFetcher{sources: []KnowledgeSource{
		{URL: "https://docs.example/capacity", Title: "Capacity Guide", Content: knowledgeContent, MediaType: MediaWeb},
	}}

	withKnowledge := New(echoLLM(), nil, fetcher, runConfig())
	resultWith, err := withKnowledge.Run(context.Background(), Input{
		RawTranscriptText: transcript,
		KnowledgeURLs:     []string{"https://docs.example/capacity"},
	}, nil)
	require.Nil(t, err)

	withoutKnowledge := New(echoLLM(), nil, nil, runConfig())
	resultWithout, err := withoutKnowledge.Run(context.Background(), Input{RawTranscriptText: transcript}, nil)
	require.Nil(t, err)

	assert.Greater(t, resultWith.Stats.KnowledgeUsageRate, 0.0)
	assert.GreaterOrEqual(t, resultWith.Stats.AverageConfidence, resultWithout.Stats.AverageConfidence)

	cited := false
	for _, step := range resultWith.Steps {
		for _, src := range step.Sources {
			if src.Kind == SourceKnowledge && src.URL == "https://docs.example/capacity" {
				cited = true
			}
		}
	}
	assert.True(t, cited, "expected at least one step to cite the knowledge source")
}

func TestRunFailedSourcesAreCarriedNotFatal(t *testing.T) {
	fetcher := &staticFetcher{sources: []KnowledgeSource{
		{URL: "https://broken.example", Error: "non-2xx status: 500"},
		{URL: "https://slow.example", Error: "fetch failed: context deadline exceeded"},
	}}
	p := New(echoLLM(), nil, fetcher, runConfig())
	result, err := p.Run(context.Background(), Input{
		RawTranscriptText: instructionalTranscript(40),
		KnowledgeURLs:     []string{"https://broken.example", "https://slow.example"},
	}, nil)
	require.Nil(t, err)
	require.Len(t, result.KnowledgeSources, 2)
	assert.NotEmpty(t, result.KnowledgeSources[0].Error)
	assert.NotEmpty(t, result.KnowledgeSources[1].Error)
	assert.NotEmpty(t, result.Steps)
}

func TestRunCancellation(t *testing.T) {
	llm := echoLLM()
	llm.delay = 200 * time.Millisecond

	cfg := runConfig()
	cfg.MaxConcurrentGenerations = 1
	p := New(llm, nil, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := p.Run(ctx, Input{RawTranscriptText: instructionalTranscript(80)}, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindCancelled, err.Kind)
	assert.Nil(t, result, "no partial result on cancellation")
	assert.Less(t, time.Since(start), time.Second, "cancellation must take effect promptly")
}

func TestRunJobTimeout(t *testing.T) {
	llm := echoLLM()
	llm.delay = 400 * time.Millisecond

	cfg := runConfig()
	cfg.JobTimeoutSeconds = 1
	cfg.MaxConcurrentGenerations = 1
	p := New(llm, nil, nil, cfg)

	result, err := p.Run(context.Background(), Input{RawTranscriptText: instructionalTranscript(80)}, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindJobTimeout, err.Kind)
	assert.Nil(t, result)
}

func TestRunEmbeddingFailureFallsBackToLexical(t *testing.T) {
	embedder := newHashEmbedder()
	embedder.err = assert.AnError

	cfg := types.Default()
	cfg.EmbeddingEnabled = true
	cfg.MinConfidenceThreshold = 0.25
	p := New(echoLLM(), embedder, nil, cfg)

	result, err := p.Run(context.Background(), Input{RawTranscriptText: instructionalTranscript(60)}, nil)
	require.Nil(t, err)
	assert.NotEmpty(t, result.Steps)
}
