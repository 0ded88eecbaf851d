package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridocs/trainforge/internal/types"
)

func testConfig() *Config {
	return types.Default()
}

func TestComposePromptContents(t *testing.T) {
	cfg := testConfig()
	cfg.Tone = "Casual"
	cfg.Audience = "New Hires"
	chunk := TopicChunk{ID: 3, Text: "First you configure the ingress controller."}
	excerpts := []ScoredExcerpt{
		{Excerpt: Excerpt{SourceTitle: "Ingress Guide", SourceURL: "https://docs.example/ingress", Text: "ingress controllers route traffic"}, Score: 0.42},
	}

	prompt := composePrompt(chunk, excerpts, cfg, false)
	assert.Contains(t, prompt, chunk.Text)
	assert.Contains(t, prompt, "Ingress Guide")
	assert.Contains(t, prompt, "https://docs.example/ingress")
	assert.Contains(t, prompt, "0.42")
	assert.Contains(t, prompt, "Tone: Casual. Audience: New Hires.")
	assert.Contains(t, prompt, "TITLE, OVERVIEW, CONTENT, KEY ACTIONS")
	assert.NotContains(t, prompt, "could not be parsed")

	retry := composePrompt(chunk, excerpts, cfg, true)
	assert.Contains(t, retry, "could not be parsed")
}

func TestParseStepResponseCanonicalLabels(t *testing.T) {
	draft, ok := parseStepResponse(defaultStepText)
	require.True(t, ok)
	assert.Equal(t, "Configure the deployment target", draft.Title)
	assert.NotEmpty(t, draft.Overview)
	assert.NotEmpty(t, draft.Content)
	require.Len(t, draft.Actions, 4)
	assert.Equal(t, "Configure the cluster endpoint in the deployment file", draft.Actions[0])
}

func TestParseStepResponseLegacyLabels(t *testing.T) {
	text := `TITLE: Verify the rollout
SUMMARY: Check the release landed.
DETAILS: The rollout is verified by checking pod status and service health across the cluster nodes one at a time.
ACTIONS:
* Check the pod status
* Verify the service endpoints
* Confirm the rollout history`
	draft, ok := parseStepResponse(text)
	require.True(t, ok)
	assert.Equal(t, "Verify the rollout", draft.Title)
	assert.Equal(t, "Check the release landed.", draft.Overview)
	require.Len(t, draft.Actions, 3)
	assert.Equal(t, "Check the pod status", draft.Actions[0])
}

func TestParseStepResponseNumberedBullets(t *testing.T) {
	text := `TITLE: Deploy the service
CONTENT: Deployment happens in three careful moves that are each verified before the next one starts in order.
KEY ACTIONS:
1. Deploy the manifest
2) Verify the health check
3. Confirm the logs`
	draft, ok := parseStepResponse(text)
	require.True(t, ok)
	assert.Equal(t, []string{"Deploy the manifest", "Verify the health check", "Confirm the logs"}, draft.Actions)
}

func TestParseStepResponseUnlabeledLinesAttach(t *testing.T) {
	text := `TITLE: Configure logging
CONTENT: Logging needs a sink.
And the sink needs credentials configured first.
KEY ACTIONS:
- Configure the sink`
	draft, ok := parseStepResponse(text)
	require.True(t, ok)
	assert.Contains(t, draft.Content, "And the sink needs credentials")
}

func TestParseStepResponseFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"prose only", "Here is a step about configuring things in general terms."},
		{"missing actions", "TITLE: X\nCONTENT: enough words here for sure."},
		{"missing title", "CONTENT: body\nKEY ACTIONS:\n- Configure it"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseStepResponse(tt.text)
			assert.False(t, ok)
		})
	}
}

func TestGenerateRetriesOnceOnParseFailure(t *testing.T) {
	llm := &scriptedLLM{
		responses: []scriptedResponse{
			// The retry prompt contains the re-stated label instructions;
			// only that prompt gets a parseable answer.
			{promptContains: "could not be parsed", text: defaultStepText},
			{promptContains: "CHUNK", text: "garbled output with no labels"},
		},
	}
	gen := newStepGenerator(llm, testConfig())
	outcome := gen.generate(context.Background(), TopicChunk{ID: 1, Text: "Configure the thing."}, nil)
	require.NotNil(t, outcome.Draft)
	assert.Equal(t, 1, outcome.Draft.ChunkID)
	assert.Equal(t, 2, llm.callCount())
}

func TestGenerateParseFailureAfterRetry(t *testing.T) {
	llm := &scriptedLLM{build: func(string) string { return "still garbled" }}
	gen := newStepGenerator(llm, testConfig())
	outcome := gen.generate(context.Background(), TopicChunk{ID: 2, Text: "Configure the thing."}, nil)
	assert.Nil(t, outcome.Draft)
	assert.True(t, outcome.ParseFailed)
	assert.False(t, outcome.GenerationFailed)
	assert.Equal(t, 2, llm.callCount())
}

func TestGenerateServiceFailure(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("upstream unavailable")}
	gen := newStepGenerator(llm, testConfig())
	outcome := gen.generate(context.Background(), TopicChunk{ID: 5, Text: "Configure the thing."}, nil)
	assert.Nil(t, outcome.Draft)
	assert.True(t, outcome.GenerationFailed)
	assert.False(t, outcome.ParseFailed)
	assert.Contains(t, outcome.FailureDetail, "upstream unavailable")
}

func TestGenerateAccumulatesTokenUsage(t *testing.T) {
	llm := &scriptedLLM{build: func(string) string { return "garbled" }}
	gen := newStepGenerator(llm, testConfig())
	outcome := gen.generate(context.Background(), TopicChunk{ID: 1, Text: "Configure it."}, nil)
	// Two calls at 100/50 each.
	assert.Equal(t, 200, outcome.InputTokens)
	assert.Equal(t, 100, outcome.OutputTokens)
}
