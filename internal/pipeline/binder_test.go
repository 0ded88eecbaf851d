package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindTestDraft() StepDraft {
	return StepDraft{
		ChunkID:  0,
		Title:    "Configure the storage cluster",
		Overview: "Set up the storage cluster capacity.",
		Content:  "You configure the storage cluster capacity planner and verify the allocation headroom before rollout.",
		Actions:  []string{"Configure the capacity planner", "Verify the allocation headroom"},
	}
}

func TestBindSourcesTranscriptMatching(t *testing.T) {
	sentences := []Sentence{
		{ID: 0, Text: "Today we configure the storage cluster capacity planner together."},
		{ID: 1, Text: "Lunch options include sandwiches and soup."},
		{ID: 2, Text: "Then we verify the allocation headroom before rollout."},
	}

	refs := bindSources(bindTestDraft(), sentences, nil, nil, 0.5, 0.5, nil)
	require.NotEmpty(t, refs)

	var boundIDs []int
	for _, r := range refs {
		require.Equal(t, SourceTranscript, r.Kind)
		require.NotNil(t, r.SentenceID)
		boundIDs = append(boundIDs, *r.SentenceID)
		assert.GreaterOrEqual(t, r.MatchScore, 0.15)
	}
	assert.Contains(t, boundIDs, 0)
	assert.Contains(t, boundIDs, 2)
	assert.NotContains(t, boundIDs, 1, "unrelated sentence must not bind")
}

func TestBindSourcesRequiresTokenOverlap(t *testing.T) {
	sentences := []Sentence{
		{ID: 0, Text: "Completely unrelated gardening topic about tulips."},
	}
	refs := bindSources(bindTestDraft(), sentences, nil, nil, 0.5, 0.5, nil)
	assert.Empty(t, refs)
}

func TestBindSourcesCapsTranscriptRefs(t *testing.T) {
	var sentences []Sentence
	for i := 0; i < 10; i++ {
		sentences = append(sentences, Sentence{ID: i, Text: "We configure the storage cluster capacity planner and verify the allocation headroom."})
	}
	refs := bindSources(bindTestDraft(), sentences, nil, nil, 0.5, 0.5, nil)
	count := 0
	for _, r := range refs {
		if r.Kind == SourceTranscript {
			count++
		}
	}
	assert.LessOrEqual(t, count, 5)
}

func TestBindSourcesKnowledgeExcerpts(t *testing.T) {
	sentences := []Sentence{
		{ID: 0, Text: "We configure the storage cluster capacity planner."},
	}
	used := []ScoredExcerpt{
		{Excerpt: Excerpt{SourceURL: "https://docs.example/capacity", Text: "capacity planner allocation headroom"}, Score: 0.61},
		{Excerpt: Excerpt{SourceURL: "https://docs.example/other", Text: "entirely disjoint pottery glazing techniques"}, Score: 0.55},
	}

	refs := bindSources(bindTestDraft(), sentences, nil, nil, 0.5, 0.5, used)

	var knowledge []SourceRef
	for _, r := range refs {
		if r.Kind == SourceKnowledge {
			knowledge = append(knowledge, r)
		}
	}
	require.Len(t, knowledge, 1)
	assert.Equal(t, "https://docs.example/capacity", knowledge[0].URL)
	assert.Equal(t, 0.61, knowledge[0].MatchScore)
}

func TestBindSourcesSemanticContribution(t *testing.T) {
	sentences := []Sentence{
		{ID: 0, Text: "We configure the storage cluster capacity planner and verify headroom."},
	}
	embedder := newHashEmbedder()
	vecs, err := embedder.Embed(context.Background(), []string{sentences[0].Text, "step text"})
	require.NoError(t, err)
	sentenceEmbeddings := map[int][]float32{0: vecs[0]}

	// With identical embeddings the semantic term is 1.0; the combined
	// score must exceed the lexical-only score.
	lexOnly := bindSources(bindTestDraft(), sentences, nil, nil, 0.5, 0.5, nil)
	hybrid := bindSources(bindTestDraft(), sentences, sentenceEmbeddings, vecs[0], 0.5, 0.5, nil)
	require.NotEmpty(t, lexOnly)
	require.NotEmpty(t, hybrid)
	assert.Greater(t, hybrid[0].MatchScore, lexOnly[0].MatchScore)
}
