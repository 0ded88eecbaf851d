package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkOf(sentences []Sentence, ids ...int) TopicChunk {
	questions := 0
	for _, id := range ids {
		if sentences[id].IsQuestion {
			questions++
		}
	}
	return TopicChunk{SentenceIDs: ids, QADensity: float64(questions) / float64(len(ids))}
}

func instructionalSentences(n int) []Sentence {
	out := make([]Sentence, n)
	for i := range out {
		out[i] = Sentence{ID: i, Text: "You configure the component and verify the output here.", EmphasisScore: 0.4}
	}
	return out
}

func TestClassifyAdministrative(t *testing.T) {
	sentences := []Sentence{
		{ID: 0, Text: "Welcome everyone, thank you for joining today."},
		{ID: 1, Text: "Hello and goodbye for now."},
	}
	byID := map[int]Sentence{0: sentences[0], 1: sentences[1]}
	c := chunkOf(sentences, 0, 1)
	assert.Equal(t, ClassAdministrative, classify(c, byID, 0.5))
}

func TestClassifyAdministrativeNeedsNoActionVerbs(t *testing.T) {
	sentences := []Sentence{
		{ID: 0, Text: "Welcome everyone, thank you for joining."},
		{ID: 1, Text: "Now configure the cluster before we continue."},
	}
	byID := map[int]Sentence{0: sentences[0], 1: sentences[1]}
	c := chunkOf(sentences, 0, 1)
	assert.NotEqual(t, ClassAdministrative, classify(c, byID, 0.5))
}

func TestClassifyQARules(t *testing.T) {
	tests := []struct {
		name      string
		qaDensity float64
		size      int
		want      ChunkClassification
	}{
		{"clarification: dense questions, short chunk", 0.6, 4, ClassQAClarification},
		{"substantive: moderate questions", 0.3, 8, ClassQASubstantive},
		{"instructional: few questions", 0.1, 8, ClassInstructional},
		// Density at or above the threshold with >= 6 sentences falls
		// through the clarification rule and the substantive band.
		{"dense questions but long chunk", 0.6, 8, ClassInstructional},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentences := instructionalSentences(tt.size)
			byID := make(map[int]Sentence, len(sentences))
			ids := make([]int, tt.size)
			for i, s := range sentences {
				byID[s.ID] = s
				ids[i] = s.ID
			}
			c := TopicChunk{SentenceIDs: ids, QADensity: tt.qaDensity}
			assert.Equal(t, tt.want, classify(c, byID, 0.5))
		})
	}
}

func TestFilterRankDropsLowImportance(t *testing.T) {
	sentences := instructionalSentences(12)
	chunks := []TopicChunk{
		chunkOf(sentences, 0, 1, 2, 3, 4, 5),
		chunkOf(sentences, 6, 7, 8, 9, 10, 11),
	}
	survivors, err := filterRank(context.Background(), chunks, sentences, 0.15, 0.5)
	require.Nil(t, err)
	assert.NotEmpty(t, survivors)
	for _, c := range survivors {
		assert.GreaterOrEqual(t, c.Importance, 0.15)
		assert.LessOrEqual(t, c.Importance, 1.0)
	}
}

func TestFilterRankInsufficientContent(t *testing.T) {
	sentences := []Sentence{
		{ID: 0, Text: "Welcome everyone, thank you for joining."},
		{ID: 1, Text: "Hello again."},
	}
	chunks := []TopicChunk{chunkOf(sentences, 0, 1)}
	_, err := filterRank(context.Background(), chunks, sentences, 0.15, 0.5)
	require.NotNil(t, err)
	assert.Equal(t, KindInsufficientContent, err.Kind)
	assert.Contains(t, err.Message, "importance_threshold")
}

func TestImportanceWeights(t *testing.T) {
	sentences := instructionalSentences(6)
	byID := make(map[int]Sentence)
	ids := make([]int, 6)
	for i, s := range sentences {
		byID[s.ID] = s
		ids[i] = s.ID
	}
	c := TopicChunk{SentenceIDs: ids, QADensity: 0}

	// No timestamps: duration 0. Emphasis 0.4, actionability 1.0 (every
	// sentence has "configure"), single chunk position 1.0, QA penalty 1.0.
	got := importance(c, byID, 0, 0, 1)
	want := 0.25*0 + 0.25*0.4 + 0.25*1.0 + 0.15*1.0 + 0.10*1.0
	assert.InDelta(t, want, got, 1e-9)
}

func TestImportanceEarlierChunksFavored(t *testing.T) {
	sentences := instructionalSentences(12)
	byID := make(map[int]Sentence)
	for _, s := range sentences {
		byID[s.ID] = s
	}
	first := TopicChunk{SentenceIDs: []int{0, 1, 2, 3, 4, 5}}
	last := TopicChunk{SentenceIDs: []int{6, 7, 8, 9, 10, 11}}

	assert.Greater(t, importance(first, byID, 0, 0, 2), importance(last, byID, 0, 1, 2))
}
