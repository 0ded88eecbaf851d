package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)

	// Degenerate inputs score zero rather than NaN.
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, jaccardSimilarity("configure the cluster", "configure the cluster"))
	assert.Equal(t, 0.0, jaccardSimilarity("alpha beta", "gamma delta"))
	assert.Equal(t, 0.0, jaccardSimilarity("", "anything"))

	// {a, b} vs {b, c}: intersection 1, union 3.
	assert.InDelta(t, 1.0/3.0, jaccardSimilarity("alpha beta", "beta gamma"), 1e-9)

	// Case and punctuation insensitive.
	assert.Equal(t, 1.0, jaccardSimilarity("Configure, the Cluster!", "configure the cluster"))
}

func TestTokenizeDeterministic(t *testing.T) {
	assert.Equal(t, []string{"configure", "the", "cluster", "v2"}, tokenize("Configure the cluster (v2)."))
	assert.Empty(t, tokenize("!!!"))
}

func TestOverlappingTokenCount(t *testing.T) {
	assert.Equal(t, 2, overlappingTokenCount("alpha beta gamma", "beta gamma delta"))
	assert.Equal(t, 0, overlappingTokenCount("alpha", "beta"))
}
