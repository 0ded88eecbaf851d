package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentenceRef(id int, score float64) SourceRef {
	return SourceRef{Kind: SourceTranscript, SentenceID: &id, MatchScore: score}
}

func knowledgeRef(score float64) SourceRef {
	return SourceRef{Kind: SourceKnowledge, URL: "https://docs.example", MatchScore: score}
}

func validDraft() StepDraft {
	words := strings.Repeat("deployment pipeline configuration detail ", 15)
	return StepDraft{
		Title:    "Configure the deployment",
		Overview: "Set up the deployment pipeline.",
		Content:  strings.TrimSpace(words),
		Actions: []string{
			"Configure the cluster endpoint",
			"Set the target namespace",
			"Verify the connection",
		},
	}
}

func TestValidateStepAccepts(t *testing.T) {
	sources := []SourceRef{sentenceRef(0, 0.6), sentenceRef(1, 0.5), knowledgeRef(0.4)}
	step := validateStep(validDraft(), sources, testConfig())
	assert.True(t, step.Accepted)
	assert.Empty(t, step.RejectionReasons)
	assert.GreaterOrEqual(t, step.Confidence, 0.40)
}

func TestComputeConfidenceExact(t *testing.T) {
	// Base: 0.5*0.6 + 0.3*0.5 + 0.2*0.4 = 0.53.
	// Multipliers: 3 sources -> 1.15; mixed kinds -> 1.12; one score
	// above 0.5 -> 1.10. 0.53 * 1.15 * 1.12 * 1.10 = 0.7508...
	sources := []SourceRef{sentenceRef(0, 0.6), sentenceRef(1, 0.5), knowledgeRef(0.4)}
	got := computeConfidence(sources)
	assert.InDelta(t, 0.53*1.15*1.12*1.10, got, 1e-9)
}

func TestComputeConfidenceCountMultipliers(t *testing.T) {
	tests := []struct {
		n          int
		multiplier float64
	}{
		{1, 1.00},
		{2, 1.08},
		{3, 1.15},
		{4, 1.25},
		{6, 1.25},
	}
	for _, tt := range tests {
		var sources []SourceRef
		for i := 0; i < tt.n; i++ {
			sources = append(sources, sentenceRef(i, 0.3))
		}
		base := 0.0
		for i, w := range []float64{0.5, 0.3, 0.2} {
			if i < tt.n {
				base += w * 0.3
			}
		}
		assert.InDelta(t, clip01(base*tt.multiplier), computeConfidence(sources), 1e-9, "n=%d", tt.n)
	}
}

func TestComputeConfidenceClipsOnceAtEnd(t *testing.T) {
	sources := []SourceRef{
		sentenceRef(0, 0.95), sentenceRef(1, 0.95), sentenceRef(2, 0.95), knowledgeRef(0.95),
	}
	got := computeConfidence(sources)
	assert.Equal(t, 1.0, got)
}

func TestQualityLevels(t *testing.T) {
	tests := []struct {
		confidence float64
		want       QualityLevel
	}{
		{0.80, QualityVeryHigh},
		{0.75, QualityVeryHigh},
		{0.60, QualityHigh},
		{0.55, QualityHigh},
		{0.40, QualityMedium},
		{0.35, QualityMedium},
		{0.25, QualityLow},
		{0.20, QualityLow},
		{0.10, QualityVeryLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, qualityLevel(tt.confidence), "confidence=%v", tt.confidence)
	}
}

func TestValidateStepRejectionReasons(t *testing.T) {
	strongSources := []SourceRef{sentenceRef(0, 0.6), sentenceRef(1, 0.5), knowledgeRef(0.4)}

	t.Run("too few actions", func(t *testing.T) {
		d := validDraft()
		d.Actions = d.Actions[:2]
		step := validateStep(d, strongSources, testConfig())
		assert.False(t, step.Accepted)
		assert.Contains(t, step.RejectionReasons, "action count out of range")
	})

	t.Run("too many actions", func(t *testing.T) {
		d := validDraft()
		d.Actions = []string{
			"Configure a", "Configure b", "Configure c", "Configure d",
			"Configure e", "Configure f", "Configure g",
		}
		step := validateStep(d, strongSources, testConfig())
		assert.False(t, step.Accepted)
		assert.Contains(t, step.RejectionReasons, "action count out of range")
	})

	t.Run("weak verb", func(t *testing.T) {
		d := validDraft()
		d.Actions[1] = "Learn about namespaces"
		step := validateStep(d, strongSources, testConfig())
		assert.False(t, step.Accepted)
		require.Len(t, step.RejectionReasons, 1)
		assert.Contains(t, step.RejectionReasons[0], "weak or missing verb")
	})

	t.Run("verb outside strong set", func(t *testing.T) {
		d := validDraft()
		d.Actions[0] = "Ponder the cluster endpoint"
		step := validateStep(d, strongSources, testConfig())
		assert.False(t, step.Accepted)
	})

	t.Run("short content", func(t *testing.T) {
		d := validDraft()
		d.Content = "Too short."
		step := validateStep(d, strongSources, testConfig())
		assert.False(t, step.Accepted)
		assert.Contains(t, step.RejectionReasons, "content too short")
	})

	t.Run("no transcript source", func(t *testing.T) {
		step := validateStep(validDraft(), []SourceRef{knowledgeRef(0.9), knowledgeRef(0.8), knowledgeRef(0.7)}, testConfig())
		assert.False(t, step.Accepted)
		assert.Contains(t, step.RejectionReasons, "missing transcript source")
	})

	t.Run("no sources at all", func(t *testing.T) {
		step := validateStep(validDraft(), nil, testConfig())
		assert.False(t, step.Accepted)
		assert.Contains(t, step.RejectionReasons, "missing transcript source")
		assert.Contains(t, step.RejectionReasons, "no sources")
		assert.Contains(t, step.RejectionReasons, "confidence below threshold")
	})

	t.Run("low confidence", func(t *testing.T) {
		step := validateStep(validDraft(), []SourceRef{sentenceRef(0, 0.2)}, testConfig())
		assert.False(t, step.Accepted)
		assert.Contains(t, step.RejectionReasons, "confidence below threshold")
	})
}

func TestActionVerbCaseInsensitive(t *testing.T) {
	d := validDraft()
	d.Actions = []string{"CONFIGURE the endpoint", "verify the output", "Set the flag"}
	sources := []SourceRef{sentenceRef(0, 0.6), sentenceRef(1, 0.5), knowledgeRef(0.4)}
	step := validateStep(d, sources, testConfig())
	assert.True(t, step.Accepted)
}

func TestTitleGerundCheck(t *testing.T) {
	assert.True(t, titleStartsWithActionOrGerund("Configure the cluster"))
	assert.True(t, titleStartsWithActionOrGerund("Configuring the cluster"))
	assert.False(t, titleStartsWithActionOrGerund("The cluster setup"))
	assert.False(t, titleStartsWithActionOrGerund(""))
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 8} {
		var sources []SourceRef
		for i := 0; i < n; i++ {
			sources = append(sources, sentenceRef(i, float64(i)/8.0))
		}
		c := computeConfidence(sources)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
}
