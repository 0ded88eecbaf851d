package pipeline

import (
	"sort"
	"strings"
)

const (
	sourceWeightFirst  = 0.50
	sourceWeightSecond = 0.30
	sourceWeightThird  = 0.20

	multiplierFourPlusSources = 1.25
	multiplierThreeSources    = 1.15
	multiplierTwoSources      = 1.08
	multiplierOneSource       = 1.00
	multiplierMixedKinds      = 1.12
	multiplierHighMatch       = 1.10
	highMatchThreshold        = 0.50
)

// validateStep computes multiplicative confidence with a single clip at
// the end, derives the quality level, and applies the six hard acceptance
// gates.
func validateStep(draft StepDraft, sources []SourceRef, cfg *Config) ValidatedStep {
	confidence := computeConfidence(sources)

	var reasons []string
	if !(cfg.MinActions <= len(draft.Actions) && len(draft.Actions) <= cfg.MaxActions) {
		reasons = append(reasons, "action count out of range")
	}
	if weak, bad := firstInvalidActionVerb(draft.Actions); bad {
		reasons = append(reasons, "weak or missing verb in action: "+weak)
	}
	if wordCount(draft.Content) < cfg.MinContentWords {
		reasons = append(reasons, "content too short")
	}
	if !hasSourceKind(sources, SourceTranscript) {
		reasons = append(reasons, "missing transcript source")
	}
	if len(sources) == 0 {
		reasons = append(reasons, "no sources")
	}
	if confidence < cfg.MinConfidenceThreshold {
		reasons = append(reasons, "confidence below threshold")
	}

	step := ValidatedStep{
		Draft:            draft,
		Sources:          sources,
		Confidence:       confidence,
		QualityLevel:     qualityLevel(confidence),
		Accepted:         len(reasons) == 0,
		RejectionReasons: reasons,
	}
	return step
}

func computeConfidence(sources []SourceRef) float64 {
	scores := topNScores(sources, 3)
	base := 0.0
	weights := []float64{sourceWeightFirst, sourceWeightSecond, sourceWeightThird}
	for i, w := range weights {
		if i < len(scores) {
			base += w * scores[i]
		}
	}

	multiplier := 1.0
	switch {
	case len(sources) >= 4:
		multiplier *= multiplierFourPlusSources
	case len(sources) == 3:
		multiplier *= multiplierThreeSources
	case len(sources) == 2:
		multiplier *= multiplierTwoSources
	default:
		multiplier *= multiplierOneSource
	}
	if hasSourceKind(sources, SourceTranscript) && hasSourceKind(sources, SourceKnowledge) {
		multiplier *= multiplierMixedKinds
	}
	for _, s := range sources {
		if s.MatchScore > highMatchThreshold {
			multiplier *= multiplierHighMatch
			break
		}
	}

	return clip01(base * multiplier)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func topNScores(sources []SourceRef, n int) []float64 {
	scores := make([]float64, len(sources))
	for i, s := range sources {
		scores[i] = s.MatchScore
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	if len(scores) > n {
		scores = scores[:n]
	}
	return scores
}

func hasSourceKind(sources []SourceRef, kind SourceKind) bool {
	for _, s := range sources {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func qualityLevel(confidence float64) QualityLevel {
	switch {
	case confidence >= 0.75:
		return QualityVeryHigh
	case confidence >= 0.55:
		return QualityHigh
	case confidence >= 0.35:
		return QualityMedium
	case confidence >= 0.20:
		return QualityLow
	default:
		return QualityVeryLow
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// firstInvalidActionVerb returns the first action whose leading verb is
// not in the strong set, or is in the weak set, plus true if one exists.
func firstInvalidActionVerb(actions []string) (string, bool) {
	for _, a := range actions {
		verb := leadingVerb(a)
		if verb == "" || weakVerbs[verb] || !strongVerbs[verb] {
			return a, true
		}
	}
	return "", false
}

func leadingVerb(action string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(action)))
	if len(words) == 0 {
		return ""
	}
	return strings.Trim(words[0], ".,!?;:")
}

// titleStartsWithActionOrGerund emits a warning (not a rejection) if the
// step title does not begin with an action verb or a gerund.
func titleStartsWithActionOrGerund(title string) bool {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(title)))
	if len(words) == 0 {
		return false
	}
	first := strings.Trim(words[0], ".,!?;:")
	if strongVerbs[first] {
		return true
	}
	return strings.HasSuffix(first, "ing")
}
