package pipeline

import (
	"sort"
	"strings"
)

const (
	binderMinOverlapTokens  = 3
	binderMinScore          = 0.15
	binderTopTranscriptRefs = 5
	binderExcerptOverlapMin = 0.30
)

type scoredSentenceRef struct {
	sentenceID int
	score      float64
}

// bindSources attaches provenance to a draft: hybrid lexical+semantic
// transcript binding plus excerpt-usage detection.
func bindSources(draft StepDraft, sentences []Sentence, sentenceEmbeddings map[int][]float32, stepEmbedding []float32, semanticWeight, wordWeight float64, excerptsUsed []ScoredExcerpt) []SourceRef {
	stepText := draft.Title + " " + draft.Overview + " " + draft.Content + " " + strings.Join(draft.Actions, " ")

	var candidates []scoredSentenceRef
	for _, s := range sentences {
		overlap := overlappingTokenCount(s.Text, stepText)
		if overlap < binderMinOverlapTokens {
			continue
		}
		lexScore := jaccardSimilarity(s.Text, stepText)
		semScore := 0.0
		if sentenceEmbeddings != nil && stepEmbedding != nil {
			if vec, ok := sentenceEmbeddings[s.ID]; ok {
				semScore = cosineSimilarity(vec, stepEmbedding)
			}
		}
		score := wordWeight*lexScore + semanticWeight*semScore
		if score < binderMinScore {
			continue
		}
		candidates = append(candidates, scoredSentenceRef{sentenceID: s.ID, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > binderTopTranscriptRefs {
		candidates = candidates[:binderTopTranscriptRefs]
	}

	byID := make(map[int]Sentence, len(sentences))
	for _, s := range sentences {
		byID[s.ID] = s
	}

	var refs []SourceRef
	for _, c := range candidates {
		id := c.sentenceID
		refs = append(refs, SourceRef{
			Kind:        SourceTranscript,
			ExcerptText: byID[id].Text,
			SentenceID:  &id,
			MatchScore:  c.score,
		})
	}

	lowerContent := strings.ToLower(stepText)
	for _, e := range excerptsUsed {
		textLower := strings.ToLower(e.Excerpt.Text)
		usedBySubstring := strings.Contains(lowerContent, textLower)
		usedByOverlap := overlapRatio(e.Excerpt.Text, stepText) >= binderExcerptOverlapMin
		if !usedBySubstring && !usedByOverlap {
			continue
		}
		refs = append(refs, SourceRef{
			Kind:        SourceKnowledge,
			ExcerptText: e.Excerpt.Text,
			URL:         e.Excerpt.SourceURL,
			MatchScore:  e.Score,
		})
	}

	return refs
}

func overlapRatio(a, b string) float64 {
	setA := tokenSet(a)
	if len(setA) == 0 {
		return 0
	}
	setB := tokenSet(b)
	overlap := 0
	for t := range setA {
		if setB[t] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(setA))
}
