package pipeline

import (
	"math"
	"regexp"
	"strings"
)

// cosineSimilarity returns the cosine similarity of two equal-dimension
// vectors, or 0 if either is the zero vector.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases and splits text into a deterministic, order-preserving
// slice of word tokens — the shared basis for Jaccard similarity used by
// the segmenter's non-embedding fallback, the source binder, and the
// excerpt selector's lexical fallback.
func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func tokenSet(text string) map[string]bool {
	toks := tokenize(text)
	set := make(map[string]bool, len(toks))
	for _, t := range toks {
		set[t] = true
	}
	return set
}

// jaccardSimilarity returns |A∩B| / |A∪B| over lowercased token sets, or 0
// if either text produces an empty token set.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// overlappingTokenCount returns the number of distinct tokens common to
// both texts' token sets.
func overlappingTokenCount(a, b string) int {
	setA := tokenSet(a)
	setB := tokenSet(b)
	count := 0
	for t := range setA {
		if setB[t] {
			count++
		}
	}
	return count
}
