package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/veridocs/trainforge/internal/common"
)

const (
	timestampGapBoundarySeconds = 90.0
	participantReentrySpan      = 2
	semanticDriftDropBelow      = 0.35
	semanticDriftPriorMeanAtLeast = 0.50
	chunkMinSentences           = 6
	chunkMaxSentences           = 12
)

// chunkRange is the [min, target, max] chunk-count window the caller
// wants the segmentation to land in.
type chunkRange struct {
	Min    int
	Target int
	Max    int
}

// segmenter groups sentences into TopicChunks using four boundary
// signals: timestamp gaps, speaker re-entry, explicit transition phrases,
// and semantic drift between adjacent sentences.
type segmenter struct {
	embedder EmbeddingService
	enabled  bool
}

func newSegmenter(embedder EmbeddingService, embeddingEnabled bool) *segmenter {
	return &segmenter{embedder: embedder, enabled: embeddingEnabled && embedder != nil}
}

func (s *segmenter) segment(ctx context.Context, sentences []Sentence, want chunkRange) ([]TopicChunk, *Error) {
	if len(sentences) == 0 {
		return nil, NewError(KindInvalidInput, "no sentences to segment", nil)
	}

	embeddings, embErr := s.embedSentences(ctx, sentences)
	if embErr != nil {
		common.PipelineWarn(ctx, StageSegment, "embedding_unavailable", map[string]interface{}{"error": embErr.Error()})
		embeddings = nil
	}

	boundaries := s.detectBoundaries(sentences, embeddings)
	chunks := buildChunks(sentences, boundaries)
	chunks = s.rebalanceSize(chunks, sentences, embeddings, chunkMinSentences, chunkMaxSentences)
	chunks = s.rebalanceCount(chunks, sentences, embeddings, want)
	sortChunksBySentenceOrder(chunks)

	for i := range chunks {
		chunks[i].ID = i
		chunks[i].Text = joinSentenceText(sentences, chunks[i].SentenceIDs)
		chunks[i].QADensity = qaDensity(sentences, chunks[i].SentenceIDs)
	}
	return chunks, nil
}

func (s *segmenter) embedSentences(ctx context.Context, sentences []Sentence) ([][]float32, error) {
	if !s.enabled {
		return nil, nil
	}
	texts := make([]string, len(sentences))
	for i, sent := range sentences {
		texts[i] = sent.Text
	}
	return s.embedder.Embed(ctx, texts)
}

// detectBoundaries returns the set of sentence indices i such that a
// boundary falls immediately after sentence i (i.e. sentence i+1 starts a
// new chunk).
func (s *segmenter) detectBoundaries(sentences []Sentence, embeddings [][]float32) map[int]bool {
	boundaries := make(map[int]bool)

	participantStreak := 0
	var runningSim []float64

	for i := 0; i < len(sentences)-1; i++ {
		cur, next := sentences[i], sentences[i+1]

		// Signal 1: timestamp gap.
		if cur.TimestampSeconds != nil && next.TimestampSeconds != nil {
			if *next.TimestampSeconds-*cur.TimestampSeconds >= timestampGapBoundarySeconds {
				boundaries[i] = true
			}
		}

		// Signal 2: speaker re-entry.
		if cur.SpeakerRole == SpeakerParticipant {
			participantStreak++
		}
		if cur.SpeakerRole == SpeakerParticipant && next.SpeakerRole == SpeakerInstructor &&
			participantStreak >= participantReentrySpan {
			boundaries[i] = true
			participantStreak = 0
		}
		if cur.SpeakerRole != SpeakerParticipant {
			participantStreak = 0
		}

		// Signal 3: explicit transition.
		if next.IsTransition {
			boundaries[i] = true
		}

		// Signal 4: semantic drift.
		if embeddings != nil {
			sim := cosineSimilarity(embeddings[i], embeddings[i+1])
			priorMean := mean(runningSim)
			if sim < semanticDriftDropBelow && priorMean >= semanticDriftPriorMeanAtLeast {
				boundaries[i] = true
			}
			runningSim = append(runningSim, sim)
		}
	}
	return boundaries
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func buildChunks(sentences []Sentence, boundaries map[int]bool) []TopicChunk {
	var chunks []TopicChunk
	start := 0
	for i := 0; i < len(sentences); i++ {
		if boundaries[i] || i == len(sentences)-1 {
			ids := make([]int, 0, i-start+1)
			for j := start; j <= i; j++ {
				ids = append(ids, sentences[j].ID)
			}
			chunks = append(chunks, TopicChunk{SentenceIDs: ids})
			start = i + 1
		}
	}
	return chunks
}

// adjacentSimilarity scores how related sentence i and i+1 are, using
// embeddings when available and falling back to Jaccard token overlap
// otherwise, so segmentation degrades gracefully without the embedding
// backend.
func adjacentSimilarity(sentences []Sentence, embeddings [][]float32, i, j int) float64 {
	if embeddings != nil {
		return cosineSimilarity(embeddings[i], embeddings[j])
	}
	return jaccardSimilarity(sentences[i].Text, sentences[j].Text)
}

// rebalanceSize enforces the preferred 6-12 sentence chunk size by
// splitting oversize chunks at their weakest internal similarity and
// merging undersize chunks into their most similar neighbor.
func (s *segmenter) rebalanceSize(chunks []TopicChunk, sentences []Sentence, embeddings [][]float32, minSize, maxSize int) []TopicChunk {
	idIndex := sentenceIDIndex(sentences)

	changed := true
	for changed {
		changed = false

		for i := 0; i < len(chunks); i++ {
			if len(chunks[i].SentenceIDs) > maxSize {
				left, right := splitAtWeakestLink(chunks[i], sentences, embeddings, idIndex, minSize)
				chunks = replaceAt(chunks, i, left, right)
				changed = true
				break
			}
		}
		if changed {
			continue
		}

		for i := 0; i < len(chunks); i++ {
			if len(chunks[i].SentenceIDs) < minSize && len(chunks) > 1 {
				neighbor := bestMergeNeighbor(chunks, i, sentences, embeddings, idIndex)
				chunks = mergeAt(chunks, i, neighbor)
				changed = true
				break
			}
		}
	}
	return chunks
}

func sentenceIDIndex(sentences []Sentence) map[int]int {
	idx := make(map[int]int, len(sentences))
	for i, s := range sentences {
		idx[s.ID] = i
	}
	return idx
}

// splitAtWeakestLink cuts chunk at its lowest adjacent similarity, only
// at cut points that leave at least minPart sentences on each side (or
// anywhere, when the chunk is too short for that).
func splitAtWeakestLink(chunk TopicChunk, sentences []Sentence, embeddings [][]float32, idIndex map[int]int, minPart int) (TopicChunk, TopicChunk) {
	ids := chunk.SentenceIDs
	if minPart < 1 || 2*minPart > len(ids) {
		minPart = 1
	}
	weakestPos := len(ids) / 2
	weakestScore := 2.0
	for pos := minPart; pos <= len(ids)-minPart; pos++ {
		a := idIndex[ids[pos-1]]
		b := idIndex[ids[pos]]
		score := adjacentSimilarity(sentences, embeddings, a, b)
		if score < weakestScore {
			weakestScore = score
			weakestPos = pos
		}
	}
	return TopicChunk{SentenceIDs: append([]int(nil), ids[:weakestPos]...)},
		TopicChunk{SentenceIDs: append([]int(nil), ids[weakestPos:]...)}
}

func replaceAt(chunks []TopicChunk, i int, left, right TopicChunk) []TopicChunk {
	out := make([]TopicChunk, 0, len(chunks)+1)
	out = append(out, chunks[:i]...)
	out = append(out, left, right)
	out = append(out, chunks[i+1:]...)
	return out
}

func bestMergeNeighbor(chunks []TopicChunk, i int, sentences []Sentence, embeddings [][]float32, idIndex map[int]int) int {
	if i == 0 {
		return 1
	}
	if i == len(chunks)-1 {
		return i - 1
	}
	leftScore := boundarySimilarity(chunks[i-1], chunks[i], sentences, embeddings, idIndex)
	rightScore := boundarySimilarity(chunks[i], chunks[i+1], sentences, embeddings, idIndex)
	if leftScore >= rightScore {
		return i - 1
	}
	return i + 1
}

func boundarySimilarity(a, b TopicChunk, sentences []Sentence, embeddings [][]float32, idIndex map[int]int) float64 {
	lastA := idIndex[a.SentenceIDs[len(a.SentenceIDs)-1]]
	firstB := idIndex[b.SentenceIDs[0]]
	return adjacentSimilarity(sentences, embeddings, lastA, firstB)
}

func mergeAt(chunks []TopicChunk, i, j int) []TopicChunk {
	if j < i {
		i, j = j, i
	}
	merged := TopicChunk{SentenceIDs: append(append([]int(nil), chunks[i].SentenceIDs...), chunks[j].SentenceIDs...)}
	out := make([]TopicChunk, 0, len(chunks)-1)
	out = append(out, chunks[:i]...)
	out = append(out, merged)
	out = append(out, chunks[i+1:j]...)
	out = append(out, chunks[j+1:]...)
	return out
}

// rebalanceCount repeatedly merges the smallest-similarity-gap neighbor
// pair (when above want.Max) or splits the largest chunk at its weakest
// link (when below want.Min) until the chunk count lies within
// [want.Min, want.Max], preferring a count near want.Target.
func (s *segmenter) rebalanceCount(chunks []TopicChunk, sentences []Sentence, embeddings [][]float32, want chunkRange) []TopicChunk {
	idIndex := sentenceIDIndex(sentences)

	for len(chunks) > want.Max && len(chunks) > 1 {
		bestI := 0
		bestScore := -2.0
		for i := 0; i < len(chunks)-1; i++ {
			score := boundarySimilarity(chunks[i], chunks[i+1], sentences, embeddings, idIndex)
			if score > bestScore {
				bestScore = score
				bestI = i
			}
		}
		chunks = mergeAt(chunks, bestI, bestI+1)
	}

	for len(chunks) < want.Min {
		largest := 0
		for i, c := range chunks {
			if len(c.SentenceIDs) > len(chunks[largest].SentenceIDs) {
				largest = i
			}
		}
		if len(chunks[largest].SentenceIDs) < 2 {
			break
		}
		left, right := splitAtWeakestLink(chunks[largest], sentences, embeddings, idIndex, 1)
		chunks = replaceAt(chunks, largest, left, right)
	}

	return preferCountNearTarget(chunks, sentences, embeddings, want)
}

// preferCountNearTarget makes one final adjustment pass, merging or
// splitting once more if doing so strictly reduces the distance to
// want.Target while staying within [want.Min, want.Max].
func preferCountNearTarget(chunks []TopicChunk, sentences []Sentence, embeddings [][]float32, want chunkRange) []TopicChunk {
	dist := func(n int) int {
		d := n - want.Target
		if d < 0 {
			d = -d
		}
		return d
	}
	idIndex := sentenceIDIndex(sentences)

	for len(chunks) > want.Target && len(chunks) > want.Min {
		bestI := 0
		bestScore := -2.0
		for i := 0; i < len(chunks)-1; i++ {
			score := boundarySimilarity(chunks[i], chunks[i+1], sentences, embeddings, idIndex)
			if score > bestScore {
				bestScore = score
				bestI = i
			}
		}
		candidate := mergeAt(chunks, bestI, bestI+1)
		if dist(len(candidate)) >= dist(len(chunks)) {
			break
		}
		chunks = candidate
	}
	return chunks
}

func joinSentenceText(sentences []Sentence, ids []int) string {
	byID := make(map[int]string, len(sentences))
	for _, s := range sentences {
		byID[s.ID] = s.Text
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, byID[id])
	}
	return strings.Join(parts, " ")
}

func qaDensity(sentences []Sentence, ids []int) float64 {
	if len(ids) == 0 {
		return 0
	}
	byID := make(map[int]Sentence, len(sentences))
	for _, s := range sentences {
		byID[s.ID] = s
	}
	questions := 0
	for _, id := range ids {
		if byID[id].IsQuestion {
			questions++
		}
	}
	return float64(questions) / float64(len(ids))
}

// sortChunksBySentenceOrder is a defensive guarantee helper: chunk order
// must track sentence order.
func sortChunksBySentenceOrder(chunks []TopicChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].SentenceIDs[0] < chunks[j].SentenceIDs[0]
	})
}
