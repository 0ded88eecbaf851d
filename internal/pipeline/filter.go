package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/veridocs/trainforge/internal/common"
)

// administrativeTokens is the closed heuristic token set for greetings and
// closings used by the administrative classification rule.
var administrativeTokens = []string{
	"welcome", "hello", "hi everyone", "thank you for joining", "thanks for joining",
	"let's get started", "see you next time", "that's all for today", "have a great day",
	"goodbye", "bye everyone", "before we begin", "before we start",
}

const (
	weightDuration      = 0.25
	weightEmphasis      = 0.25
	weightActionability = 0.25
	weightPosition      = 0.15
	weightQAPenalty     = 0.10
)

// filterRank classifies each chunk, scores importance, and drops
// qa_clarification/administrative chunks and any chunk below
// importanceThreshold. Fails with KindInsufficientContent if nothing
// survives.
func filterRank(ctx context.Context, chunks []TopicChunk, sentences []Sentence, importanceThreshold, qaDensityThreshold float64) ([]TopicChunk, *Error) {
	byID := make(map[int]Sentence, len(sentences))
	for _, s := range sentences {
		byID[s.ID] = s
	}

	maxSpan := maxTimestampSpan(chunks, byID)

	classified := make([]TopicChunk, len(chunks))
	copy(classified, chunks)
	for i := range classified {
		classified[i].Classification = classify(classified[i], byID, qaDensityThreshold)
	}

	for i := range classified {
		classified[i].Importance = importance(classified[i], byID, maxSpan, i, len(classified))
	}

	survivors := make([]TopicChunk, 0, len(classified))
	droppedByClass := 0
	droppedByImportance := 0
	for _, c := range classified {
		if c.Classification == ClassQAClarification || c.Classification == ClassAdministrative {
			droppedByClass++
			continue
		}
		if c.Importance < importanceThreshold {
			droppedByImportance++
			continue
		}
		survivors = append(survivors, c)
	}

	common.PipelineInfo(ctx, StageFilterRank, "classified", map[string]interface{}{
		"total": len(classified), "survivors": len(survivors),
		"dropped_by_class": droppedByClass, "dropped_by_importance": droppedByImportance,
	})

	if len(survivors) == 0 {
		return nil, NewError(KindInsufficientContent,
			"no chunk survived topic filtering; consider lowering importance_threshold "+
				"(dropped_by_classification="+strconv.Itoa(droppedByClass)+
				", dropped_by_importance_threshold="+strconv.Itoa(droppedByImportance)+
				") or submitting a longer/clearer transcript", nil)
	}
	return survivors, nil
}

func classify(c TopicChunk, byID map[int]Sentence, qaDensityThreshold float64) ChunkClassification {
	if isAdministrative(c, byID) {
		return ClassAdministrative
	}
	if c.QADensity >= qaDensityThreshold && len(c.SentenceIDs) < 6 {
		return ClassQAClarification
	}
	if c.QADensity >= 0.25 && c.QADensity < qaDensityThreshold {
		return ClassQASubstantive
	}
	return ClassInstructional
}

func isAdministrative(c TopicChunk, byID map[int]Sentence) bool {
	hasAdminToken := false
	hasActionVerb := false
	for _, id := range c.SentenceIDs {
		lower := strings.ToLower(byID[id].Text)
		for _, token := range administrativeTokens {
			if strings.Contains(lower, token) {
				hasAdminToken = true
			}
		}
		if sentenceHasStrongVerb(lower) {
			hasActionVerb = true
		}
	}
	return hasAdminToken && !hasActionVerb
}

func sentenceHasStrongVerb(lowerText string) bool {
	for _, w := range strings.Fields(lowerText) {
		w = strings.Trim(w, ".,!?;:")
		if strongVerbs[w] {
			return true
		}
	}
	return false
}

func maxTimestampSpan(chunks []TopicChunk, byID map[int]Sentence) float64 {
	max := 0.0
	for _, c := range chunks {
		span := chunkSpanSeconds(c, byID)
		if span > max {
			max = span
		}
	}
	return max
}

func chunkSpanSeconds(c TopicChunk, byID map[int]Sentence) float64 {
	var first, last *float64
	for _, id := range c.SentenceIDs {
		if ts := byID[id].TimestampSeconds; ts != nil {
			if first == nil {
				first = ts
			}
			last = ts
		}
	}
	if first == nil || last == nil {
		return 0
	}
	return *last - *first
}

func importance(c TopicChunk, byID map[int]Sentence, maxSpan float64, position, total int) float64 {
	duration := 0.0
	if maxSpan > 0 {
		duration = chunkSpanSeconds(c, byID) / maxSpan
	}

	emphasisSum := 0.0
	actionable := 0
	for _, id := range c.SentenceIDs {
		s := byID[id]
		emphasisSum += s.EmphasisScore
		if sentenceHasStrongVerb(strings.ToLower(s.Text)) {
			actionable++
		}
	}
	emphasis := 0.0
	actionability := 0.0
	if len(c.SentenceIDs) > 0 {
		emphasis = emphasisSum / float64(len(c.SentenceIDs))
		actionability = float64(actionable) / float64(len(c.SentenceIDs))
	}

	positionScore := 0.0
	if total > 1 {
		positionScore = 1.0 - float64(position)/float64(total-1)
	} else {
		positionScore = 1.0
	}

	qaPenalty := 1.0 - c.QADensity

	score := weightDuration*duration + weightEmphasis*emphasis + weightActionability*actionability +
		weightPosition*positionScore + weightQAPenalty*qaPenalty

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
