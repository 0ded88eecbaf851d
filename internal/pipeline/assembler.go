package pipeline

import (
	"sort"
	"strconv"
	"time"
)

// assembleResult orders accepted steps by chunk order, computes aggregate
// statistics, and fails the job with KindNoValidSteps if none were
// accepted.
func assembleResult(steps []ValidatedStep, chunksConsidered int, sources []KnowledgeSource, failureCounts map[string]int, stageDurations map[StageID]time.Duration, inputTokens, outputTokens int) (*PipelineResult, *Error) {
	accepted := make([]ValidatedStep, 0, len(steps))
	rejectionCounts := map[string]int{}
	for reason, n := range failureCounts {
		rejectionCounts[reason] += n
	}
	for _, s := range steps {
		if s.Accepted {
			accepted = append(accepted, s)
		} else {
			for _, r := range s.RejectionReasons {
				rejectionCounts[r]++
			}
		}
	}

	if len(accepted) == 0 {
		return nil, NewError(KindNoValidSteps, summarizeRejections(rejectionCounts), nil)
	}

	sortStepsByChunkOrder(accepted)

	var confidenceSum float64
	highConfidence := 0
	citedKnowledge := map[string]bool{}
	for _, s := range accepted {
		confidenceSum += s.Confidence
		if s.Confidence >= 0.75 {
			highConfidence++
		}
		for _, src := range s.Sources {
			if src.Kind == SourceKnowledge {
				citedKnowledge[src.URL] = true
			}
		}
	}

	fetchedCount := 0
	for _, s := range sources {
		if s.Error == "" {
			fetchedCount++
		}
	}
	knowledgeUsageRate := 0.0
	if fetchedCount > 0 {
		knowledgeUsageRate = float64(len(citedKnowledge)) / float64(fetchedCount)
	}

	stats := PipelineStats{
		ChunksConsidered:      chunksConsidered,
		ChunksAccepted:        len(accepted),
		StepsGenerated:        len(steps),
		StepsAccepted:         len(accepted),
		AverageConfidence:     confidenceSum / float64(len(accepted)),
		HighConfidenceCount:   highConfidence,
		KnowledgeUsageRate:    knowledgeUsageRate,
		InputTokens:           inputTokens,
		OutputTokens:          outputTokens,
		StageDurations:        stageDurations,
		RejectionReasonCounts: rejectionCounts,
	}

	return &PipelineResult{Steps: accepted, Stats: stats, KnowledgeSources: sources}, nil
}

func sortStepsByChunkOrder(steps []ValidatedStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Draft.ChunkID < steps[j].Draft.ChunkID
	})
}

func summarizeRejections(counts map[string]int) string {
	if len(counts) == 0 {
		return "all generated steps were rejected; no rejection reasons were recorded"
	}
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	msg := "all generated steps were rejected: "
	for i, reason := range reasons {
		if i > 0 {
			msg += ", "
		}
		msg += reason + " (" + strconv.Itoa(counts[reason]) + ")"
	}
	return msg
}
