// Package common holds small generic helpers shared across pipeline
// stages: the PipelineInfo/Warn/Error structured-log line builder (keyed
// off the closed types.StageID, never a free-form stage string) and the
// generic dedup helpers reused by the segmenter and excerpt selector.
package common

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/types"
)

// Deduplicate removes duplicates from a slice based on a key function,
// keeping the first-seen item for each key.
func Deduplicate[T any, K comparable](keyFunc func(T) K, items ...T) []T {
	seen := make(map[K]T)
	order := make([]K, 0, len(items))
	for _, item := range items {
		key := keyFunc(item)
		if _, exists := seen[key]; !exists {
			seen[key] = item
			order = append(order, key)
		}
	}
	out := make([]T, 0, len(order))
	for _, k := range order {
		out = append(out, seen[k])
	}
	return out
}

// ScoreComparable is implemented by any type DeduplicateWithScore can rank.
type ScoreComparable interface {
	GetScore() float64
}

// DeduplicateWithScore removes duplicates from a slice based on a key
// function, keeping the item with the highest score for each key, then
// sorts the survivors by score descending. Equal scores keep the order in
// which their keys were first seen.
func DeduplicateWithScore[T ScoreComparable, K comparable](keyFunc func(T) K, items ...T) []T {
	seen := make(map[K]int)
	result := make([]T, 0, len(items))
	for _, item := range items {
		key := keyFunc(item)
		if idx, exists := seen[key]; !exists {
			seen[key] = len(result)
			result = append(result, item)
		} else if item.GetScore() > result[idx].GetScore() {
			result[idx] = item
		}
	}
	slices.SortStableFunc(result, func(a, b T) int {
		switch {
		case a.GetScore() > b.GetScore():
			return -1
		case a.GetScore() < b.GetScore():
			return 1
		default:
			return 0
		}
	})
	return result
}

// CleanInvalidUTF8 removes invalid UTF-8 byte sequences and NUL bytes from
// externally sourced text (transcripts, fetched knowledge) before it is
// logged or persisted.
func CleanInvalidUTF8(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		if r == 0 {
			i += size
			continue
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

const (
	pipelineLogValueMaxRune = 300
	pipelineLogPrefix       = "[PIPELINE]"
	pipelineTruncateEll     = "..."
)

// PipelineLog builds a structured "[PIPELINE] stage=<StageID> action=<action>
// key=\"val\" ..." log line with keys sorted for determinism.
func PipelineLog(stage types.StageID, action string, fields map[string]interface{}) string {
	b := strings.Builder{}
	b.Grow(128)
	b.WriteString(pipelineLogPrefix)
	b.WriteString(" stage=")
	b.WriteString(string(stage))
	b.WriteString(" action=")
	b.WriteString(action)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			b.WriteString(" ")
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(formatPipelineLogValue(fields[key]))
		}
	}
	return b.String()
}

// PipelineInfo logs a stage transition or decision at Info level.
func PipelineInfo(ctx context.Context, stage types.StageID, action string, fields map[string]interface{}) {
	logger.GetLogger(ctx).Info(PipelineLog(stage, action, fields))
}

// PipelineWarn logs a recoverable stage-level problem at Warn level.
func PipelineWarn(ctx context.Context, stage types.StageID, action string, fields map[string]interface{}) {
	logger.GetLogger(ctx).Warn(PipelineLog(stage, action, fields))
}

// PipelineError logs a stage-level failure at Error level.
func PipelineError(ctx context.Context, stage types.StageID, action string, fields map[string]interface{}) {
	logger.GetLogger(ctx).Error(PipelineLog(stage, action, fields))
}

func formatPipelineLogValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strconv.Quote(truncatePipelineValue(v))
	case fmt.Stringer:
		return strconv.Quote(truncatePipelineValue(v.String()))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncatePipelineValue(content string) string {
	runes := []rune(content)
	if len(runes) <= pipelineLogValueMaxRune {
		return content
	}
	return string(runes[:pipelineLogValueMaxRune]) + pipelineTruncateEll
}

// TruncateForLog truncates content for safe, bounded inclusion in a log line.
func TruncateForLog(content string) string {
	return truncatePipelineValue(strings.ReplaceAll(content, "\n", "\\n"))
}
