package embedding

import (
	"regexp"
	"strings"
	"unicode"
)

// maxEmbedTextLength bounds the text handed to the embedding model; longer
// inputs raise the odds of NaN-producing activations.
const maxEmbedTextLength = 8000

var (
	embedSpaceRunRe   = regexp.MustCompile(`[ \t]+`)
	embedNewlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// PreprocessTextForEmbedding cleans text before it reaches the embedding
// model: control characters stripped, whitespace runs collapsed, length
// bounded at a sentence boundary where possible.
func PreprocessTextForEmbedding(text string) string {
	if text == "" {
		return text
	}

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	text = embedSpaceRunRe.ReplaceAllString(text, " ")
	text = embedNewlineRunRe.ReplaceAllString(text, "\n\n")

	if len(text) > maxEmbedTextLength {
		text = truncateNearSentence(text, maxEmbedTextLength)
	}
	return strings.TrimSpace(text)
}

// truncateNearSentence cuts text at maxLen, preferring a sentence ending
// or newline within the last 100 bytes of the cut point.
func truncateNearSentence(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	truncated := text[:maxLen]

	searchStart := maxLen - 100
	if searchStart < 0 {
		searchStart = 0
	}

	bestPos := -1
	for _, ending := range []string{".", "!", "?", "\n"} {
		if pos := strings.LastIndex(truncated[searchStart:], ending); pos != -1 {
			actualPos := searchStart + pos + len(ending)
			if actualPos > bestPos {
				bestPos = actualPos
			}
		}
	}
	if bestPos > searchStart {
		return text[:bestPos]
	}
	return truncated
}

// TruncateTextWithRatio shortens text to a ratio of its original length,
// keeping at least 100 bytes. The embed retry ladder calls this with
// progressively smaller ratios.
func TruncateTextWithRatio(text string, ratio float64) string {
	if ratio >= 1.0 {
		return text
	}
	newLen := int(float64(len(text)) * ratio)
	if newLen < 100 {
		newLen = 100
	}
	return truncateNearSentence(text, newLen)
}
