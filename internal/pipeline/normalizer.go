package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/veridocs/trainforge/internal/common"
)

// normalize decodes, cleans, splits raw text into sentences, and derives
// per-sentence metadata. It fails with KindInvalidInput if the cleaned
// text is empty or contains no sentence-terminating punctuation.
func normalize(rawText string) ([]Sentence, *Error) {
	cleaned := cleanText(rawText)
	if strings.TrimSpace(cleaned) == "" {
		return nil, NewError(KindInvalidInput, "transcript is empty after cleanup", nil)
	}
	if !sentenceTerminatorRe.MatchString(cleaned) {
		return nil, NewError(KindInvalidInput, "transcript has no sentence-terminating punctuation", nil)
	}

	rawSentences := splitSentences(cleaned)
	sentences := make([]Sentence, 0, len(rawSentences))
	lastRole := SpeakerUnknown

	for _, raw := range rawSentences {
		text, role, hadRole := stripSpeakerPrefix(raw)
		if hadRole {
			lastRole = role
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		s := Sentence{
			ID:               len(sentences),
			Text:             text,
			TimestampSeconds: extractTimestamp(text),
			SpeakerRole:      lastRole,
			IsQuestion:       isQuestion(text),
			IsTransition:     isTransition(text),
			EmphasisScore:    emphasisScore(text),
		}
		sentences = append(sentences, s)
	}

	if len(sentences) == 0 {
		return nil, NewError(KindInvalidInput, "transcript produced no usable sentences", nil)
	}
	return sentences, nil
}

func cleanText(raw string) string {
	raw = common.CleanInvalidUTF8(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r == '\n' || r == '\t' || r == ' ' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	collapsed := whitespaceRunRe.ReplaceAllString(b.String(), " ")
	return strings.TrimSpace(collapsed)
}

var whitespaceRunRe = regexp.MustCompile(`[ \t]+`)
var sentenceTerminatorRe = regexp.MustCompile(`[.?!](\s|$)`)

// commonAbbreviations must not be treated as sentence terminators even
// though they end in a period.
var commonAbbreviations = []string{
	"dr.", "mr.", "mrs.", "ms.", "e.g.", "i.e.", "etc.", "vs.", "prof.", "st.",
}

func endsWithAbbreviation(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, abbr := range commonAbbreviations {
		if strings.HasSuffix(lower, abbr) {
			return true
		}
	}
	return false
}

// splitSentences deterministically splits cleaned text on '.', '?', '!'
// followed by whitespace or end-of-text, respecting commonAbbreviations.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)

		if r != '.' && r != '?' && r != '!' {
			continue
		}
		atEnd := i == len(runes)-1
		followedByWhitespace := !atEnd && unicode.IsSpace(runes[i+1])
		if !atEnd && !followedByWhitespace {
			continue
		}
		if r == '.' && endsWithAbbreviation(cur.String()) {
			continue
		}
		sentences = append(sentences, strings.TrimSpace(cur.String()))
		cur.Reset()
	}
	if strings.TrimSpace(cur.String()) != "" {
		sentences = append(sentences, strings.TrimSpace(cur.String()))
	}
	return sentences
}

var timestampRe = regexp.MustCompile(`^\[(\d{1,2}):(\d{2})(?::(\d{2}))?\]`)

// extractTimestamp parses a leading [hh:mm:ss] or [mm:ss] bracket.
func extractTimestamp(text string) *float64 {
	m := timestampRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var h, mi, se int
	if m[3] != "" {
		h, _ = strconv.Atoi(m[1])
		mi, _ = strconv.Atoi(m[2])
		se, _ = strconv.Atoi(m[3])
	} else {
		mi, _ = strconv.Atoi(m[1])
		se, _ = strconv.Atoi(m[2])
	}
	total := float64(h*3600 + mi*60 + se)
	return &total
}

var speakerPrefixRe = regexp.MustCompile(`^\s*\[?\d{0,2}:?\d{0,2}:?\d{0,2}\]?\s*([A-Za-z][A-Za-z0-9 _'.-]{0,40}):\s*(.*)$`)

// stripSpeakerPrefix strips a leading "Name:" / "Role:" prefix (after any
// timestamp bracket) and maps it to a SpeakerRole.
func stripSpeakerPrefix(text string) (string, SpeakerRole, bool) {
	withoutTimestamp := timestampRe.ReplaceAllString(text, "")
	withoutTimestamp = strings.TrimSpace(withoutTimestamp)

	idx := strings.Index(withoutTimestamp, ":")
	if idx <= 0 || idx > 40 {
		return text, SpeakerUnknown, false
	}
	label := strings.ToLower(strings.TrimSpace(withoutTimestamp[:idx]))
	rest := strings.TrimSpace(withoutTimestamp[idx+1:])
	if rest == "" {
		return text, SpeakerUnknown, false
	}

	switch {
	case instructorRoleAliases[label]:
		return restorePrefix(text, withoutTimestamp, rest), SpeakerInstructor, true
	case participantRoleAliases[label]:
		return restorePrefix(text, withoutTimestamp, rest), SpeakerParticipant, true
	default:
		return text, SpeakerUnknown, false
	}
}

func restorePrefix(original, withoutTimestamp, rest string) string {
	// Preserve the timestamp bracket (if any) on the returned text so
	// extractTimestamp still sees it; only the "Name:" label is stripped.
	if original == withoutTimestamp {
		return rest
	}
	bracket := timestampRe.FindString(original)
	return strings.TrimSpace(bracket + " " + rest)
}

func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	words := strings.Fields(strings.ToLower(trimmed))
	if len(words) == 0 {
		return false
	}
	first := strings.Trim(words[0], ".,!?;:")
	return interrogativeTokens[first]
}

func isTransition(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range transitionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func emphasisScore(text string) float64 {
	lower := strings.ToLower(text)
	count := 0
	for _, token := range emphasisTokens {
		count += strings.Count(lower, token)
	}
	score := float64(count) / 5.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}
