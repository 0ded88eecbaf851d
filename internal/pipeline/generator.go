package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/veridocs/trainforge/internal/common"
)

const (
	generatorTemperature = 0.2
	generatorTopP        = 0.85
	generatorMaxTokens   = 1000
)

// chunkOutcome is the explicit per-chunk result kind: a chunk either
// produces a draft, fails generation, or fails parsing. The orchestrator
// aggregates and reports counts rather than treating any of these as a Go
// error.
type chunkOutcome struct {
	ChunkID          int
	Draft            *StepDraft
	GenerationFailed bool
	ParseFailed      bool
	FailureDetail    string
	InputTokens      int
	OutputTokens     int
}

// stepGenerator turns one chunk plus its excerpts into a StepDraft via
// the LLM collaborator.
type stepGenerator struct {
	llm LLMService
	cfg *Config
}

func newStepGenerator(llm LLMService, cfg *Config) *stepGenerator {
	return &stepGenerator{llm: llm, cfg: cfg}
}

func (g *stepGenerator) generate(ctx context.Context, chunk TopicChunk, excerpts []ScoredExcerpt) chunkOutcome {
	prompt := composePrompt(chunk, excerpts, g.cfg, false)
	draft, usage, err := g.callAndParse(ctx, chunk, prompt)
	if err == nil {
		return chunkOutcome{ChunkID: chunk.ID, Draft: draft, InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens}
	}

	// One retry: either a timeout or a parse failure gets exactly one
	// more attempt.
	common.PipelineWarn(ctx, StageGenerateSteps, "retry", map[string]interface{}{
		"chunk_id": chunk.ID, "error": err.Error(),
	})
	retryPrompt := composePrompt(chunk, excerpts, g.cfg, true)
	retryDraft, retryUsage, retryErr := g.callAndParse(ctx, chunk, retryPrompt)
	usage.InputTokens += retryUsage.InputTokens
	usage.OutputTokens += retryUsage.OutputTokens
	if retryErr == nil {
		return chunkOutcome{ChunkID: chunk.ID, Draft: retryDraft, InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens}
	}

	outcome := chunkOutcome{ChunkID: chunk.ID, FailureDetail: retryErr.Error(), InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens}
	if isParseError(retryErr) {
		outcome.ParseFailed = true
	} else {
		outcome.GenerationFailed = true
	}
	common.PipelineError(ctx, StageGenerateSteps, "failed", map[string]interface{}{
		"chunk_id": chunk.ID, "error": retryErr.Error(),
	})
	return outcome
}

type parseError struct{ msg string }

func (e parseError) Error() string { return e.msg }
func isParseError(err error) bool  { _, ok := err.(parseError); return ok }

type tokenUsage struct {
	InputTokens  int
	OutputTokens int
}

func (g *stepGenerator) callAndParse(ctx context.Context, chunk TopicChunk, prompt string) (*StepDraft, tokenUsage, error) {
	timeout := g.cfg.LLMTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := g.llm.Generate(callCtx, prompt, LLMOptions{
		Temperature: generatorTemperature,
		TopP:        generatorTopP,
		MaxTokens:   generatorMaxTokens,
		Timeout:     timeout,
	})
	if err != nil {
		return nil, tokenUsage{}, err
	}
	usage := tokenUsage{InputTokens: result.InputTokens, OutputTokens: result.OutputTokens}

	draft, ok := parseStepResponse(result.Text)
	if !ok {
		return nil, usage, parseError{msg: "unparseable LLM response"}
	}
	draft.ChunkID = chunk.ID
	return &draft, usage, nil
}

// composePrompt builds the LLM prompt: fixed system instructions, chunk
// verbatim, top excerpts with title/URL/score, tone and audience from
// config, and explicit constraints. On retry the label set is repeated
// once more in the instructions.
func composePrompt(chunk TopicChunk, excerpts []ScoredExcerpt, cfg *Config, retry bool) string {
	var b strings.Builder

	b.WriteString("You produce exactly one training step from a transcript excerpt.\n")
	b.WriteString("Use exact terminology from the chunk. Use the provided excerpts only for ")
	b.WriteString("technical depth, never as a substitute for the chunk's own content.\n")
	b.WriteString("Output exactly one step, structured as four labeled sections: ")
	b.WriteString("TITLE, OVERVIEW, CONTENT, KEY ACTIONS.\n")
	fmt.Fprintf(&b, "Tone: %s. Audience: %s.\n", cfg.Tone, cfg.Audience)
	fmt.Fprintf(&b, "KEY ACTIONS must contain between %d and %d bullet lines, each beginning ", cfg.MinActions, cfg.MaxActions)
	b.WriteString("with a strong imperative verb (e.g. configure, create, verify, deploy).\n")
	fmt.Fprintf(&b, "CONTENT must be at least %d words.\n\n", cfg.MinContentWords)

	b.WriteString("CHUNK:\n")
	b.WriteString(chunk.Text)
	b.WriteString("\n\n")

	if len(excerpts) > 0 {
		b.WriteString("EXCERPTS:\n")
		for _, e := range excerpts {
			fmt.Fprintf(&b, "- [%s](%s) (relevance %.2f): %s\n",
				e.Excerpt.SourceTitle, e.Excerpt.SourceURL, e.Score, e.Excerpt.Text)
		}
		b.WriteString("\n")
	}

	if retry {
		b.WriteString("Your previous response could not be parsed. Respond using exactly these ")
		b.WriteString("section labels, one per line, in this order: TITLE:, OVERVIEW:, CONTENT:, KEY ACTIONS:\n")
	}

	return b.String()
}

var sectionLabelAliases = map[string]string{
	"title:":       "title",
	"overview:":    "overview",
	"summary:":     "overview",
	"content:":     "content",
	"details:":     "content",
	"key actions:": "actions",
	"actions:":     "actions",
}

// parseStepResponse is a line-based parser: canonical and legacy label
// aliases, bullet-marker trimming, blank-action collapse.
func parseStepResponse(text string) (StepDraft, bool) {
	lines := strings.Split(text, "\n")
	sections := map[string][]string{}
	current := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		matchedLabel := ""
		for label, section := range sectionLabelAliases {
			if strings.HasPrefix(lower, label) {
				matchedLabel = section
				rest := strings.TrimSpace(trimmed[len(label):])
				current = section
				if rest != "" {
					sections[section] = append(sections[section], rest)
				}
				break
			}
		}
		if matchedLabel != "" {
			continue
		}
		if current == "" {
			continue
		}
		sections[current] = append(sections[current], trimmed)
	}

	title := strings.TrimSpace(strings.Join(sections["title"], " "))
	overview := strings.TrimSpace(strings.Join(sections["overview"], " "))
	content := strings.TrimSpace(strings.Join(sections["content"], " "))
	actions := parseActions(sections["actions"])

	if title == "" || content == "" || len(actions) == 0 {
		return StepDraft{}, false
	}
	return StepDraft{Title: title, Overview: overview, Content: content, Actions: actions}, true
}

func parseActions(lines []string) []string {
	var actions []string
	for _, line := range lines {
		trimmed := trimBulletMarker(line)
		if trimmed == "" {
			continue
		}
		actions = append(actions, trimmed)
	}
	return actions
}

func trimBulletMarker(line string) string {
	line = strings.TrimSpace(line)
	for _, marker := range []string{"-", "*", "•", "–"} {
		if strings.HasPrefix(line, marker) {
			line = strings.TrimSpace(strings.TrimPrefix(line, marker))
			break
		}
	}
	// Strip a leading "1." / "1)" numbered marker.
	if i := strings.IndexAny(line, ".)"); i > 0 && i <= 2 {
		if _, err := strconv.Atoi(line[:i]); err == nil {
			line = strings.TrimSpace(line[i+1:])
		}
	}
	return line
}
