// Package render turns a finished PipelineResult into a distributable
// document. Only a thin Word (.docx) implementation lives here; styling
// beyond headings and paragraphs belongs to a dedicated renderer service.
package render

import (
	"bytes"
	"fmt"

	"github.com/fumiama/go-docx"

	"github.com/veridocs/trainforge/internal/types"
)

// Renderer turns a finished PipelineResult into distributable document
// bytes. Implementations must not mutate result.
type Renderer interface {
	Render(result *types.PipelineResult) ([]byte, error)
}

// DocxRenderer emits one heading, overview paragraph, and action list per
// accepted step.
type DocxRenderer struct{}

// NewDocxRenderer constructs a DocxRenderer.
func NewDocxRenderer() *DocxRenderer { return &DocxRenderer{} }

// Render implements Renderer.
func (r *DocxRenderer) Render(result *types.PipelineResult) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	for i, step := range result.Steps {
		title := fmt.Sprintf("%d. %s", i+1, step.Draft.Title)
		doc.AddParagraph().AddText(title).Size("28").Bold()
		doc.AddParagraph().AddText(step.Draft.Overview).Italic()
		doc.AddParagraph().AddText(step.Draft.Content)

		for _, action := range step.Draft.Actions {
			doc.AddParagraph().AddText("- " + action)
		}
	}

	if len(result.KnowledgeSources) > 0 {
		doc.AddParagraph().AddText("References").Size("24").Bold()
		for _, src := range result.KnowledgeSources {
			if src.Error != "" {
				continue
			}
			label := src.Title
			if label == "" {
				label = src.URL
			}
			doc.AddParagraph().AddText(fmt.Sprintf("%s (%s)", label, src.URL))
		}
	}

	buf := &bytes.Buffer{}
	if _, err := doc.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("render: write docx: %w", err)
	}
	return buf.Bytes(), nil
}
