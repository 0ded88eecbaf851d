package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridocs/trainforge/internal/types"
)

func TestDocxRendererProducesDocument(t *testing.T) {
	result := &types.PipelineResult{
		Steps: []types.ValidatedStep{
			{
				Draft: types.StepDraft{
					Title:    "Configure the cluster",
					Overview: "Set up the target cluster.",
					Content:  "The cluster needs an endpoint and a namespace before anything deploys.",
					Actions:  []string{"Configure the endpoint", "Set the namespace", "Verify the connection"},
				},
				Accepted: true,
			},
		},
		KnowledgeSources: []types.KnowledgeSource{
			{URL: "https://docs.example", Title: "Cluster Guide"},
			{URL: "https://broken.example", Error: "timeout"},
		},
	}

	data, err := NewDocxRenderer().Render(result)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	// A .docx file is a zip archive; check the magic bytes.
	assert.Equal(t, []byte{'P', 'K'}, data[:2])
}

func TestDocxRendererEmptySteps(t *testing.T) {
	data, err := NewDocxRenderer().Render(&types.PipelineResult{})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
