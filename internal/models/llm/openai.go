// Package llm provides the pipeline's LLMService implementation: a
// synchronous, non-streaming OpenAI-compatible chat completion call. The
// pipeline treats the LLM as one opaque collaborator and never branches
// on model identity.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/veridocs/trainforge/internal/pipeline"
)

// Client implements pipeline.LLMService against any OpenAI-compatible
// chat completions endpoint.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient builds a Client. baseURL may be empty to use the default
// OpenAI endpoint (e.g. when pointed at a local vLLM/Ollama-compatible
// gateway, baseURL should be set).
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model}
}

// Generate implements pipeline.LLMService. It issues one synchronous,
// non-streaming chat completion call with the caller's temperature/top_p/
// max_tokens and returns the first choice's text plus token usage.
func (c *Client) Generate(ctx context.Context, prompt string, opts pipeline.LLMOptions) (pipeline.LLMResult, error) {
	callCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		MaxTokens:   opts.MaxTokens,
	}

	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return pipeline.LLMResult{}, fmt.Errorf("llm: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return pipeline.LLMResult{}, fmt.Errorf("llm: no choices in response")
	}

	return pipeline.LLMResult{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
