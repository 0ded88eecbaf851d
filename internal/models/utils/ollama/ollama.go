// Package ollama wraps the Ollama HTTP API for the embedding
// collaborator only: the NaN-tolerant embedding call and an availability
// check. Chat completion goes through the OpenAI-compatible client in
// internal/models/llm instead.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/ollama/ollama/api"

	"github.com/veridocs/trainforge/internal/logger"
)

// Service manages a connection to one Ollama instance.
type Service struct {
	client      *api.Client
	baseURL     string
	mu          sync.Mutex
	isAvailable bool
}

// NewService constructs a Service against baseURL (e.g.
// "http://localhost:11434").
func NewService(baseURL string) (*Service, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama service URL: %w", err)
	}
	return &Service{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		baseURL: baseURL,
	}, nil
}

// StartService checks the Ollama instance is reachable.
func (s *Service) StartService(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Heartbeat(ctx); err != nil {
		s.isAvailable = false
		return fmt.Errorf("ollama service unavailable: %w", err)
	}
	s.isAvailable = true
	return nil
}

// IsAvailable returns whether the last StartService call succeeded.
func (s *Service) IsAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAvailable
}

// Embeddings calls the Ollama embed endpoint with NaN/Inf-tolerant
// response handling: Ollama occasionally serializes a response containing
// "NaN"/"Infinity" literals that the standard encoding/json decoder
// rejects, so the raw body is sanitized before unmarshaling.
func (s *Service) Embeddings(ctx context.Context, req *api.EmbedRequest) (*api.EmbedResponse, error) {
	if err := s.StartService(ctx); err != nil {
		return nil, err
	}
	return s.embedWithNaNHandling(ctx, req)
}

func (s *Service) embedWithNaNHandling(ctx context.Context, req *api.EmbedRequest) (*api.EmbedResponse, error) {
	embedURL := fmt.Sprintf("%s/api/embed", s.baseURL)

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", embedURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send embed request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var errorResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
		return nil, fmt.Errorf("ollama api error: %s", errorResp.Error)
	}

	cleanedBody := cleanJSONNumbers(respBody)

	var embedResp api.EmbedResponse
	if err := json.Unmarshal(cleanedBody, &embedResp); err != nil {
		return nil, fmt.Errorf("unmarshal embed response: %w", err)
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("received empty embeddings from ollama api")
	}

	for i := range embedResp.Embeddings {
		embedResp.Embeddings[i] = sanitizeEmbedding(embedResp.Embeddings[i])
	}
	return &embedResp, nil
}

var (
	nanRegex    = regexp.MustCompile(`:\s*NaN\b`)
	infRegex    = regexp.MustCompile(`:\s*Infinity\b`)
	negInfRegex = regexp.MustCompile(`:\s*-Infinity\b`)
)

// cleanJSONNumbers replaces NaN/Infinity/-Infinity literals in a raw JSON
// body with values encoding/json can decode.
func cleanJSONNumbers(data []byte) []byte {
	data = nanRegex.ReplaceAll(data, []byte(": 0.0"))
	data = infRegex.ReplaceAll(data, []byte(": 1e308"))
	data = negInfRegex.ReplaceAll(data, []byte(": -1e308"))
	return data
}

func sanitizeEmbedding(embedding []float32) []float32 {
	sanitized := make([]float32, len(embedding))
	hasInvalid := false
	for i, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			sanitized[i] = 0.0
			hasInvalid = true
		} else {
			sanitized[i] = v
		}
	}
	if hasInvalid {
		logger.GetLogger(context.Background()).Warn("embedding vector contained NaN/Inf values, replaced with 0.0")
	}
	return sanitized
}

// IsValidModelName does a basic sanity check on a model name string.
func IsValidModelName(name string) bool {
	return name != "" && !strings.Contains(name, " ")
}
