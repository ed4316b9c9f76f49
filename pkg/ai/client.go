package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/pkg/config"
)

// Client is a minimal client for an OpenAI-compatible chat/embeddings API.
// Used for transcript fact extraction and memory embeddings.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	client         *http.Client
}

// NewClient creates an LLM client using values from the provided config.
// Pass a nil config to fall back to environment variables.
func NewClient(cfg *config.LLMConfig) *Client {
	var apiKey string
	if cfg != nil {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("LLM_API_KEY")
	}

	var base string
	if cfg != nil && cfg.BaseURL != "" {
		base = cfg.BaseURL
	} else {
		base = os.Getenv("LLM_API_URL")
		if base == "" {
			base = "https://api.groq.com/openai"
		}
	}

	c := &Client{
		apiKey:         apiKey,
		baseURL:        base,
		model:          "llama-3.1-70b-versatile",
		embeddingModel: "text-embedding-3-small",
		client:         &http.Client{},
	}
	if cfg != nil {
		if cfg.Model != "" {
			c.model = cfg.Model
		}
		if cfg.EmbeddingModel != "" {
			c.embeddingModel = cfg.EmbeddingModel
		}
		if cfg.Timeout > 0 {
			c.client.Timeout = cfg.Timeout
		}
	}
	return c
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model       string              `json:"model,omitempty"`
	Messages    []map[string]string `json:"messages,omitempty"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a system+user prompt pair and returns the assistant content.
// Transient HTTP failures come back tagged so the caller's retry policy can
// classify them.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := ChatRequest{
		Model: c.model,
		Messages: []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		Temperature: 0.1,
		MaxTokens:   8000,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransportErr("llm", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("llm", resp.StatusCode); err != nil {
		return "", err
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty response from llm")
	}
	return cr.Choices[0].Message.Content, nil
}

// EmbeddingRequest is the shape for embeddings requests
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse is a minimal embeddings response shape
type EmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	b, err := json.Marshal(EmbeddingRequest{Model: c.embeddingModel, Input: texts})
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr("llm", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("llm", resp.StatusCode); err != nil {
		return nil, err
	}

	var er EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, err
	}
	if len(er.Data) != len(texts) {
		return nil, fmt.Errorf("llm returned %d embeddings for %d inputs", len(er.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range er.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// classifyStatus maps HTTP status codes onto the external-service error
// taxonomy. Nil for 2xx.
func classifyStatus(service string, status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusTooManyRequests:
		return apperrors.ErrExternalRateLimited(service)
	case status == http.StatusGatewayTimeout:
		return apperrors.ErrExternalTimeout(service, fmt.Errorf("%s returned status %d", service, status))
	case status >= 500:
		return apperrors.ErrExternalUnavailable(service, fmt.Errorf("%s returned status %d", service, status))
	default:
		return fmt.Errorf("%s returned status %d", service, status)
	}
}

func classifyTransportErr(service string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrExternalTimeout(service, err)
	}
	return apperrors.ErrExternalUnavailable(service, err)
}
