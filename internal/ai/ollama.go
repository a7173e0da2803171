// Package ai is the LLM client used by retain (fact extraction),
// consolidate (reconciliation actions) and the embedding stores. Adapted
// from the teacher's Ollama client: same base URL/model/enabled shape,
// now with backoff/v4 retry around transient HTTP failures and float32
// embeddings (the vector package's native type) instead of float64.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/memoryengine/memoryengine/internal/logging"
)

var log = logging.GetLogger("ai")

// Config mirrors pkg/config's OllamaConfig shape.
type Config struct {
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Enabled        bool
	EmbeddingDim   int
}

// Client talks to a local Ollama instance for embeddings and generation.
type Client struct {
	baseURL        string
	embeddingModel string
	chatModel      string
	embeddingDim   int
	httpClient     *http.Client
	enabled        bool
}

// New constructs a Client, filling in the teacher's defaults for any
// unset fields.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:        cfg.BaseURL,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		embeddingDim:   cfg.EmbeddingDim,
		enabled:        cfg.Enabled,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
	if c.baseURL == "" {
		c.baseURL = "http://localhost:11434"
	}
	if c.embeddingModel == "" {
		c.embeddingModel = "nomic-embed-text"
	}
	if c.chatModel == "" {
		c.chatModel = "qwen2.5:3b"
	}
	if c.embeddingDim == 0 {
		c.embeddingDim = 768
	}
	return c
}

// EmbeddingDim returns the configured embedding dimension, used to size
// vector.Store instances consistently with this client.
func (c *Client) EmbeddingDim() int { return c.embeddingDim }

// Enabled reports whether this client is configured to make live calls.
func (c *Client) Enabled() bool { return c.enabled }

// IsAvailable checks whether Ollama is reachable.
func (c *Client) IsAvailable() bool {
	if !c.enabled {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text, retrying transient HTTP
// failures with exponential backoff (three attempts in all: the first call
// plus two retries).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.enabled {
		return nil, fmt.Errorf("ollama client is not enabled")
	}

	var result []float32
	operation := func() error {
		vec, err := c.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		result = vec
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		log.Warn("embedding request exhausted retries", "error", err)
		return nil, fmt.Errorf("embedding request failed after retries: %w", err)
	}
	return result, nil
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.embeddingModel, Prompt: text})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("marshal embedding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create embedding request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(b)))
		}
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(b))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode embedding response: %w", err))
	}
	return parsed.Embedding, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate produces free-form text from prompt using the chat model, used
// by retain's extraction step and consolidate's reconciliation step.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("ollama client is not enabled")
	}

	var result string
	operation := func() error {
		text, err := c.generateOnce(ctx, prompt)
		if err != nil {
			return err
		}
		result = text
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		log.Warn("generate request exhausted retries", "error", err)
		return "", fmt.Errorf("generate request failed after retries: %w", err)
	}
	return result, nil
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.chatModel, Prompt: prompt, Stream: false})
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("marshal generate request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create generate request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", backoff.Permanent(fmt.Errorf("generate request failed with status %d: %s", resp.StatusCode, string(b)))
		}
		return "", fmt.Errorf("generate request failed with status %d: %s", resp.StatusCode, string(b))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode generate response: %w", err))
	}
	return parsed.Response, nil
}
