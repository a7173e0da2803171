package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFillsDefaults(t *testing.T) {
	c := New(Config{})
	require.Equal(t, "http://localhost:11434", c.baseURL)
	require.Equal(t, "nomic-embed-text", c.embeddingModel)
	require.Equal(t, "qwen2.5:3b", c.chatModel)
	require.Equal(t, 768, c.embeddingDim)
	require.False(t, c.Enabled())
}

func TestNewKeepsExplicitValues(t *testing.T) {
	c := New(Config{BaseURL: "http://example:1", EmbeddingModel: "m", ChatModel: "c", EmbeddingDim: 16, Enabled: true})
	require.Equal(t, "http://example:1", c.baseURL)
	require.Equal(t, 16, c.EmbeddingDim())
	require.True(t, c.Enabled())
}

func TestEmbedReturnsErrorWhenDisabled(t *testing.T) {
	c := New(Config{})
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestGenerateReturnsErrorWhenDisabled(t *testing.T) {
	c := New(Config{})
	_, err := c.Generate(context.Background(), "hello")
	require.Error(t, err)
}

func TestEmbedCallsOllamaEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Enabled: true})
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestGenerateCallsOllamaEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		json.NewEncoder(w).Encode(generateResponse{Response: "hi there", Done: true})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Enabled: true})
	text, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "hi there", text)
}

func TestEmbedSurfacesPermanentClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Enabled: true})
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestIsAvailableFalseWhenDisabled(t *testing.T) {
	c := New(Config{})
	require.False(t, c.IsAvailable())
}
