package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/app"
	"github.com/memoryengine/memoryengine/pkg/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Ollama.Enabled = false
	cfg.Logging.Level = "debug" // keep gin in debug mode so recovered panics surface in test output

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return NewServer(a)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
}

func TestCreateAndListBanks(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/banks", createBankRequest{Name: "alpha", Description: "d"})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	w = doJSON(t, s, http.MethodGet, "/api/v1/banks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeResponse(t, w)
	data := resp.Data.([]any)
	require.Len(t, data, 1)
}

func TestCreateBankRejectsMissingName(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/v1/banks", createBankRequest{Description: "d"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteBankNotFound(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodDelete, "/api/v1/banks/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRememberAndListMemories(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/banks", createBankRequest{Name: "alpha"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/banks/alpha/memories", rememberRequest{
		Content: "the launch is scheduled for next week", SkipExtraction: true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/banks/alpha/memories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp.Data.([]any)
	require.Len(t, data, 1)
}

func TestRememberUnknownBankNotFound(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/v1/banks/missing/memories", rememberRequest{Content: "x"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecallReturnsStoredMemory(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/banks", createBankRequest{Name: "alpha"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/banks/alpha/memories", rememberRequest{
		Content: "the staging database migration completed", SkipExtraction: true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/banks/alpha/recall", recallRequest{Query: "staging database migration"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
}

func TestConsolidateSyncReturnsSummary(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/banks", createBankRequest{Name: "alpha"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/banks/alpha/consolidate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
}

func TestCreateAndListMentalModels(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/banks", createBankRequest{Name: "alpha"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/banks/alpha/models", createModelRequest{
		Name: "project summary", SourceQuery: "project",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/banks/alpha/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp.Data.([]any)
	require.Len(t, data, 1)
}

func TestCreateModelUnknownBankNotFound(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/v1/banks/missing/models", createModelRequest{
		Name: "x", SourceQuery: "y",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestOperationStatusNotFound(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/v1/operations/does-not-exist", nil)
	require.NotEqual(t, http.StatusOK, w.Code)
}
