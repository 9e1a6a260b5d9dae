package sidecar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthOk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "lancedb": "connected"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "connected", health.LanceDB)
}

func TestHealthUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.Health(context.Background())
	require.Error(t, err)
}

func TestIngestRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ingest", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req IngestRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "src/main.rs", req.FilePath)
		assert.Equal(t, "rust", req.Language)
		assert.Equal(t, "code", req.SourceType)
		assert.Equal(t, "main", req.GitBranch)

		start := 1
		json.NewEncoder(w).Encode(IngestResponse{
			ChunkCount: 4,
			Entities:   []IngestedEntity{{Name: "main", Type: "function", StartLine: &start}},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	resp, err := c.Ingest(context.Background(), &IngestRequest{
		FilePath:   "src/main.rs",
		Content:    "fn main(){}",
		Language:   "rust",
		SourceType: "code",
		GitBranch:  "main",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.ChunkCount)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "main", resp.Entities[0].Name)
}

func TestIngestNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.Ingest(context.Background(), &IngestRequest{FilePath: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestEmbedSendsMetadata(t *testing.T) {
	var got EmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	err := c.Embed(context.Background(), &EmbedRequest{
		Text:     "Note: T\n\nbody",
		Metadata: map[string]string{"source_file": "note_1", "chunk_type": "note"},
	})
	require.NoError(t, err)
	assert.Equal(t, "note_1", got.Metadata["source_file"])
}

func TestSearchBuildsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "panel", q.Get("query"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "rust", q.Get("language"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"text": "hit", "source_file": "a.rs", "chunk_index": 0, "relevance_score": 0.7},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	results, err := c.Search(context.Background(), "panel", 5, &SearchFilters{Language: "rust"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hit", results[0].Text)
	assert.Equal(t, 0.7, results[0].RelevanceScore)
}

func TestExtractReferences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text         string   `json:"text"`
			KnownSymbols []string `json:"known_symbols"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"SearchPanel"}, req.KnownSymbols)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"references": []map[string]interface{}{
				{"text": "SearchPanel", "ref_type": "code_symbol", "start": 4, "end": 15, "confidence": 0.9},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	refs, err := c.ExtractReferences(context.Background(), "see SearchPanel", []string{"SearchPanel"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "code_symbol", refs[0].RefType)
	assert.Equal(t, 0.9, refs[0].Confidence)
}

func TestDeleteEmbeddingsQueryParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "src/main.rs", r.URL.Query().Get("source_file"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	require.NoError(t, c.DeleteEmbeddings(context.Background(), "src/main.rs"))
}
