package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the sidecar's HTTP API. Each call returns a fresh error;
// no retries are attempted here.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  string `json:"status"`
	LanceDB string `json:"lancedb"`
}

// Health issues GET /health with a 2s timeout.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("health check parse failed: %w", err)
	}
	return &body, nil
}

// IngestRequest is the POST /ingest body.
type IngestRequest struct {
	FilePath   string `json:"file_path"`
	Content    string `json:"content"`
	Language   string `json:"language"`
	SourceType string `json:"source_type"`
	GitBranch  string `json:"git_branch"`
}

// IngestedEntity is one code entity returned by /ingest.
type IngestedEntity struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	StartLine *int   `json:"start_line"`
	EndLine   *int   `json:"end_line"`
}

// IngestResponse is the POST /ingest result.
type IngestResponse struct {
	ChunkCount int              `json:"chunk_count"`
	Entities   []IngestedEntity `json:"entities"`
}

// Ingest submits a file for chunking and embedding.
func (c *Client) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	var resp IngestResponse
	if err := c.postJSON(ctx, "/ingest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EmbedRequest is the POST /embed body.
type EmbedRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Embed stores an embedding for arbitrary text.
func (c *Client) Embed(ctx context.Context, req *EmbedRequest) error {
	return c.postJSON(ctx, "/embed", req, nil)
}

// SearchFilters narrows a vector search.
type SearchFilters struct {
	Language       string `json:"language,omitempty"`
	SourceType     string `json:"source_type,omitempty"`
	ChunkType      string `json:"chunk_type,omitempty"`
	FilePathPrefix string `json:"file_path_prefix,omitempty"`
}

// SearchResult is one vector search hit.
type SearchResult struct {
	Text           string  `json:"text"`
	SourceFile     string  `json:"source_file"`
	ChunkIndex     int     `json:"chunk_index"`
	ChunkType      string  `json:"chunk_type"`
	EntityName     *string `json:"entity_name"`
	Language       string  `json:"language"`
	SourceType     string  `json:"source_type"`
	RelevanceScore float64 `json:"relevance_score"`
	CreatedAt      string  `json:"created_at"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search issues GET /search with a 5s timeout.
func (c *Client) Search(ctx context.Context, query string, limit int, filters *SearchFilters) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	if filters != nil {
		if filters.Language != "" {
			q.Set("language", filters.Language)
		}
		if filters.SourceType != "" {
			q.Set("source_type", filters.SourceType)
		}
		if filters.ChunkType != "" {
			q.Set("chunk_type", filters.ChunkType)
		}
		if filters.FilePathPrefix != "" {
			q.Set("file_path_prefix", filters.FilePathPrefix)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search error %d: %s", resp.StatusCode, string(body))
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return body.Results, nil
}

// Reference is one extracted reference from /extract-references.
type Reference struct {
	Text       string  `json:"text"`
	RefType    string  `json:"ref_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

type extractRequest struct {
	Text         string   `json:"text"`
	KnownSymbols []string `json:"known_symbols"`
}

type extractResponse struct {
	References []Reference `json:"references"`
}

// ExtractReferences asks the sidecar to find references in free text,
// biased toward the given known symbols.
func (c *Client) ExtractReferences(ctx context.Context, text string, knownSymbols []string) ([]Reference, error) {
	if knownSymbols == nil {
		knownSymbols = []string{}
	}
	var resp extractResponse
	if err := c.postJSON(ctx, "/extract-references", &extractRequest{Text: text, KnownSymbols: knownSymbols}, &resp); err != nil {
		return nil, err
	}
	return resp.References, nil
}

// DeleteEmbeddings removes every embedding keyed by source_file.
func (c *Client) DeleteEmbeddings(ctx context.Context, sourceFile string) error {
	q := url.Values{}
	q.Set("source_file", sourceFile)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/embeddings?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete embeddings error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s error %d: %s", path, resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
