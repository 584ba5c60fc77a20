// Package pinecone is a REST client for a Pinecone serverless index.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"contractqa/internal/domain"
)

const (
	defaultControlURL = "https://api.pinecone.io"
	apiVersion        = "2024-07"
	upsertBatch       = 100
)

type Config struct {
	APIKey string
	Index  string
	// Host is the data-plane host of the index. When empty it is looked up
	// through the control plane on Init.
	Host       string
	ControlURL string
	Namespace  string
	Timeout    time.Duration
}

// Storage keeps one ingestion's vectors in its own namespace of the index.
type Storage struct {
	apiKey     string
	index      string
	host       string
	controlURL string
	namespace  string
	dimension  int
	client     *http.Client
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	control := cfg.ControlURL
	if control == "" {
		control = defaultControlURL
	}
	return &Storage{
		apiKey:     cfg.APIKey,
		index:      cfg.Index,
		host:       normalizeHost(cfg.Host),
		controlURL: strings.TrimRight(control, "/"),
		namespace:  cfg.Namespace,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init resolves the index host when needed and checks the index dimension.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	if s.host != "" {
		return nil
	}
	if s.index == "" {
		return errors.New("pinecone index name is empty")
	}
	var desc struct {
		Host      string `json:"host"`
		Dimension int    `json:"dimension"`
	}
	if err := s.do(ctx, http.MethodGet, s.controlURL+"/indexes/"+s.index, nil, &desc); err != nil {
		return fmt.Errorf("describe index %s: %w", s.index, err)
	}
	if desc.Host == "" {
		return fmt.Errorf("describe index %s: no host in response", s.index)
	}
	if desc.Dimension != 0 && desc.Dimension != dimension {
		return fmt.Errorf("index %s has dimension %d, embeddings have %d", s.index, desc.Dimension, dimension)
	}
	s.host = normalizeHost(desc.Host)
	return nil
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if s.host == "" {
		return errors.New("pinecone storage not initialized")
	}
	for start := 0; start < len(chunks); start += upsertBatch {
		end := min(start+upsertBatch, len(chunks))
		batch := make([]vector, 0, end-start)
		for i := start; i < end; i++ {
			ch := chunks[i]
			batch = append(batch, vector{
				ID:     ch.ChunkID,
				Values: vectors[i],
				Metadata: map[string]any{
					"document_id": ch.DocumentID,
					"source_path": ch.SourcePath,
					"page_index":  ch.PageIndex,
					"index":       ch.Index,
					"text":        ch.Text,
				},
			})
		}
		body := map[string]any{"vectors": batch, "namespace": s.namespace}
		if err := s.do(ctx, http.MethodPost, s.host+"/vectors/upsert", body, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vec []float32, topK int) ([]domain.SearchResult, error) {
	if s.host == "" {
		return nil, errors.New("pinecone storage not initialized")
	}
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":          vec,
		"topK":            topK,
		"includeMetadata": true,
		"namespace":       s.namespace,
	}
	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.do(ctx, http.MethodPost, s.host+"/query", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		chunk := domain.Chunk{ChunkID: m.ID, PageIndex: -1}
		if v, ok := m.Metadata["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := m.Metadata["source_path"].(string); ok {
			chunk.SourcePath = v
		}
		if v, ok := m.Metadata["page_index"].(float64); ok {
			chunk.PageIndex = int(v)
		}
		if v, ok := m.Metadata["index"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := m.Metadata["text"].(string); ok {
			chunk.Text = v
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: m.Score})
	}
	return results, nil
}

// Clear deletes the namespace's vectors. A namespace that was never
// written is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	if s.host == "" {
		return nil
	}
	body := map[string]any{"deleteAll": true, "namespace": s.namespace}
	err := s.do(ctx, http.MethodPost, s.host+"/vectors/delete", body, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", s.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{
			code: resp.StatusCode,
			msg:  fmt.Sprintf("pinecone %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg))),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("pinecone %s %s: decode response: %w", method, url, err)
		}
	}
	return nil
}

func normalizeHost(h string) string {
	h = strings.TrimRight(strings.TrimSpace(h), "/")
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
		h = "https://" + h
	}
	return h
}
