// Package gemini embeds text with Google's Gemini embedding models.
package gemini

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"contractqa/internal/domain"
)

// Task types for asymmetric retrieval: chunks are stored as documents and
// questions are embedded as queries.
const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config configures the Gemini embedder.
type Config struct {
	APIKeyEnv string
	Model     string
	// Dimension truncates the output vectors when set.
	Dimension int
}

// Client implements the Embedder interface over the Gemini API.
type Client struct {
	api       embedAPI
	model     string
	dimension int
}

// NewClient creates a Gemini embedder using the key found in cfg.APIKeyEnv.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newClient(gc.Models, cfg), nil
}

func newClient(api embedAPI, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	return &Client{api: api, model: cfg.Model, dimension: cfg.Dimension}
}

func (c *Client) Name() string { return "gemini:" + c.model }

func (c *Client) Prepare(corpus []string) (domain.Embedder, error) { return c, nil }

func (c *Client) Dimension() int { return c.dimension }

// Embed embeds a question.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds document chunks in one request; results keep input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, taskDocument)
}

func (c *Client) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	cfg := &genai.EmbedContentConfig{TaskType: task}
	if c.dimension > 0 {
		d := int32(c.dimension)
		cfg.OutputDimensionality = &d
	}

	resp, err := c.api.EmbedContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: unexpected response size for %d inputs", len(texts))
	}
	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini embeddings: empty vector at %d", i)
		}
		out[i] = e.Values
	}
	if c.dimension == 0 {
		c.dimension = len(out[0])
	}
	return out, nil
}
