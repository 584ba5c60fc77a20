package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"contractqa/internal/domain"
)

type generateAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini synthesizer.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Gemini answers with Gemini GenerateContent.
type Gemini struct {
	api         generateAPI
	model       string
	temperature float32
	maxTokens   int32
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini synthesizer: missing API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(api generateAPI, cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &Gemini{
		api:         api,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Synthesize(ctx context.Context, question string, evidence []domain.SearchResult) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = g.maxTokens
	}
	contents := []*genai.Content{genai.NewContentFromText(UserPrompt(question, evidence), genai.RoleUser)}

	resp, err := g.api.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", failure("gemini", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", failure("gemini", errors.New("empty response"))
	}
	return text, nil
}
