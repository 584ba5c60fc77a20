package synthesis

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"contractqa/internal/domain"
)

// OpenAIConfig configures the chat-completions synthesizer.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAI answers with an OpenAI-compatible chat completion.
type OpenAI struct {
	api         *goopenai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai synthesizer: missing API key")
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}
	temp := float32(cfg.Temperature)
	if temp == 0 {
		// zero is dropped from the request body by omitempty
		temp = math.SmallestNonzeroFloat32
	}
	return &OpenAI{
		api:         goopenai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Synthesize(ctx context.Context, question string, evidence []domain.SearchResult) (string, error) {
	resp, err := o.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: o.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: UserPrompt(question, evidence)},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", failure("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", failure("openai", errors.New("empty response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
