package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	TimeoutSecs       int     `yaml:"timeout_secs" validate:"gte=0"`
	BatchSize         int     `yaml:"batch_size" validate:"gte=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	// MaxRetries of 0 takes the default; a negative value disables retries.
	MaxRetries        int     `yaml:"max_retries" validate:"gte=-1"`
}

// GeminiEmbedderConfig holds configuration for the Gemini embedder.
type GeminiEmbedderConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	Dimension   int    `yaml:"dimension" validate:"gte=0"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type" validate:"omitempty,oneof=openai gemini tfidf"`
	Model  string                `yaml:"model"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// ChunkerConfig configures how pages are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// VectorStoreConfig selects and configures the vector store provider.
// Provider is deliberately free-form: unknown values resolve to the local store.
type VectorStoreConfig struct {
	Provider    string          `yaml:"provider"`
	TopK        int             `yaml:"top_k" validate:"gte=1"`
	TimeoutSecs int             `yaml:"timeout_secs" validate:"gte=0"`
	Pinecone    *PineconeConfig `yaml:"pinecone,omitempty"`
	Qdrant      *QdrantConfig   `yaml:"qdrant,omitempty"`
}

// PineconeConfig contains connection details for a Pinecone index.
type PineconeConfig struct {
	APIKey      string `yaml:"api_key"`
	Environment string `yaml:"environment"`
	Index       string `yaml:"index"`
	Host        string `yaml:"host"`
	ControlURL  string `yaml:"control_url"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// SynthesizerConfig selects and configures answer synthesis.
type SynthesizerConfig struct {
	Type         string  `yaml:"type" validate:"omitempty,oneof=extractive openai claude gemini"`
	Model        string  `yaml:"model"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	BaseURL      string  `yaml:"base_url"`
	Temperature  float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int     `yaml:"max_tokens" validate:"gte=0"`
	MaxSentences int     `yaml:"max_sentences" validate:"gte=0"`
	TimeoutSecs  int     `yaml:"timeout_secs" validate:"gte=0"`
}

// ArchiveConfig selects where original uploads are kept.
type ArchiveConfig struct {
	Type   string `yaml:"type" validate:"omitempty,oneof=none dir badger s3"`
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

// LoggingConfig configures the arbor logger.
type LoggingConfig struct {
	Level  string   `yaml:"level"`
	Output []string `yaml:"output"`
	File   string   `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/contractqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/contractqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks field constraints declared in struct tags.
func Validate(cfg *AppConfig) error {
	return validator.New().Struct(cfg)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "contractqa", "config.yaml"), nil
}

// Default returns the built-in configuration: Pinecone selected, nothing
// connected, offline answer synthesis.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "openai", Model: "text-embedding-3-small"},
		Chunker:     ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 150},
		VectorStore: VectorStoreConfig{Provider: "pinecone", TopK: 5},
		Synthesizer: SynthesizerConfig{Type: "extractive", MaxSentences: 3},
		Archive:     ArchiveConfig{Type: "none"},
		Logging:     LoggingConfig{Level: "info", Output: []string{"console"}},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.VectorStore.TopK == 0 {
		cfg.VectorStore.TopK = 5
	}
	if cfg.VectorStore.TimeoutSecs == 0 {
		cfg.VectorStore.TimeoutSecs = 15
	}
	if cfg.Embedder.Model == "" {
		switch cfg.Embedder.Type {
		case "gemini":
			cfg.Embedder.Model = "text-embedding-004"
		case "openai", "":
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedder.Type == "openai" || cfg.Embedder.Type == "" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 5
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		g := cfg.Embedder.Gemini
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "GEMINI_API_KEY"
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 30
		}
	}
	if cfg.VectorStore.Pinecone != nil && cfg.VectorStore.Pinecone.Index == "" {
		cfg.VectorStore.Pinecone.Index = "sports_ai"
	}
	if cfg.VectorStore.Qdrant != nil && cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "sports_ai"
	}
	s := &cfg.Synthesizer
	if s.MaxSentences == 0 {
		s.MaxSentences = 3
	}
	if s.TimeoutSecs == 0 {
		s.TimeoutSecs = 60
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = 800
	}
	switch s.Type {
	case "openai":
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "OPENAI_API_KEY"
		}
		if s.Model == "" {
			s.Model = "gpt-4o-mini"
		}
	case "claude":
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		if s.Model == "" {
			s.Model = "claude-3-5-haiku-latest"
		}
	case "gemini":
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "GEMINI_API_KEY"
		}
		if s.Model == "" {
			s.Model = "gemini-2.0-flash"
		}
	}
	if cfg.Archive.Type == "" {
		cfg.Archive.Type = "none"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "contracts"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
