package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "pinecone", cfg.VectorStore.Provider)
	assert.Nil(t, cfg.VectorStore.Pinecone)
	assert.Equal(t, 5, cfg.VectorStore.TopK)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 150, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "extractive", cfg.Synthesizer.Type)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
embedder:
  type: tfidf
chunker:
  chunk_size: 400
  chunk_overlap: 40
vector_store:
  provider: Qdrant
  top_k: 3
  qdrant:
    url: http://localhost:6333
synthesizer:
  type: openai
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, 400, cfg.Chunker.ChunkSize)
	assert.Equal(t, 40, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "Qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, 3, cfg.VectorStore.TopK)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "sports_ai", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, "gpt-4o-mini", cfg.Synthesizer.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Synthesizer.APIKeyEnv)
}

func TestLoad_RejectsOverlapNotBelowSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "chunker:\n  chunk_size: 100\n  chunk_overlap: 100\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownSynthesizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synthesizer:\n  type: oracle\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_NegativeMaxRetriesDisablesRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: openai\n  openai:\n    max_retries: -1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Embedder.OpenAI.MaxRetries)

	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: openai\n  openai:\n    max_retries: -2\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_AcceptsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_store:\n  provider: weaviate\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "weaviate", cfg.VectorStore.Provider)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.VectorStore.Provider = "chroma"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "chroma", loaded.VectorStore.Provider)
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *AppConfig)
	}{
		{
			name: "no env keeps pinecone unconfigured",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "pinecone", cfg.VectorStore.Provider)
				assert.Nil(t, cfg.VectorStore.Pinecone)
				assert.Nil(t, cfg.VectorStore.Qdrant)
			},
		},
		{
			name: "pinecone credentials",
			env: map[string]string{
				"PINECONE_API_KEY": "pk",
				"PINECONE_ENV":     "us-east-1",
			},
			check: func(t *testing.T, cfg *AppConfig) {
				require.NotNil(t, cfg.VectorStore.Pinecone)
				assert.Equal(t, "pk", cfg.VectorStore.Pinecone.APIKey)
				assert.Equal(t, "us-east-1", cfg.VectorStore.Pinecone.Environment)
				assert.Equal(t, "sports_ai", cfg.VectorStore.Pinecone.Index)
			},
		},
		{
			name: "qdrant selection",
			env: map[string]string{
				"VECTOR_DB_PROVIDER": "qdrant",
				"QDRANT_URL":         "http://q:6333",
				"QDRANT_COLLECTION":  "contracts",
			},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
				require.NotNil(t, cfg.VectorStore.Qdrant)
				assert.Equal(t, "http://q:6333", cfg.VectorStore.Qdrant.URL)
				assert.Equal(t, "contracts", cfg.VectorStore.Qdrant.Collection)
			},
		},
		{
			name: "blank values are ignored",
			env:  map[string]string{"VECTOR_DB_PROVIDER": "  ", "EMBED_MODEL": ""},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "pinecone", cfg.VectorStore.Provider)
				assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
			},
		},
		{
			name: "s3 bucket enables archive",
			env:  map[string]string{"S3_BUCKET": "uploads", "AWS_DEFAULT_REGION": "eu-west-1"},
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "s3", cfg.Archive.Type)
				assert.Equal(t, "uploads", cfg.Archive.Bucket)
				assert.Equal(t, "eu-west-1", cfg.Archive.Region)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			ApplyEnv(cfg, envMap(tc.env))
			tc.check(t, cfg)
		})
	}
}
