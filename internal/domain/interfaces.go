package domain

import "context"

// PageRecord is the extracted text of one page of one source document.
type PageRecord struct {
	SourcePath string
	PageIndex  int // zero-based
	Text       string
}

// Chunk is a bounded slice of document text used for indexing.
// PageIndex is the first page contributing text to the chunk, or -1 when unknown.
type Chunk struct {
	DocumentID string
	ChunkID    string
	SourcePath string
	PageIndex  int
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Answer is a synthesized response plus the one-based pages it was drawn from.
type Answer struct {
	Text        string
	SourcePages []int
	Evidence    []SearchResult
}

// Chunker splits ordered page records into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(pages []PageRecord) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Prepare returns the embedder to use for one corpus; corpus-fitted
// implementations return a new value and leave the receiver unchanged.
type Embedder interface {
	Name() string
	Prepare(corpus []string) (Embedder, error)
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	Clear(ctx context.Context) error
}

// Synthesizer composes an answer to a question using only the supplied evidence.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, question string, evidence []SearchResult) (string, error)
}
