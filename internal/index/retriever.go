package index

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"contractqa/internal/domain"
	"contractqa/internal/embedding"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// Retriever answers similarity queries against one built index.
type Retriever struct {
	store        domain.VectorStore
	embedder     domain.Embedder
	chunks       []domain.Chunk
	lexical      *lexicalIndex
	provider     string
	corpusID     string
	topK         int
	embedTimeout time.Duration
	storeTimeout time.Duration
	logger       arbor.ILogger
}

// Provider is the label of the store that served the build.
func (r *Retriever) Provider() string { return r.provider }

// ChunkCount is the number of chunks indexed.
func (r *Retriever) ChunkCount() int { return len(r.chunks) }

// CorpusID identifies this ingestion inside a shared remote store.
func (r *Retriever) CorpusID() string { return r.corpusID }

// Retrieve returns up to top-K chunks most similar to question, best first.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]domain.SearchResult, error) {
	topK := r.topK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var vec []float32
	err := withTimeout(ctx, r.embedTimeout, func(ctx context.Context) error {
		var err error
		vec, err = r.embedder.Embed(ctx, question)
		return err
	})
	if err != nil {
		return nil, domain.Classify(domain.ErrEmbeddingFailure, err)
	}
	// Detect zero vector (no known tokens)
	if embedding.IsZero(vec) {
		r.logger.Debug().Msg("Query vector is empty, ranking lexically")
		return r.lexical.search(question, topK), nil
	}

	var res []domain.SearchResult
	err = withTimeout(ctx, r.storeTimeout, func(ctx context.Context) error {
		var err error
		res, err = r.store.Search(ctx, vec, topK)
		return err
	})
	if err != nil {
		return nil, domain.Classify(domain.ErrStoreFailure, err)
	}
	allZero := true
	for _, hit := range res {
		if hit.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		return r.lexical.search(question, topK), nil
	}
	return res, nil
}

// Close removes this corpus from the store. Remote stores delete the
// vectors written under its corpus ID. Close on a nil Retriever is a no-op.
func (r *Retriever) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	err := withTimeout(ctx, r.storeTimeout, r.store.Clear)
	if err != nil {
		r.logger.Warn().Err(err).Str("corpus", r.corpusID).Msg("Failed to clear index")
	}
	return domain.Classify(domain.ErrStoreFailure, err)
}
