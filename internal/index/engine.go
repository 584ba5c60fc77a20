// Package index embeds chunks into a vector store and retrieves them again.
package index

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"contractqa/internal/config"
	"contractqa/internal/domain"
	"contractqa/internal/embedding"
	"contractqa/internal/vectorstore"
)

// ProviderNone is reported when nothing was indexed.
const ProviderNone = "none"

// Recorder receives index build facts for instrumentation.
type Recorder interface {
	ChunksIndexed(provider string, n int)
	ProviderFallback(requested string)
}

// reusableStore is a store that may already hold a corpus from an earlier
// run, such as a local snapshot.
type reusableStore interface {
	Holds(fingerprint string) bool
	Stamp(fingerprint string)
}

// StoreFactory constructs the store for a provider selection.
type StoreFactory func(sel vectorstore.Selection, cfg config.VectorStoreConfig, corpusID, persistDir string) domain.VectorStore

// Engine builds retrievers over a chunk corpus.
type Engine struct {
	embedder     domain.Embedder
	cfg          config.VectorStoreConfig
	batchSize    int
	embedTimeout time.Duration
	storeTimeout time.Duration
	open         StoreFactory
	recorder     Recorder
	logger       arbor.ILogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(n int) Option {
	return func(e *Engine) { e.batchSize = n }
}

// WithEmbedTimeout bounds each embedding request.
func WithEmbedTimeout(d time.Duration) Option {
	return func(e *Engine) { e.embedTimeout = d }
}

// WithStoreTimeout bounds each vector store call. It overrides the
// configured timeout_secs.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) { e.storeTimeout = d }
}

// WithStoreFactory replaces vectorstore.Open.
func WithStoreFactory(f StoreFactory) Option {
	return func(e *Engine) { e.open = f }
}

// WithRecorder reports build facts to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func NewEngine(embedder domain.Embedder, cfg config.VectorStoreConfig, logger arbor.ILogger, opts ...Option) *Engine {
	e := &Engine{
		embedder:     embedder,
		cfg:          cfg,
		batchSize:    embedding.DefaultBatchSize,
		storeTimeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		open:         vectorstore.Open,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build embeds chunks and stores them in the selected provider, falling back
// to the local store when the provider's settings are missing. It returns the
// retriever, the number of chunks indexed and the provider label actually
// used. An empty corpus yields (nil, 0, "none") without error.
func (e *Engine) Build(ctx context.Context, chunks []domain.Chunk, persistDir string) (*Retriever, int, string, error) {
	if len(chunks) == 0 {
		e.logger.Info().Msg("Nothing to index")
		return nil, 0, ProviderNone, nil
	}

	sel := vectorstore.Select(e.cfg)
	if sel.Fallback {
		e.logger.Warn().Str("requested", string(sel.Requested)).Err(sel.Reason).Msg("Vector store not configured, using local fallback")
		if e.recorder != nil {
			e.recorder.ProviderFallback(string(sel.Requested))
		}
	}
	label := sel.Label()

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embedder, err := e.embedder.Prepare(texts)
	if err != nil {
		return nil, 0, "", domain.Classify(domain.ErrEmbeddingFailure, err)
	}

	fp := fingerprint(embedder.Name(), chunks)
	corpusID := uuid.NewString()
	store := e.open(sel, e.cfg, corpusID, persistDir)
	if rs, ok := store.(reusableStore); ok && rs.Holds(fp) {
		e.logger.Info().Str("provider", label).Int("chunks", len(chunks)).Msg("Reusing saved index")
	} else if err := e.fill(ctx, store, embedder, chunks, texts, fp); err != nil {
		return nil, 0, "", err
	}

	e.logger.Info().Str("provider", label).Str("corpus", corpusID).Int("chunks", len(chunks)).Msg("Index built")
	if e.recorder != nil {
		e.recorder.ChunksIndexed(label, len(chunks))
	}

	r := &Retriever{
		store:        store,
		embedder:     embedder,
		chunks:       chunks,
		lexical:      newLexicalIndex(chunks),
		provider:     label,
		corpusID:     corpusID,
		topK:         e.cfg.TopK,
		embedTimeout: e.embedTimeout,
		storeTimeout: e.storeTimeout,
		logger:       e.logger,
	}
	return r, len(chunks), label, nil
}

// fill embeds the corpus and writes it to store.
func (e *Engine) fill(ctx context.Context, store domain.VectorStore, embedder domain.Embedder, chunks []domain.Chunk, texts []string, fp string) error {
	start := time.Now()
	vectors, err := embedding.EmbedAll(ctx, embedder, texts, e.batchSize, e.embedTimeout)
	if err != nil {
		return domain.Classify(domain.ErrEmbeddingFailure, err)
	}
	e.logger.Debug().Str("embedder", embedder.Name()).Int("chunks", len(chunks)).Dur("took", time.Since(start)).Msg("Embedded chunks")

	dim := embedder.Dimension()
	if dim == 0 {
		dim = len(vectors[0])
	}
	if err := e.storeCall(ctx, func(ctx context.Context) error { return store.Init(ctx, dim) }); err != nil {
		return err
	}
	if rs, ok := store.(reusableStore); ok {
		rs.Stamp(fp)
	}
	return e.storeCall(ctx, func(ctx context.Context) error { return store.Upsert(ctx, chunks, vectors) })
}

// fingerprint identifies a corpus as embedded by one embedder.
func fingerprint(embedder string, chunks []domain.Chunk) string {
	h := sha1.New()
	h.Write([]byte(embedder))
	for _, ch := range chunks {
		for _, part := range []string{ch.ChunkID, ch.SourcePath, strconv.Itoa(ch.PageIndex), ch.Text} {
			h.Write([]byte{0})
			h.Write([]byte(part))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) storeCall(ctx context.Context, fn func(context.Context) error) error {
	return domain.Classify(domain.ErrStoreFailure, withTimeout(ctx, e.storeTimeout, fn))
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}
