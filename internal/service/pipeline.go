// Package service wires loading, chunking, indexing and answering together.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"contractqa/internal/domain"
	"contractqa/internal/index"
	"contractqa/internal/loader"
	"contractqa/internal/metrics"
)

// IngestResult describes one ingestion. Retriever is nil when nothing was
// indexed, in which case Provider is "none".
type IngestResult struct {
	Retriever  *index.Retriever
	ChunkCount int
	Provider   string
	Archived   []string
	Warnings   []string
}

// ArchiveLog yields where loaded files were archived and the non-fatal
// problems met while archiving them.
type ArchiveLog interface {
	Drain() (stored, warnings []string)
}

// Pipeline runs ingestion and question answering.
type Pipeline struct {
	loader       *loader.Loader
	chunker      domain.Chunker
	engine       *index.Engine
	synthesizer  domain.Synthesizer
	archiveLog   ArchiveLog
	metrics      *metrics.Metrics
	synthTimeout time.Duration
	logger       arbor.ILogger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithArchiveLog reports l's locations and warnings after each load.
func WithArchiveLog(l ArchiveLog) Option {
	return func(p *Pipeline) { p.archiveLog = l }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithSynthesisTimeout bounds each answer synthesis call.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.synthTimeout = d }
}

func NewPipeline(l *loader.Loader, c domain.Chunker, e *index.Engine, s domain.Synthesizer, logger arbor.ILogger, opts ...Option) *Pipeline {
	p := &Pipeline{loader: l, chunker: c, engine: e, synthesizer: s, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest loads paths, chunks their pages and builds an index. Unusable paths
// only reduce the chunk count. persistDir is a hint for the local store.
func (p *Pipeline) Ingest(ctx context.Context, paths []string, persistDir string) (IngestResult, error) {
	start := time.Now()
	defer func() { p.metrics.IngestFinished(time.Since(start)) }()

	records, err := p.loader.Load(ctx, paths)
	var archived, warnings []string
	if p.archiveLog != nil {
		archived, warnings = p.archiveLog.Drain()
	}
	if err != nil {
		p.fail(err)
		return IngestResult{}, err
	}

	chunks, err := p.chunker.Chunk(records)
	if err != nil {
		p.fail(err)
		return IngestResult{}, err
	}
	p.logger.Info().Int("paths", len(paths)).Int("pages", len(records)).Int("chunks", len(chunks)).Msg("Chunked documents")

	retriever, n, provider, err := p.engine.Build(ctx, chunks, persistDir)
	if err != nil {
		p.fail(err)
		return IngestResult{Archived: archived, Warnings: warnings}, err
	}
	return IngestResult{Retriever: retriever, ChunkCount: n, Provider: provider, Archived: archived, Warnings: warnings}, nil
}

// Ask answers question from the retriever's corpus. Source pages are the
// one-based pages of the retrieved chunks, whatever the answer text says.
func (p *Pipeline) Ask(ctx context.Context, r *index.Retriever, question string) (domain.Answer, error) {
	if r == nil {
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrNoIndex)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	start := time.Now()
	evidence, err := r.Retrieve(ctx, question)
	if err != nil {
		p.fail(err)
		return domain.Answer{}, err
	}

	sctx := ctx
	if p.synthTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, p.synthTimeout)
		defer cancel()
	}
	text, err := p.synthesizer.Synthesize(sctx, question, evidence)
	if err != nil {
		err = domain.Classify(domain.ErrSynthesisFailure, err)
		p.fail(err)
		return domain.Answer{}, err
	}

	p.metrics.QueryAnswered(time.Since(start))
	p.logger.Debug().Str("synthesizer", p.synthesizer.Name()).Int("evidence", len(evidence)).Dur("took", time.Since(start)).Msg("Answered question")
	return domain.Answer{Text: text, SourcePages: SourcePages(evidence), Evidence: evidence}, nil
}

// SourcePages returns the sorted, distinct one-based pages of the results.
// Chunks without a page are ignored.
func SourcePages(results []domain.SearchResult) []int {
	seen := make(map[int]struct{}, len(results))
	pages := make([]int, 0, len(results))
	for _, r := range results {
		if r.Chunk.PageIndex < 0 {
			continue
		}
		page := r.Chunk.PageIndex + 1
		if _, ok := seen[page]; ok {
			continue
		}
		seen[page] = struct{}{}
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

func (p *Pipeline) fail(err error) {
	kind := Kind(err)
	p.metrics.Failure(kind)
	p.logger.Error().Str("kind", kind).Err(err).Msg("Pipeline failure")
}

// Kind names the error category of err for logs, metrics and user messages.
func Kind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrEmbeddingFailure):
		return "embedding"
	case errors.Is(err, domain.ErrStoreFailure):
		return "store"
	case errors.Is(err, domain.ErrSynthesisFailure):
		return "synthesis"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
