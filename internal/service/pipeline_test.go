package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"contractqa/internal/archive"
	"contractqa/internal/chunker"
	"contractqa/internal/config"
	"contractqa/internal/domain"
	"contractqa/internal/embedding/tfidf"
	"contractqa/internal/index"
	"contractqa/internal/loader"
	"contractqa/internal/metrics"
	"contractqa/internal/synthesis"
)

// formFeedExtractor treats file content as pages separated by form feeds.
type formFeedExtractor struct{}

func (formFeedExtractor) ExtractPages(data []byte) ([]string, error) {
	return strings.Split(string(data), "\f"), nil
}

type brokenEmbedder struct {
	domain.Embedder
	err   error
	delay time.Duration
}

func (b brokenEmbedder) Name() string                              { return "broken" }
func (b brokenEmbedder) Prepare([]string) (domain.Embedder, error) { return b, nil }
func (b brokenEmbedder) Dimension() int                            { return 2 }
func (b brokenEmbedder) EmbedBatch(ctx context.Context, _ []string) ([][]float32, error) {
	if b.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.delay):
		}
	}
	return nil, b.err
}

type brokenSynthesizer struct{}

func (brokenSynthesizer) Name() string { return "broken" }
func (brokenSynthesizer) Synthesize(context.Context, string, []domain.SearchResult) (string, error) {
	return "", errors.New("model overloaded")
}

type failingArchive struct{}

func (failingArchive) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("bucket unreachable")
}

type fixture struct {
	embedder    domain.Embedder
	store       config.VectorStoreConfig
	synthesizer domain.Synthesizer
	engineOpts  []index.Option
	observer    *archive.Recorder
}

func newPipeline(f fixture) *Pipeline {
	logger := arbor.NewNoOpLogger()
	if f.embedder == nil {
		f.embedder = tfidf.NewEmbedder()
	}
	if f.synthesizer == nil {
		f.synthesizer = synthesis.NewExtractive(3)
	}
	loaderOpts := []loader.Option{loader.WithExtractor(formFeedExtractor{})}
	var opts []Option
	if f.observer != nil {
		loaderOpts = append(loaderOpts, loader.WithObserver(f.observer))
		opts = append(opts, WithArchiveLog(f.observer))
	}
	opts = append(opts, WithMetrics(metrics.New()))
	return NewPipeline(
		loader.New(logger, loaderOpts...),
		chunker.NewWindowChunker(1000, 150),
		index.NewEngine(f.embedder, f.store, logger, f.engineOpts...),
		f.synthesizer,
		logger,
		opts...,
	)
}

func writeDoc(t *testing.T, dir, name string, pages ...string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(pages, "\f")), 0o600))
	return p
}

func TestIngest_DefaultProviderFallsBack(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "acme.pdf", "The sponsorship term is three seasons.")

	res, err := newPipeline(fixture{}).Ingest(context.Background(), []string{doc}, "")
	require.NoError(t, err)
	assert.Equal(t, "chroma (fallback)", res.Provider)
	assert.Equal(t, 1, res.ChunkCount)
	require.NotNil(t, res.Retriever)
	assert.Equal(t, 1, res.Retriever.ChunkCount())
}

func TestIngest_NothingValid(t *testing.T) {
	dir := t.TempDir()
	p := newPipeline(fixture{})

	for _, paths := range [][]string{nil, {filepath.Join(dir, "missing.pdf"), writeDoc(t, dir, "notes.txt", "x")}} {
		res, err := p.Ingest(context.Background(), paths, "")
		require.NoError(t, err)
		assert.Nil(t, res.Retriever)
		assert.Equal(t, 0, res.ChunkCount)
		assert.Equal(t, "none", res.Provider)
	}
}

func TestAsk_CitesTheOnlyMatchingPage(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "acme.pdf", "", "", " ", "", "Beverage exclusivity ends after the 2027 season.")

	p := newPipeline(fixture{})
	res, err := p.Ingest(context.Background(), []string{doc}, "")
	require.NoError(t, err)
	require.Equal(t, 1, res.ChunkCount)

	ans, err := p.Ask(context.Background(), res.Retriever, "When does beverage exclusivity end?")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, ans.SourcePages)
	assert.Contains(t, ans.Text, "Beverage exclusivity ends after the 2027 season.")
}

func TestAsk_CitationsMatchRetrievedSet(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("Sponsor receives hospitality suites and parking passes. ", 25)
	a := writeDoc(t, dir, "a.pdf", "The annual fee is $250,000 payable in July.", long, "Signage includes the LED ribbon.")
	b := writeDoc(t, dir, "b.pdf", "Exclusivity covers the beverage category.", "The annual fee escalates three percent per season.")

	p := newPipeline(fixture{store: config.VectorStoreConfig{Provider: "chroma", TopK: 3}})
	res, err := p.Ingest(context.Background(), []string{a, b}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "chroma", res.Provider)

	for _, q := range []string{"What is the annual fee?", "hospitality suites", "signage", "completely unrelated"} {
		ans, err := p.Ask(context.Background(), res.Retriever, q)
		require.NoError(t, err, q)
		require.NotEmpty(t, ans.Evidence, q)

		want := map[int]bool{}
		for _, ev := range ans.Evidence {
			want[ev.Chunk.PageIndex+1] = true
		}
		for i, page := range ans.SourcePages {
			assert.True(t, want[page], "query %q: page %d not in retrieved set", q, page)
			if i > 0 {
				assert.Greater(t, page, ans.SourcePages[i-1], "query %q", q)
			}
		}
		assert.Len(t, ans.SourcePages, len(want), q)
	}
}

func TestAsk_InvalidInput(t *testing.T) {
	p := newPipeline(fixture{})
	_, err := p.Ask(context.Background(), nil, "What is the fee?")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, err, domain.ErrNoIndex)

	dir := t.TempDir()
	res, err := p.Ingest(context.Background(), []string{writeDoc(t, dir, "a.pdf", "Fee terms.")}, "")
	require.NoError(t, err)
	_, err = p.Ask(context.Background(), res.Retriever, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngest_EmbeddingFailureIsNotMasked(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.pdf", "Fee terms.")
	p := newPipeline(fixture{embedder: brokenEmbedder{err: errors.New("401 invalid api key")}})

	res, err := p.Ingest(context.Background(), []string{doc}, "")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
	assert.Nil(t, res.Retriever)
	assert.Equal(t, "embedding", Kind(err))
}

func TestIngest_EmbeddingTimeout(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.pdf", "Fee terms.")
	p := newPipeline(fixture{
		embedder:   brokenEmbedder{delay: time.Second},
		engineOpts: []index.Option{index.WithEmbedTimeout(20 * time.Millisecond)},
	})

	_, err := p.Ingest(context.Background(), []string{doc}, "")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, "timeout", Kind(err))
}

func TestIngest_ArchiveFailureIsAWarning(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.pdf", "Fee terms.")
	rec := archive.NewRecorder(failingArchive{}, "contracts", 0, arbor.NewNoOpLogger())

	res, err := newPipeline(fixture{observer: rec}).Ingest(context.Background(), []string{doc}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Empty(t, res.Archived)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "bucket unreachable")
}

func TestIngest_ReportsArchivedLocations(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.pdf", "Fee terms.")
	root := t.TempDir()
	rec := archive.NewRecorder(archive.NewDir(root), "contracts", 0, arbor.NewNoOpLogger())

	res, err := newPipeline(fixture{observer: rec}).Ingest(context.Background(), []string{doc}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "contracts", "a.pdf")}, res.Archived)
	assert.Empty(t, res.Warnings)
}

func TestIngest_RepeatedPathIndexedOnce(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.pdf", "Fee terms.", "Signage terms.")

	res, err := newPipeline(fixture{}).Ingest(context.Background(), []string{doc, doc}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChunkCount)
}

func TestAsk_SynthesisFailure(t *testing.T) {
	dir := t.TempDir()
	p := newPipeline(fixture{synthesizer: brokenSynthesizer{}})
	res, err := p.Ingest(context.Background(), []string{writeDoc(t, dir, "a.pdf", "Fee terms.")}, "")
	require.NoError(t, err)

	_, err = p.Ask(context.Background(), res.Retriever, "fee")
	assert.ErrorIs(t, err, domain.ErrSynthesisFailure)
}

func TestSourcePages(t *testing.T) {
	res := []domain.SearchResult{
		{Chunk: domain.Chunk{PageIndex: 4}},
		{Chunk: domain.Chunk{PageIndex: -1}},
		{Chunk: domain.Chunk{PageIndex: 0}},
		{Chunk: domain.Chunk{PageIndex: 4}},
		{Chunk: domain.Chunk{PageIndex: 2}},
	}
	assert.Equal(t, []int{1, 3, 5}, SourcePages(res))
	assert.Empty(t, SourcePages(nil))
}

func TestKind(t *testing.T) {
	tests := map[string]error{
		"timeout":       fmt.Errorf("%w: %w", domain.ErrTimeout, context.DeadlineExceeded),
		"embedding":     fmt.Errorf("%w: boom", domain.ErrEmbeddingFailure),
		"store":         fmt.Errorf("%w: boom", domain.ErrStoreFailure),
		"synthesis":     fmt.Errorf("%w: boom", domain.ErrSynthesisFailure),
		"invalid_input": domain.ErrInvalidInput,
		"canceled":      context.Canceled,
		"other":         errors.New("boom"),
	}
	for want, err := range tests {
		assert.Equal(t, want, Kind(err))
	}
}
