package index

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"contractqa/internal/config"
	"contractqa/internal/domain"
	"contractqa/internal/embedding/tfidf"
	"contractqa/internal/vectorstore"
)

var keywords = []string{"term", "fee", "signage", "exclusivity"}

// keywordEmbedder maps text to keyword counts.
type keywordEmbedder struct {
	err   error
	delay time.Duration
	calls int
}

func (k *keywordEmbedder) Name() string                              { return "keyword" }
func (k *keywordEmbedder) Prepare([]string) (domain.Embedder, error) { return k, nil }
func (k *keywordEmbedder) Dimension() int                            { return len(keywords) }

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	if k.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(k.delay):
		}
	}
	lower := strings.ToLower(text)
	v := make([]float32, len(keywords))
	for i, kw := range keywords {
		v[i] = float32(strings.Count(lower, kw))
	}
	return v, nil
}

func (k *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := k.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type recorder struct {
	indexed   map[string]int
	fallbacks []string
}

func (r *recorder) ChunksIndexed(provider string, n int) {
	if r.indexed == nil {
		r.indexed = map[string]int{}
	}
	r.indexed[provider] += n
}

func (r *recorder) ProviderFallback(requested string) { r.fallbacks = append(r.fallbacks, requested) }

type failingStore struct {
	domain.VectorStore
	err error
}

func (f failingStore) Init(context.Context, int) error { return f.err }

// stubStore counts calls and, when asked, blocks until the context ends.
type stubStore struct {
	inits, upserts, clears int
	blockInit, blockSearch bool
}

func (s *stubStore) Init(ctx context.Context, _ int) error {
	s.inits++
	if s.blockInit {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *stubStore) Upsert(context.Context, []domain.Chunk, [][]float32) error {
	s.upserts++
	return nil
}

func (s *stubStore) Search(ctx context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
	if s.blockSearch {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []domain.SearchResult{{Chunk: corpus()[0], Score: 1}}, nil
}

func (s *stubStore) Clear(context.Context) error {
	s.clears++
	return nil
}

func stubFactory(s *stubStore) StoreFactory {
	return func(vectorstore.Selection, config.VectorStoreConfig, string, string) domain.VectorStore { return s }
}

func corpus() []domain.Chunk {
	return []domain.Chunk{
		{ChunkID: "d:0", PageIndex: 0, Text: "The term of this agreement is three seasons."},
		{ChunkID: "d:1", PageIndex: 1, Text: "Sponsor pays an annual fee of $250,000. The fee is due in July."},
		{ChunkID: "d:2", PageIndex: 4, Text: "Signage includes the LED ribbon and signage at gate B."},
		{ChunkID: "d:3", PageIndex: 5, Text: "Exclusivity applies to the beverage category."},
	}
}

func TestBuild_EmptyCorpus(t *testing.T) {
	emb := &keywordEmbedder{}
	e := NewEngine(emb, config.VectorStoreConfig{}, arbor.NewNoOpLogger())

	r, n, provider, err := e.Build(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, 0, n)
	assert.Equal(t, "none", provider)
	assert.Zero(t, emb.calls)
}

func TestBuild_DefaultProviderFallsBack(t *testing.T) {
	rec := &recorder{}
	e := NewEngine(&keywordEmbedder{}, config.VectorStoreConfig{TopK: 5}, arbor.NewNoOpLogger(), WithRecorder(rec))

	r, n, provider, err := e.Build(context.Background(), corpus()[:1], t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 1, n)
	assert.Equal(t, "chroma (fallback)", provider)
	assert.Equal(t, "chroma (fallback)", r.Provider())
	assert.Equal(t, 1, r.ChunkCount())
	assert.NotEmpty(t, r.CorpusID())
	assert.Equal(t, []string{"pinecone"}, rec.fallbacks)
	assert.Equal(t, 1, rec.indexed["chroma (fallback)"])
}

func TestBuild_QdrantWithoutURLFallsBack(t *testing.T) {
	cfg := config.VectorStoreConfig{Provider: "qdrant", Qdrant: &config.QdrantConfig{Collection: "c"}}
	_, _, provider, err := NewEngine(&keywordEmbedder{}, cfg, arbor.NewNoOpLogger()).Build(context.Background(), corpus(), "")
	require.NoError(t, err)
	assert.Equal(t, "chroma (fallback)", provider)
}

func TestBuild_FreshCorpusPerBuild(t *testing.T) {
	var ids []string
	factory := func(sel vectorstore.Selection, cfg config.VectorStoreConfig, corpusID, dir string) domain.VectorStore {
		ids = append(ids, corpusID)
		return vectorstore.Open(sel, cfg, corpusID, dir)
	}
	e := NewEngine(&keywordEmbedder{}, config.VectorStoreConfig{Provider: "chroma"}, arbor.NewNoOpLogger(), WithStoreFactory(factory))
	for i := 0; i < 2; i++ {
		_, _, provider, err := e.Build(context.Background(), corpus(), "")
		require.NoError(t, err)
		assert.Equal(t, "chroma", provider)
	}
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestBuild_EmbeddingFailureDoesNotFallBack(t *testing.T) {
	store := &stubStore{}
	emb := &keywordEmbedder{err: errors.New("401 unauthorized")}
	e := NewEngine(emb, config.VectorStoreConfig{}, arbor.NewNoOpLogger(), WithStoreFactory(stubFactory(store)))

	r, _, _, err := e.Build(context.Background(), corpus(), "")
	assert.Nil(t, r)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
	assert.NotErrorIs(t, err, domain.ErrTimeout)
	assert.Zero(t, store.inits)
	assert.Zero(t, store.upserts)
}

func TestBuild_EmbeddingTimeout(t *testing.T) {
	emb := &keywordEmbedder{delay: time.Second}
	e := NewEngine(emb, config.VectorStoreConfig{}, arbor.NewNoOpLogger(), WithEmbedTimeout(20*time.Millisecond))

	_, _, _, err := e.Build(context.Background(), corpus(), "")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.NotErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestBuild_StoreTimeout(t *testing.T) {
	store := &stubStore{blockInit: true}
	e := NewEngine(&keywordEmbedder{}, config.VectorStoreConfig{Provider: "chroma"}, arbor.NewNoOpLogger(),
		WithStoreFactory(stubFactory(store)), WithStoreTimeout(20*time.Millisecond))

	r, _, _, err := e.Build(context.Background(), corpus(), "")
	assert.Nil(t, r)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.NotErrorIs(t, err, domain.ErrStoreFailure)
	assert.Equal(t, 1, store.inits)
	assert.Zero(t, store.upserts)
}

func TestBuild_ReusesMatchingSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfg := config.VectorStoreConfig{Provider: "chroma", TopK: 1}

	first := &keywordEmbedder{}
	_, _, _, err := NewEngine(first, cfg, arbor.NewNoOpLogger()).Build(context.Background(), corpus(), dir)
	require.NoError(t, err)
	assert.Equal(t, len(corpus()), first.calls)

	second := &keywordEmbedder{}
	r, n, provider, err := NewEngine(second, cfg, arbor.NewNoOpLogger()).Build(context.Background(), corpus(), dir)
	require.NoError(t, err)
	assert.Equal(t, len(corpus()), n)
	assert.Equal(t, "chroma", provider)
	assert.Zero(t, second.calls)

	res, err := r.Retrieve(context.Background(), "annual fee")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "d:1", res[0].Chunk.ChunkID)

	changed := corpus()
	changed[0].Text = "The term of this agreement is five seasons."
	third := &keywordEmbedder{}
	_, _, _, err = NewEngine(third, cfg, arbor.NewNoOpLogger()).Build(context.Background(), changed, dir)
	require.NoError(t, err)
	assert.Equal(t, len(changed), third.calls)
}

func TestBuild_RetrieversSurviveLaterBuilds(t *testing.T) {
	e := NewEngine(tfidf.NewEmbedder(), config.VectorStoreConfig{Provider: "chroma", TopK: 1}, arbor.NewNoOpLogger())

	a, _, _, err := e.Build(context.Background(), []domain.Chunk{
		{ChunkID: "a:0", PageIndex: 0, Text: "aardvark clause"},
		{ChunkID: "a:1", PageIndex: 6, Text: "signage rights"},
	}, "")
	require.NoError(t, err)
	res, err := a.Retrieve(context.Background(), "signage")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a:1", res[0].Chunk.ChunkID)

	_, _, _, err = e.Build(context.Background(), []domain.Chunk{{ChunkID: "b:0", Text: "signage zzz"}}, "")
	require.NoError(t, err)

	res, err = a.Retrieve(context.Background(), "signage")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a:1", res[0].Chunk.ChunkID)
	assert.Equal(t, 6, res[0].Chunk.PageIndex)
	assert.Greater(t, res[0].Score, 0.5)
}

func TestBuild_StoreFailure(t *testing.T) {
	factory := func(vectorstore.Selection, config.VectorStoreConfig, string, string) domain.VectorStore {
		return failingStore{err: errors.New("connection refused")}
	}
	e := NewEngine(&keywordEmbedder{}, config.VectorStoreConfig{Provider: "chroma"}, arbor.NewNoOpLogger(), WithStoreFactory(factory))

	_, _, _, err := e.Build(context.Background(), corpus(), "")
	assert.ErrorIs(t, err, domain.ErrStoreFailure)
}

func TestRetrieve_TopKBySimilarity(t *testing.T) {
	e := NewEngine(&keywordEmbedder{}, config.VectorStoreConfig{Provider: "chroma", TopK: 2}, arbor.NewNoOpLogger())
	r, _, _, err := e.Build(context.Background(), corpus(), "")
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "What is the annual fee?")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "d:1", res[0].Chunk.ChunkID)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	emb := &keywordEmbedder{}
	r, _, _, err := NewEngine(emb, config.VectorStoreConfig{Provider: "chroma"}, arbor.NewNoOpLogger()).Build(context.Background(), corpus(), "")
	require.NoError(t, err)

	emb.err = errors.New("network down")
	_, err = r.Retrieve(context.Background(), "fee")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestRetrieve_LexicalFallbackForUnseenTerms(t *testing.T) {
	chunks := corpus()
	chunks[3].Text = "Exclusivity applies to the beverage category from 2026."

	e := NewEngine(tfidf.NewEmbedder(), config.VectorStoreConfig{Provider: "chroma", TopK: 1}, arbor.NewNoOpLogger())
	r, _, _, err := e.Build(context.Background(), chunks, "")
	require.NoError(t, err)

	// Numbers are outside the TF-IDF vocabulary, so the query vector is zero.
	res, err := r.Retrieve(context.Background(), "2026")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "d:3", res[0].Chunk.ChunkID)
}

func TestRetrieve_StoreTimeout(t *testing.T) {
	store := &stubStore{}
	e := NewEngine(&keywordEmbedder{}, config.VectorStoreConfig{Provider: "chroma"}, arbor.NewNoOpLogger(),
		WithStoreFactory(stubFactory(store)), WithStoreTimeout(20*time.Millisecond))
	r, _, _, err := e.Build(context.Background(), corpus(), "")
	require.NoError(t, err)

	store.blockSearch = true
	_, err = r.Retrieve(context.Background(), "annual fee")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.NotErrorIs(t, err, domain.ErrStoreFailure)
}

func TestRetriever_CloseClearsStore(t *testing.T) {
	store := &stubStore{}
	e := NewEngine(&keywordEmbedder{}, config.VectorStoreConfig{Provider: "chroma"}, arbor.NewNoOpLogger(), WithStoreFactory(stubFactory(store)))
	r, _, _, err := e.Build(context.Background(), corpus(), "")
	require.NoError(t, err)

	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, 1, store.clears)

	var none *Retriever
	assert.NoError(t, none.Close(context.Background()))
}
