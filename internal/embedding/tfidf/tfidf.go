// Package tfidf embeds text offline by TF-IDF weighting over the indexed
// corpus.
package tfidf

import (
	"context"
	"errors"
	"math"
	"sort"

	"contractqa/internal/domain"
)

var errUnfitted = errors.New("tfidf embedder not fitted to a corpus")

// Embedder is the unfitted vectorizer. Prepare fits a Model to one corpus
// and leaves the Embedder unchanged, so one Embedder serves any number of
// ingestions.
type Embedder struct{}

// NewEmbedder creates an unfitted TF-IDF embedder.
func NewEmbedder() *Embedder { return &Embedder{} }

func (*Embedder) Name() string { return "tfidf" }

// Prepare fits a new Model to corpus.
func (*Embedder) Prepare(corpus []string) (domain.Embedder, error) { return fit(corpus) }

func (*Embedder) Dimension() int { return 0 }

func (*Embedder) Embed(context.Context, string) ([]float32, error) { return nil, errUnfitted }

func (*Embedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errUnfitted
}

// Model is a TF-IDF vectorizer fitted to one corpus. It is never modified
// after Fit, so retrievers holding different models stay independent.
// Text made only of unseen terms embeds to the zero vector.
type Model struct {
	terms map[string]int
	idf   []float64
}

// Fit builds the vocabulary and smoothed IDF weights of corpus. Terms are
// numbered in lexical order so equal corpora give equal vectors.
func Fit(corpus []string) (*Model, error) {
	if len(corpus) == 0 {
		return nil, errors.New("tfidf: empty corpus")
	}
	df := make(map[string]int)
	for _, doc := range corpus {
		for t := range distinct(Tokens(doc)) {
			df[t]++
		}
	}
	if len(df) == 0 {
		return nil, errors.New("tfidf: corpus has no content words")
	}

	vocab := make([]string, 0, len(df))
	for t := range df {
		vocab = append(vocab, t)
	}
	sort.Strings(vocab)

	n := float64(len(corpus))
	m := &Model{terms: make(map[string]int, len(vocab)), idf: make([]float64, len(vocab))}
	for i, t := range vocab {
		m.terms[t] = i
		m.idf[i] = 1 + math.Log((1+n)/(1+float64(df[t])))
	}
	return m, nil
}

func (m *Model) Name() string { return "tfidf" }

// Prepare fits a fresh Model to corpus; m is not changed.
func (m *Model) Prepare(corpus []string) (domain.Embedder, error) { return fit(corpus) }

func fit(corpus []string) (domain.Embedder, error) {
	m, err := Fit(corpus)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Dimension is the vocabulary size.
func (m *Model) Dimension() int { return len(m.idf) }

// Embed returns the L2-normalised TF-IDF vector of text.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, len(m.idf))
	counts := make(map[int]int)
	total := 0
	for _, t := range Tokens(text) {
		if i, ok := m.terms[t]; ok {
			counts[i]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}

	weights := make(map[int]float64, len(counts))
	var sum float64
	for i, c := range counts {
		w := float64(c) / float64(total) * m.idf[i]
		weights[i] = w
		sum += w * w
	}
	norm := math.Sqrt(sum)
	for i, w := range weights {
		vec[i] = float32(w / norm)
	}
	return vec, nil
}

func (m *Model) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

var (
	_ domain.Embedder = (*Embedder)(nil)
	_ domain.Embedder = (*Model)(nil)
)
