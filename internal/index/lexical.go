package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"contractqa/internal/domain"
)

// lexicalIndex ranks chunks by how many distinct terms they share with a
// query. Retrieval falls back to it when the query vector carries no signal,
// for example a question made only of words the corpus never used.
type lexicalIndex struct {
	chunks []domain.Chunk
	terms  []map[string]struct{}
}

func newLexicalIndex(chunks []domain.Chunk) *lexicalIndex {
	x := &lexicalIndex{chunks: chunks, terms: make([]map[string]struct{}, len(chunks))}
	for i, ch := range chunks {
		x.terms[i] = termSet(ch.Text)
	}
	return x
}

// search returns the topK best chunks. Equal scores keep corpus order.
func (x *lexicalIndex) search(query string, topK int) []domain.SearchResult {
	q := termSet(query)
	hits := make([]domain.SearchResult, len(x.chunks))
	for i, ch := range x.chunks {
		hits[i] = domain.SearchResult{Chunk: ch, Score: ochiai(q, x.terms[i])}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK <= 0 {
		topK = DefaultTopK
	}
	return hits[:min(topK, len(hits))]
}

// termSet splits on anything that is not a letter or digit, so years and
// amounts stay searchable.
func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ochiai is |a∩b| / sqrt(|a|·|b|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(a))*float64(len(b)))
}
