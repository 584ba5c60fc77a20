package synthesis

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"contractqa/internal/domain"
)

// Extractive answers offline by quoting the evidence sentences that best
// match the question. Sentences are ranked by question-term overlap, then by
// corpus word frequency (stopwords filtered).
type Extractive struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
	maxSentences    int
}

// NewExtractive creates an extractive synthesizer returning at most
// maxSentences sentences.
func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		sentencePattern: regexp.MustCompile(`(?m)[^.!?\n]+(?:[.!?]+|$)`),
		stopwords:       defaultStopwords(),
		maxSentences:    maxSentences,
	}
}

func (s *Extractive) Name() string { return "extractive" }

// Synthesize returns the selected sentences in evidence order, or
// UnknownAnswer when no sentence shares a content word with the question.
func (s *Extractive) Synthesize(ctx context.Context, question string, evidence []domain.SearchResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	qterms := map[string]struct{}{}
	for _, tok := range s.contentTokens(question) {
		qterms[tok] = struct{}{}
	}
	if len(qterms) == 0 {
		return UnknownAnswer, nil
	}

	// Split into sentences; overlapping chunks repeat text, keep the first copy.
	var sentences []string
	seen := map[string]struct{}{}
	for _, ev := range evidence {
		for _, m := range s.sentencePattern.FindAllString(ev.Chunk.Text, -1) {
			sent := strings.Join(strings.Fields(m), " ")
			if sent == "" {
				continue
			}
			if _, ok := seen[sent]; ok {
				continue
			}
			seen[sent] = struct{}{}
			sentences = append(sentences, sent)
		}
	}

	// Compute word frequencies
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.contentTokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx     int
		overlap int
		score   float64
	}
	var scores []pair
	for i, sent := range sentences {
		toks := s.contentTokens(sent)
		if len(toks) == 0 {
			continue
		}
		hit := map[string]struct{}{}
		fscore := 0.0
		for _, tok := range toks {
			fscore += freq[tok]
			if _, ok := qterms[tok]; ok {
				hit[tok] = struct{}{}
			}
		}
		if len(hit) == 0 {
			continue
		}
		// Normalize by sentence length to avoid bias
		scores = append(scores, pair{i, len(hit), fscore / math.Sqrt(float64(len(toks)))})
	}
	if len(scores) == 0 {
		return UnknownAnswer, nil
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].overlap != scores[j].overlap {
			return scores[i].overlap > scores[j].overlap
		}
		return scores[i].score > scores[j].score
	})
	n := s.maxSentences
	if n > len(scores) {
		n = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

func (s *Extractive) contentTokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, ok := s.stopwords[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "when", "where", "why", "how", "does", "do", "did", "has", "have", "had", "any", "there", "their", "our", "we", "you", "your", "i", "me", "my", "shall", "may", "must", "contract", "agreement",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
