package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"contractqa/internal/domain"
)

// Defaults for the sliding window, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// WindowChunker splits page text into overlapping fixed-size windows.
// Pages of one source are joined before splitting; sources are never mixed.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &WindowChunker{size: size, overlap: overlap}
}

// Chunk splits pages, which must be grouped by source in page order, into
// chunks. Each chunk records the first page its text starts in.
func (c *WindowChunker) Chunk(pages []domain.PageRecord) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for len(pages) > 0 {
		n := 1
		for n < len(pages) && pages[n].SourcePath == pages[0].SourcePath {
			n++
		}
		chunks = c.chunkSource(pages[:n], chunks)
		pages = pages[n:]
	}
	return chunks, nil
}

type pageSpan struct {
	start     int
	pageIndex int
}

func (c *WindowChunker) chunkSource(pages []domain.PageRecord, out []domain.Chunk) []domain.Chunk {
	var text []rune
	var spans []pageSpan
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if len(text) > 0 {
			text = append(text, '\n')
		}
		spans = append(spans, pageSpan{start: len(text), pageIndex: p.PageIndex})
		text = append(text, []rune(p.Text)...)
	}
	if len(text) == 0 {
		return out
	}

	source := pages[0].SourcePath
	docID := hashString(source)
	n := len(text)
	idx := 0
	start := 0
	for {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.snap(text, start, end)
		}
		out = append(out, domain.Chunk{
			DocumentID: docID,
			ChunkID:    docID + ":" + strconv.Itoa(idx),
			SourcePath: source,
			PageIndex:  pageAt(spans, start),
			Text:       string(text[start:end]),
			Index:      idx,
		})
		if end == n {
			break
		}
		start = end - c.overlap
		idx++
	}
	return out
}

// snap moves end back to a whitespace boundary when one exists in the second
// half of the window. The result always leaves the window longer than the
// overlap so the next window makes progress.
func (c *WindowChunker) snap(text []rune, start, end int) int {
	floor := start + c.size/2
	if min := start + c.overlap + 1; floor < min {
		floor = min
	}
	for i := end; i >= floor; i-- {
		if unicode.IsSpace(text[i]) {
			return i
		}
	}
	return end
}

func pageAt(spans []pageSpan, pos int) int {
	page := -1
	for _, s := range spans {
		if s.start > pos {
			break
		}
		page = s.pageIndex
	}
	if page < 0 && len(spans) > 0 {
		page = spans[0].pageIndex
	}
	return page
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
