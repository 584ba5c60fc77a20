package memory

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"contractqa/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// With a snapshot path it rewrites a gob snapshot after every upsert.
// The fingerprint labels which corpus the contents belong to, so a later run
// can reuse a snapshot instead of embedding the same corpus again.
type Storage struct {
	mu          sync.RWMutex
	dimension   int
	vectors     [][]float32
	chunks      []domain.Chunk
	snapshot    string
	fingerprint string
}

// Option configures a Storage.
type Option func(*Storage)

// WithSnapshot persists the store contents to path.
func WithSnapshot(path string) Option {
	return func(s *Storage) { s.snapshot = path }
}

func NewStorage(opts ...Option) *Storage {
	s := &Storage{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.chunks = nil
	s.fingerprint = ""
	return nil
}

// Stamp labels the contents with a corpus fingerprint. It is saved with the
// next snapshot.
func (s *Storage) Stamp(fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = fingerprint
}

// Holds reports whether the store already contains the corpus identified by
// fingerprint.
func (s *Storage) Holds(fingerprint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fingerprint != "" && s.fingerprint == fingerprint && len(s.chunks) > 0
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	if s.snapshot != "" {
		return s.writeSnapshot()
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = cosine(s.vectors[i], vector)
	}
	// Get topK indexes
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for i := 0; i < topK; i++ {
		j := idxs[i]
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

// Clear drops the in-memory contents. A snapshot on disk is kept for reuse.
func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.chunks = nil
	s.fingerprint = ""
	return nil
}

// Len returns the number of stored vectors.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

type snapshotData struct {
	Fingerprint string
	Dimension   int
	Chunks      []domain.Chunk
	Vectors     [][]float32
}

func (s *Storage) writeSnapshot() error {
	if err := os.MkdirAll(filepath.Dir(s.snapshot), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := s.snapshot + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	enc := gob.NewEncoder(f)
	if err := enc.Encode(snapshotData{Fingerprint: s.fingerprint, Dimension: s.dimension, Chunks: s.chunks, Vectors: s.vectors}); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapshot)
}

// Load restores a store from a snapshot written by WithSnapshot. The
// returned store keeps writing to the same path.
func Load(path string) (*Storage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var data snapshotData
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(data.Chunks) != len(data.Vectors) {
		return nil, errors.New("corrupt snapshot: chunks and vectors length mismatch")
	}
	return &Storage{
		dimension:   data.Dimension,
		chunks:      data.Chunks,
		vectors:     data.Vectors,
		snapshot:    path,
		fingerprint: data.Fingerprint,
	}, nil
}

// Restore returns the store saved at path, or an empty store writing to path
// when there is no readable snapshot there.
func Restore(path string) *Storage {
	if s, err := Load(path); err == nil {
		return s
	}
	return NewStorage(WithSnapshot(path))
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	quicksort(idxs, vals, 0, len(idxs)-1)
	return idxs
}

// quicksort orders idxs by descending score; equal scores keep the lower
// index first so results are deterministic.
func quicksort(idxs []int, vals []float64, lo, hi int) {
	if lo >= hi {
		return
	}
	less := func(a, b int) bool {
		if vals[a] != vals[b] {
			return vals[a] > vals[b]
		}
		return a < b
	}
	i, j := lo, hi
	pivot := idxs[(lo+hi)/2]
	for i <= j {
		for less(idxs[i], pivot) {
			i++
		}
		for less(pivot, idxs[j]) {
			j--
		}
		if i <= j {
			idxs[i], idxs[j] = idxs[j], idxs[i]
			i++
			j--
		}
	}
	if lo < j {
		quicksort(idxs, vals, lo, j)
	}
	if i < hi {
		quicksort(idxs, vals, i, hi)
	}
}
