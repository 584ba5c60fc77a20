package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"contractqa/internal/domain"
	"contractqa/internal/loader"
)

// Recorder archives every file the loader extracts and remembers where each
// one went. Write failures never reach the loader; they are logged and kept
// as warnings.
type Recorder struct {
	archive Archive
	prefix  string
	timeout time.Duration
	logger  arbor.ILogger

	mu       sync.Mutex
	stored   []string
	warnings []string
}

func NewRecorder(a Archive, prefix string, timeout time.Duration, logger arbor.ILogger) *Recorder {
	return &Recorder{archive: a, prefix: prefix, timeout: timeout, logger: logger}
}

// FileLoaded implements loader.Observer.
func (r *Recorder) FileLoaded(ctx context.Context, ev loader.FileEvent) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	key := Key(r.prefix, ev.Path)
	loc, err := r.archive.Put(ctx, key, ev.Data, ContentTypePDF)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", domain.ErrArchiveWriteFailure, ev.Path, err)
		r.logger.Warn().Str("path", ev.Path).Str("key", key).Err(err).Msg("Archive write failed")
		r.mu.Lock()
		r.warnings = append(r.warnings, err.Error())
		r.mu.Unlock()
		return
	}
	if loc == "" {
		return
	}
	r.logger.Debug().Str("path", ev.Path).Str("location", loc).Msg("Archived document")
	r.mu.Lock()
	r.stored = append(r.stored, loc)
	r.mu.Unlock()
}

// Drain returns the archive locations and warnings collected since the last
// call and clears them.
func (r *Recorder) Drain() (stored, warnings []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, warnings = r.stored, r.warnings
	r.stored, r.warnings = nil, nil
	return stored, warnings
}

var _ loader.Observer = (*Recorder)(nil)
