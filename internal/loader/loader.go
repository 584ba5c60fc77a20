// Package loader reads contract documents into page records.
package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"contractqa/internal/domain"
)

// Skip reasons reported to the Reporter.
const (
	SkipExtension  = "extension"
	SkipMissing    = "missing"
	SkipExtraction = "extraction"
	SkipDuplicate  = "duplicate"
)

// FileEvent describes a document whose pages were extracted successfully.
type FileEvent struct {
	Path  string
	Data  []byte
	Pages int
}

// Observer is notified after each successful extraction. It cannot fail the
// load: whatever it does with the event is its own concern.
type Observer interface {
	FileLoaded(ctx context.Context, ev FileEvent)
}

// Reporter receives load outcomes for instrumentation.
type Reporter interface {
	FileLoaded(pages int)
	FileSkipped(reason string)
}

// Loader filters input paths and extracts their pages.
type Loader struct {
	extractor  Extractor
	extensions map[string]struct{}
	observers  []Observer
	reporter   Reporter
	logger     arbor.ILogger
}

// Option configures a Loader.
type Option func(*Loader)

// WithExtractor replaces the PDF extractor.
func WithExtractor(e Extractor) Option {
	return func(l *Loader) { l.extractor = e }
}

// WithObserver registers an observer for successfully extracted files.
func WithObserver(o Observer) Option {
	return func(l *Loader) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

// WithReporter sets the outcome reporter.
func WithReporter(r Reporter) Option {
	return func(l *Loader) { l.reporter = r }
}

// New creates a loader accepting .pdf files.
func New(logger arbor.ILogger, opts ...Option) *Loader {
	l := &Loader{
		extractor:  NewPDFExtractor(),
		extensions: map[string]struct{}{".pdf": {}},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the pages of every acceptable path, in input order and then
// page order. Paths with the wrong extension, missing files, files that fail
// extraction and repeats of an earlier path are skipped. The only error is
// context cancellation.
func (l *Loader) Load(ctx context.Context, paths []string) ([]domain.PageRecord, error) {
	var records []domain.PageRecord
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := samePath(p)
		if _, dup := seen[key]; dup {
			l.skip(p, SkipDuplicate, errors.Join(domain.ErrInvalidInput, errors.New("path already loaded")))
			continue
		}
		seen[key] = struct{}{}
		data, err := l.read(p)
		if err != nil {
			continue
		}
		pages, err := l.extractor.ExtractPages(data)
		if err != nil {
			l.skip(p, SkipExtraction, err)
			continue
		}
		for i, text := range pages {
			records = append(records, domain.PageRecord{SourcePath: p, PageIndex: i, Text: text})
		}
		if l.reporter != nil {
			l.reporter.FileLoaded(len(pages))
		}
		l.logger.Debug().Str("path", p).Int("pages", len(pages)).Msg("Loaded document")
		ev := FileEvent{Path: p, Data: data, Pages: len(pages)}
		for _, o := range l.observers {
			o.FileLoaded(ctx, ev)
		}
	}
	return records, nil
}

func (l *Loader) read(p string) ([]byte, error) {
	if !l.accepts(p) {
		err := errors.Join(domain.ErrInvalidInput, errors.New("unsupported extension"))
		l.skip(p, SkipExtension, err)
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		err = errors.Join(domain.ErrInvalidInput, errors.New("file does not exist"))
		l.skip(p, SkipMissing, err)
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		err = errors.Join(domain.ErrExtractionFailure, err)
		l.skip(p, SkipExtraction, err)
		return nil, err
	}
	return data, nil
}

// samePath maps spellings of one file to a single key.
func samePath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func (l *Loader) accepts(p string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(p))]
	return ok
}

func (l *Loader) skip(p, reason string, err error) {
	l.logger.Warn().Str("path", p).Str("reason", reason).Err(err).Msg("Skipping document")
	if l.reporter != nil {
		l.reporter.FileSkipped(reason)
	}
}
