package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds surfaced by the ingestion and query pipeline.
var (
	// ErrInvalidInput indicates a missing path, unsupported document type,
	// nil retriever or blank question.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtractionFailure indicates a document's content could not be parsed.
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrArchiveWriteFailure indicates the best-effort archive write failed.
	ErrArchiveWriteFailure = errors.New("archive write failure")

	// ErrProviderConfigMissing indicates the selected vector store lacks its
	// connection settings. It is recovered by falling back to the local store.
	ErrProviderConfigMissing = errors.New("vector store provider configuration missing")

	// ErrEmbeddingFailure indicates the embedding service call failed.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrTimeout indicates a network-bound step exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrStoreFailure indicates the vector store rejected or failed a request.
	ErrStoreFailure = errors.New("vector store failure")

	// ErrSynthesisFailure indicates the answer model call failed.
	ErrSynthesisFailure = errors.New("answer synthesis failure")

	// ErrNoIndex indicates a query was issued without a built index.
	ErrNoIndex = errors.New("no index")
)

// Classify wraps err with kind unless it was caused by an expired deadline,
// in which case it is reported as ErrTimeout.
func Classify(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, kind) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
