// Package vectorstore selects and constructs the vector store backing an index.
package vectorstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"contractqa/internal/config"
	"contractqa/internal/domain"
	"contractqa/internal/vectorstore/memory"
	"contractqa/internal/vectorstore/pinecone"
	"contractqa/internal/vectorstore/qdrant"
)

// Provider names a vector store backend.
type Provider string

const (
	Pinecone Provider = "pinecone"
	Qdrant   Provider = "qdrant"
	Chroma   Provider = "chroma"
)

// SnapshotFile is the name of the local store snapshot inside a persist directory.
const SnapshotFile = "index.gob"

// ParseProvider normalizes a configured provider name. Empty selects
// Pinecone; anything unrecognized selects the local store.
func ParseProvider(s string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Pinecone
	case Pinecone, Qdrant, Chroma:
		return p
	default:
		return Chroma
	}
}

// Selection is the outcome of the provider decision table.
type Selection struct {
	Requested Provider
	Provider  Provider
	Fallback  bool
	// Reason explains a fallback; it wraps domain.ErrProviderConfigMissing.
	Reason error
}

// Label is the provider-used string reported to callers.
func (s Selection) Label() string {
	if s.Fallback {
		return string(Chroma) + " (fallback)"
	}
	return string(s.Provider)
}

// Select evaluates the fallback table before any store is built:
//
//	pinecone without api key or environment -> chroma (fallback)
//	qdrant without url                      -> chroma (fallback)
//	otherwise                               -> requested provider
func Select(cfg config.VectorStoreConfig) Selection {
	req := ParseProvider(cfg.Provider)
	sel := Selection{Requested: req, Provider: req}

	var missing []string
	switch req {
	case Pinecone:
		p := cfg.Pinecone
		if p == nil || strings.TrimSpace(p.APIKey) == "" {
			missing = append(missing, "api key")
		}
		if p == nil || strings.TrimSpace(p.Environment) == "" {
			missing = append(missing, "environment")
		}
	case Qdrant:
		if cfg.Qdrant == nil || strings.TrimSpace(cfg.Qdrant.URL) == "" {
			missing = append(missing, "url")
		}
	}
	if len(missing) > 0 {
		sel.Provider = Chroma
		sel.Fallback = true
		sel.Reason = fmt.Errorf("%w: %s requires %s", domain.ErrProviderConfigMissing, req, strings.Join(missing, " and "))
	}
	return sel
}

// Open constructs the store for sel. corpusID scopes remote data to one
// ingestion. persistDir is honoured only by an explicitly chosen local store.
func Open(sel Selection, cfg config.VectorStoreConfig, corpusID, persistDir string) domain.VectorStore {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch sel.Provider {
	case Pinecone:
		p := cfg.Pinecone
		return pinecone.NewStorage(pinecone.Config{
			APIKey:     p.APIKey,
			Index:      p.Index,
			Host:       p.Host,
			ControlURL: p.ControlURL,
			Namespace:  corpusID,
			Timeout:    timeout,
		})
	case Qdrant:
		q := cfg.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			CorpusID:   corpusID,
			Timeout:    timeout,
		})
	default:
		if sel.Fallback || persistDir == "" {
			return memory.NewStorage()
		}
		return memory.Restore(filepath.Join(persistDir, SnapshotFile))
	}
}
