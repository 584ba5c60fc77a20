package config

import "strings"

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays the environment variables understood by the contract
// tooling onto cfg. Only variables that are set and non-empty win.
func ApplyEnv(cfg *AppConfig, lookup LookupFunc) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("VECTOR_DB_PROVIDER"); ok {
		cfg.VectorStore.Provider = v
	}
	if v, ok := get("EMBED_MODEL"); ok {
		cfg.Embedder.Model = v
	}

	pineconeKeys := []string{"PINECONE_API_KEY", "PINECONE_ENV", "PINECONE_INDEX", "PINECONE_HOST"}
	if anySet(get, pineconeKeys) && cfg.VectorStore.Pinecone == nil {
		cfg.VectorStore.Pinecone = &PineconeConfig{}
	}
	if p := cfg.VectorStore.Pinecone; p != nil {
		if v, ok := get("PINECONE_API_KEY"); ok {
			p.APIKey = v
		}
		if v, ok := get("PINECONE_ENV"); ok {
			p.Environment = v
		}
		if v, ok := get("PINECONE_INDEX"); ok {
			p.Index = v
		}
		if v, ok := get("PINECONE_HOST"); ok {
			p.Host = v
		}
	}

	qdrantKeys := []string{"QDRANT_URL", "QDRANT_API_KEY", "QDRANT_COLLECTION"}
	if anySet(get, qdrantKeys) && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if v, ok := get("QDRANT_URL"); ok {
			q.URL = v
		}
		if v, ok := get("QDRANT_API_KEY"); ok {
			q.APIKey = v
		}
		if v, ok := get("QDRANT_COLLECTION"); ok {
			q.Collection = v
		}
	}

	if v, ok := get("S3_BUCKET"); ok {
		cfg.Archive.Type = "s3"
		cfg.Archive.Bucket = v
	}
	if v, ok := get("AWS_REGION"); ok {
		cfg.Archive.Region = v
	} else if v, ok := get("AWS_DEFAULT_REGION"); ok {
		cfg.Archive.Region = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}

	applyConfigDefaults(cfg)
}

func anySet(get func(string) (string, bool), keys []string) bool {
	for _, k := range keys {
		if _, ok := get(k); ok {
			return true
		}
	}
	return false
}
