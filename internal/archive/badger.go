package archive

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const contentTypePrefix = "content-type/"

// Badger stores blobs in an embedded badger database.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database in dir. An empty dir keeps the
// database in memory.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger archive: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		return txn.Set([]byte(contentTypePrefix+key), []byte(contentType))
	})
	if err != nil {
		return "", fmt.Errorf("badger put %s: %w", key, err)
	}
	return "badger://" + key, nil
}

func (b *Badger) Close() error { return b.db.Close() }
