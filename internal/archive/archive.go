// Package archive keeps copies of ingested contract files.
package archive

import (
	"context"
	"path"
	"path/filepath"
	"strings"
)

// ContentTypePDF is the content type recorded for archived contracts.
const ContentTypePDF = "application/pdf"

// Archive stores a blob under key and returns its location.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Key builds the archive key of a source file: prefix/basename.
func Key(prefix, sourcePath string) string {
	name := filepath.Base(sourcePath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Put(context.Context, string, []byte, string) (string, error) { return "", nil }
