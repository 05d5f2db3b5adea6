// Package blobstore stores generated document bytes. The ledger keeps only
// the bucket and path returned here.
package blobstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get for an unknown path.
var ErrNotFound = errors.New("blob not found")

// Object describes a stored blob.
type Object struct {
	Bucket    string
	Path      string
	PublicURL string
	Size      int64
}

// publicURL joins a configured base URL with the bucket and path. An empty
// base yields an empty reference.
func publicURL(base, bucket, path string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.TrimLeft(path, "/")
}

// Store is satisfied by the MinIO and in-memory implementations.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Bucket() string
}
