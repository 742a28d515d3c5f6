package storage

import (
	"context"
	"io"
)

// AvatarStore holds uploaded avatar images. Keys are opaque references
// stored on the user record; URL resolves a key to something a browser
// can fetch.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
