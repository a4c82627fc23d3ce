package storage

import (
	"context"
	"io"
)

// UploadRequest carries one fully-buffered artifact to be stored. Buffering
// the whole payload keeps partial writes invisible; the upload ceiling
// bounds the memory cost.
type UploadRequest struct {
	// OwnerID namespaces the artifact under the owning entity.
	OwnerID  string
	FileName string
	MimeType string
	Content  []byte
}

// RemoteBackend is the remote object store. Implementations must honor the
// context deadline on every call.
type RemoteBackend interface {
	// Put stores content under key and returns a browser-facing URL for
	// the object. The key doubles as the fetch ID.
	Put(ctx context.Context, key string, content []byte, mimeType string) (webURL string, err error)

	// Get fetches object content by key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
