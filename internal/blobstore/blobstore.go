// Package blobstore wraps the external file-blob storage service. The wiki
// core stores only opaque references; upload and delete happen at the outer
// orchestration layer.
package blobstore

import (
	"context"
	"io"

	"arbor/internal/domain/models/wiki"
)

// Upload is one file handed to the store.
type Upload struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

// Client is the blob-storage contract.
type Client interface {
	// Upload stores the files under the given path hint and returns one
	// blob reference per file, in input order.
	Upload(ctx context.Context, files []Upload, pathHint string) ([]wiki.BlobRef, error)

	// Delete removes the blobs at the given URLs. Unknown URLs are ignored.
	Delete(ctx context.Context, urls []string) error
}
