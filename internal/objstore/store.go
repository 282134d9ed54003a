// Package objstore is the object storage boundary shared by the deployment
// launcher (upload) and the inference server (list + download).
package objstore

import (
	"context"
	"io"
)

// Object is one listed key.
type Object struct {
	Key  string
	Size int64
}

// Uploader stores a single object.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader) error
}

// Lister enumerates every object under a prefix, following pagination.
type Lister interface {
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
}

// Downloader writes one object into w. Parts may arrive out of order, so w
// is written by offset.
type Downloader interface {
	Download(ctx context.Context, bucket, key string, w io.WriterAt) error
}

// Store is the full storage surface.
type Store interface {
	Uploader
	Lister
	Downloader
}
