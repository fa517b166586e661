package storage

import (
	"context"
	"io"
)

// Provider defines the interface for persisting purge archives.
type Provider interface {
	// StreamToFile returns a WriteCloser. Data written to it is streamed to
	// the storage destination under key (the relative path/filename).
	// The returned channel receives a single error (or nil) when the storage
	// operation completes.
	StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error)

	// OpenFile opens the stored archive for reading.
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)

	// GetDownloadURL returns a viewable/downloadable URL for the stored item.
	GetDownloadURL(key string) string
}
