package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type LocalProvider struct {
	basePath string
}

func NewLocalProvider(basePath string) *LocalProvider {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		slog.Error("Failed to ensure local archive directory exists", "path", basePath, "error", err)
	}
	return &LocalProvider{
		basePath: basePath,
	}
}

func (p *LocalProvider) StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	errChan := make(chan error, 1)

	fullPath := filepath.Join(p.basePath, key)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		errChan <- fmt.Errorf("failed to create directory %s: %w", dir, err)
		close(errChan)
		return nil, errChan
	}

	f, err := os.Create(fullPath)
	if err != nil {
		errChan <- fmt.Errorf("failed to create file %s: %w", fullPath, err)
		close(errChan)
		return nil, errChan
	}

	// Wrap the file so the error channel is closed on Close().
	return &localWriter{
		f:       f,
		errChan: errChan,
		path:    fullPath,
	}, errChan
}

func (p *LocalProvider) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath := filepath.Join(p.basePath, key)
	return os.Open(fullPath)
}

func (p *LocalProvider) GetDownloadURL(key string) string {
	fullPath := filepath.Join(p.basePath, key)
	abs, _ := filepath.Abs(fullPath)
	return fmt.Sprintf("file://%s", abs)
}

type localWriter struct {
	f       *os.File
	errChan chan error
	path    string
}

func (w *localWriter) Write(p []byte) (n int, err error) {
	return w.f.Write(p)
}

func (w *localWriter) Close() error {
	err := w.f.Close()
	if err != nil {
		w.errChan <- err
	} else {
		slog.Info("Archive written", "path", w.path)
		w.errChan <- nil
	}
	close(w.errChan)
	return err
}
