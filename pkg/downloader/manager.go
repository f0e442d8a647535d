package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Liiesl/EasyScanlate/pkg/display"
)

// Mutable
type manager struct {
	handlers map[string]SchemeHandler
}

func NewDefaultDownloader() Downloader {
	m := &manager{
		handlers: make(map[string]SchemeHandler),
	}
	h := NewHTTPHandler()
	m.Register(h)
	return m
}

func (m *manager) Register(h SchemeHandler) {
	for _, scheme := range h.Schemes() {
		m.handlers[scheme] = h
	}
}

func (m *manager) Download(ctx context.Context, uri string, w io.Writer, task display.Task) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid uri: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	handler, ok := m.handlers[scheme]
	if !ok {
		return fmt.Errorf("unsupported scheme: %s", scheme)
	}

	return handler.Download(ctx, uri, w, task)
}

func (m *manager) Fetch(ctx context.Context, uri, destPath string, task display.Task) (*Transaction, error) {
	tx := &Transaction{URL: uri, DestinationPath: destPath, Status: StatusPending}

	fail := func(err error) (*Transaction, error) {
		tx.Status = StatusFailed
		return tx, err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fail(fmt.Errorf("failed to create download dir: %w", err))
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fail(fmt.Errorf("failed to create %s: %w", destPath, err))
	}

	slog.Info("Downloading package", "url", uri, "dest", destPath)
	if task != nil {
		task.SetStage("Download", filepath.Base(destPath))
	}

	cw := &countingWriter{w: f}
	err = m.Download(ctx, uri, cw, task)
	tx.Bytes = cw.n
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write %s: %w", destPath, cerr)
	}
	if err != nil {
		if rmErr := os.Remove(destPath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("Failed to remove partial download", "path", destPath, "error", rmErr)
		}
		return fail(err)
	}

	tx.Status = StatusSuccess
	slog.Debug("Download complete", "url", uri, "bytes", tx.Bytes)
	return tx, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
