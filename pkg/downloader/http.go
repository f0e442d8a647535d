package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/display"
)

const progressInterval = 200 * time.Millisecond

// Immutable
type httpHandler struct {
	client *http.Client
}

func NewHTTPHandler() SchemeHandler {
	return &httpHandler{
		client: &http.Client{
			Timeout: 0, // Handled by context
		},
	}
}

func (h *httpHandler) Schemes() []string {
	return []string{"http", "https"}
}

func (h *httpHandler) Download(ctx context.Context, uri string, w io.Writer, task display.Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "easyscanlate-setup/"+config.BuildVersion)

	resp, err := h.client.Do(req)
	if err != nil {
		return &NetworkError{URL: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{URL: uri, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	slog.Debug("Response", "url", uri, "status", resp.Status, "size", resp.ContentLength)

	pw := &progressWriter{
		task:      task,
		total:     resp.ContentLength,
		start:     time.Now(),
		sometimes: &rate.Sometimes{First: 1, Interval: progressInterval},
	}
	body := &trackingReader{r: resp.Body}

	_, err = io.Copy(io.MultiWriter(w, pw), body)
	if err != nil {
		if body.err != nil {
			return &NetworkError{URL: uri, Err: body.err}
		}
		return fmt.Errorf("failed to write download: %w", err)
	}
	pw.finish()
	return nil
}

// trackingReader remembers read failures so they can be told apart from write failures.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// Mutable
type progressWriter struct {
	task      display.Task
	total     int64
	written   int64
	start     time.Time
	sometimes *rate.Sometimes
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.written += int64(n)
	pw.sometimes.Do(pw.report)
	return n, nil
}

func (pw *progressWriter) finish() {
	if pw.total <= 0 {
		pw.total = pw.written
	}
	pw.report()
}

func (pw *progressWriter) report() {
	if pw.task == nil {
		return
	}
	if pw.total > 0 {
		percent := int((float64(pw.written) / float64(pw.total)) * 100)
		elapsed := time.Since(pw.start).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(pw.written) / elapsed
		}
		msg := fmt.Sprintf("%s / %s (%s/s)",
			humanize.Bytes(uint64(pw.written)),
			humanize.Bytes(uint64(pw.total)),
			humanize.Bytes(uint64(speed)))
		pw.task.Progress(percent, msg)
	} else {
		pw.task.Progress(0, fmt.Sprintf("%s downloaded", humanize.Bytes(uint64(pw.written))))
	}
}
