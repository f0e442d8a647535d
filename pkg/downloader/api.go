// Package downloader retrieves remote resources for the setup tool.
// It dispatches on the URI scheme and reports progress via the display package.
package downloader

import (
	"context"
	"fmt"
	"io"

	"github.com/Liiesl/EasyScanlate/pkg/display"
)

// Downloader manages the retrieval of resources from various URIs.
type Downloader interface {
	// Download retrieves the resource at the specified URI and writes it to w.
	// It uses the provided display Task to report progress.
	Download(ctx context.Context, uri string, w io.Writer, task display.Task) error
	// Fetch downloads uri into destPath, truncating any earlier content.
	// There is no retry and no resume.
	Fetch(ctx context.Context, uri, destPath string, task display.Task) (*Transaction, error)
}

// SchemeHandler defines the interface for handling specific URI schemes (e.g., "http://").
type SchemeHandler interface {
	// Download executes the download for a URI supported by this handler.
	Download(ctx context.Context, uri string, w io.Writer, task display.Task) error
	// Schemes returns the list of URI schemes (e.g., ["http", "https"]) this handler can process.
	Schemes() []string
}

// Status is the state of a Transaction.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Transaction describes one Fetch call. It lives only as long as the call's result.
type Transaction struct {
	URL             string
	DestinationPath string
	Status          Status
	Bytes           int64
}

// NetworkError reports a transport failure: DNS, connection, TLS, a broken
// stream or a cancelled context.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports a response with a non-2xx status.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetching %s: bad status: %s", e.URL, e.Status)
}
