package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedFormat is returned for archive names with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// SupportedExtensions returns a list of all file extensions that the archive module can extract.
// Longer suffixes come first so that Ext matches ".tar.gz" before ".tar".
func SupportedExtensions() []string {
	return []string{".tar.gz", ".tar.zst", ".tgz", ".tar", ".zip", ".7z"}
}

// Ext returns the supported archive extension of name, or "".
func Ext(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range SupportedExtensions() {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}

// IsSupported returns true if the filename has a supported archive extension.
func IsSupported(filename string) bool {
	return Ext(filename) != ""
}

// entry is one archive member, independent of the container format.
type entry struct {
	name     string
	info     fs.FileInfo
	linkname string
	open     func() (io.ReadCloser, error)
}

// walk calls fn for every member of the archive at src, in archive order.
// Errors from fn are returned unchanged; read errors are wrapped in formatError.
func walk(src string, fn func(entry) error) error {
	switch Ext(src) {
	case ".zip":
		return walkZip(src, fn)
	case ".7z":
		return walk7z(src, fn)
	case ".tar", ".tar.gz", ".tgz", ".tar.zst":
		return walkTar(src, fn)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, src)
	}
}

// formatError marks failures to decode the container itself.
type formatError struct{ err error }

func (e *formatError) Error() string { return e.err.Error() }
func (e *formatError) Unwrap() error { return e.err }

func walkZip(src string, fn func(entry) error) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return &formatError{fmt.Errorf("failed to open zip archive: %w", err)}
	}
	defer r.Close()

	for _, f := range r.File {
		e := entry{
			name: f.Name,
			info: f.FileInfo(),
			open: f.Open,
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func walk7z(src string, fn func(entry) error) error {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return &formatError{fmt.Errorf("failed to open 7z archive: %w", err)}
	}
	defer r.Close()

	for _, f := range r.File {
		e := entry{
			name: f.Name,
			info: f.FileInfo(),
			open: f.Open,
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func walkTar(src string, fn func(entry) error) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch Ext(src) {
	case ".tar.gz", ".tgz":
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return &formatError{fmt.Errorf("failed to create gzip reader: %w", err)}
		}
		defer gzr.Close()
		r = gzr
	case ".tar.zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return &formatError{fmt.Errorf("failed to create zstd reader: %w", err)}
		}
		defer zr.Close()
		r = zr
	}

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &formatError{fmt.Errorf("failed to read tar header: %w", err)}
		}
		switch header.Typeflag {
		case tar.TypeReg, tar.TypeDir, tar.TypeSymlink:
		default:
			// Hard links, devices and PAX globals have no place in a payload.
			continue
		}
		e := entry{
			name:     header.Name,
			info:     header.FileInfo(),
			linkname: header.Linkname,
			open: func() (io.ReadCloser, error) {
				return io.NopCloser(tr), nil
			},
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
