// Package archive unpacks the dependency archive into the install tree.
// Extraction is two-phase: the whole archive is validated before anything is
// written, and a failed write removes every file the extraction created.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// CorruptArchiveError reports an archive that failed validation: unreadable
// container, bad checksum or compression stream, or an unsafe member path.
type CorruptArchiveError struct {
	Path string
	Err  error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt archive %s: %v", e.Path, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

// Validate reads every member of the archive at src in full and checks that
// it would extract inside a destination directory. Nothing is written.
func Validate(src string) error {
	var names []string
	links := map[string]bool{}
	err := walk(src, func(e entry) error {
		rel, err := safeRel(e.name)
		if err != nil {
			return err
		}
		names = append(names, rel)
		if e.info.Mode()&fs.ModeSymlink != 0 {
			links[rel] = true
			return checkLink(e.name, e.linkname)
		}
		if !e.info.Mode().IsRegular() {
			return nil
		}
		rc, err := e.open()
		if err != nil {
			return fmt.Errorf("failed to open archive entry %s: %w", e.name, err)
		}
		defer rc.Close()
		if _, err := io.Copy(io.Discard, rc); err != nil {
			return fmt.Errorf("failed to read archive entry %s: %w", e.name, err)
		}
		return nil
	})
	if err == nil {
		err = checkNesting(names, links)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return &CorruptArchiveError{Path: src, Err: err}
}

// Extract validates the archive at src and unpacks it into dest, keeping the
// relative structure and overwriting existing files. If writing fails midway,
// files and directories created by this call are removed again; files that
// were overwritten keep their new content.
func Extract(src string, dest string) error {
	if err := Validate(src); err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dest, err)
	}

	slog.Debug("Extracting archive", "src", src, "dest", dest)

	x := &extraction{src: src, dest: dest, root: root}
	err = walk(src, x.write)
	if err != nil {
		x.undo()
		return err
	}
	slog.Debug("Extracted archive", "src", src, "files", x.files)
	return nil
}

// Mutable
type extraction struct {
	src  string
	dest string
	// root is dest with symlinks resolved.
	root    string
	created []string
	files   int
}

func (x *extraction) write(e entry) error {
	rel, err := safeRel(e.name)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	target := filepath.Join(x.dest, filepath.FromSlash(rel))

	// Links already on disk, from this archive or from the install tree, must
	// not carry the entry out of dest.
	if _, err := x.resolve(path.Dir(rel)); err != nil {
		return x.escapes(e.name, err)
	}
	if err := x.mkdirAll(filepath.Dir(target)); err != nil {
		return err
	}

	mode := e.info.Mode()
	switch {
	case mode.IsDir():
		return x.mkdirAll(target)
	case mode&fs.ModeSymlink != 0:
		link := strings.ReplaceAll(e.linkname, "\\", "/")
		if _, err := x.resolve(path.Dir(rel) + "/" + link); err != nil {
			return x.escapes(e.name, err)
		}
		return x.symlink(e.linkname, target)
	case mode.IsRegular():
		return x.file(e, target, mode.Perm())
	default:
		return nil
	}
}

func (x *extraction) mkdirAll(dir string) error {
	var missing []string
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Lstat(d); err == nil {
			break
		}
		missing = append(missing, d)
		if d == filepath.Dir(d) {
			break
		}
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], 0755); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("failed to create directory %s: %w", missing[i], err)
		}
		x.created = append(x.created, missing[i])
	}
	return nil
}

func (x *extraction) file(e entry, target string, perm fs.FileMode) error {
	existed := exists(target)
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		// Replace the link itself instead of writing through it.
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("failed to replace %s: %w", target, err)
		}
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0600)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	if !existed {
		x.created = append(x.created, target)
	}
	defer f.Close()

	rc, err := e.open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", e.name, err)
	}
	defer rc.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	x.files++
	return nil
}

func (x *extraction) symlink(linkname, target string) error {
	existed := exists(target)
	if existed {
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to replace %s: %w", target, err)
		}
	}
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", target, err)
	}
	if !existed {
		x.created = append(x.created, target)
	}
	return nil
}

// maxLinkHops bounds symlink chains followed by resolve.
const maxLinkHops = 40

var errOutside = errors.New("path leaves the destination")

// resolve walks the slash-separated rel from the extraction root, following
// every symlink that exists on disk, and returns the physical path. It fails
// when that path is not inside the root.
func (x *extraction) resolve(rel string) (string, error) {
	p, err := follow(x.root, rel, 0)
	if err != nil {
		return "", err
	}
	if !within(x.root, p) {
		return "", errOutside
	}
	return p, nil
}

func follow(base, rel string, hops int) (string, error) {
	cur := base
	for _, c := range strings.Split(rel, "/") {
		switch c {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
			continue
		}
		cur = filepath.Join(cur, c)
		fi, err := os.Lstat(cur)
		if err != nil || fi.Mode()&fs.ModeSymlink == 0 {
			continue
		}
		if hops >= maxLinkHops {
			return "", fmt.Errorf("too many levels of symbolic links at %s", cur)
		}
		link, err := os.Readlink(cur)
		if err != nil {
			return "", err
		}
		link = filepath.ToSlash(link)
		if filepath.IsAbs(link) || path.IsAbs(link) {
			vol := filepath.VolumeName(link)
			cur, err = follow(vol+"/", strings.TrimPrefix(link, vol), hops+1)
		} else {
			cur, err = follow(filepath.Dir(cur), link, hops+1)
		}
		if err != nil {
			return "", err
		}
	}
	return cur, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func (x *extraction) escapes(name string, err error) error {
	return &CorruptArchiveError{Path: x.src, Err: fmt.Errorf("%s resolves outside %s: %w", name, x.dest, err)}
}

// undo removes what this extraction created, newest first.
func (x *extraction) undo() {
	for i := len(x.created) - 1; i >= 0; i-- {
		p := x.created[i]
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to remove partially extracted path", "path", p, "error", err)
		}
	}
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// safeRel cleans an archive member name and rejects names that would land
// outside the destination (Zip Slip).
func safeRel(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(n, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	clean := path.Clean(n)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	return clean, nil
}

func checkLink(name, linkname string) error {
	if linkname == "" || path.IsAbs(strings.ReplaceAll(linkname, "\\", "/")) {
		return fmt.Errorf("illegal symlink in archive: %s -> %s", name, linkname)
	}
	rel, err := safeRel(name)
	if err != nil {
		return err
	}
	if _, err := safeRel(path.Join(path.Dir(rel), strings.ReplaceAll(linkname, "\\", "/"))); err != nil {
		return fmt.Errorf("illegal symlink in archive: %s -> %s", name, linkname)
	}
	return nil
}

// checkNesting rejects members stored below a symlink of the same archive,
// which would be written wherever that link points.
func checkNesting(names []string, links map[string]bool) error {
	for _, n := range names {
		for d := path.Dir(n); d != "." && d != "/"; d = path.Dir(d) {
			if links[d] {
				return fmt.Errorf("illegal file path in archive: %s is below symlink %s", n, d)
			}
		}
	}
	return nil
}
