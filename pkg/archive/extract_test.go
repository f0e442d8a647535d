package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contentGen func(func(name string, content []byte) error) error

func standardContent(w func(name string, content []byte) error) error {
	if err := w("test.txt", []byte("hello world")); err != nil {
		return err
	}
	return w("subdir/sub.txt", []byte("hello sub"))
}

func TestExtract(t *testing.T) {
	tempDir := t.TempDir()

	zipPath := filepath.Join(tempDir, "test.zip")
	createZip(t, zipPath, standardContent)
	testExtraction(t, zipPath)

	tarPath := filepath.Join(tempDir, "test.tar")
	createTar(t, tarPath, nil, standardContent)
	testExtraction(t, tarPath)

	tgzPath := filepath.Join(tempDir, "test.tar.gz")
	createTar(t, tgzPath, func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	}, standardContent)
	testExtraction(t, tgzPath)

	zstPath := filepath.Join(tempDir, "test.tar.zst")
	createTar(t, zstPath, func(w io.Writer) io.WriteCloser {
		e, _ := zstd.NewWriter(w)
		return e
	}, standardContent)
	testExtraction(t, zstPath)
}

func TestExtractOverwrites(t *testing.T) {
	tempDir := t.TempDir()
	zipPath := filepath.Join(tempDir, "test.zip")
	createZip(t, zipPath, standardContent)

	dest := filepath.Join(tempDir, "out")
	require.NoError(t, os.MkdirAll(dest, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "test.txt"), []byte("old content that is longer"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "keep.txt"), []byte("keep"), 0644))

	require.NoError(t, Extract(zipPath, dest))
	checkFile(t, filepath.Join(dest, "test.txt"), "hello world")
	checkFile(t, filepath.Join(dest, "keep.txt"), "keep")
}

func TestExtractRejectsZipSlip(t *testing.T) {
	tempDir := t.TempDir()
	zipPath := filepath.Join(tempDir, "evil.zip")
	createZip(t, zipPath, func(w func(string, []byte) error) error {
		if err := w("ok.txt", []byte("ok")); err != nil {
			return err
		}
		return w("../escape.txt", []byte("bad"))
	})

	dest := filepath.Join(tempDir, "out")
	err := Extract(zipPath, dest)

	var cerr *CorruptArchiveError
	require.ErrorAs(t, err, &cerr)
	assert.NoFileExists(t, filepath.Join(tempDir, "escape.txt"))
	// Validation runs before any write.
	assert.NoDirExists(t, dest)
}

func TestExtractRejectsEscapingSymlink(t *testing.T) {
	tempDir := t.TempDir()
	tarPath := filepath.Join(tempDir, "link.tar")
	f, err := os.Create(tarPath)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "lib/evil",
		Typeflag: tar.TypeSymlink,
		Linkname: "../../etc/passwd",
		Mode:     0777,
	}))
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	var cerr *CorruptArchiveError
	assert.ErrorAs(t, Validate(tarPath), &cerr)
}

func TestExtractRejectsChainedSymlinks(t *testing.T) {
	tempDir := t.TempDir()
	tarPath := filepath.Join(tempDir, "chain.tar")
	createTarEntries(t, tarPath, []tarEntry{
		{name: "s1", link: "."},
		{name: "s1/s2", link: ".."},
		{name: "s1/s2/evil.txt", body: "bad"},
	})

	dest := filepath.Join(tempDir, "install")
	err := Extract(tarPath, dest)

	var cerr *CorruptArchiveError
	require.ErrorAs(t, err, &cerr)
	assert.NoFileExists(t, filepath.Join(tempDir, "evil.txt"))
	assert.NoDirExists(t, dest)
}

func TestExtractRejectsLinkThroughLink(t *testing.T) {
	skipWithoutSymlinks(t)
	tempDir := t.TempDir()
	tarPath := filepath.Join(tempDir, "chain.tar")
	createTarEntries(t, tarPath, []tarEntry{
		{name: "s1", link: "."},
		{name: "s2", link: "s1/.."},
	})

	dest := filepath.Join(tempDir, "install")
	require.NoError(t, Validate(tarPath))
	err := Extract(tarPath, dest)

	var cerr *CorruptArchiveError
	require.ErrorAs(t, err, &cerr)
	_, err = os.Lstat(filepath.Join(dest, "s1"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "created link is removed again")
	_, err = os.Lstat(filepath.Join(dest, "s2"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExtractRejectsExistingLinkOutside(t *testing.T) {
	skipWithoutSymlinks(t)
	tempDir := t.TempDir()
	outside := filepath.Join(tempDir, "outside")
	require.NoError(t, os.MkdirAll(outside, 0755))
	dest := filepath.Join(tempDir, "install")
	require.NoError(t, os.MkdirAll(dest, 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(dest, "out")))

	tarPath := filepath.Join(tempDir, "dep.tar")
	createTarEntries(t, tarPath, []tarEntry{{name: "out/evil.txt", body: "bad"}})

	var cerr *CorruptArchiveError
	require.ErrorAs(t, Extract(tarPath, dest), &cerr)
	assert.NoFileExists(t, filepath.Join(outside, "evil.txt"))
}

func TestExtractReplacesLinkInsteadOfWritingThrough(t *testing.T) {
	skipWithoutSymlinks(t)
	tempDir := t.TempDir()
	victim := filepath.Join(tempDir, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("victim"), 0644))
	dest := filepath.Join(tempDir, "install")
	require.NoError(t, os.MkdirAll(dest, 0755))
	require.NoError(t, os.Symlink(victim, filepath.Join(dest, "link.txt")))

	tarPath := filepath.Join(tempDir, "dep.tar")
	createTarEntries(t, tarPath, []tarEntry{{name: "link.txt", body: "new"}})

	require.NoError(t, Extract(tarPath, dest))
	checkFile(t, victim, "victim")
	fi, err := os.Lstat(filepath.Join(dest, "link.txt"))
	require.NoError(t, err)
	assert.True(t, fi.Mode().IsRegular())
	checkFile(t, filepath.Join(dest, "link.txt"), "new")
}

func TestExtractKeepsInternalSymlink(t *testing.T) {
	skipWithoutSymlinks(t)
	tempDir := t.TempDir()
	tarPath := filepath.Join(tempDir, "dep.tar")
	createTarEntries(t, tarPath, []tarEntry{
		{name: "bin/tool", link: "../lib/real.so"},
		{name: "lib/real.so", body: "so"},
	})

	dest := filepath.Join(tempDir, "install")
	require.NoError(t, Extract(tarPath, dest))
	checkFile(t, filepath.Join(dest, "bin", "tool"), "so")
}

func TestValidateCorrupt(t *testing.T) {
	tempDir := t.TempDir()

	zipPath := filepath.Join(tempDir, "test.zip")
	createZip(t, zipPath, standardContent)
	truncate(t, zipPath)

	tgzPath := filepath.Join(tempDir, "test.tar.gz")
	createTar(t, tgzPath, func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	}, standardContent)
	truncate(t, tgzPath)

	sevenPath := filepath.Join(tempDir, "dependency-dll.7z")
	require.NoError(t, os.WriteFile(sevenPath, []byte("not a 7z archive"), 0644))

	for _, p := range []string{zipPath, tgzPath, sevenPath} {
		t.Run(filepath.Base(p), func(t *testing.T) {
			var cerr *CorruptArchiveError
			assert.ErrorAs(t, Validate(p), &cerr)

			dest := filepath.Join(tempDir, "out_"+filepath.Base(p))
			assert.ErrorAs(t, Extract(p, dest), &cerr)
			assert.NoDirExists(t, dest)
		})
	}
}

func TestExtractRemovesCreatedFilesOnWriteFailure(t *testing.T) {
	tempDir := t.TempDir()
	zipPath := filepath.Join(tempDir, "test.zip")
	createZip(t, zipPath, standardContent)

	dest := filepath.Join(tempDir, "out")
	require.NoError(t, os.MkdirAll(dest, 0755))
	// A file where the archive needs a directory makes the second entry fail.
	require.NoError(t, os.WriteFile(filepath.Join(dest, "subdir"), []byte("blocker"), 0644))

	err := Extract(zipPath, dest)
	require.Error(t, err)
	var cerr *CorruptArchiveError
	assert.False(t, errors.As(err, &cerr))

	assert.NoFileExists(t, filepath.Join(dest, "test.txt"))
	checkFile(t, filepath.Join(dest, "subdir"), "blocker")
}

func TestUnsupportedFormat(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file.rar")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	assert.ErrorIs(t, Extract(p, t.TempDir()), ErrUnsupportedFormat)
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".tar.gz", Ext("a.tar.gz"))
	assert.Equal(t, ".tar", Ext("a.tar"))
	assert.Equal(t, ".7z", Ext("dependency-dll.7z"))
	assert.Equal(t, ".zip", Ext("A.ZIP"))
	assert.Equal(t, "", Ext("a.exe"))
	assert.True(t, IsSupported("x.tgz"))
	assert.False(t, IsSupported("x.rar"))
}

func TestSafeRel(t *testing.T) {
	for _, bad := range []string{"../x", "/etc/passwd", "a/../../x", "..\\x"} {
		_, err := safeRel(bad)
		assert.Error(t, err, bad)
	}
	rel, err := safeRel("./torch/./lib/x.so")
	require.NoError(t, err)
	assert.Equal(t, "torch/lib/x.so", rel)
}

func truncate(t *testing.T, p string) {
	t.Helper()
	info, err := os.Stat(p)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(p, info.Size()/2))
}

func createZip(t *testing.T, path string, gen contentGen) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	err = gen(func(name string, content []byte) error {
		f, err := w.Create(name)
		if err != nil {
			return err
		}
		_, err = f.Write(content)
		return err
	})
	require.NoError(t, err)
}

func createTar(t *testing.T, path string, compressor func(io.Writer) io.WriteCloser, gen contentGen) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.WriteCloser = f
	if compressor != nil {
		w = compressor(f)
		defer w.Close()
	}

	tw := tar.NewWriter(w)
	defer tw.Close()

	err = gen(func(name string, content []byte) error {
		hdr := &tar.Header{
			Name:     name,
			Mode:     0600,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(content)
		return err
	})
	require.NoError(t, err)
}

func skipWithoutSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
}

type tarEntry struct {
	name string
	// link makes the entry a symlink.
	link string
	body string
}

func createTarEntries(t *testing.T, path string, entries []tarEntry) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	tw := tar.NewWriter(f)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0644, Typeflag: tar.TypeReg, Size: int64(len(e.body))}
		if e.link != "" {
			hdr = &tar.Header{Name: e.name, Mode: 0777, Typeflag: tar.TypeSymlink, Linkname: e.link}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.link == "" {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
}

func testExtraction(t *testing.T, archivePath string) {
	dest := filepath.Join(filepath.Dir(archivePath), "extract_"+filepath.Base(archivePath))
	require.NoError(t, Extract(archivePath, dest), archivePath)

	checkFile(t, filepath.Join(dest, "test.txt"), "hello world")
	checkFile(t, filepath.Join(dest, "subdir", "sub.txt"), "hello sub")
}

func checkFile(t *testing.T, path, content string) {
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(b), path)
}
