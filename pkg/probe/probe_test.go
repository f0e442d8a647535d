package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marker = "torch/version.py"

func TestProbeMissingTarget(t *testing.T) {
	res, err := Probe(filepath.Join(t.TempDir(), "does-not-exist"), marker)
	require.NoError(t, err)
	assert.False(t, res.Present)
}

func TestProbeIgnoresOtherContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "torch", "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "torch", "lib", "c10.dll"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main"), []byte("x"), 0755))

	res, err := Probe(dir, marker)
	require.NoError(t, err)
	assert.False(t, res.Present, "a populated heavy dir without the marker is not an install")

	require.NoError(t, os.WriteFile(filepath.Join(dir, marker), []byte("__version__ = '2.3'"), 0644))
	res, err = Probe(dir, marker)
	require.NoError(t, err)
	assert.True(t, res.Present)
}

func TestProbeMarkerOnlyTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "torch"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, marker), nil, 0644))

	res, err := Probe(dir, marker)
	require.NoError(t, err)
	assert.True(t, res.Present)
}

func TestProbeDirectoryIsNotMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, marker), 0755))

	res, err := Probe(dir, marker)
	require.NoError(t, err)
	assert.False(t, res.Present)
}

func TestProbeTargetIsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0644))

	res, err := Probe(f, marker)
	require.NoError(t, err)
	assert.False(t, res.Present)
}
