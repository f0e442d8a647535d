package lazyjson

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type index struct {
	Records map[string]record `json:"records"`
}

func newIndex() *index {
	return &index{Records: map[string]record{}}
}

func TestNew(t *testing.T) {
	mgr := New[index]("test.json")
	require.NotNil(t, mgr)
	assert.Equal(t, "test.json", mgr.Path())
	assert.False(t, mgr.IsLoaded())
	assert.False(t, mgr.IsDirty())
}

func TestLazyLoadMissingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "index.json")
	mgr := New(file, WithDefaultValue(newIndex))

	data, err := mgr.Get()
	require.NoError(t, err)
	require.NotNil(t, data.Records)
	assert.True(t, mgr.IsLoaded())
	assert.False(t, mgr.IsDirty())

	// Nothing is written for an untouched default.
	require.NoError(t, mgr.Save())
	assert.NoFileExists(t, file)
}

func TestLazyLoadFileExists(t *testing.T) {
	file := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"records":{"a":{"name":"A","version":"1.0"}}}`), 0644))

	mgr := New[index](file)
	data, err := mgr.Get()
	require.NoError(t, err)
	assert.Equal(t, record{Name: "A", Version: "1.0"}, data.Records["a"])
	assert.False(t, mgr.IsDirty())
}

func TestLoadInvalidJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(file, []byte(`{`), 0644))

	_, err := New[index](file).Get()
	assert.Error(t, err)
}

func TestModifyAndSave(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "index.json")
	mgr := New(file, WithDefaultValue(newIndex), WithFileMode[index](0600))

	require.NoError(t, mgr.Modify(func(d *index) error {
		d.Records["a"] = record{Name: "A"}
		return nil
	}))
	assert.True(t, mgr.IsDirty())

	require.NoError(t, mgr.Save())
	assert.False(t, mgr.IsDirty())

	mgr2 := New[index](file)
	data, err := mgr2.Get()
	require.NoError(t, err)
	assert.Equal(t, "A", data.Records["a"].Name)

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(file))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestModifyErrorKeepsClean(t *testing.T) {
	mgr := New(filepath.Join(t.TempDir(), "index.json"), WithDefaultValue(newIndex))
	err := mgr.Modify(func(d *index) error { return os.ErrInvalid })
	assert.ErrorIs(t, err, os.ErrInvalid)
	assert.False(t, mgr.IsDirty())
}

func TestRemoveWhenEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "index.json")
	mgr := New(file,
		WithDefaultValue(newIndex),
		WithRemoveWhenEmpty(func(d *index) bool { return len(d.Records) == 0 }))

	require.NoError(t, mgr.Modify(func(d *index) error {
		d.Records["a"] = record{Name: "A"}
		return nil
	}))
	require.NoError(t, mgr.Save())
	assert.FileExists(t, file)

	require.NoError(t, mgr.Modify(func(d *index) error {
		delete(d.Records, "a")
		return nil
	}))
	require.NoError(t, mgr.Save())
	assert.NoFileExists(t, file)
}

func TestReloadDiscardsChanges(t *testing.T) {
	file := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"records":{"a":{"name":"disk"}}}`), 0644))

	mgr := New[index](file)
	require.NoError(t, mgr.Modify(func(d *index) error {
		d.Records["a"] = record{Name: "memory"}
		return nil
	}))
	require.NoError(t, mgr.Reload())

	data, err := mgr.Get()
	require.NoError(t, err)
	assert.Equal(t, "disk", data.Records["a"].Name)
	assert.False(t, mgr.IsDirty())
}

func TestWithIndent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "index.json")
	mgr := New(file, WithDefaultValue(newIndex), WithIndent[index](""))
	require.NoError(t, mgr.Modify(func(d *index) error {
		d.Records["a"] = record{Name: "A"}
		return nil
	}))
	require.NoError(t, mgr.Save())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, `{"records":{"a":{"name":"A","version":""}}}`, string(data))
}

func TestConcurrency(t *testing.T) {
	mgr := New(filepath.Join(t.TempDir(), "index.json"), WithDefaultValue(newIndex))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = mgr.Modify(func(d *index) error {
				d.Records[string(rune('a'+i))] = record{}
				return nil
			})
			_, _ = mgr.Get()
		}(i)
	}
	wg.Wait()

	data, err := mgr.Get()
	require.NoError(t, err)
	assert.Len(t, data.Records, 20)
}
