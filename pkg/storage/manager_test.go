package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgscraper/pkg/errors"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "destinations", "spain.jpg")

	n, err := WriteAtomic(dst, bytes.NewReader([]byte("jpeg bytes")), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.Equal(t, []string{"spain.jpg"}, listDir(t, filepath.Dir(dst)))
}

func TestWriteAtomicOverwrites(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0644))

	_, err := WriteAtomic(dst, bytes.NewReader([]byte("new")), nil)
	require.NoError(t, err)

	data, _ := os.ReadFile(dst)
	assert.Equal(t, "new", string(data))
}

type failingReader struct{ sent bool }

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset by peer")
}

func TestWriteAtomicReadFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(dst, []byte("previous good image"), 0644))

	_, err := WriteAtomic(dst, &failingReader{}, nil)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))

	assert.Equal(t, []string{"a.jpg"}, listDir(t, dir), "no temp file left behind")
	data, _ := os.ReadFile(dst)
	assert.Equal(t, "previous good image", string(data), "destination untouched")
}

func TestWriteAtomicCheckRejects(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "a.jpg")

	var seen string
	_, err := WriteAtomic(dst, bytes.NewReader([]byte("<html>")), func(tempPath string) error {
		seen = tempPath
		return errs.New(errs.ErrorTypeValidationSuspect, "markup")
	})

	require.Error(t, err)
	assert.True(t, IsTempFile(seen))
	assert.Empty(t, listDir(t, dir))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "card-amalfi.png")
	payload := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 4096)
	require.NoError(t, os.WriteFile(src, payload, 0644))

	dst := filepath.Join(dir, "destinations", "italy.jpg")
	n, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCopyFileMissingSource(t *testing.T) {
	_, err := CopyFile(filepath.Join(t.TempDir(), "nope.png"), filepath.Join(t.TempDir(), "x.jpg"))
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}

func TestManagerResolve(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "images", "destinations", "spain.jpg"), m.Resolve("/images/destinations/spain.jpg"))
	assert.Equal(t, filepath.Join(root, "images", "x.jpg"), m.Resolve("images/x.jpg"))
	inside := filepath.Join(root, "y.jpg")
	assert.Equal(t, inside, m.Resolve(inside))
	assert.Empty(t, m.Resolve(""))

	_, err = NewManager("")
	assert.Error(t, err)
}

func TestCleanupTemp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".spain.jpg.123.part"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spain.jpg"), nil, 0644))

	removed, err := CleanupTemp(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"spain.jpg"}, listDir(t, dir))

	removed, err = CleanupTemp(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(filepath.Join(dir, "a.jpg")))
	assert.False(t, Exists(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), nil, 0644))
	assert.True(t, Exists(filepath.Join(dir, "a.jpg")))
}

var _ io.Reader = (*failingReader)(nil)
