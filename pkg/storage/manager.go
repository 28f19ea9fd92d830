package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "imgscraper/pkg/errors"
)

const tempSuffix = ".part"

// CheckFunc inspects a fully written temp file before it is moved into place.
// Returning an error aborts the commit and removes the temp file.
type CheckFunc func(tempPath string) error

// Manager writes images under a root directory without ever exposing a partially written file
type Manager struct {
	root string
}

// NewManager creates a storage manager rooted at dir
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute root directory
func (m *Manager) Root() string {
	return m.root
}

// Resolve maps a catalog path such as "/images/destinations/spain.jpg" under the root
func (m *Manager) Resolve(rel string) string {
	if rel == "" {
		return ""
	}
	if filepath.IsAbs(rel) && strings.HasPrefix(rel, m.root) {
		return rel
	}
	return filepath.Join(m.root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
}

// Exists reports whether path is a regular file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsTempFile reports whether name looks like an in-flight write
func IsTempFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".") && strings.HasSuffix(name, tempSuffix)
}

type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// WriteAtomic streams r into a temp file next to dst and renames it into place.
// Read failures are reported as network errors, everything else as filesystem errors.
func WriteAtomic(dst string, r io.Reader, check CheckFunc) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to create destination directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*"+tempSuffix)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to create temporary file", err)
	}
	tempPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tempPath)
		}
	}()

	tracker := &readTracker{r: r}
	n, copyErr := io.Copy(tmp, tracker)
	closeErr := tmp.Close()

	switch {
	case tracker.err != nil:
		return n, errs.Wrap(errs.ErrorTypeNetwork, "failed to read image data", tracker.err)
	case copyErr != nil:
		return n, errs.Wrap(errs.ErrorTypeFilesystem, "failed to write image data", copyErr)
	case closeErr != nil:
		return n, errs.Wrap(errs.ErrorTypeFilesystem, "failed to close temporary file", closeErr)
	}

	if check != nil {
		if err := check(tempPath); err != nil {
			return n, err
		}
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return n, errs.Wrap(errs.ErrorTypeFilesystem, "failed to set file mode", err)
	}
	if err := os.Rename(tempPath, dst); err != nil {
		return n, errs.Wrap(errs.ErrorTypeFilesystem, "failed to rename temporary file", err)
	}
	committed = true
	return n, nil
}

// CopyFile copies a local file to dst with the same atomic guarantees as WriteAtomic
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to open manual source", err)
	}
	defer in.Close()

	n, err := WriteAtomic(dst, in, nil)
	if errs.IsType(err, errs.ErrorTypeNetwork) {
		// a local read failure is still a filesystem problem
		return n, errs.Wrap(errs.ErrorTypeFilesystem, "failed to read manual source", errors.Unwrap(err))
	}
	return n, err
}

// CleanupTemp removes leftover temp files from interrupted runs in dir
func CleanupTemp(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsTempFile(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
