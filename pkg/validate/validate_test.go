package validate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgscraper/pkg/errors"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.jpg")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func jpegBytes(size int) []byte {
	data := bytes.Repeat([]byte{0xAB}, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return data
}

func TestSmallHTMLIsSuspect(t *testing.T) {
	path := writeFile(t, bytes.Repeat([]byte("x"), 1200))

	v := New(DefaultMinBytes).Validate(path, "text/html")
	assert.True(t, v.Suspect)
	assert.Contains(t, v.Reason, "too small")
}

func TestLargeJPEGIsValid(t *testing.T) {
	path := writeFile(t, jpegBytes(50000))

	v := New(DefaultMinBytes).Validate(path, "image/jpeg")
	assert.True(t, v.IsValid())
	assert.Equal(t, "valid", v.String())
	assert.NoError(t, v.Err())
}

func TestLargeHTMLIsSuspect(t *testing.T) {
	path := writeFile(t, bytes.Repeat([]byte("a"), 20000))

	v := New(0).Validate(path, "text/html; charset=utf-8")
	assert.True(t, v.Suspect)
	assert.Contains(t, v.Reason, "text/html")

	err := v.Err()
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidationSuspect))
	assert.True(t, errs.IsTransient(err))
}

func TestSniffingOnlyWithoutDeclaredType(t *testing.T) {
	page := append([]byte("<!DOCTYPE html><html><body>"), bytes.Repeat([]byte("blocked "), 2000)...)
	path := writeFile(t, page)
	v := New(0)

	assert.True(t, v.Validate(path, "").Suspect, "sniffed markup is suspect")
	assert.True(t, v.Validate(path, "image/jpeg").IsValid(), "declared image type is trusted")
}

func TestSniffedImageIsValid(t *testing.T) {
	path := writeFile(t, jpegBytes(8000))
	assert.True(t, New(0).Validate(path, "").IsValid())
}

func TestMissingFileIsSuspect(t *testing.T) {
	v := New(0).Validate(filepath.Join(t.TempDir(), "gone.jpg"), "image/jpeg")
	assert.True(t, v.Suspect)
}

func TestCheckHook(t *testing.T) {
	v := New(10)
	small := writeFile(t, []byte("tiny"))
	big := writeFile(t, jpegBytes(64))

	err := v.Check(small, "image/png")
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidationSuspect))
	assert.NoError(t, v.Check(big, "image/png"))
	assert.Error(t, v.Check(big, "text/html"))
}

func TestNewDefaultsThreshold(t *testing.T) {
	assert.Equal(t, DefaultMinBytes, New(-1).MinBytes)
	assert.Equal(t, int64(100), New(100).MinBytes)
}
