// Package validate decides whether a downloaded file is plausibly an image.
package validate

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	errs "imgscraper/pkg/errors"
)

// DefaultMinBytes is the smallest file accepted as a real photo
const DefaultMinBytes int64 = 5 * 1024

const sniffLen = 512

// markupTypes are content types that mean a provider answered with a page instead of an image
var markupTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"text/xml",
	"application/xml",
}

// Verdict is the advisory outcome of a validation
type Verdict struct {
	Suspect bool
	Reason  string
}

// Valid returns a passing verdict
func Valid() Verdict {
	return Verdict{}
}

// Suspect returns a failing verdict with a reason
func Suspect(reason string) Verdict {
	return Verdict{Suspect: true, Reason: reason}
}

// IsValid reports whether the verdict passed
func (v Verdict) IsValid() bool {
	return !v.Suspect
}

func (v Verdict) String() string {
	if v.Suspect {
		return "suspect: " + v.Reason
	}
	return "valid"
}

// Err converts a Suspect verdict into a retryable validation error
func (v Verdict) Err() error {
	if !v.Suspect {
		return nil
	}
	return errs.New(errs.ErrorTypeValidationSuspect, v.Reason)
}

// Validator applies size and content-type heuristics
type Validator struct {
	MinBytes int64
}

// New creates a validator; a non-positive minBytes selects DefaultMinBytes
func New(minBytes int64) *Validator {
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}
	return &Validator{MinBytes: minBytes}
}

// Validate checks the file at path. declaredContentType comes from the response
// headers; when it is empty the first bytes of the file are sniffed instead.
func (v *Validator) Validate(path, declaredContentType string) Verdict {
	info, err := os.Stat(path)
	if err != nil {
		return Suspect(fmt.Sprintf("unreadable file: %v", err))
	}
	if info.Size() < v.MinBytes {
		return Suspect(fmt.Sprintf("file too small (%d bytes), likely an error page", info.Size()))
	}

	contentType := declaredContentType
	if strings.TrimSpace(contentType) == "" {
		sniffed, err := sniff(path)
		if err != nil {
			return Suspect(fmt.Sprintf("unreadable file: %v", err))
		}
		contentType = sniffed
	}
	if isMarkup(contentType) {
		return Suspect(fmt.Sprintf("received %s instead of an image", mediaType(contentType)))
	}
	return Valid()
}

// Check is the pre-commit hook of the download engine: a Suspect verdict
// becomes a validation_suspect error and the temp file is not renamed
func (v *Validator) Check(tempPath, declaredContentType string) error {
	return v.Validate(tempPath, declaredContentType).Err()
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func isMarkup(contentType string) bool {
	mt := mediaType(contentType)
	for _, markup := range markupTypes {
		if mt == markup {
			return true
		}
	}
	return false
}
