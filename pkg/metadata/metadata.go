// Package metadata keeps a provenance sidecar next to each acquired image:
// where it came from, which query found it and its dimensions. Wikimedia and
// Unsplash images need the source URL for attribution.
package metadata

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imgscraper/pkg/report"
)

// Suffix is appended to the image path to name its sidecar
const Suffix = ".json"

// Provenance describes one acquired image
type Provenance struct {
	EntityID   string    `json:"entity_id"`
	Provider   string    `json:"provider"`
	Keyword    string    `json:"keyword,omitempty"`
	SourceURL  string    `json:"source_url"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Format     string    `json:"format,omitempty"`
	FileSize   int64     `json:"file_size"`
	RunID      string    `json:"run_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// FromEntry builds the provenance of a successful entry. Dimensions already on
// the entry are used, otherwise they are read from the image header.
func FromEntry(entry report.Entry, runID, imagePath string) *Provenance {
	p := &Provenance{
		EntityID:   entry.EntityID,
		Provider:   entry.Provider,
		Keyword:    entry.Keyword,
		SourceURL:  entry.SourceURL,
		Width:      entry.Width,
		Height:     entry.Height,
		FileSize:   entry.Bytes,
		RunID:      runID,
		AcquiredAt: time.Now().UTC(),
	}

	width, height, format := Dimensions(imagePath)
	p.Format = format
	if p.Width == 0 || p.Height == 0 {
		p.Width, p.Height = width, height
	}
	if p.FileSize == 0 {
		if info, err := os.Stat(imagePath); err == nil {
			p.FileSize = info.Size()
		}
	}
	return p
}

// Dimensions decodes only the image header. Unknown formats and unreadable
// files yield zeros.
func Dimensions(imagePath string) (width, height int, format string) {
	f, err := os.Open(imagePath)
	if err != nil {
		return 0, 0, ""
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, ""
	}
	return cfg.Width, cfg.Height, format
}

// Path returns the sidecar path of an image
func Path(imagePath string) string {
	return imagePath + Suffix
}

// Save writes the sidecar next to imagePath
func (p *Provenance) Save(imagePath string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal provenance: %w", err)
	}
	if err := os.WriteFile(Path(imagePath), data, 0644); err != nil {
		return fmt.Errorf("failed to write provenance file: %w", err)
	}
	return nil
}

// Load reads the sidecar of imagePath
func Load(imagePath string) (*Provenance, error) {
	data, err := os.ReadFile(Path(imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read provenance file: %w", err)
	}
	var p Provenance
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse provenance file: %w", err)
	}
	return &p, nil
}

// Exists reports whether imagePath has a sidecar
func Exists(imagePath string) bool {
	_, err := os.Stat(Path(imagePath))
	return err == nil
}

// AspectRatio names common ratios, otherwise "w.hh:1"
func AspectRatio(width, height int) string {
	if width == 0 || height == 0 {
		return "unknown"
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.45 && ratio < 1.55:
		return "3:2"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}

// CleanOrphaned removes sidecars whose image is gone and returns how many
func CleanOrphaned(dir string) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, Suffix) {
			return nil
		}
		imagePath := strings.TrimSuffix(path, Suffix)
		if filepath.Ext(imagePath) == "" {
			return nil
		}
		if _, err := os.Stat(imagePath); os.IsNotExist(err) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove orphaned sidecar %s: %w", path, err)
			}
			removed++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return removed, nil
	}
	return removed, err
}
