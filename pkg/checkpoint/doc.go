// Package checkpoint lets an interrupted acquisition run resume.
//
// A checkpoint records which catalog entities already reached a terminal
// success, keyed by the catalog location and output directory. A resumed run
// reports those entities as skipped instead of contacting providers again.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: $XDG_DATA_HOME/imgscraper/checkpoints/ or ~/.local/share/imgscraper/checkpoints/
//   - macOS: ~/Library/Application Support/imgscraper/checkpoints/
//   - Windows: %APPDATA%/imgscraper/checkpoints/
//
// Files are replaced atomically and carry a version number.
package checkpoint
