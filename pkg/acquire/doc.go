// Package acquire walks a catalog and obtains one image per entity.
//
// For every entity the orchestrator either copies a manual source file or
// queries the configured provider chain in order. Each search and each download
// runs under the retry policy, downloads are validated before they replace the
// destination, and the outcome lands in a report.RunReport. A failing entity
// never stops the run.
//
// Sequential mode pauses between network operations. Bulk mode hands entities
// to internal/downloader's worker pool under a shared requests-per-minute
// budget; results are still recorded by a single goroutine.
package acquire
