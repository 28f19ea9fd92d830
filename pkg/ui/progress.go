package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"imgscraper/pkg/report"
)

const (
	barFull  = "━"
	barEmpty = "─"
	barWidth = 20
)

// Progress renders a single updating status line for a run. Update is safe
// to call from several goroutines.
type Progress struct {
	mu        sync.Mutex
	out       io.Writer
	total     int
	done      int
	succeeded int
	skipped   int
	failed    int
	bytes     int64
	last      string
	startTime time.Time
	verbose   bool
}

// NewProgress creates a progress line for total entities. verbose prints one
// line per entity instead of redrawing.
func NewProgress(out io.Writer, total int, verbose bool) *Progress {
	if out == nil {
		out = Output
	}
	return &Progress{
		out:       out,
		total:     total,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// Update records a finished entity and redraws
func (p *Progress) Update(entry report.Entry, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = done
	if total > 0 {
		p.total = total
	}
	switch entry.Status {
	case report.StatusSuccess:
		p.succeeded++
		p.bytes += entry.Bytes
	case report.StatusSkipped:
		p.skipped++
	case report.StatusFailed:
		p.failed++
	}
	p.last = entry.EntityID

	if p.verbose {
		fmt.Fprintln(p.out, formatEntry(entry))
		return
	}
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), p.line())
}

// Complete ends the status line
func (p *Progress) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verbose {
		fmt.Fprintln(p.out)
	}
	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.out, "%s %d acquired, %d skipped, %d failed • %s in %s\n",
		Green("✓"), p.succeeded, p.skipped, p.failed,
		FormatBytes(p.bytes), FormatDuration(elapsed))
}

func (p *Progress) line() string {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if m := elapsed.Minutes(); m > 0 {
		rate = float64(p.done) / m
	}

	line := fmt.Sprintf("%s %d/%d • %.1f/min • %s • eta %s",
		Bar(p.done, p.total), p.done, p.total, rate, FormatBytes(p.bytes), p.eta(elapsed))
	if p.last != "" {
		line += " • " + p.last
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}
	return line
}

func (p *Progress) eta(elapsed time.Duration) string {
	if p.done == 0 || elapsed <= 0 {
		return "calculating..."
	}
	perItem := elapsed / time.Duration(p.done)
	return FormatDuration(perItem * time.Duration(p.total-p.done))
}

func formatEntry(e report.Entry) string {
	switch e.Status {
	case report.StatusSuccess:
		return fmt.Sprintf("%s %s • %s • %s", Green("✓"), e.EntityID, e.Provider, FormatBytes(e.Bytes))
	case report.StatusSkipped:
		return fmt.Sprintf("%s %s • %s", Dim("-"), e.EntityID, Dim(e.Reason))
	default:
		return fmt.Sprintf("%s %s • %s", Red("✗"), e.EntityID, e.Reason)
	}
}

// Bar draws a fixed width progress bar
func Bar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * barWidth / total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat(barFull, filled) + strings.Repeat(barEmpty, barWidth-filled) + "]"
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
