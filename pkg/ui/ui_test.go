package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgscraper/pkg/report"
)

func sampleReport(t *testing.T) *report.RunReport {
	t.Helper()
	rep := report.New()
	require.NoError(t, rep.Add(report.Entry{EntityID: "spain", Status: report.StatusSuccess, Provider: "wikimedia", Attempts: 1, Keyword: "Spain landmark", Bytes: 80000, Width: 1600, Height: 900}))
	require.NoError(t, rep.Add(report.Entry{EntityID: "atlantis", Status: report.StatusFailed, Attempts: 4, Reason: "no provider had an image"}))
	require.NoError(t, rep.Add(report.Entry{EntityID: "italy", Status: report.StatusSkipped, Reason: "already present"}))
	rep.Finish()
	return rep
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "78.1 KB", FormatBytes(80000))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "3m5s", FormatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h10m", FormatDuration(2*time.Hour+10*time.Minute))
}

func TestBar(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat(barEmpty, barWidth)+"]", Bar(0, 10))
	assert.Equal(t, "["+strings.Repeat(barFull, 10)+strings.Repeat(barEmpty, 10)+"]", Bar(5, 10))
	assert.Equal(t, "["+strings.Repeat(barFull, barWidth)+"]", Bar(12, 10))
	assert.Equal(t, "["+strings.Repeat(barEmpty, barWidth)+"]", Bar(3, 0))
}

func TestProgressVerbose(t *testing.T) {
	SetNoColor(true)
	var buf bytes.Buffer
	p := NewProgress(&buf, 2, true)

	p.Update(report.Entry{EntityID: "spain", Status: report.StatusSuccess, Provider: "wikimedia", Bytes: 2048}, 1, 2)
	p.Update(report.Entry{EntityID: "atlantis", Status: report.StatusFailed, Reason: "nothing found"}, 2, 2)
	p.Complete()

	out := buf.String()
	assert.Contains(t, out, "✓ spain • wikimedia • 2.0 KB")
	assert.Contains(t, out, "✗ atlantis • nothing found")
	assert.Contains(t, out, "1 acquired, 0 skipped, 1 failed")
}

func TestProgressLine(t *testing.T) {
	SetNoColor(true)
	var buf bytes.Buffer
	p := NewProgress(&buf, 4, false)

	p.Update(report.Entry{EntityID: "italy", Status: report.StatusFailed}, 1, 4)
	assert.Contains(t, buf.String(), "1/4")
	assert.Contains(t, buf.String(), "italy")
	assert.Contains(t, buf.String(), "1 failed")
}

func TestSummaryRows(t *testing.T) {
	rep := sampleReport(t)

	failedOnly := SummaryRows(rep, false)
	require.Len(t, failedOnly, 2)
	assert.Equal(t, "Entity", failedOnly[0][0])
	assert.Equal(t, []string{"atlantis", "failed", "", "4", "", "no provider had an image"}, failedOnly[1])

	all := SummaryRows(rep, true)
	require.Len(t, all, 4)
	assert.Equal(t, "Ratio", all[0][6])
	assert.Equal(t, []string{"spain", "success", "wikimedia", "1", "78.1 KB", "Spain landmark", "16:9"}, all[3])
	for _, row := range all[1:3] {
		assert.Empty(t, row[6], "no ratio for %s", row[0])
	}
}

func TestRenderSummary(t *testing.T) {
	SetNoColor(true)
	rep := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, rep, true))
	out := buf.String()
	assert.Contains(t, out, rep.RunID)
	assert.Contains(t, out, "total 3")
	assert.Contains(t, out, "atlantis")
	assert.Contains(t, out, "wikimedia")
	assert.Contains(t, out, "16:9")
}

type recordingSender struct {
	title, message string
	err            error
}

func (r *recordingSender) Send(title, message string) error {
	r.title, r.message = title, message
	return r.err
}

func TestNotifyRun(t *testing.T) {
	rep := sampleReport(t)
	sender := &recordingSender{}

	require.NoError(t, NewNotifierWithSender(sender).NotifyRun(rep))
	assert.Equal(t, "imgscraper: run finished with failures", sender.title)
	assert.Equal(t, "1 acquired, 1 skipped, 1 failed of 3", sender.message)

	sender.err = errors.New("no notification daemon")
	assert.Error(t, NewNotifierWithSender(sender).NotifyRun(rep))

	assert.NoError(t, (&Notifier{}).NotifyRun(rep))
}

func TestPrinters(t *testing.T) {
	SetNoColor(true)
	var buf bytes.Buffer
	old := Output
	Output = &buf
	defer func() { Output = old }()

	PrintSuccess("done")
	PrintError("failed", errors.New("boom"))
	PrintInfo("Catalog", "countries.json")
	PrintWarning("slow")

	assert.Equal(t, "done\nfailed: boom\nCatalog: countries.json\nslow\n", buf.String())
}
