package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"

	"imgscraper/pkg/metadata"
	"imgscraper/pkg/report"
)

// SummaryRows turns a report into table rows, header first. Only failed
// entities are listed unless all is set, which also adds the image ratio.
func SummaryRows(rep *report.RunReport, all bool) [][]string {
	header := []string{"Entity", "Status", "Provider", "Attempts", "Size", "Detail"}
	if all {
		header = append(header, "Ratio")
	}
	rows := [][]string{header}
	for _, e := range rep.Entries {
		if !all && e.Status != report.StatusFailed {
			continue
		}
		detail := e.Reason
		if e.Status == report.StatusSuccess {
			detail = e.Keyword
		}
		size := ""
		if e.Bytes > 0 {
			size = FormatBytes(e.Bytes)
		}
		row := []string{
			e.EntityID,
			string(e.Status),
			e.Provider,
			strconv.Itoa(e.Attempts),
			size,
			detail,
		}
		if all {
			ratio := ""
			if e.Status == report.StatusSuccess {
				ratio = metadata.AspectRatio(e.Width, e.Height)
			}
			row = append(row, ratio)
		}
		rows = append(rows, row)
	}
	return rows
}

// RenderSummary writes the run totals and the outcome table
func RenderSummary(w io.Writer, rep *report.RunReport, all bool) error {
	c := rep.Summary()
	fmt.Fprintf(w, "%s %s\n", Cyan("Run"), rep.RunID)
	fmt.Fprintf(w, "%s %d  %s %d  %s %d  %s %d  (%s)\n",
		Cyan("total"), c.Total,
		Green("success"), c.Success,
		Dim("skipped"), c.Skipped,
		Red("failed"), c.Failed,
		FormatDuration(rep.Duration()))

	rows := SummaryRows(rep, all)
	if len(rows) == 1 {
		return nil
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(rows)).Srender()
	if err != nil {
		return fmt.Errorf("failed to render summary table: %w", err)
	}
	fmt.Fprintln(w, table)
	return nil
}
