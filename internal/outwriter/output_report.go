package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

// reportCSVHeader is the column order of CSV report output.
var reportCSVHeader = []string{
	"module",
	"type",
	"path",
	"url",
	"status",
	"last_modified",
	"commit",
	"fingerprint",
}

// writeReportTable writes one table per tracked directory followed by a summary.
func writeReportTable(w io.Writer, report *schema.Report, cfg *contract.Config, duration time.Duration) error {
	if len(report.Records) == 0 {
		_, err := fmt.Fprintf(w, "No new or modified modules found in the last %s.\n", formatWindow(report.Window))
		return err
	}

	pathWidth := GetMaxTablePathWidth(cfg)
	for _, group := range report.GroupByCategory() {
		if _, err := fmt.Fprintf(w, "\n%s (%s)\n", group.Directory.Category, group.Directory.Prefix); err != nil {
			return err
		}

		table := tablewriter.NewWriter(w)
		table.Header([]string{"Module", "Type", "Path", "URL", "Status", "Last modified"})
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignLeft
		})

		var data [][]string
		for _, rec := range group.Records {
			data = append(data, []string{
				rec.Name,
				rec.Category,
				contract.TruncatePath(rec.Path, pathWidth),
				rec.ContentURL,
				kindLabel(rec.Kind, cfg.UseColors),
				formatTimestamp(rec.LastModified),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	counts := report.CountByKind()
	if _, err := fmt.Fprintf(w, "Found %d changes in %s (added: %d, modified: %d, removed: %d)\n",
		len(report.Records), report.Repo,
		counts[schema.AddedChange], counts[schema.ModifiedChange], counts[schema.RemovedChange]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Window %s to %s. Scan completed in %v. Cache backend: %s\n",
		formatTimestamp(report.Window.Start), formatTimestamp(report.Window.End),
		duration.Round(time.Millisecond), cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}

// writeReportCSV writes one row per change record.
func writeReportCSV(w io.Writer, report *schema.Report) error {
	return writeCSVWithHeader(w, reportCSVHeader, func(cw *csv.Writer) error {
		for _, rec := range report.Records {
			row := []string{
				rec.Name,
				rec.Category,
				rec.Path,
				rec.ContentURL,
				string(rec.Kind),
				formatTimestamp(rec.LastModified),
				rec.CommitSHA,
				rec.Fingerprint,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
		return nil
	})
}

// kindLabel returns the change kind, colored when the console allows it.
func kindLabel(kind schema.ChangeKind, useColors bool) string {
	if useColors {
		return contract.GetColorLabel(kind)
	}
	return string(kind)
}

// formatWindow renders the window length the way users usually type it.
func formatWindow(w schema.PollWindow) string {
	const day, week = 24 * time.Hour, 7 * 24 * time.Hour
	d := w.Duration()
	switch {
	case d >= 2*week && d%week == 0:
		return pluralize(int(d/week), "week")
	case d >= 2*day && d%day == 0:
		return pluralize(int(d/day), "day")
	case d > 0 && d%time.Hour == 0:
		return pluralize(int(d/time.Hour), "hour")
	case d > 0 && d%time.Minute == 0:
		return pluralize(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
