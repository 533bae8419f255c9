package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/imtaco/sqlcrossover/migration"
)

// printSummary writes the per-table outcome of a run. It goes to stderr so a
// dump written to stdout stays clean.
func printSummary(w io.Writer, report *migration.Report, runErr error) {
	if report == nil {
		return
	}
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)

	fmt.Fprintln(w)
	if len(report.Order) > 0 {
		cyan.Fprintf(w, "Copy order: %s\n", strings.Join(report.Order, ", "))
	}
	for _, res := range report.Tables {
		switch res.State {
		case migration.StateDone:
			green.Fprintf(w, "  ✔ %-30s %10d rows  %4d pages  %8.2fs\n", res.Table, res.Rows, res.Pages, res.Elapsed.Seconds())
		case migration.StateSkipped:
			yellow.Fprintf(w, "  - %-30s skipped: %v\n", res.Table, res.Err)
		default:
			red.Fprintf(w, "  ✘ %-30s %s after %d rows: %v\n", res.Table, res.State, res.Rows, res.Err)
		}
	}
	if len(report.Cycles) > 0 {
		yellow.Fprintf(w, "  foreign key cycles copied with deferred constraints: %v\n", report.Cycles)
	}

	switch {
	case runErr == nil:
		green.Fprintf(w, "\nCopied %d rows from %d tables in %.2fs\n", report.Rows, len(report.Tables)-len(report.Skipped), report.Elapsed.Seconds())
	case len(report.Tables) > 0:
		red.Fprintf(w, "\nMigration failed: %v\n", runErr)
	default:
		red.Fprintf(w, "\nMigration failed before copying: %v\n", runErr)
	}
}
