// =============================================================================
// Paycom Distribution - CSV Writer Module
// =============================================================================
//
// This module serializes category reports and the run summary. The report
// format is the downstream contract and must stay stable:
//
//   - RFC 4180 CSV, UTF-8, comma separated, LF line endings
//   - Exactly one header row, even for an empty report:
//       employeeCode,employeeName,externalId,title,distribution,
//       customer,department,categoryValue,periodStart,periodEnd
//   - Dates as YYYY-MM-DD
//   - Rows in source row order
//
// Column names and order come from the csv tags on report.Row.
//
// =============================================================================

package csvwriter

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"go.trai.ch/zerr"

	"github.com/ginjaninja78/paycom-distribution/internal/report"
)

// Header is the report header row.
var Header = []string{
	"employeeCode", "employeeName", "externalId", "title", "distribution",
	"customer", "department", "categoryValue", "periodStart", "periodEnd",
}

// =============================================================================
// REPORTS
// =============================================================================

// WriteReport writes the rows of one category report to w.
func WriteReport(w io.Writer, rows []report.Row) error {
	if rows == nil {
		rows = []report.Row{}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return zerr.Wrap(err, "failed to write report csv")
	}
	return nil
}

// ReadReport parses a report written by WriteReport.
func ReadReport(r io.Reader) ([]report.Row, error) {
	var rows []report.Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, zerr.Wrap(err, "failed to read report csv")
	}
	return rows, nil
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// Summary describes one completed run.
type Summary struct {
	RunID     string
	Source    string
	StartTime time.Time
	EndTime   time.Time
	Records   int
	Output    *report.Output

	// Files maps category slugs to published (or, on a dry run, planned)
	// file names.
	Files map[string]string
}

// WriteSummary writes a human readable run summary to w.
//
// PARAMETERS:
//   - w: Destination.
//   - summary: The run to describe. Output must be set.
//
// RETURNS:
//   - An error if writing fails.
func WriteSummary(w io.Writer, summary Summary) error {
	out := summary.Output
	if out == nil {
		return zerr.New("summary has no report output")
	}

	writer := bufio.NewWriter(w)
	rule := strings.Repeat("=", 80) + "\n"
	thin := strings.Repeat("-", 80) + "\n"

	fmt.Fprintf(writer, "Paycom Distribution - Run Summary\n%s\n", rule)
	fmt.Fprintf(writer, "Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Source:         %s\n"+
		"  Pay Period:     %s to %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n",
		summary.RunID,
		summary.Source,
		out.Period.StartString(), out.Period.EndString(),
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String())

	fmt.Fprintf(writer, "Statistics:\n"+
		"  Records:            %d\n"+
		"  Included:           %d\n"+
		"  Excluded:           %d\n"+
		"  Missing References: %d\n\n",
		summary.Records, out.Included, out.Excluded, len(out.Missing))

	writer.WriteString("Reports:\n")
	writer.WriteString(thin)
	for _, r := range out.Reports {
		fmt.Fprintf(writer, "  %-14s rows: %-6d total: %s", r.Category.Title, len(r.Rows), r.Total.StringFixed(2))
		if r.Unparsed > 0 {
			fmt.Fprintf(writer, "  (%d non-numeric)", r.Unparsed)
		}
		writer.WriteString("\n")
		if name, ok := summary.Files[r.Category.Slug]; ok {
			fmt.Fprintf(writer, "  %-14s file: %s\n", "", name)
		}
	}
	writer.WriteString("\n")

	if len(out.Missing) > 0 {
		writer.WriteString("Excluded Records:\n")
		writer.WriteString(thin)
		for _, m := range out.Missing {
			fmt.Fprintf(writer, "  Row %-6d no %s reference for %q\n", m.Row, m.Table, m.Key)
		}
		writer.WriteString("\n")
	}

	writer.WriteString(rule + "End of Summary\n")

	if err := writer.Flush(); err != nil {
		return zerr.Wrap(err, "failed to write run summary")
	}
	return nil
}
