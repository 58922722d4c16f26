// =============================================================================
// Paycom Distribution - Report Generator
// =============================================================================
//
// This module joins extracted payroll records against the reference tables
// and splits them into the four category reports.
//
// JOIN:
//   - Distribution  -> segment table  (customer, department)
//   - Employee_Name -> title table    (external id, title)
//
// Keys match exactly. A record missing either key never reaches a report.
// Under the exclude policy it is listed in Output.Missing; under the abort
// policy the whole run fails with every missing reference found.
//
// The pay period is stamped on every row. It does not filter records.
//
// =============================================================================

package report

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/paycom-distribution/internal/config"
	"github.com/ginjaninja78/paycom-distribution/internal/types"
)

// =============================================================================
// OUTPUT TYPES
// =============================================================================

// Row is one line of a category report. The csv tags define the published
// column names and order.
type Row struct {
	EmployeeCode  string `csv:"employeeCode"`
	EmployeeName  string `csv:"employeeName"`
	ExternalID    string `csv:"externalId"`
	Title         string `csv:"title"`
	Distribution  string `csv:"distribution"`
	Customer      string `csv:"customer"`
	Department    string `csv:"department"`
	CategoryValue string `csv:"categoryValue"`
	PeriodStart   string `csv:"periodStart"`
	PeriodEnd     string `csv:"periodEnd"`
}

// Report is the content of one category report.
type Report struct {
	Category Category

	// Rows follow the source row order.
	Rows []Row

	// Total sums every numeric category value in Rows.
	Total decimal.Decimal

	// Unparsed counts rows whose value is kept verbatim but left out of Total.
	Unparsed int
}

// Output is everything a generation pass produced.
type Output struct {
	Period  types.Period
	Reports []Report

	// Missing lists every missing reference, in record order.
	Missing []*types.MissingReferenceError

	// Included and Excluded count records by whether they were joined.
	Included int
	Excluded int
}

// RowCount returns the total number of rows across all reports.
func (o *Output) RowCount() int {
	n := 0
	for _, r := range o.Reports {
		n += len(r.Rows)
	}
	return n
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator builds category reports.
type Generator struct {
	Policy config.MissingReferencePolicy

	// Logger receives one warning per excluded record. Optional.
	Logger *slog.Logger
}

// Generate joins records against segments and titles.
//
// PARAMETERS:
//   - records: Extracted payroll records in source order.
//   - segments, titles: The reference tables for this run.
//   - period: Pay-period metadata stamped on every row.
//
// RETURNS:
//   - The four category reports (always four, possibly empty).
//   - A *types.MissingReferencesError under the abort policy when any key is
//     missing. No output is returned in that case.
func (g Generator) Generate(
	records []types.PayrollRecord,
	segments types.SegmentTable,
	titles types.TitleTable,
	period types.Period,
) (*Output, error) {
	out := &Output{
		Period:  period,
		Reports: make([]Report, len(Categories)),
	}
	for i, cat := range Categories {
		out.Reports[i] = Report{Category: cat, Rows: []Row{}, Total: decimal.Zero}
	}

	start, end := period.StartString(), period.EndString()

	for i, rec := range records {
		segment, segOK := segments[rec.Distribution]
		title, titleOK := titles[rec.EmployeeName]

		if !segOK || !titleOK {
			missing := g.missing(i, rec, segOK, titleOK)
			out.Missing = append(out.Missing, missing...)
			out.Excluded++
			continue
		}
		out.Included++

		for c := range out.Reports {
			report := &out.Reports[c]
			value := report.Category.Value(rec)
			if !applies(value) {
				continue
			}

			report.Rows = append(report.Rows, Row{
				EmployeeCode:  rec.EmployeeCode,
				EmployeeName:  rec.EmployeeName,
				ExternalID:    title.ExternalID,
				Title:         title.Title,
				Distribution:  rec.Distribution,
				Customer:      segment.Customer,
				Department:    segment.Department,
				CategoryValue: value,
				PeriodStart:   start,
				PeriodEnd:     end,
			})

			if amount, ok := ParseAmount(value); ok {
				report.Total = report.Total.Add(amount)
			} else {
				report.Unparsed++
			}
		}
	}

	if g.Policy == config.PolicyAbort && len(out.Missing) > 0 {
		return nil, &types.MissingReferencesError{Errors: out.Missing}
	}
	return out, nil
}

// missing builds the missing-reference errors of one record and logs them
// under the exclude policy.
func (g Generator) missing(index int, rec types.PayrollRecord, segOK, titleOK bool) []*types.MissingReferenceError {
	var errs []*types.MissingReferenceError
	if !segOK {
		errs = append(errs, &types.MissingReferenceError{
			RecordIndex: index,
			Row:         rec.SourceRow,
			Table:       types.SegmentReference,
			Key:         rec.Distribution,
		})
	}
	if !titleOK {
		errs = append(errs, &types.MissingReferenceError{
			RecordIndex: index,
			Row:         rec.SourceRow,
			Table:       types.TitleReference,
			Key:         rec.EmployeeName,
		})
	}

	if g.Logger != nil && g.Policy != config.PolicyAbort {
		for _, err := range errs {
			g.Logger.Warn("record excluded",
				"row", err.Row,
				"table", err.Table,
				"key", err.Key)
		}
	}
	return errs
}
