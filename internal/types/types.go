// =============================================================================
// Paycom Distribution - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - xlsxparser (reference tables)
//   - extractor  (payroll records)
//   - refdata    (cached reference tables)
//   - report     (joined report rows)
//   - pipeline   (run parameters and errors)
//
// =============================================================================

package types

import (
	"time"
)

// DateLayout is the layout used for pay-period dates everywhere a date
// crosses a process boundary (CLI flags, form fields, report cells).
const DateLayout = "2006-01-02"

// =============================================================================
// PAYROLL RECORD
// =============================================================================

// PayrollRecord is one employee distribution line from the payroll export.
//
// All values are kept as the trimmed cell text. Nothing is numerically parsed
// at this layer so locale-specific formatting survives into the reports.
type PayrollRecord struct {
	Distribution string
	EmployeeCode string
	EmployeeName string
	InternCode   string
	DOLStatus    string
	GrossHours   string
	Salary       string
	FICA         string
	NYMetroCTM   string
	Match401K    string

	// SourceRow is the 1-based worksheet row the record was read from.
	// Useful for error reporting.
	SourceRow int
}

// =============================================================================
// REFERENCE ENTRIES
// =============================================================================

// SegmentEntry maps a segment (distribution) code to a customer and department.
type SegmentEntry struct {
	SegmentCode string
	Customer    string
	Department  string
}

// TitleEntry maps an employee name to an external id and a job title.
type TitleEntry struct {
	ExternalID string
	Title      string
	Name       string
}

// SegmentTable is keyed by SegmentEntry.SegmentCode.
type SegmentTable map[string]SegmentEntry

// TitleTable is keyed by TitleEntry.Name.
type TitleTable map[string]TitleEntry

// =============================================================================
// PAY PERIOD
// =============================================================================

// Period is the pay-period window a run is generated for. It is attached to
// every report row as metadata; it never filters records.
type Period struct {
	Start time.Time
	End   time.Time
}

// Validate checks that both dates are present and ordered.
func (p Period) Validate() error {
	if p.Start.IsZero() {
		return ErrMissingPeriodStart
	}
	if p.End.IsZero() {
		return ErrMissingPeriodEnd
	}
	if p.End.Before(p.Start) {
		return ErrPeriodOrder
	}
	return nil
}

// StartString returns the period start formatted with DateLayout.
func (p Period) StartString() string {
	return p.Start.Format(DateLayout)
}

// EndString returns the period end formatted with DateLayout.
func (p Period) EndString() string {
	return p.End.Format(DateLayout)
}

// ParsePeriod parses two DateLayout dates. Blank values map to the matching
// missing-date error so callers can report which one was absent.
func ParsePeriod(start, end string) (Period, error) {
	var p Period

	if start == "" {
		return p, ErrMissingPeriodStart
	}
	if end == "" {
		return p, ErrMissingPeriodEnd
	}

	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return p, ErrInvalidPeriodDate
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return p, ErrInvalidPeriodDate
	}

	p = Period{Start: s, End: e}
	return p, p.Validate()
}
