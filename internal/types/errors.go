package types

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

// =============================================================================
// PRE-PIPELINE VALIDATION ERRORS
// =============================================================================
// These are returned before a run starts. They are not pipeline failures.

var (
	// ErrMissingWorkbook is returned when no payroll workbook was supplied.
	ErrMissingWorkbook = zerr.New("no payroll workbook supplied")

	// ErrMissingPeriodStart is returned when the pay-period start date is absent.
	ErrMissingPeriodStart = zerr.New("pay period start date is required")

	// ErrMissingPeriodEnd is returned when the pay-period end date is absent.
	ErrMissingPeriodEnd = zerr.New("pay period end date is required")

	// ErrInvalidPeriodDate is returned when a pay-period date is not YYYY-MM-DD.
	ErrInvalidPeriodDate = zerr.New("pay period dates must use YYYY-MM-DD")

	// ErrPeriodOrder is returned when the period ends before it starts.
	ErrPeriodOrder = zerr.New("pay period end is before pay period start")
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind names an error category of the run taxonomy.
type Kind string

const (
	KindSchemaValidation Kind = "schema_validation"
	KindReferenceLoad    Kind = "reference_load"
	KindInputRead        Kind = "input_read"
	KindMalformedRow     Kind = "malformed_row"
	KindMissingReference Kind = "missing_reference"
)

// KindError is implemented by every error of the run taxonomy.
type KindError interface {
	error
	Kind() Kind
}

// =============================================================================
// SCHEMA VALIDATION
// =============================================================================

// SchemaValidationError reports every required column absent from the header.
type SchemaValidationError struct {
	// Missing lists the absent columns in required-column order.
	Missing []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("upload file is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Kind implements KindError.
func (e *SchemaValidationError) Kind() Kind { return KindSchemaValidation }

// =============================================================================
// I/O ERRORS
// =============================================================================

// ReferenceTable names one of the two reference datasets.
type ReferenceTable string

const (
	SegmentReference ReferenceTable = "segment"
	TitleReference   ReferenceTable = "title"
)

// ReferenceLoadError is returned when a reference file cannot be read or parsed.
type ReferenceLoadError struct {
	Table ReferenceTable
	Path  string
	Err   error
}

func (e *ReferenceLoadError) Error() string {
	return fmt.Sprintf("failed to load %s reference data from %q: %v", e.Table, e.Path, e.Err)
}

func (e *ReferenceLoadError) Unwrap() error { return e.Err }

// Kind implements KindError.
func (e *ReferenceLoadError) Kind() Kind { return KindReferenceLoad }

// InputReadError is returned when the uploaded workbook cannot be read.
type InputReadError struct {
	Source string
	Err    error
}

func (e *InputReadError) Error() string {
	return fmt.Sprintf("failed to read payroll workbook %q: %v", e.Source, e.Err)
}

func (e *InputReadError) Unwrap() error { return e.Err }

// Kind implements KindError.
func (e *InputReadError) Kind() Kind { return KindInputRead }

// =============================================================================
// DATA ERRORS
// =============================================================================

// MalformedRowError is returned for a data row that does not fit the header.
type MalformedRowError struct {
	// Row is the 1-based worksheet row number.
	Row int

	// Cells is the number of cells the row carries.
	Cells int

	// Width is the number of header columns.
	Width int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("row %d is malformed: %d cells for a %d-column header", e.Row, e.Cells, e.Width)
}

// Kind implements KindError.
func (e *MalformedRowError) Kind() Kind { return KindMalformedRow }

// MissingReferenceError is returned when a join key is absent from a lookup table.
type MissingReferenceError struct {
	// RecordIndex is the 0-based position of the record in the extraction.
	RecordIndex int

	// Row is the worksheet row of the record.
	Row int

	// Table is the lookup table that lacked the key.
	Table ReferenceTable

	// Key is the value that was looked up.
	Key string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("record %d (row %d): no %s reference for %q", e.RecordIndex, e.Row, e.Table, e.Key)
}

// Kind implements KindError.
func (e *MissingReferenceError) Kind() Kind { return KindMissingReference }

// MissingReferencesError aborts a run under the abort policy. It carries
// every missing reference found, not just the first.
type MissingReferencesError struct {
	Errors []*MissingReferenceError
}

func (e *MissingReferencesError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d missing references, first: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the individual errors to errors.As.
func (e *MissingReferencesError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Kind implements KindError.
func (e *MissingReferencesError) Kind() Kind { return KindMissingReference }
