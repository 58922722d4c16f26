// =============================================================================
// Paycom Distribution - Record Extractor
// =============================================================================
//
// This module turns the data rows of a validated payroll worksheet into
// PayrollRecords. Every cell is located through the header index built during
// schema validation, never through a fixed column position, so a reordered
// export extracts the same records.
//
// RULES:
//   - Values are trimmed text; a blank or absent cell is ""
//   - Fully blank rows are skipped
//   - A row with non-blank cells past the header width is malformed
//   - Zero data rows is a successful, empty extraction
//
// =============================================================================

package extractor

import (
	"strings"

	"github.com/ginjaninja78/paycom-distribution/internal/types"
	"github.com/ginjaninja78/paycom-distribution/internal/validation"
	"github.com/ginjaninja78/paycom-distribution/internal/xlsxparser"
)

// =============================================================================
// EXTRACTION RESULT
// =============================================================================

// Outcome distinguishes an extraction that never ran from one that produced
// records (possibly none) and one that failed.
type Outcome int

const (
	NotAttempted Outcome = iota
	Extracted
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Extracted:
		return "extracted"
	case Failed:
		return "failed"
	default:
		return "not_attempted"
	}
}

// Extraction is the result of one pass over a worksheet.
type Extraction struct {
	Outcome Outcome

	// Records holds the records in worksheet order when Outcome is Extracted.
	Records []types.PayrollRecord

	// Err is set when Outcome is Failed.
	Err error
}

// Empty reports whether the extraction succeeded with zero records.
func (e Extraction) Empty() bool {
	return e.Outcome == Extracted && len(e.Records) == 0
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract maps every data row of sheet onto a PayrollRecord.
//
// PARAMETERS:
//   - sheet: The payroll worksheet.
//   - index: The header index returned by validation.Validate.
//
// RETURNS:
//   - An Extraction. A structurally broken row fails the whole pass with a
//     *types.MalformedRowError.
func Extract(sheet *xlsxparser.Sheet, index validation.HeaderIndex) Extraction {
	records := make([]types.PayrollRecord, 0, len(sheet.Rows))

	for i, row := range sheet.Rows {
		if xlsxparser.IsRowEmpty(row) {
			continue
		}

		rowNumber := sheet.RowNumber(i)
		if overflows(row, index.Width()) {
			return Extraction{
				Outcome: Failed,
				Err: &types.MalformedRowError{
					Row:   rowNumber,
					Cells: len(row),
					Width: index.Width(),
				},
			}
		}

		records = append(records, toRecord(row, index, rowNumber))
	}

	return Extraction{Outcome: Extracted, Records: records}
}

// toRecord copies the required columns of one row.
func toRecord(row []string, index validation.HeaderIndex, rowNumber int) types.PayrollRecord {
	return types.PayrollRecord{
		Distribution: index.Cell(row, validation.ColDistribution),
		EmployeeCode: index.Cell(row, validation.ColEmployeeCode),
		EmployeeName: index.Cell(row, validation.ColEmployeeName),
		InternCode:   index.Cell(row, validation.ColInternCode),
		DOLStatus:    index.Cell(row, validation.ColDOLStatus),
		GrossHours:   index.Cell(row, validation.ColGrossHours),
		Salary:       index.Cell(row, validation.ColSalary),
		FICA:         index.Cell(row, validation.ColFICA),
		NYMetroCTM:   index.Cell(row, validation.ColNYMetroCTM),
		Match401K:    index.Cell(row, validation.Col401KMatch),
		SourceRow:    rowNumber,
	}
}

// overflows reports whether row carries a value beyond the header width.
func overflows(row []string, width int) bool {
	for i := width; i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return true
		}
	}
	return false
}
