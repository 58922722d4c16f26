// =============================================================================
// Paycom Distribution - Schema Validation
// =============================================================================
//
// This module checks the header row of an uploaded payroll export against the
// set of required column names. It never reads data rows: a file with a
// correct header and an empty body is valid at this stage.
//
// MATCHING RULES:
//   - Exact string comparison after trimming surrounding whitespace
//   - Case-sensitive
//   - Order-independent
//   - Additional, unrecognized columns are allowed
//
// The header-to-position map built here is the only way data cells are
// located later on, so a reordered export still extracts correctly.
//
// =============================================================================

package validation

import (
	"strings"

	"github.com/ginjaninja78/paycom-distribution/internal/types"
)

// =============================================================================
// REQUIRED COLUMNS
// =============================================================================

// Payroll export column names.
const (
	ColDistribution = "Distribution"
	ColEmployeeCode = "Employee_Code"
	ColEmployeeName = "Employee_Name"
	ColInternCode   = "Intern_Code"
	ColDOLStatus    = "DOL_Status"
	ColGrossHours   = "Gross_Hours(DR1)"
	ColSalary       = "SALARY(DR1)"
	ColFICA         = "FICA(DR1)"
	ColNYMetroCTM   = "NY_Metro_CTM(DR1)"
	Col401KMatch    = "401K_MATCH(DR1)"
)

// RequiredColumns is the full set of columns a payroll export must carry.
var RequiredColumns = []string{
	ColDistribution,
	ColEmployeeCode,
	ColEmployeeName,
	ColInternCode,
	ColDOLStatus,
	ColGrossHours,
	ColSalary,
	ColFICA,
	ColNYMetroCTM,
	Col401KMatch,
}

// =============================================================================
// HEADER INDEX
// =============================================================================

// HeaderIndex maps a column name to its 0-based position in the header row.
type HeaderIndex struct {
	positions map[string]int
	width     int
}

// Position returns the column position of name.
func (h HeaderIndex) Position(name string) (int, bool) {
	pos, ok := h.positions[name]
	return pos, ok
}

// Width is the number of cells in the header row.
func (h HeaderIndex) Width() int {
	return h.width
}

// Cell returns the trimmed value of column name in row. Short rows yield "".
func (h HeaderIndex) Cell(row []string, name string) string {
	pos, ok := h.positions[name]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

// NewHeaderIndex indexes the header cells. When a name repeats, the first
// occurrence wins.
func NewHeaderIndex(header []string) HeaderIndex {
	idx := HeaderIndex{
		positions: make(map[string]int, len(header)),
		width:     len(header),
	}
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		if _, seen := idx.positions[name]; !seen {
			idx.positions[name] = i
		}
	}
	return idx
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks that every required column is present in header.
//
// PARAMETERS:
//   - header: The header row cells.
//   - required: The required column names.
//
// RETURNS:
//   - The header index, usable for extraction when validation succeeds.
//   - A *types.SchemaValidationError listing every missing column, in
//     required order, when any is absent.
func Validate(header []string, required []string) (HeaderIndex, error) {
	idx := NewHeaderIndex(header)

	var missing []string
	for _, col := range required {
		if _, ok := idx.positions[col]; !ok {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return idx, &types.SchemaValidationError{Missing: missing}
	}
	return idx, nil
}

// Valid reports whether header carries every required column.
func Valid(header []string, required []string) bool {
	_, err := Validate(header, required)
	return err == nil
}
