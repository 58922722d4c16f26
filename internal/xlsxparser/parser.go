// =============================================================================
// Paycom Distribution - XLSX Parser
// =============================================================================
//
// This module reads worksheets from XLSX workbooks. It serves two callers:
//   - The payroll upload (first worksheet, header on row 1)
//   - The two reference workbooks (fixed column order, header skipped)
//
// REFERENCE WORKBOOK STRUCTURE:
//
//   Customer & Segment Code list.xlsx, sheet "Segmented Department list"
//   | Column A     | Column B | Column C   |
//   |--------------|----------|------------|
//   | Segment Code | Customer | Department |
//   | 1001         | Acme     | Sales      |
//
//   EmployeeTitle.xlsx, first sheet
//   | Column A    | Column B | Column C |
//   |-------------|----------|----------|
//   | External ID | Title    | Name     |
//   | E-17        | Analyst  | Jane Doe |
//
// =============================================================================

package xlsxparser

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.trai.ch/zerr"

	"github.com/ginjaninja78/paycom-distribution/internal/types"
)

// ErrNoSheets is returned for a workbook without any worksheet.
var ErrNoSheets = zerr.New("workbook has no sheets")

// =============================================================================
// SHEET STRUCTURE
// =============================================================================

// Sheet is one worksheet split into its header row and data rows.
type Sheet struct {
	// Name is the worksheet name.
	Name string

	// Header contains the cells of row 1. Nil for an empty sheet.
	Header []string

	// Rows contains every row after the header, in sheet order. Blank rows
	// are kept so row numbers stay aligned with the worksheet.
	Rows [][]string
}

// RowNumber converts an index into Rows to the 1-based worksheet row.
func (s *Sheet) RowNumber(i int) int {
	return i + 2
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ReadSheet reads one worksheet from an XLSX stream.
//
// PARAMETERS:
//   - r: The workbook bytes.
//   - sheet: The worksheet name. Empty selects the first worksheet.
//
// RETURNS:
//   - The parsed Sheet.
//   - An error if the stream is not a workbook or the sheet cannot be read.
func ReadSheet(r io.Reader, sheet string) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open workbook")
	}
	defer f.Close()

	return readSheet(f, sheet)
}

// ReadSheetFile reads one worksheet from an XLSX file on disk.
func ReadSheetFile(path, sheet string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open workbook"), "path", path)
	}
	defer f.Close()

	return readSheet(f, sheet)
}

// readSheet extracts the header and data rows of a sheet from an open workbook.
func readSheet(f *excelize.File, sheet string) (*Sheet, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoSheets
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read rows"), "sheet", sheet)
	}

	s := &Sheet{Name: sheet}
	if len(rows) == 0 {
		return s, nil
	}

	s.Header = rows[0]
	s.Rows = rows[1:]
	return s, nil
}

// =============================================================================
// REFERENCE TABLES
// =============================================================================

// TableStats describes one reference table build.
type TableStats struct {
	// Rows is the number of entries inserted, duplicates included.
	Rows int

	// Duplicates lists keys that appeared more than once. The last row wins.
	Duplicates []string

	// SkippedBlankKeys counts non-empty rows whose key cell was blank.
	SkippedBlankKeys int
}

// ParseSegmentTable builds the segment table keyed by segment code
// (column A). Later duplicate keys overwrite earlier ones.
func ParseSegmentTable(s *Sheet) (types.SegmentTable, TableStats) {
	table := make(types.SegmentTable, len(s.Rows))
	stats := eachEntry(s, 0, func(key string, cells [3]string) bool {
		_, dup := table[key]
		table[key] = types.SegmentEntry{
			SegmentCode: cells[0],
			Customer:    cells[1],
			Department:  cells[2],
		}
		return dup
	})
	return table, stats
}

// ParseTitleTable builds the title table keyed by employee name
// (column C). Later duplicate keys overwrite earlier ones.
func ParseTitleTable(s *Sheet) (types.TitleTable, TableStats) {
	table := make(types.TitleTable, len(s.Rows))
	stats := eachEntry(s, 2, func(key string, cells [3]string) bool {
		_, dup := table[key]
		table[key] = types.TitleEntry{
			ExternalID: cells[0],
			Title:      cells[1],
			Name:       cells[2],
		}
		return dup
	})
	return table, stats
}

// eachEntry reads the first three trimmed cells of every non-empty data row
// and hands them to insert, keyed by the cell at keyColumn. insert reports
// whether the key was already present.
func eachEntry(s *Sheet, keyColumn int, insert func(key string, cells [3]string) bool) TableStats {
	var stats TableStats

	for _, row := range s.Rows {
		if IsRowEmpty(row) {
			continue
		}

		var cells [3]string
		for i := range cells {
			if i < len(row) {
				cells[i] = strings.TrimSpace(row[i])
			}
		}

		key := cells[keyColumn]
		if key == "" {
			stats.SkippedBlankKeys++
			continue
		}

		if insert(key, cells) {
			stats.Duplicates = append(stats.Duplicates, key)
		}
		stats.Rows++
	}

	return stats
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// IsRowEmpty checks if a row contains only empty cells.
func IsRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
