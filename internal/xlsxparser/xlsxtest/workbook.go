// Package xlsxtest builds small XLSX workbooks for tests.
package xlsxtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/paycom-distribution/internal/validation"
)

// Sheet is a named worksheet and its rows, header included.
type Sheet struct {
	Name string
	Rows [][]string
}

// Build returns a workbook holding sheets in order. The first sheet replaces
// excelize's default "Sheet1".
func Build(t testing.TB, sheets ...Sheet) *excelize.File {
	t.Helper()

	f := excelize.NewFile()
	for i, sheet := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sheet.Name))
		} else {
			_, err := f.NewSheet(sheet.Name)
			require.NoError(t, err)
		}

		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)

			values := append([]string(nil), row...)
			require.NoError(t, f.SetSheetRow(sheet.Name, cell, &values))
		}
	}
	return f
}

// Bytes serializes a workbook built from sheets.
func Bytes(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()

	f := Build(t, sheets...)
	defer f.Close()

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// Write saves a workbook built from sheets under dir and returns its path.
func Write(t testing.TB, dir, name string, sheets ...Sheet) string {
	t.Helper()

	f := Build(t, sheets...)
	defer f.Close()

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// PayrollHeader is the required payroll header in canonical order.
func PayrollHeader() []string {
	return append([]string(nil), validation.RequiredColumns...)
}

// PayrollRow builds a data row aligned with PayrollHeader.
func PayrollRow(distribution, code, name, salary, fica, nyMetro, match string) []string {
	return []string{distribution, code, name, "", "Exempt", "80.00", salary, fica, nyMetro, match}
}

// ReferenceFiles writes a segment workbook and a title workbook under dir.
// It returns both paths.
func ReferenceFiles(t testing.TB, dir string, segments, titles [][]string) (string, string) {
	t.Helper()

	segmentPath := Write(t, dir, "segments.xlsx", Sheet{
		Name: "Segmented Department list",
		Rows: append([][]string{{"Segment Code", "Customer", "Department"}}, segments...),
	})
	titlePath := Write(t, dir, "titles.xlsx", Sheet{
		Name: "Titles",
		Rows: append([][]string{{"External ID", "Title", "Name"}}, titles...),
	})
	return segmentPath, titlePath
}
