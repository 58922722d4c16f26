package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/paycom-distribution/internal/config"
	"github.com/ginjaninja78/paycom-distribution/internal/logger"
	"github.com/ginjaninja78/paycom-distribution/internal/types"
	"github.com/ginjaninja78/paycom-distribution/internal/xlsxparser/xlsxtest"
)

// setup points the package globals at a temporary workspace.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	segmentPath, titlePath := xlsxtest.ReferenceFiles(t, dir,
		[][]string{{"1001", "Acme", "Sales"}},
		[][]string{{"E-1", "Analyst", "Jane Doe"}},
	)

	cfg := config.Default()
	cfg.Reference.SegmentFile = segmentPath
	cfg.Reference.TitleFile = titlePath
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.InputArchiveDir = filepath.Join(dir, "archive")

	mainConfig = cfg
	appLogger = logger.Discard()

	filePath = xlsxtest.Write(t, dir, "payroll.xlsx", xlsxtest.Sheet{
		Name: "Export",
		Rows: [][]string{
			xlsxtest.PayrollHeader(),
			xlsxtest.PayrollRow("1001", "C1", "Jane Doe", "1000.00", "76.50", "", ""),
		},
	})
	periodStart, periodEnd = "2024-01-01", "2024-01-15"
	dryRun, archiveInput, checkReferences = false, false, false

	return dir
}

func TestRunProcess(t *testing.T) {
	dir := setup(t)
	archiveInput = true

	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), &out))

	assert.Contains(t, out.String(), "Records: 1 (included 1, excluded 0)")
	assert.Contains(t, out.String(), "salary_2024-01-01_2024-01-15.csv")
	assert.Contains(t, out.String(), "Archived input to")

	entries, err := os.ReadDir(filepath.Join(dir, "output"))
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestRunProcess_DryRun(t *testing.T) {
	dir := setup(t)
	dryRun = true

	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), &out))
	assert.Contains(t, out.String(), "Dry run")

	entries, err := os.ReadDir(filepath.Join(dir, "output"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunProcess_RequiredInputs(t *testing.T) {
	setup(t)
	filePath = ""
	assert.ErrorIs(t, runProcess(context.Background(), &bytes.Buffer{}), types.ErrMissingWorkbook)

	dir := setup(t)
	filePath = filepath.Join(dir, "empty.xlsx")
	require.NoError(t, os.WriteFile(filePath, nil, 0o644))
	assert.ErrorIs(t, runProcess(context.Background(), &bytes.Buffer{}), types.ErrMissingWorkbook)
	assert.NoDirExists(t, filepath.Join(dir, "output"))

	setup(t)
	periodStart = ""
	assert.ErrorIs(t, runProcess(context.Background(), &bytes.Buffer{}), types.ErrMissingPeriodStart)
}

func TestRunValidate(t *testing.T) {
	setup(t)
	checkReferences = true

	var out bytes.Buffer
	require.NoError(t, runValidate(context.Background(), &out))

	assert.Contains(t, out.String(), "header OK (10 columns, 1 data rows")
	assert.Contains(t, out.String(), "segment reference OK (1 entries")
	assert.Contains(t, out.String(), "title reference OK (1 entries")
}
