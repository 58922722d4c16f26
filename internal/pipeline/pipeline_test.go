package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/paycom-distribution/internal/config"
	"github.com/ginjaninja78/paycom-distribution/internal/csvwriter"
	"github.com/ginjaninja78/paycom-distribution/internal/pipeline"
	"github.com/ginjaninja78/paycom-distribution/internal/refdata"
	"github.com/ginjaninja78/paycom-distribution/internal/types"
	"github.com/ginjaninja78/paycom-distribution/internal/validation"
	"github.com/ginjaninja78/paycom-distribution/internal/xlsxparser"
	"github.com/ginjaninja78/paycom-distribution/internal/xlsxparser/xlsxtest"
	"github.com/ginjaninja78/paycom-distribution/pkg/utils"
)

var period = types.Period{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
}

type fixture struct {
	outputDir    string
	segmentPath  string
	titlePath    string
	cache        *refdata.Cache
	pipeline     *pipeline.Pipeline
	workbookName string
}

func newFixture(t *testing.T, opts pipeline.Options) *fixture {
	t.Helper()

	refDir := t.TempDir()
	segmentPath, titlePath := xlsxtest.ReferenceFiles(t, refDir,
		[][]string{
			{"1001", "Acme", "Sales"},
			{"1002", "Globex", "Ops"},
		},
		[][]string{
			{"E-1", "Analyst", "Jane Doe"},
			{"E-2", "Manager", "John Roe"},
		},
	)

	cache := refdata.New(&xlsxparser.ReferenceFiles{
		SegmentFile:  segmentPath,
		SegmentSheet: "Segmented Department list",
		TitleFile:    titlePath,
	}, refdata.WithClock(clockwork.NewFakeClockAt(time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC))))

	outputDir := t.TempDir()
	files := utils.NewFileManager(outputDir, "")

	return &fixture{
		outputDir:    outputDir,
		segmentPath:  segmentPath,
		titlePath:    titlePath,
		cache:        cache,
		pipeline:     pipeline.New(cache, files, opts, nil),
		workbookName: "payroll.xlsx",
	}
}

func (f *fixture) input(t *testing.T, rows ...[]string) pipeline.Input {
	t.Helper()
	data := xlsxtest.Bytes(t, xlsxtest.Sheet{
		Name: "Export",
		Rows: append([][]string{xlsxtest.PayrollHeader()}, rows...),
	})
	return pipeline.Input{Workbook: bytes.NewReader(data), Source: f.workbookName, Period: period}
}

func (f *fixture) outputs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.outputDir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func (f *fixture) readReport(t *testing.T, name string) [][]string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(f.outputDir, name))
	require.NoError(t, err)

	var rows [][]string
	for _, line := range strings.Split(strings.TrimSuffix(string(content), "\n"), "\n") {
		rows = append(rows, strings.Split(line, ","))
	}
	return rows
}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	result, err := f.pipeline.Run(context.Background(), f.input(t,
		xlsxtest.PayrollRow("1001", "C1", "Jane Doe", "1000.00", "76.50", "", "12.00"),
		xlsxtest.PayrollRow("1002", "C2", "John Roe", "2000.00", "153.00", "4.20", ""),
	))
	require.NoError(t, err)

	assert.Equal(t, pipeline.Complete, result.State)
	assert.Equal(t, 2, result.Records)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Published, 5)

	assert.Equal(t, []string{
		"401k_match_2024-01-01_2024-01-15.csv",
		"fica_2024-01-01_2024-01-15.csv",
		"ny_metro_ctm_2024-01-01_2024-01-15.csv",
		"salary_2024-01-01_2024-01-15.csv",
		"summary_2024-01-01_2024-01-15.txt",
	}, f.outputs(t))

	salary := f.readReport(t, "salary_2024-01-01_2024-01-15.csv")
	require.Len(t, salary, 3)
	assert.Equal(t, csvwriter.Header, salary[0])
	assert.Equal(t, []string{"C1", "Jane Doe", "E-1", "Analyst", "1001", "Acme", "Sales", "1000.00", "2024-01-01", "2024-01-15"}, salary[1])
	assert.Equal(t, []string{"C2", "John Roe", "E-2", "Manager", "1002", "Globex", "Ops", "2000.00", "2024-01-01", "2024-01-15"}, salary[2])

	assert.Len(t, f.readReport(t, "ny_metro_ctm_2024-01-01_2024-01-15.csv"), 2)
	assert.Len(t, f.readReport(t, "401k_match_2024-01-01_2024-01-15.csv"), 2)
}

func TestRun_ReferenceFilesAreNeverWritten(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	before := map[string][]byte{}
	for _, path := range []string{f.segmentPath, f.titlePath} {
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		before[path] = content
	}

	_, err := f.pipeline.Run(context.Background(), f.input(t,
		xlsxtest.PayrollRow("1001", "C1", "Jane Doe", "1000.00", "", "", ""),
	))
	require.NoError(t, err)

	for path, content := range before {
		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, after, path)
	}
}

func TestRun_SchemaFailureProducesNothing(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	var header []string
	for _, col := range xlsxtest.PayrollHeader() {
		if col != validation.ColFICA {
			header = append(header, col)
		}
	}
	data := xlsxtest.Bytes(t, xlsxtest.Sheet{Name: "Export", Rows: [][]string{header, {"1001"}}})

	result, err := f.pipeline.Run(context.Background(), pipeline.Input{
		Workbook: bytes.NewReader(data),
		Source:   "broken.xlsx",
		Period:   period,
	})

	var runErr *pipeline.RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, pipeline.Validating, runErr.State)

	var schemaErr *types.SchemaValidationError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{validation.ColFICA}, schemaErr.Missing)

	assert.Equal(t, pipeline.Failed, result.State)
	assert.Equal(t, pipeline.Validating, result.FailedAt)
	assert.Empty(t, f.outputs(t))

	// Neither reference workbook was opened.
	for _, status := range f.cache.Status() {
		assert.False(t, status.Loaded, status.Table)
	}
}

func TestRun_PrePipelineValidation(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	result, err := f.pipeline.Run(context.Background(), pipeline.Input{Period: period})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, types.ErrMissingWorkbook)

	in := f.input(t)
	in.Period.End = time.Time{}
	result, err = f.pipeline.Run(context.Background(), in)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, types.ErrMissingPeriodEnd)

	var runErr *pipeline.RunError
	assert.False(t, errors.As(err, &runErr))
}

func TestRun_UnreadableWorkbook(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	result, err := f.pipeline.Run(context.Background(), pipeline.Input{
		Workbook: strings.NewReader("definitely not xlsx"),
		Source:   "upload.xlsx",
		Period:   period,
	})

	var readErr *types.InputReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, "upload.xlsx", readErr.Source)
	assert.Equal(t, pipeline.Validating, result.FailedAt)
}

func TestRun_ReferenceLoadFailure(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	require.NoError(t, os.Remove(f.titlePath))

	result, err := f.pipeline.Run(context.Background(), f.input(t,
		xlsxtest.PayrollRow("1001", "C1", "Jane Doe", "1000.00", "", "", ""),
	))

	var loadErr *types.ReferenceLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, types.TitleReference, loadErr.Table)
	assert.Equal(t, pipeline.ReferenceLoading, result.FailedAt)
	assert.Empty(t, f.outputs(t))
}

func TestRun_MalformedRow(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	bad := append(xlsxtest.PayrollRow("1001", "C2", "Jane Doe", "1", "", "", ""), "extra")
	result, err := f.pipeline.Run(context.Background(), f.input(t,
		xlsxtest.PayrollRow("1001", "C1", "Jane Doe", "1", "", "", ""),
		bad,
	))

	var rowErr *types.MalformedRowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 3, rowErr.Row)
	assert.Equal(t, pipeline.Extracting, result.FailedAt)
	assert.Empty(t, f.outputs(t))
}

func TestRun_MissingReferences(t *testing.T) {
	rows := [][]string{
		xlsxtest.PayrollRow("1001", "C1", "Jane Doe", "1000.00", "", "", ""),
		xlsxtest.PayrollRow("9999", "C2", "John Roe", "2000.00", "", "", ""),
	}

	t.Run("exclude", func(t *testing.T) {
		f := newFixture(t, pipeline.Options{Policy: config.PolicyExclude})

		result, err := f.pipeline.Run(context.Background(), f.input(t, rows...))
		require.NoError(t, err)

		assert.Equal(t, 1, result.Output.Excluded)
		assert.Len(t, f.readReport(t, "salary_2024-01-01_2024-01-15.csv"), 2)

		summary, err := os.ReadFile(filepath.Join(f.outputDir, "summary_2024-01-01_2024-01-15.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(summary), `no segment reference for "9999"`)
	})

	t.Run("abort", func(t *testing.T) {
		f := newFixture(t, pipeline.Options{Policy: config.PolicyAbort})

		result, err := f.pipeline.Run(context.Background(), f.input(t, rows...))

		var missing *types.MissingReferencesError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, pipeline.Generating, result.FailedAt)
		assert.Empty(t, f.outputs(t))
	})
}

func TestRun_NoDataRows(t *testing.T) {
	f := newFixture(t, pipeline.Options{SkipSummary: true})

	result, err := f.pipeline.Run(context.Background(), f.input(t))
	require.NoError(t, err)

	assert.Zero(t, result.Records)
	assert.Len(t, f.outputs(t), 4)
	for _, name := range f.outputs(t) {
		assert.Len(t, f.readReport(t, name), 1, "header only: %s", name)
	}
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	result, err := f.pipeline.WithDryRun(true).Run(context.Background(), f.input(t,
		xlsxtest.PayrollRow("1001", "C1", "Jane Doe", "1000.00", "", "", ""),
	))
	require.NoError(t, err)

	assert.Equal(t, pipeline.Complete, result.State)
	assert.Empty(t, result.Published)
	assert.Equal(t, "salary_2024-01-01_2024-01-15.csv", result.Files["salary"])
	assert.Empty(t, f.outputs(t))
}

func TestRun_CanceledContext(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.pipeline.Run(ctx, f.input(t,
		xlsxtest.PayrollRow("1001", "C1", "Jane Doe", "1000.00", "", "", ""),
	))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, pipeline.ReferenceLoading, result.FailedAt)
	assert.Empty(t, f.outputs(t))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "joining_generating", pipeline.Generating.String())
	assert.Equal(t, "state(42)", pipeline.State(42).String())
	assert.True(t, pipeline.Failed.Terminal())
	assert.False(t, pipeline.Extracting.Terminal())
}
