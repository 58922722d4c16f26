package xlsxparser

import (
	"context"
	"log/slog"

	"github.com/ginjaninja78/paycom-distribution/internal/types"
)

// ReferenceFiles loads the two reference tables from their workbooks. Every
// failure is reported as a *types.ReferenceLoadError.
type ReferenceFiles struct {
	SegmentFile  string
	SegmentSheet string
	TitleFile    string
	TitleSheet   string

	// Logger receives duplicate-key and blank-key notices. Optional.
	Logger *slog.Logger
}

// LoadSegments reads the segment workbook and builds a fresh table.
func (r *ReferenceFiles) LoadSegments(ctx context.Context) (types.SegmentTable, error) {
	sheet, err := r.read(ctx, types.SegmentReference, r.SegmentFile, r.SegmentSheet)
	if err != nil {
		return nil, err
	}

	table, stats := ParseSegmentTable(sheet)
	r.logStats(types.SegmentReference, r.SegmentFile, stats)
	return table, nil
}

// LoadTitles reads the title workbook and builds a fresh table.
func (r *ReferenceFiles) LoadTitles(ctx context.Context) (types.TitleTable, error) {
	sheet, err := r.read(ctx, types.TitleReference, r.TitleFile, r.TitleSheet)
	if err != nil {
		return nil, err
	}

	table, stats := ParseTitleTable(sheet)
	r.logStats(types.TitleReference, r.TitleFile, stats)
	return table, nil
}

func (r *ReferenceFiles) read(ctx context.Context, table types.ReferenceTable, path, sheetName string) (*Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.ReferenceLoadError{Table: table, Path: path, Err: err}
	}

	sheet, err := ReadSheetFile(path, sheetName)
	if err != nil {
		return nil, &types.ReferenceLoadError{Table: table, Path: path, Err: err}
	}
	return sheet, nil
}

func (r *ReferenceFiles) logStats(table types.ReferenceTable, path string, stats TableStats) {
	if r.Logger == nil {
		return
	}

	r.Logger.Debug("reference table loaded", "table", table, "path", path, "rows", stats.Rows)
	if len(stats.Duplicates) > 0 {
		r.Logger.Warn("duplicate reference keys, last row wins",
			"table", table, "keys", stats.Duplicates)
	}
	if stats.SkippedBlankKeys > 0 {
		r.Logger.Warn("reference rows with blank key skipped",
			"table", table, "count", stats.SkippedBlankKeys)
	}
}
