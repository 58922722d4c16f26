// =============================================================================
// Paycom Distribution - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks a payroll workbook
// header against the required columns without producing any output. With
// --references it also loads both reference tables.
//
// COMMAND USAGE:
//   paycom validate --file <workbook.xlsx> [--references]
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/paycom-distribution/internal/types"
	"github.com/ginjaninja78/paycom-distribution/internal/validation"
	"github.com/ginjaninja78/paycom-distribution/internal/xlsxparser"
)

// checkReferences also loads the reference tables.
var checkReferences bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a payroll workbook header (and the reference data)",
	Long: `The validate command reads the first worksheet of the workbook and reports
every required column that is missing from its header. Extra columns are
allowed and column order does not matter.

With --references, both reference workbooks are loaded as well so broken
paths or sheet names are found before a real run.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the payroll export workbook")
	validateCmd.Flags().BoolVar(&checkReferences, "references", false, "Also load both reference tables")
}

// runValidate executes the validate command.
func runValidate(ctx context.Context, out io.Writer) error {
	if filePath == "" {
		return types.ErrMissingWorkbook
	}

	sheet, err := xlsxparser.ReadSheetFile(filePath, "")
	if err != nil {
		return &types.InputReadError{Source: filePath, Err: err}
	}

	index, err := validation.Validate(sheet.Header, validation.RequiredColumns)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: header OK (%d columns, %d data rows in %q)\n",
		filePath, index.Width(), len(sheet.Rows), sheet.Name)

	if !checkReferences {
		return nil
	}

	refs := referenceFiles(mainConfig)

	segments, err := refs.LoadSegments(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "segment reference OK (%d entries from %s)\n", len(segments), refs.SegmentFile)

	titles, err := refs.LoadTitles(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "title reference OK (%d entries from %s)\n", len(titles), refs.TitleFile)

	return nil
}
