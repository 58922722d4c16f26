// =============================================================================
// Paycom Distribution - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs one pipeline for a
// local payroll workbook.
//
// COMMAND USAGE:
//   paycom process --file <workbook.xlsx> --start <YYYY-MM-DD> --end <YYYY-MM-DD> [flags]
//
// FLAGS:
//   --file     : Path to the payroll export workbook (required)
//   --start    : Pay-period start date (required)
//   --end      : Pay-period end date (required)
//   --dry-run  : Run every stage without publishing any file
//   --archive  : Copy the workbook into the input archive after success
//
// EXIT STATUS:
//   0 when the run completes, 1 otherwise. A failed run publishes nothing.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/paycom-distribution/internal/pipeline"
	"github.com/ginjaninja78/paycom-distribution/internal/types"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// filePath is the payroll workbook to process.
	filePath string

	// periodStart and periodEnd bound the pay period (YYYY-MM-DD).
	periodStart string
	periodEnd   string

	// dryRun runs every stage but publishes nothing.
	dryRun bool

	// archiveInput copies the processed workbook into the input archive.
	archiveInput bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Generate distribution reports for one payroll workbook",
	Long: `The process command validates the workbook header, loads the reference
tables, extracts every payroll record, joins it against the reference data
and publishes one CSV report per category into the output directory.

Records whose segment code or employee name is missing from the reference
data are excluded and listed in the run summary, unless
missing_reference_policy is "abort".

On error:
  - No report is published
  - The failed stage and the reason are printed`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runProcess(ctx, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the payroll export workbook")
	processCmd.Flags().StringVar(&periodStart, "start", "", "Pay-period start date (YYYY-MM-DD)")
	processCmd.Flags().StringVar(&periodEnd, "end", "", "Pay-period end date (YYYY-MM-DD)")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run without publishing any file")
	processCmd.Flags().BoolVar(&archiveInput, "archive", false, "Copy the workbook into the input archive after success")
}

// runProcess executes the process command.
func runProcess(ctx context.Context, out io.Writer) error {
	// =========================================================================
	// STEP 1: PRE-PIPELINE VALIDATION
	// =========================================================================
	// Every invocation input is required. Nothing runs without them.

	if filePath == "" {
		return types.ErrMissingWorkbook
	}
	// An empty file counts as no workbook.
	if info, err := os.Stat(filePath); err == nil && info.Size() == 0 {
		return types.ErrMissingWorkbook
	}
	period, err := types.ParsePeriod(periodStart, periodEnd)
	if err != nil {
		return err
	}

	workbook, err := os.Open(filePath)
	if err != nil {
		return &types.InputReadError{Source: filePath, Err: err}
	}
	defer workbook.Close()

	// =========================================================================
	// STEP 2: RUN THE PIPELINE
	// =========================================================================

	p, files, err := newPipeline(mainConfig, newReferenceCache(mainConfig))
	if err != nil {
		return err
	}

	result, err := p.WithDryRun(dryRun).Run(ctx, pipeline.Input{
		Workbook: workbook,
		Source:   filepath.Base(filePath),
		Period:   period,
	})
	if err != nil {
		if result != nil {
			fmt.Fprintf(out, "Run %s failed while %s.\n", result.RunID, result.FailedAt)
		}
		return err
	}

	printResult(out, result)

	// =========================================================================
	// STEP 3: ARCHIVE THE INPUT
	// =========================================================================

	if archiveInput && !dryRun {
		archived, err := files.ArchiveInputFile(filePath)
		if err != nil {
			appLogger.Warn("failed to archive input", "path", filePath, "error", err)
		} else {
			fmt.Fprintf(out, "Archived input to %s\n", archived)
		}
	}

	return nil
}

// printResult writes a short run summary.
func printResult(out io.Writer, result *pipeline.Result) {
	output := result.Output

	fmt.Fprintf(out, "Run %s complete in %s\n", result.RunID, result.Duration)
	fmt.Fprintf(out, "Records: %d (included %d, excluded %d)\n\n", result.Records, output.Included, output.Excluded)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tROWS\tTOTAL\tFILE")
	for _, r := range output.Reports {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Category.Title, len(r.Rows), r.Total.StringFixed(2), result.Files[r.Category.Slug])
	}
	tw.Flush()

	if len(output.Missing) > 0 {
		fmt.Fprintln(out, "\nMissing references:")
		for _, m := range output.Missing {
			fmt.Fprintf(out, "  row %d: no %s reference for %q\n", m.Row, m.Table, m.Key)
		}
	}

	if len(result.Published) == 0 {
		fmt.Fprintln(out, "\nDry run: nothing was published.")
	}
}
