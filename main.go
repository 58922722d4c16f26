// =============================================================================
// Paycom Distribution - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Paycom Distribution CLI application.
// It initializes the Cobra CLI framework and delegates command execution to
// the cmd package.
//
// USAGE:
//   paycom process   - Generate distribution reports for one payroll workbook
//   paycom validate  - Check a workbook header and the reference data
//   paycom serve     - Run the HTTP upload server
//   paycom version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Core business logic (validation, caching, extraction,
//                  report generation, pipeline, HTTP boundary)
//   - pkg/       : Shared file utilities (staging, publishing, archival)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/paycom-distribution/cmd"
)

func main() {
	cmd.Execute()
}
