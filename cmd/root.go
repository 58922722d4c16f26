// =============================================================================
// Paycom Distribution - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (paycom)
//   ├── processCmd  (paycom process)
//   ├── validateCmd (paycom validate)
//   ├── serveCmd    (paycom serve)
//   └── versionCmd  (paycom version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads config.yaml (a missing default file means built-in defaults;
//      a missing file named with --config is an error)
//   2. Builds the structured logger (--verbose forces debug)
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/paycom-distribution/internal/config"
	"github.com/ginjaninja78/paycom-distribution/internal/logger"
	"github.com/ginjaninja78/paycom-distribution/internal/pipeline"
	"github.com/ginjaninja78/paycom-distribution/internal/refdata"
	"github.com/ginjaninja78/paycom-distribution/internal/xlsxparser"
	"github.com/ginjaninja78/paycom-distribution/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// mainConfig and appLogger are initialized by loadConfig before any subcommand runs.
var (
	mainConfig *config.MainConfig
	appLogger  *slog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "paycom",
	Short: "Paycom Distribution - Categorized payroll distribution reports",
	Long: `Paycom Distribution turns a payroll export workbook into four categorized
distribution reports (Salary, FICA, NY-Metro-CTM, 401K-Match) for a pay period.

Each record is enriched with the customer and department of its segment code
and with the external id and title of the employee. Both reference tables are
read from XLSX workbooks and cached in memory.

Example Usage:
  paycom process --file export.xlsx --start 2024-01-01 --end 2024-01-15
  paycom validate --file export.xlsx --references
  paycom serve --config ./config.yaml`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// loadConfig reads the configuration and builds the logger.
func loadConfig(cmd *cobra.Command) error {
	optional := !cmd.Flags().Changed("config")

	cfg, err := config.LoadMainConfig(cfgFile, optional)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}

	mainConfig = cfg
	appLogger = logger.New(level, cfg.LogFormat, cmd.ErrOrStderr())
	appLogger.Debug("configuration loaded", "path", cfgFile, "defaults", optional && !utils.FileExists(cfgFile))
	return nil
}

// =============================================================================
// SHARED WIRING
// =============================================================================

// referenceFiles builds the workbook source of the reference cache.
func referenceFiles(cfg *config.MainConfig) *xlsxparser.ReferenceFiles {
	return &xlsxparser.ReferenceFiles{
		SegmentFile:  cfg.Reference.SegmentFile,
		SegmentSheet: cfg.Reference.SegmentSheet,
		TitleFile:    cfg.Reference.TitleFile,
		TitleSheet:   cfg.Reference.TitleSheet,
		Logger:       appLogger,
	}
}

// newReferenceCache builds the reference cache from the configuration.
func newReferenceCache(cfg *config.MainConfig) *refdata.Cache {
	return refdata.New(referenceFiles(cfg),
		refdata.WithTTL(cfg.Reference.CacheTTL),
		refdata.WithLogger(appLogger))
}

// newPipeline builds a pipeline publishing into the configured output directory.
func newPipeline(cfg *config.MainConfig, refs pipeline.References) (*pipeline.Pipeline, *utils.FileManager, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	files := utils.NewFileManager(cfg.OutputDir, cfg.InputArchiveDir)
	return pipeline.New(refs, files, pipeline.OptionsFromConfig(cfg), appLogger), files, nil
}
