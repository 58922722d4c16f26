// =============================================================================
// Paycom Distribution - Configuration Module
// =============================================================================
//
// This module is responsible for loading and validating the application
// configuration (config.yaml). It covers:
//   1. Reference data locations and cache lifetime
//   2. Output and archive directories
//   3. Report naming and the missing-reference policy
//   4. Logging and the HTTP upload server
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// MissingReferencePolicy decides what happens to records whose join keys are
// absent from a reference table.
type MissingReferencePolicy string

const (
	// PolicyExclude drops the record from every report and lists it in the
	// run summary.
	PolicyExclude MissingReferencePolicy = "exclude"

	// PolicyAbort fails the whole run.
	PolicyAbort MissingReferencePolicy = "abort"
)

var (
	// ErrInvalidPolicy is returned for an unknown missing_reference_policy.
	ErrInvalidPolicy = zerr.New("missing_reference_policy must be 'exclude' or 'abort'")

	// ErrInvalidTTL is returned for a non-positive reference.cache_ttl.
	ErrInvalidTTL = zerr.New("reference.cache_ttl must be positive")

	// ErrInvalidLogLevel is returned for an unknown log_level.
	ErrInvalidLogLevel = zerr.New("log_level must be one of debug, info, warn, error")

	// ErrInvalidLogFormat is returned for an unknown log_format.
	ErrInvalidLogFormat = zerr.New("log_format must be 'text' or 'json'")

	// ErrInvalidNameFormat is returned when report_name_format would give
	// every category the same file name.
	ErrInvalidNameFormat = zerr.New("report_name_format must contain {category}")
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// Reference describes the two reference workbooks.
	Reference ReferenceConfig `yaml:"reference"`

	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// OutputDir is where published reports are placed.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir is where processed uploads are copied when archiving
	// is requested.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// ReportNameFormat defines the report file names.
	// Placeholders:
	//   {category}  - Category slug (salary, fica, ny_metro_ctm, 401k_match)
	//   {start}     - Pay-period start (YYYY-MM-DD)
	//   {end}       - Pay-period end (YYYY-MM-DD)
	//   {run_id}    - Run UUID
	//   {timestamp} - Run timestamp (YYYYMMDD_HHMMSS)
	// Default: "{category}_{start}_{end}.csv"
	ReportNameFormat string `yaml:"report_name_format"`

	// WriteSummary publishes a text run summary next to the reports.
	// Default: true
	WriteSummary *bool `yaml:"write_summary"`

	// MissingReferencePolicy is "exclude" (default) or "abort".
	MissingReferencePolicy MissingReferencePolicy `yaml:"missing_reference_policy"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "text" (default) or "json".
	LogFormat string `yaml:"log_format"`

	// Server configures `paycom serve`.
	Server ServerConfig `yaml:"server"`
}

// ReferenceConfig locates the reference workbooks.
type ReferenceConfig struct {
	// SegmentFile is the customer & segment code workbook.
	SegmentFile string `yaml:"segment_file"`

	// SegmentSheet is the worksheet holding segmented departments.
	SegmentSheet string `yaml:"segment_sheet"`

	// TitleFile is the employee title workbook.
	TitleFile string `yaml:"title_file"`

	// TitleSheet is the worksheet holding titles. Empty means the first sheet.
	TitleSheet string `yaml:"title_sheet"`

	// CacheTTL is how long a loaded table stays valid.
	// Default: 24h
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ServerConfig configures the HTTP upload boundary.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SummaryEnabled reports whether a run summary should be published.
func (c *MainConfig) SummaryEnabled() bool {
	return c.WriteSummary == nil || *c.WriteSummary
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return &config
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//   - optional: When true, a missing file yields the defaults.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string, optional bool) (*MainConfig, error) {
	// Read the configuration file.
	data, err := os.ReadFile(configPath)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			config := Default()
			return config, validateMainConfig(config)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse the YAML.
	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply default values.
	applyMainConfigDefaults(&config)

	// Validate the configuration.
	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.Reference.SegmentFile == "" {
		config.Reference.SegmentFile = "Data/Customer & Segment Code list.xlsx"
	}
	if config.Reference.SegmentSheet == "" {
		config.Reference.SegmentSheet = "Segmented Department list"
	}
	if config.Reference.TitleFile == "" {
		config.Reference.TitleFile = "Data/EmployeeTitle.xlsx"
	}
	if config.Reference.CacheTTL == 0 {
		config.Reference.CacheTTL = 24 * time.Hour
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.ReportNameFormat == "" {
		config.ReportNameFormat = "{category}_{start}_{end}.csv"
	}
	if config.MissingReferencePolicy == "" {
		config.MissingReferencePolicy = PolicyExclude
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 32
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	switch config.MissingReferencePolicy {
	case PolicyExclude, PolicyAbort:
	default:
		return zerr.With(ErrInvalidPolicy, "policy", string(config.MissingReferencePolicy))
	}

	if config.Reference.CacheTTL < 0 {
		return zerr.With(ErrInvalidTTL, "cache_ttl", config.Reference.CacheTTL.String())
	}

	if !strings.Contains(config.ReportNameFormat, "{category}") {
		return zerr.With(ErrInvalidNameFormat, "report_name_format", config.ReportNameFormat)
	}

	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return zerr.With(ErrInvalidLogLevel, "log_level", config.LogLevel)
	}

	switch config.LogFormat {
	case "text", "json":
	default:
		return zerr.With(ErrInvalidLogFormat, "log_format", config.LogFormat)
	}

	return nil
}

// EnsureDirectories creates the output and archive directories.
func (c *MainConfig) EnsureDirectories() error {
	for _, dir := range []string{c.OutputDir, c.InputArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
