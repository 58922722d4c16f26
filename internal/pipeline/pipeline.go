// =============================================================================
// Paycom Distribution - Pipeline Module
// =============================================================================
//
// This module orchestrates one bounded batch run, from the uploaded workbook
// to the published category reports.
//
// RUN PIPELINE:
//   1. Validating        read the first worksheet, check the header
//   2. ReferenceLoading  get-or-refresh both reference tables
//   3. Extracting        map data rows onto PayrollRecords
//   4. Generating        join, split into category reports, stage and
//                        publish the files
//
// A failure in any stage moves the run to Failed and leaves nothing in the
// output directory. The only state shared between runs is the reference
// cache; each run is synchronous on the caller's goroutine.
//
// =============================================================================

package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.trai.ch/zerr"

	"github.com/ginjaninja78/paycom-distribution/internal/config"
	"github.com/ginjaninja78/paycom-distribution/internal/csvwriter"
	"github.com/ginjaninja78/paycom-distribution/internal/extractor"
	"github.com/ginjaninja78/paycom-distribution/internal/report"
	"github.com/ginjaninja78/paycom-distribution/internal/types"
	"github.com/ginjaninja78/paycom-distribution/internal/validation"
	"github.com/ginjaninja78/paycom-distribution/internal/xlsxparser"
	"github.com/ginjaninja78/paycom-distribution/pkg/utils"
)

// =============================================================================
// INPUT AND RESULT
// =============================================================================

// Input is one invocation: the workbook and the pay period.
type Input struct {
	// Workbook is the XLSX payroll export.
	Workbook io.Reader

	// Source names the workbook in logs and errors (file name or upload name).
	Source string

	Period types.Period
}

// Validate checks that every required input is present. It runs before the
// pipeline starts, so its errors are not RunErrors.
func (in Input) Validate() error {
	if in.Workbook == nil {
		return types.ErrMissingWorkbook
	}
	return in.Period.Validate()
}

// Result describes a run, successful or not.
type Result struct {
	RunID  string `json:"run_id"`
	State  State  `json:"state"`
	Source string `json:"source"`

	// FailedAt is the stage that failed. Only meaningful when State is Failed.
	FailedAt State `json:"failed_at,omitempty"`

	// Records is the number of extracted payroll records.
	Records int `json:"records"`

	Output *report.Output `json:"-"`

	// Files maps category slugs to report file names.
	Files map[string]string `json:"files,omitempty"`

	// Published lists the paths made visible by this run. Empty on a dry run.
	Published []string `json:"published,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// =============================================================================
// PIPELINE
// =============================================================================

// References supplies the reference tables for a run.
type References interface {
	Segments(ctx context.Context) (types.SegmentTable, error)
	Titles(ctx context.Context) (types.TitleTable, error)
}

// Options tune report generation and publishing.
type Options struct {
	Policy           config.MissingReferencePolicy
	ReportNameFormat string

	// SkipSummary leaves the run summary out of the published set.
	SkipSummary bool

	// DryRun runs every stage but discards the staged files.
	DryRun bool
}

// OptionsFromConfig builds run options from the main configuration.
func OptionsFromConfig(cfg *config.MainConfig) Options {
	return Options{
		Policy:           cfg.MissingReferencePolicy,
		ReportNameFormat: cfg.ReportNameFormat,
		SkipSummary:      !cfg.SummaryEnabled(),
	}
}

// Pipeline runs payroll distribution batches. It is safe for concurrent use;
// every Run is independent apart from the shared References.
type Pipeline struct {
	refs   References
	files  *utils.FileManager
	opts   Options
	logger *slog.Logger
	clock  clockwork.Clock
}

// New creates a Pipeline.
//
// PARAMETERS:
//   - refs: The reference tables, usually a *refdata.Cache.
//   - files: Stages and publishes output files.
//   - opts: Run options.
//   - logger: Receives run progress. Nil discards.
func New(refs References, files *utils.FileManager, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.ReportNameFormat == "" {
		opts.ReportNameFormat = "{category}_{start}_{end}.csv"
	}
	if opts.Policy == "" {
		opts.Policy = config.PolicyExclude
	}
	return &Pipeline{
		refs:   refs,
		files:  files,
		opts:   opts,
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}
}

// WithClock replaces the clock used for run timestamps.
func (p *Pipeline) WithClock(clock clockwork.Clock) *Pipeline {
	cp := *p
	cp.clock = clock
	return &cp
}

// WithDryRun returns a copy of p that never publishes.
func (p *Pipeline) WithDryRun(dryRun bool) *Pipeline {
	cp := *p
	cp.opts.DryRun = dryRun
	return &cp
}

// run carries the state of one invocation.
type run struct {
	*Pipeline
	ctx    context.Context
	in     Input
	result *Result
	logger *slog.Logger
}

// Run executes one batch.
//
// RETURNS:
//   - The Result. It is nil only when Input.Validate fails.
//   - The Input.Validate error, or a *RunError naming the failed stage.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		Pipeline: p,
		ctx:      ctx,
		in:       in,
		result: &Result{
			RunID:     uuid.NewString(),
			State:     Idle,
			Source:    in.Source,
			StartedAt: p.clock.Now(),
		},
	}
	r.logger = p.logger.With("run_id", r.result.RunID)
	r.logger.Info("run started",
		"source", in.Source,
		"period_start", in.Period.StartString(),
		"period_end", in.Period.EndString(),
		"dry_run", p.opts.DryRun)

	err := r.execute()
	r.result.Duration = p.clock.Since(r.result.StartedAt)
	if err != nil {
		r.result.FailedAt = r.result.State
		r.result.State = Failed
		r.logger.Error("run failed", "state", r.result.FailedAt, "error", err)
		return r.result, &RunError{State: r.result.FailedAt, Err: err}
	}

	r.transition(Complete)
	r.logger.Info("run complete",
		"records", r.result.Records,
		"published", len(r.result.Published),
		"took", r.result.Duration)
	return r.result, nil
}

func (r *run) transition(next State) {
	r.logger.Debug("state transition", "from", r.result.State, "to", next)
	r.result.State = next
}

// execute runs the stages in order. It returns at the first failure with
// result.State still naming the failed stage.
func (r *run) execute() error {
	// =========================================================================
	// STEP 1: VALIDATE THE WORKBOOK HEADER
	// =========================================================================

	r.transition(Validating)

	sheet, err := xlsxparser.ReadSheet(r.in.Workbook, "")
	if err != nil {
		return &types.InputReadError{Source: r.in.Source, Err: err}
	}

	index, err := validation.Validate(sheet.Header, validation.RequiredColumns)
	if err != nil {
		return err
	}
	r.logger.Info("schema validated", "sheet", sheet.Name, "columns", index.Width(), "rows", len(sheet.Rows))

	// =========================================================================
	// STEP 2: LOAD REFERENCE DATA
	// =========================================================================
	// Expired tables are reloaded here. A failed reload is fatal.

	r.transition(ReferenceLoading)
	if err := r.ctx.Err(); err != nil {
		return err
	}

	segments, err := r.refs.Segments(r.ctx)
	if err != nil {
		return err
	}
	titles, err := r.refs.Titles(r.ctx)
	if err != nil {
		return err
	}
	r.logger.Info("reference data ready", "segments", len(segments), "titles", len(titles))

	// =========================================================================
	// STEP 3: EXTRACT RECORDS
	// =========================================================================

	r.transition(Extracting)
	if err := r.ctx.Err(); err != nil {
		return err
	}

	extraction := extractor.Extract(sheet, index)
	if extraction.Outcome == extractor.Failed {
		return extraction.Err
	}
	r.result.Records = len(extraction.Records)
	if extraction.Empty() {
		r.logger.Warn("workbook has no data rows")
	} else {
		r.logger.Info("records extracted", "rows", r.result.Records)
	}

	// =========================================================================
	// STEP 4: JOIN, GENERATE AND PUBLISH
	// =========================================================================

	r.transition(Generating)
	if err := r.ctx.Err(); err != nil {
		return err
	}

	generator := report.Generator{Policy: r.opts.Policy, Logger: r.logger}
	output, err := generator.Generate(extraction.Records, segments, titles, r.in.Period)
	if err != nil {
		return err
	}
	r.result.Output = output
	if output.Excluded > 0 {
		r.logger.Warn("records excluded for missing references",
			"excluded", output.Excluded, "missing", len(output.Missing))
	}

	return r.publish(output)
}

// publish stages every report (and the summary) and then publishes them
// together. Nothing is visible unless all of them were written.
func (r *run) publish(output *report.Output) error {
	params := map[string]string{
		"start":     r.in.Period.StartString(),
		"end":       r.in.Period.EndString(),
		"run_id":    r.result.RunID,
		"timestamp": r.result.StartedAt.Format("20060102_150405"),
	}

	r.result.Files = make(map[string]string, len(output.Reports))
	staged := make([]*utils.StagedFile, 0, len(output.Reports)+1)

	discard := func() {
		if err := r.files.Discard(staged); err != nil {
			r.logger.Warn("failed to remove staged files", "error", err)
		}
	}

	for _, rep := range output.Reports {
		params["category"] = rep.Category.Slug
		name := utils.GenerateOutputFileName(r.opts.ReportNameFormat, params)

		rows := rep.Rows
		file, err := r.files.Stage(name, func(w io.Writer) error {
			return csvwriter.WriteReport(w, rows)
		})
		if err != nil {
			discard()
			return zerr.With(zerr.Wrap(err, "failed to stage report"), "category", rep.Category.Slug)
		}
		staged = append(staged, file)
		r.result.Files[rep.Category.Slug] = name

		r.logger.Debug("report staged",
			"category", rep.Category.Slug,
			"rows", len(rep.Rows),
			"total", rep.Total.String())
	}

	if !r.opts.SkipSummary {
		params["category"] = "summary"
		format := strings.TrimSuffix(r.opts.ReportNameFormat, filepath.Ext(r.opts.ReportNameFormat)) + ".txt"
		name := utils.GenerateOutputFileName(format, params)

		summary := csvwriter.Summary{
			RunID:     r.result.RunID,
			Source:    r.in.Source,
			StartTime: r.result.StartedAt,
			EndTime:   r.clock.Now(),
			Records:   r.result.Records,
			Output:    output,
			Files:     r.result.Files,
		}
		file, err := r.files.Stage(name, func(w io.Writer) error {
			return csvwriter.WriteSummary(w, summary)
		})
		if err != nil {
			discard()
			return zerr.Wrap(err, "failed to stage run summary")
		}
		staged = append(staged, file)
	}

	if err := r.ctx.Err(); err != nil {
		discard()
		return err
	}

	if r.opts.DryRun {
		discard()
		r.logger.Info("dry run, nothing published", "files", len(staged))
		return nil
	}

	published, err := r.files.PublishAll(staged)
	if err != nil {
		return err
	}
	r.result.Published = published
	for _, path := range published {
		r.logger.Info("published", "path", path)
	}
	return nil
}
