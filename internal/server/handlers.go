package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ginjaninja78/paycom-distribution/internal/pipeline"
	"github.com/ginjaninja78/paycom-distribution/internal/refdata"
	"github.com/ginjaninja78/paycom-distribution/internal/types"
)

// ReferenceCache is the part of the reference cache the admin routes use.
type ReferenceCache interface {
	pipeline.References
	Invalidate()
	Status() []refdata.TableStatus
}

// Handler serves the API routes.
type Handler struct {
	pipeline  *pipeline.Pipeline
	cache     ReferenceCache
	logger    *slog.Logger
	maxUpload int64
}

// NewHandler creates a Handler. maxUploadMB bounds the multipart body.
func NewHandler(p *pipeline.Pipeline, cache ReferenceCache, maxUploadMB int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Handler{
		pipeline:  p,
		cache:     cache,
		logger:    logger,
		maxUpload: maxUploadMB << 20,
	}
}

// =============================================================================
// DTOs
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	FailedAt string `json:"failed_at,omitempty"`
	Details  any    `json:"details,omitempty"`
}

// ReportDTO summarizes one category report.
type ReportDTO struct {
	Category string `json:"category"`
	File     string `json:"file,omitempty"`
	Rows     int    `json:"rows"`
	Total    string `json:"total"`
}

// MissingReferenceDTO is one record that could not be joined.
type MissingReferenceDTO struct {
	Row   int    `json:"row"`
	Table string `json:"table"`
	Key   string `json:"key"`
}

// ProcessResponse is returned by a successful run.
type ProcessResponse struct {
	RunID     string                `json:"run_id"`
	State     string                `json:"state"`
	Records   int                   `json:"records"`
	Included  int                   `json:"included"`
	Excluded  int                   `json:"excluded"`
	Reports   []ReportDTO           `json:"reports"`
	Missing   []MissingReferenceDTO `json:"missing_references"`
	Published []string              `json:"published"`
	DryRun    bool                  `json:"dry_run"`
}

func toMissingDTOs(errs []*types.MissingReferenceError) []MissingReferenceDTO {
	dtos := make([]MissingReferenceDTO, 0, len(errs))
	for _, e := range errs {
		dtos = append(dtos, MissingReferenceDTO{Row: e.Row, Table: string(e.Table), Key: e.Key})
	}
	return dtos
}

func toProcessResponse(result *pipeline.Result, dryRun bool) ProcessResponse {
	out := result.Output
	resp := ProcessResponse{
		RunID:     result.RunID,
		State:     result.State.String(),
		Records:   result.Records,
		Included:  out.Included,
		Excluded:  out.Excluded,
		Reports:   make([]ReportDTO, 0, len(out.Reports)),
		Missing:   toMissingDTOs(out.Missing),
		Published: make([]string, 0, len(result.Published)),
		DryRun:    dryRun,
	}
	for _, r := range out.Reports {
		resp.Reports = append(resp.Reports, ReportDTO{
			Category: r.Category.Slug,
			File:     result.Files[r.Category.Slug],
			Rows:     len(r.Rows),
			Total:    r.Total.StringFixed(2),
		})
	}
	for _, path := range result.Published {
		resp.Published = append(resp.Published, filepath.Base(path))
	}
	return resp
}

// =============================================================================
// HANDLERS
// =============================================================================

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ProcessPayroll runs the pipeline for one uploaded workbook.
func (h *Handler) ProcessPayroll(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, types.ErrMissingWorkbook.Error(), nil)
		return
	}
	defer file.Close()

	// An empty upload counts as no workbook.
	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, types.ErrMissingWorkbook.Error(), nil)
		return
	}

	period, err := types.ParsePeriod(r.FormValue("period_start"), r.FormValue("period_end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))
	runner := h.pipeline
	if dryRun {
		runner = runner.WithDryRun(true)
	}

	h.logger.Info("payroll upload received",
		"request_id", middleware.GetReqID(r.Context()),
		"file", header.Filename,
		"size", header.Size)

	result, err := runner.Run(r.Context(), pipeline.Input{
		Workbook: file,
		Source:   header.Filename,
		Period:   period,
	})
	if err != nil {
		h.writeRunError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, toProcessResponse(result, dryRun))
}

// ReferenceStatus reports the state of both cached tables.
func (h *Handler) ReferenceStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Status())
}

// RefreshReference drops both tables and loads them again.
func (h *Handler) RefreshReference(w http.ResponseWriter, r *http.Request) {
	h.cache.Invalidate()

	if _, err := h.cache.Segments(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload segment data", err)
		return
	}
	if _, err := h.cache.Titles(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload title data", err)
		return
	}

	writeJSON(w, http.StatusOK, h.cache.Status())
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// statusFor maps a run error onto an HTTP status.
//
//	pre-pipeline input errors                    400
//	schema, malformed row, aborted missing refs  422
//	reference load, input read, anything else    500
func statusFor(err error) (int, string) {
	var kindErr types.KindError
	if errors.As(err, &kindErr) {
		switch kindErr.Kind() {
		case types.KindSchemaValidation, types.KindMalformedRow, types.KindMissingReference:
			return http.StatusUnprocessableEntity, string(kindErr.Kind())
		default:
			return http.StatusInternalServerError, string(kindErr.Kind())
		}
	}

	for _, sentinel := range []error{
		types.ErrMissingWorkbook,
		types.ErrMissingPeriodStart,
		types.ErrMissingPeriodEnd,
		types.ErrInvalidPeriodDate,
		types.ErrPeriodOrder,
	} {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, "invalid_request"
		}
	}
	return http.StatusInternalServerError, "internal"
}

// errorDetails exposes the structured part of a run error.
func errorDetails(err error) any {
	var schemaErr *types.SchemaValidationError
	if errors.As(err, &schemaErr) {
		return map[string]any{"missing_columns": schemaErr.Missing}
	}

	var rowErr *types.MalformedRowError
	if errors.As(err, &rowErr) {
		return map[string]any{"row": rowErr.Row, "cells": rowErr.Cells, "width": rowErr.Width}
	}

	var missingErr *types.MissingReferencesError
	if errors.As(err, &missingErr) {
		return map[string]any{"missing_references": toMissingDTOs(missingErr.Errors)}
	}

	var loadErr *types.ReferenceLoadError
	if errors.As(err, &loadErr) {
		return map[string]any{"table": loadErr.Table}
	}
	return nil
}

func (h *Handler) writeRunError(w http.ResponseWriter, result *pipeline.Result, err error) {
	status, code := statusFor(err)

	resp := ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Details: errorDetails(err),
	}
	if result != nil {
		resp.RunID = result.RunID
		resp.FailedAt = result.FailedAt.String()
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
