// =============================================================================
// Paycom Distribution - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for report publishing:
//   - Staging report files as hidden temporary files
//   - Publishing a set of staged files all together, with rollback
//   - Input archival
//   - File naming utilities
//
// PUBLISHING STRATEGY:
//   - Every report is written completely to ".<name>.<uuid>.tmp" in the
//     output directory and synced before anything is published
//   - PublishAll renames the staged files into place; a file it replaces is
//     set aside first and restored if a later rename fails
//   - A failed run removes its staged files, so readers of the output
//     directory only ever see complete sets of reports
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/zerr"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for report publishing.
type FileManager struct {
	// OutputDir is the directory where reports are published.
	OutputDir string

	// InputArchiveDir is the directory for archived input workbooks.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/payroll.xlsx
	UseTimestampSubdirs bool

	// now is replaced in tests.
	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		OutputDir:           outputDir,
		InputArchiveDir:     inputArchiveDir,
		UseTimestampSubdirs: true,
		now:                 time.Now,
	}
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.InputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create directory"), "dir", dir)
		}
	}
	return nil
}

// =============================================================================
// STAGING AND PUBLISHING
// =============================================================================

// StagedFile is a complete file waiting to be published.
type StagedFile struct {
	// Name is the published file name.
	Name string

	// TempPath is where the content currently lives.
	TempPath string

	// FinalPath is where PublishAll moves it.
	FinalPath string
}

// Stage writes a file under a temporary name in the output directory.
//
// PARAMETERS:
//   - name: The file name to publish under. Must not contain a path.
//   - write: Produces the content.
//
// RETURNS:
//   - The staged file. Nothing is visible under name until PublishAll.
//   - An error if the content could not be written completely. The
//     temporary file is removed in that case.
func (fm *FileManager) Stage(name string, write func(io.Writer) error) (*StagedFile, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, zerr.With(zerr.New("invalid output file name"), "name", name)
	}

	staged := &StagedFile{
		Name:      name,
		TempPath:  filepath.Join(fm.OutputDir, fmt.Sprintf(".%s.%s.tmp", name, uuid.NewString())),
		FinalPath: filepath.Join(fm.OutputDir, name),
	}

	file, err := os.OpenFile(staged.TempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create staged file"), "path", staged.TempPath)
	}

	if err := writeAndSync(file, write); err != nil {
		os.Remove(staged.TempPath)
		return nil, zerr.With(err, "path", staged.TempPath)
	}
	return staged, nil
}

func writeAndSync(file *os.File, write func(io.Writer) error) error {
	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		file.Close()
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return zerr.Wrap(err, "failed to flush staged file")
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return zerr.Wrap(err, "failed to sync staged file")
	}
	if err := file.Close(); err != nil {
		return zerr.Wrap(err, "failed to close staged file")
	}
	return nil
}

// PublishAll moves every staged file into place.
//
// RETURNS:
//   - The published paths, in order.
//   - An error if any rename fails. Files already published by this call are
//     removed, files they replaced are restored, and every remaining staged
//     file is discarded.
func (fm *FileManager) PublishAll(staged []*StagedFile) ([]string, error) {
	type published struct {
		file   *StagedFile
		backup string
	}

	var done []published
	rollback := func(from int) {
		for i := len(done) - 1; i >= 0; i-- {
			os.Remove(done[i].file.FinalPath)
			if done[i].backup != "" {
				os.Rename(done[i].backup, done[i].file.FinalPath)
			}
		}
		fm.Discard(staged[from:])
	}

	for i, s := range staged {
		backup := ""
		if FileExists(s.FinalPath) {
			backup = filepath.Join(fm.OutputDir, fmt.Sprintf(".%s.%s.bak", s.Name, uuid.NewString()))
			if err := os.Rename(s.FinalPath, backup); err != nil {
				rollback(i)
				return nil, zerr.With(zerr.Wrap(err, "failed to set aside existing file"), "path", s.FinalPath)
			}
		}

		if err := os.Rename(s.TempPath, s.FinalPath); err != nil {
			if backup != "" {
				os.Rename(backup, s.FinalPath)
			}
			rollback(i)
			return nil, zerr.With(zerr.Wrap(err, "failed to publish file"), "path", s.FinalPath)
		}
		done = append(done, published{file: s, backup: backup})
	}

	paths := make([]string, len(done))
	for i, p := range done {
		paths[i] = p.file.FinalPath
		if p.backup != "" {
			os.Remove(p.backup)
		}
	}
	return paths, nil
}

// Discard removes staged files that will not be published.
func (fm *FileManager) Discard(staged []*StagedFile) error {
	var errs error
	for _, s := range staged {
		if err := os.Remove(s.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove staged file"), "path", s.TempPath))
		}
	}
	return errs
}

// =============================================================================
// INPUT ARCHIVAL
// =============================================================================

// ArchiveInputFile copies a processed workbook into the archive directory.
// The original stays where it is.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived copy.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", zerr.Wrap(err, "failed to create archive directory")
	}
	if err := copyFile(filePath, archivePath); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to copy file to archive"), "path", filePath)
	}
	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := fm.clock()
		subDir := filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
		return filepath.Join(subDir, fileName)
	}

	return filepath.Join(archiveDir, fileName)
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands the placeholders of a file name format.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Built-in placeholders:
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//             Callers supply the rest, e.g. {category} {start} {end} {run_id}.
//             A param overrides a built-in of the same name.
//   - params: A map of placeholder values.
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//   format: "{category}_{start}_{end}.csv"
//   params: {"category": "fica", "start": "2024-01-01", "end": "2024-01-15"}
//   output: "fica_2024-01-01_2024-01-15.csv"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	pairs := make([]string, 0, len(replacements)*2)
	for placeholder, value := range replacements {
		pairs = append(pairs, placeholder, sanitizeFileName(value))
	}
	return strings.NewReplacer(pairs...).Replace(format)
}

// sanitizeFileName keeps substituted values from introducing directories.
func sanitizeFileName(s string) string {
	return strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(s)
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
