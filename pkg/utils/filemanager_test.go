package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func visibleFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}

func allFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStage_IsHiddenUntilPublished(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir, "")

	staged, err := fm.Stage("salary.csv", writeString("a,b\n"))
	require.NoError(t, err)

	assert.Empty(t, visibleFiles(t, dir))
	assert.True(t, strings.HasPrefix(filepath.Base(staged.TempPath), ".salary.csv."))
	assert.True(t, strings.HasSuffix(staged.TempPath, ".tmp"))
	assert.Equal(t, filepath.Join(dir, "salary.csv"), staged.FinalPath)

	paths, err := fm.PublishAll([]*StagedFile{staged})
	require.NoError(t, err)
	assert.Equal(t, []string{staged.FinalPath}, paths)

	content, err := os.ReadFile(staged.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(content))
	assert.Equal(t, []string{"salary.csv"}, allFiles(t, dir))
}

func TestStage_WriteFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir, "")

	_, err := fm.Stage("fica.csv", func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Empty(t, allFiles(t, dir))
}

func TestStage_RejectsPaths(t *testing.T) {
	fm := NewFileManager(t.TempDir(), "")

	for _, name := range []string{"", "../x.csv", "sub/x.csv"} {
		_, err := fm.Stage(name, writeString("x"))
		assert.Error(t, err, name)
	}
}

func TestPublishAll_RollsBackOnFailure(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir, "")

	existing := filepath.Join(dir, "salary.csv")
	require.NoError(t, os.WriteFile(existing, []byte("previous run"), 0644))

	first, err := fm.Stage("salary.csv", writeString("new"))
	require.NoError(t, err)
	second, err := fm.Stage("fica.csv", writeString("new"))
	require.NoError(t, err)
	third, err := fm.Stage("ny_metro_ctm.csv", writeString("new"))
	require.NoError(t, err)

	require.NoError(t, os.Remove(second.TempPath))

	paths, err := fm.PublishAll([]*StagedFile{first, second, third})
	require.Error(t, err)
	assert.Nil(t, paths)

	assert.Equal(t, []string{"salary.csv"}, allFiles(t, dir), "only the previous file remains")
	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(content))
}

func TestPublishAll_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir, "")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "salary.csv"), []byte("old"), 0644))

	staged, err := fm.Stage("salary.csv", writeString("new"))
	require.NoError(t, err)
	_, err = fm.PublishAll([]*StagedFile{staged})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "salary.csv"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
	assert.Equal(t, []string{"salary.csv"}, allFiles(t, dir), "backup is removed")
}

func TestDiscard(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir, "")

	a, err := fm.Stage("a.csv", writeString("a"))
	require.NoError(t, err)
	b, err := fm.Stage("b.csv", writeString("b"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(b.TempPath))

	assert.NoError(t, fm.Discard([]*StagedFile{a, b}))
	assert.Empty(t, allFiles(t, dir))
}

func TestArchiveInputFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "payroll.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("workbook"), 0644))

	archive := t.TempDir()
	fm := NewFileManager(t.TempDir(), archive)
	fm.now = func() time.Time { return time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC) }

	path, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(archive, "2024", "01", "05", "payroll.xlsx"), path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(content))
	assert.True(t, FileExists(src), "original is kept")
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("{category}_{start}_{end}.csv", map[string]string{
		"category": "401k_match",
		"start":    "2024-01-01",
		"end":      "2024-01-15",
	})
	assert.Equal(t, "401k_match_2024-01-01_2024-01-15.csv", name)

	name = GenerateOutputFileName("{category}_{timestamp}.csv", map[string]string{
		"category":  "fica",
		"timestamp": "20240116_080000",
	})
	assert.Equal(t, "fica_20240116_080000.csv", name)

	name = GenerateOutputFileName("{category}.csv", map[string]string{"category": "../evil"})
	assert.NotContains(t, name, "/")
}
