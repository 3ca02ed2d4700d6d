package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportArchiveSaveAndOpen(t *testing.T) {
	archive, err := NewExportArchive(t.TempDir())
	require.NoError(t, err)

	rel, err := archive.Save("term-1", "timetable-10-a.csv", []byte("Time,MON\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("term-1", "timetable-10-a.csv"), rel)

	file, err := archive.Open(rel)
	require.NoError(t, err)
	defer file.Close()

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "Time,MON\n", string(body))
}

func TestExportArchiveCleanup(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewExportArchive(dir)
	require.NoError(t, err)

	rel, err := archive.Save("term-1", "old.csv", []byte("stale"))
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, rel), stale, stale))

	_, err = archive.Save("term-1", "fresh.csv", []byte("fresh"))
	require.NoError(t, err)

	deleted, err := archive.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("term-1", "old.csv")}, deleted)

	_, err = archive.Open(filepath.Join("term-1", "fresh.csv"))
	assert.NoError(t, err)
}
