package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/scxmask/internal/models"
)

func TestFileStorageFlushSorted(t *testing.T) {
	ctx := context.Background()
	s := NewFileStorage(t.TempDir(), "clip")

	for _, n := range []int{2, 0, 1} {
		fill := models.Black
		if n == 0 {
			fill = models.White
		}
		require.NoError(t, s.AddResult(ctx, models.MaskResult{Frame: n, LogicalIndex: n, Type: "P", Fill: fill}))
	}
	require.NoError(t, s.Flush())

	results, err := LoadResults(s.Path())
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Frame)
	}
	assert.Equal(t, models.White, results[0].Fill)
}

func TestFileStorageEmptyFlush(t *testing.T) {
	s := NewFileStorage(t.TempDir(), "clip")
	require.NoError(t, s.Flush())

	results, err := LoadResults(s.Path())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFileStorageBatchFlush(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStorage(dir, "clip")

	for n := 0; n < batchSize; n++ {
		require.NoError(t, s.AddResult(ctx, models.MaskResult{Frame: n}))
	}

	// a full batch is written without an explicit Flush
	results, err := LoadResults(filepath.Join(dir, "clip", ResultsFile))
	require.NoError(t, err)
	assert.Len(t, results, batchSize)

	entries, err := os.ReadDir(filepath.Join(dir, "clip"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadResultsErrors(t *testing.T) {
	_, err := LoadResults(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = LoadResults(bad)
	assert.Error(t, err)
}

func TestPostgresStorage(t *testing.T) {
	url := os.Getenv("SCXMASK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SCXMASK_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	require.NoError(t, InitSchema(ctx, url))
	s, err := NewPostgresStorage(ctx, url, filepath.Join(t.TempDir(), "xvid.stats"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AddResult(ctx, models.MaskResult{Frame: 0, LogicalIndex: 0, Type: "I", Fill: models.White}))
	require.NoError(t, s.AddResult(ctx, models.MaskResult{Frame: 1, LogicalIndex: 1, Type: "P", Fill: models.Black}))
	require.NoError(t, s.AddResult(ctx, models.MaskResult{Frame: 2, LogicalIndex: 2, Type: "I", Fill: models.White}))
	require.NoError(t, s.Flush())

	keyframes, err := s.Keyframes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, keyframes)
}
