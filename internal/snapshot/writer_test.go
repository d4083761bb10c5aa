package snapshot_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relsnap/cdc/internal/blobstore"
	"github.com/relsnap/cdc/internal/cdctypes"
	"github.com/relsnap/cdc/internal/snapshot"
)

func findFileSuffix(t *testing.T, files []string, suffix string) string {
	t.Helper()
	for _, k := range files {
		if strings.HasSuffix(k, suffix) {
			return k
		}
	}
	t.Fatalf("no file with suffix %q among %v", suffix, files)
	return ""
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleChangeSet() cdctypes.ChangeSet {
	return cdctypes.ChangeSet{
		Added: []cdctypes.Row{
			{Columns: []string{"id", "name"}, Values: map[string]any{"id": 1, "name": "A"}},
		},
		Modified: []cdctypes.Row{
			{Columns: []string{"id", "name"}, Values: map[string]any{"id": 2, "name": "B2"}},
		},
		Deleted: []cdctypes.DeletedRecord{
			{PrimaryKey: "id", Value: "3"},
		},
	}
}

func TestWriteSkipsEmptyChangeSet(t *testing.T) {
	blobs := blobstore.NewMemStore()
	w := snapshot.New(discardLogger(), blobs)

	res, err := w.Write(context.Background(), "main", "users", cdctypes.ChangeSet{}, cdctypes.FormatJSON, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "skipped", res.Status)
	assert.Empty(t, res.Files)

	keys, err := blobs.List(context.Background(), "snapshots/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWriteJSONProducesExpectedKeysAndSharedPrefix(t *testing.T) {
	blobs := blobstore.NewMemStore()
	w := snapshot.New(discardLogger(), blobs)
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	res, err := w.Write(context.Background(), "main", "users", sampleChangeSet(), cdctypes.FormatJSON, now)
	require.NoError(t, err)
	require.Equal(t, "success", res.Status)

	wantPrefix := "snapshots/main/users/20260304_050607"
	suffixes := map[string]bool{}
	for _, key := range res.Files {
		require.Contains(t, key, wantPrefix)
		suffixes[key[len(wantPrefix):]] = true
	}
	assert.True(t, suffixes["_added.json"])
	assert.True(t, suffixes["_modified.json"])
	assert.True(t, suffixes["_deleted.json"])
	assert.True(t, suffixes["_summary.json"])

	data, ok, err := blobs.Get(context.Background(), wantPrefix+"_summary.json")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), `"added": 1`)
	assert.Contains(t, string(data), `"modified": 1`)
	assert.Contains(t, string(data), `"deleted": 1`)
}

func TestWriteCSVIncludesCdcMetadataColumns(t *testing.T) {
	blobs := blobstore.NewMemStore()
	w := snapshot.New(discardLogger(), blobs)
	now := time.Now()

	res, err := w.Write(context.Background(), "main", "users", sampleChangeSet(), cdctypes.FormatCSV, now)
	require.NoError(t, err)
	require.Equal(t, "success", res.Status)

	addedKey := findFileSuffix(t, res.Files, "added.csv")

	data, ok, err := blobs.Get(context.Background(), addedKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), "_cdc_operation")
	assert.Contains(t, string(data), "_cdc_timestamp")
	assert.Contains(t, string(data), "_cdc_table")
	assert.Contains(t, string(data), "_cdc_datasource")
}

func TestWriteParquetWritesMetadataSibling(t *testing.T) {
	blobs := blobstore.NewMemStore()
	w := snapshot.New(discardLogger(), blobs)
	now := time.Now()

	res, err := w.Write(context.Background(), "main", "users", sampleChangeSet(), cdctypes.FormatParquet, now)
	require.NoError(t, err)
	require.Equal(t, "success", res.Status)

	addedKey := findFileSuffix(t, res.Files, "added.parquet")

	_, ok, err := blobs.Get(context.Background(), addedKey+blobstore.MetadataSuffix)
	require.NoError(t, err)
	assert.True(t, ok)
}
