// Package snapshot is the C3 Snapshot Writer: it serializes a
// ChangeSet into one or more format-specific artifacts plus a summary
// manifest, written under the key scheme in spec §4.3/§6.3.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relsnap/cdc/internal/blobstore"
	"github.com/relsnap/cdc/internal/cdcerr"
	"github.com/relsnap/cdc/internal/cdctypes"
)

// bucket is one of the four artifact kinds a run can write.
type bucket string

const (
	bucketAdded    bucket = "added"
	bucketModified bucket = "modified"
	bucketDeleted  bucket = "deleted"
	bucketSummary  bucket = "summary"
)

// Result describes what the writer did for one table/run.
type Result struct {
	Status string // "success" or "skipped"
	Files  []string
}

// Writer is the C3 Snapshot Writer.
type Writer struct {
	log   *slog.Logger
	blobs blobstore.Store
}

// New builds a Writer over the given object store.
func New(log *slog.Logger, blobs blobstore.Store) *Writer {
	return &Writer{log: log, blobs: blobs}
}

// Write serializes cs into artifacts under
// snapshots/<datasource>/<table>/<YYYYMMDD_HHMMSS>_<bucket>.<ext>,
// using the single `now` captured at run start so every artifact of
// one run shares a timestamp prefix (spec §4.3). An entirely empty
// ChangeSet writes nothing and returns status "skipped" (spec §4.3
// skip rule, property 3 in spec §8.1).
func (w *Writer) Write(ctx context.Context, datasource, table string, cs cdctypes.ChangeSet, format cdctypes.SnapshotFormat, now time.Time) (Result, error) {
	if cs.Empty() {
		return Result{Status: "skipped"}, nil
	}

	codec, err := codecFor(format)
	if err != nil {
		return Result{}, err
	}

	prefix := fmt.Sprintf("snapshots/%s/%s/%s", datasource, table, now.UTC().Format("20060102_150405"))
	ext := codec.Ext()

	var files []string
	writeBucket := func(b bucket, rows []map[string]any) error {
		if len(rows) == 0 {
			return nil
		}
		key := fmt.Sprintf("%s_%s.%s", prefix, b, ext)
		payload, metaPayload, err := codec.Encode(table, datasource, now, string(b), rows)
		if err != nil {
			return cdcerr.New(cdcerr.KindSnapshotIOError, fmt.Sprintf("encode %s bucket", b), err)
		}
		if err := w.blobs.Put(ctx, key, payload); err != nil {
			return cdcerr.New(cdcerr.KindSnapshotIOError, fmt.Sprintf("write %s artifact", b), err)
		}
		if metaPayload != nil {
			if err := w.blobs.Put(ctx, key+blobstore.MetadataSuffix, metaPayload); err != nil {
				return cdcerr.New(cdcerr.KindSnapshotIOError, fmt.Sprintf("write %s metadata", b), err)
			}
		}
		files = append(files, key)
		return nil
	}

	addedRows := rowMaps(cs.Added)
	modifiedRows := rowMaps(cs.Modified)
	deletedRows := deletedMaps(cs.Deleted)

	if err := writeBucket(bucketAdded, addedRows); err != nil {
		return Result{}, err
	}
	if err := writeBucket(bucketModified, modifiedRows); err != nil {
		return Result{}, err
	}
	if err := writeBucket(bucketDeleted, deletedRows); err != nil {
		return Result{}, err
	}

	added, modified, deleted := cs.Counts()
	summaryKey := fmt.Sprintf("%s_summary.json", prefix)
	summary := summaryManifest{
		TableName:  table,
		Datasource: datasource,
		Timestamp:  now.UTC(),
		Format:     string(format),
		Files:      files,
		Summary: summaryCounts{
			Added:    added,
			Modified: modified,
			Deleted:  deleted,
		},
	}
	summaryPayload, err := encodeSummary(summary)
	if err != nil {
		return Result{}, cdcerr.New(cdcerr.KindSnapshotIOError, "encode summary manifest", err)
	}
	if err := w.blobs.Put(ctx, summaryKey, summaryPayload); err != nil {
		return Result{}, cdcerr.New(cdcerr.KindSnapshotIOError, "write summary manifest", err)
	}
	files = append(files, summaryKey)

	w.log.Info("wrote snapshot artifacts", "table", table, "datasource", datasource, "files", len(files))
	return Result{Status: "success", Files: files}, nil
}

func rowMaps(rows []cdctypes.Row) []map[string]any {
	if len(rows) == 0 {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.ToMap()
	}
	return out
}

func deletedMaps(deleted []cdctypes.DeletedRecord) []map[string]any {
	if len(deleted) == 0 {
		return nil
	}
	out := make([]map[string]any, len(deleted))
	for i, d := range deleted {
		out[i] = map[string]any{"primary_key": d.PrimaryKey, "value": d.Value}
	}
	return out
}
