package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/relsnap/cdc/internal/cdcerr"
	"github.com/relsnap/cdc/internal/cdctypes"
	"github.com/relsnap/cdc/internal/fingerprint"
	"github.com/relsnap/cdc/internal/source"
	"github.com/relsnap/cdc/internal/statestore"
)

// HashStrategy implements spec §4.5.2: a full-table scan diffed
// against the previous run's primary-key -> fingerprint map. Memory is
// one batch plus the previous and current maps, which hold one entry
// per row, so it grows with table size.
type HashStrategy struct {
	Log *slog.Logger
}

func (h HashStrategy) Process(ctx context.Context, spec cdctypes.TableSpec, reader source.Reader, states *statestore.Store, now time.Time) Result {
	const method = cdctypes.MethodHash
	if spec.PrimaryKey == "" || len(spec.HashColumns) == 0 {
		return errResult(method, cdcerr.Configf("table %q: hash method requires primary_key and hash_columns", spec.Name))
	}

	key := statestore.HashSlot(spec.Datasource, spec.Name)
	state, _, err := states.GetHashState(ctx, key)
	if err != nil {
		return errResult(method, cdcerr.New(cdcerr.KindStateIOError, "read hash_state", err))
	}

	cs, cur, err := diffAgainstPrevious(ctx, reader, spec, state.RowHashes, h.Log)
	if err != nil {
		return errResult(method, err)
	}

	if err := states.PutHashState(ctx, key, statestore.HashState{RowHashes: cur, ProcessedAt: now}); err != nil {
		return errResult(method, cdcerr.New(cdcerr.KindStateIOError, "write hash_state", err))
	}

	return successResult(method, cs)
}

// diffAgainstPrevious scans spec's table once, comparing each row's
// fingerprint to prev, and returns the resulting ChangeSet along with
// the full current pk->fingerprint map (spec §4.5.2 steps 2-4).
func diffAgainstPrevious(ctx context.Context, reader source.Reader, spec cdctypes.TableSpec, prev map[string]string, log *slog.Logger) (cdctypes.ChangeSet, map[string]string, error) {
	it, err := reader.FetchBatches(ctx, spec.Datasource, spec.QualifiedName(), cdctypes.DefaultBatchSize, "")
	if err != nil {
		return cdctypes.ChangeSet{}, nil, err
	}
	return diffIterator(ctx, it, spec, prev, log)
}

// diffIterator runs the hash comparison loop (spec §4.5.2 steps 2-4)
// against an already-opened batch iterator, so the hash-partition
// strategy can reuse it over a predicate-scoped iterator.
func diffIterator(ctx context.Context, it source.BatchIterator, spec cdctypes.TableSpec, prev map[string]string, log *slog.Logger) (cdctypes.ChangeSet, map[string]string, error) {
	defer it.Close(ctx)

	cur := make(map[string]string, len(prev))
	var cs cdctypes.ChangeSet

	for {
		batch, ok, err := it.Next(ctx)
		if err != nil {
			return cdctypes.ChangeSet{}, nil, err
		}
		if !ok {
			break
		}
		for _, row := range batch {
			v, present := row.Get(spec.PrimaryKey)
			pk := fingerprint.StringifyPK(v)
			if !present || pk == "" {
				if log != nil {
					log.Warn("row missing primary key value, skipping", "table", spec.Name, "primary_key", spec.PrimaryKey)
				}
				continue
			}
			fp := fingerprint.Of(row.ToMap(), spec.HashColumns)

			prevFp, existed := prev[pk]
			switch {
			case !existed:
				cs.Added = append(cs.Added, row)
			case prevFp != fp:
				cs.Modified = append(cs.Modified, row)
			}
			cur[pk] = fp
		}
	}
	if err := it.Close(ctx); err != nil {
		return cdctypes.ChangeSet{}, nil, err
	}

	for pk := range prev {
		if _, stillPresent := cur[pk]; !stillPresent {
			cs.Deleted = append(cs.Deleted, cdctypes.DeletedRecord{PrimaryKey: spec.PrimaryKey, Value: pk})
		}
	}

	return cs, cur, nil
}
