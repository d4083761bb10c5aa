package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/relsnap/cdc/internal/cdcerr"
	"github.com/relsnap/cdc/internal/cdctypes"
	"github.com/relsnap/cdc/internal/source"
	"github.com/relsnap/cdc/internal/statestore"
)

// TimestampStrategy implements spec §4.5.1: a monotone watermark
// column drives an append-only delta. It cannot detect updates or
// deletes, so every row it returns is mapped to the added bucket.
type TimestampStrategy struct{}

func (TimestampStrategy) Process(ctx context.Context, spec cdctypes.TableSpec, reader source.Reader, states *statestore.Store, now time.Time) Result {
	const method = cdctypes.MethodTimestamp
	if spec.TimestampColumn == "" {
		return errResult(method, cdcerr.Configf("table %q: timestamp method requires timestamp_column", spec.Name))
	}

	state, _, err := states.GetTimestampState(ctx, spec.Datasource, spec.Name)
	if err != nil {
		return errResult(method, cdcerr.New(cdcerr.KindStateIOError, "read timestamp_state", err))
	}
	last := state.LastTimestamp

	where := ""
	if last != "" {
		where = fmt.Sprintf("%s > '%s'", spec.TimestampColumn, last)
	}

	it, err := reader.FetchBatches(ctx, spec.Datasource, spec.QualifiedName(), cdctypes.DefaultBatchSize, where)
	if err != nil {
		return errResult(method, err)
	}
	defer it.Close(ctx)

	var added []cdctypes.Row
	newMax := last
	for {
		batch, ok, err := it.Next(ctx)
		if err != nil {
			return errResult(method, err)
		}
		if !ok {
			break
		}
		for _, row := range batch {
			added = append(added, row)
			v, present := row.Get(spec.TimestampColumn)
			if !present || v == nil {
				continue
			}
			s := fingerprintTimestamp(v)
			if s > newMax {
				newMax = s
			}
		}
	}
	if err := it.Close(ctx); err != nil {
		return errResult(method, err)
	}

	cs := cdctypes.ChangeSet{Added: added}

	if newMax != last {
		if err := states.PutTimestampState(ctx, spec.Datasource, spec.Name, statestore.TimestampState{
			LastTimestamp: newMax,
			ProcessedAt:   now,
		}); err != nil {
			return errResult(method, cdcerr.New(cdcerr.KindStateIOError, "write timestamp_state", err))
		}
	}

	return successResult(method, cs)
}

// fingerprintTimestamp renders a time.Time timestamp-column value in
// UTC with a fixed-width nanosecond fraction, so lexical comparison
// agrees with chronological order. Other values use their %v form.
func fingerprintTimestamp(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
	}
	return fmt.Sprintf("%v", v)
}
