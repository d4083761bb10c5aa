package strategy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relsnap/cdc/internal/blobstore"
	"github.com/relsnap/cdc/internal/cdctypes"
	"github.com/relsnap/cdc/internal/statestore"
	"github.com/relsnap/cdc/internal/strategy"
)

func tsRow(id int, ts string) cdctypes.Row {
	return cdctypes.Row{
		Columns: []string{"id", "updated_at"},
		Values:  map[string]any{"id": id, "updated_at": ts},
	}
}

// S4 — watermark advances and only newer rows are emitted on the next run.
func TestTimestampStrategyWatermark(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemStore()
	states := statestore.New(blobs)
	spec := cdctypes.TableSpec{
		Name:            "events",
		Datasource:      "main",
		Method:          cdctypes.MethodTimestamp,
		TimestampColumn: "updated_at",
	}

	r1 := &fakeReader{rows: []cdctypes.Row{
		tsRow(1, "T1"), tsRow(2, "T2"), tsRow(3, "T3"),
	}}
	res1 := strategy.TimestampStrategy{}.Process(ctx, spec, r1, states, time.Now())
	require.Equal(t, "success", res1.Status)
	assert.Len(t, res1.ChangeSet.Added, 3)

	state, ok, err := states.GetTimestampState(ctx, spec.Datasource, spec.Name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T3", state.LastTimestamp)

	r2 := &fakeReader{rows: []cdctypes.Row{tsRow(4, "T4")}}
	res2 := strategy.TimestampStrategy{}.Process(ctx, spec, r2, states, time.Now())
	require.Equal(t, "success", res2.Status)
	require.Len(t, res2.ChangeSet.Added, 1)
	assert.Equal(t, 4, res2.ChangeSet.Added[0].Values["id"])

	state2, _, err := states.GetTimestampState(ctx, spec.Datasource, spec.Name)
	require.NoError(t, err)
	assert.Equal(t, "T4", state2.LastTimestamp)
}

func TestTimestampStrategyRequiresTimestampColumn(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemStore()
	states := statestore.New(blobs)
	spec := cdctypes.TableSpec{Name: "events", Datasource: "main", Method: cdctypes.MethodTimestamp}

	r := strategy.TimestampStrategy{}.Process(ctx, spec, &fakeReader{}, states, time.Now())
	assert.Equal(t, "error", r.Status)
}
