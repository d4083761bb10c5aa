package statestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relsnap/cdc/internal/blobstore"
	"github.com/relsnap/cdc/internal/statestore"
)

func TestSlotKeyHelpersAreDistinct(t *testing.T) {
	assert.Equal(t, "main/users/timestamp_state", statestore.TimestampSlot("main", "users"))
	assert.Equal(t, "main/users/hash_state", statestore.HashSlot("main", "users"))
	assert.Equal(t, "main/users/partition_1_of_3", statestore.PartitionSlot("main", "users", 1, 3))
	assert.Equal(t, "main/users/partition_", statestore.PartitionSlotPrefix("main", "users"))
}

func TestTimestampStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := statestore.New(blobstore.NewMemStore())

	_, ok, err := store.GetTimestampState(ctx, "main", "events")
	require.NoError(t, err)
	assert.False(t, ok, "no previous state means ok=false, not an error")

	want := statestore.TimestampState{LastTimestamp: "2026-07-30T00:00:00Z", ProcessedAt: time.Unix(100, 0).UTC()}
	require.NoError(t, store.PutTimestampState(ctx, "main", "events", want))

	got, ok, err := store.GetTimestampState(ctx, "main", "events")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.LastTimestamp, got.LastTimestamp)
	assert.True(t, want.ProcessedAt.Equal(got.ProcessedAt))
}

func TestHashStateRoundTripAndMissingSlotHasEmptyMap(t *testing.T) {
	ctx := context.Background()
	store := statestore.New(blobstore.NewMemStore())
	key := statestore.HashSlot("main", "users")

	st, ok, err := store.GetHashState(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotNil(t, st.RowHashes)
	assert.Empty(t, st.RowHashes)

	want := statestore.HashState{RowHashes: map[string]string{"1": "abc"}, ProcessedAt: time.Unix(200, 0).UTC()}
	require.NoError(t, store.PutHashState(ctx, key, want))

	got, ok, err := store.GetHashState(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.RowHashes, got.RowHashes)
}

func TestListPartitionSlotsAndDeleteSlotSupportGarbageCollection(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemStore()
	store := statestore.New(blobs)

	for i := 0; i < 2; i++ {
		require.NoError(t, store.PutHashState(ctx, statestore.PartitionSlot("main", "users", i, 2), statestore.HashState{RowHashes: map[string]string{}}))
	}

	keys, err := store.ListPartitionSlots(ctx, "main", "users")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, store.DeleteSlot(ctx, statestore.PartitionSlot("main", "users", 0, 2)))
	keys, err = store.ListPartitionSlots(ctx, "main", "users")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
