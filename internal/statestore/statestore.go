// Package statestore is the C2 State Store: per-(datasource, table,
// slot) JSON blobs keyed by the scheme in spec §3.1/§6.3, backed by a
// blobstore.Store. A run's new state is written after its ChangeSet
// is computed but before snapshot artifacts are attempted (invariant
// 3, spec §3.2), so a reader always observes either the pre-run or
// the post-run value, never a torn mix — the same atomicity the
// underlying blobstore.Store.Put already guarantees at the key level.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relsnap/cdc/internal/blobstore"
)

// TimestampState is the "timestamp_state" slot payload.
type TimestampState struct {
	LastTimestamp string    `json:"last_timestamp"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// HashState is the "hash_state" / "partition_<i>_of_<N>" slot payload.
type HashState struct {
	RowHashes   map[string]string `json:"row_hashes"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// Store is the C2 State Store. One Store serves every table; each
// call names its slot by (datasource, table) or by a full slot key.
type Store struct {
	blobs blobstore.Store
}

// New wraps a blobstore.Store as a State Store.
func New(blobs blobstore.Store) *Store {
	return &Store{blobs: blobs}
}

func slotKey(datasource, table, slot string) string {
	return fmt.Sprintf("%s/%s/%s", datasource, table, slot)
}

// TimestampSlot returns the "timestamp_state" slot key.
func TimestampSlot(datasource, table string) string {
	return slotKey(datasource, table, "timestamp_state")
}

// HashSlot returns the "hash_state" slot key.
func HashSlot(datasource, table string) string {
	return slotKey(datasource, table, "hash_state")
}

// PartitionSlot returns the "partition_<i>_of_<N>" slot key.
func PartitionSlot(datasource, table string, i, n int) string {
	return slotKey(datasource, table, fmt.Sprintf("partition_%d_of_%d", i, n))
}

// PartitionSlotPrefix returns the prefix shared by every partition
// slot of a table, for listing/garbage-collecting stale partitions
// when N changes (spec §4.5.3 N-change policy).
func PartitionSlotPrefix(datasource, table string) string {
	return slotKey(datasource, table, "partition_")
}

// GetTimestampState reads the timestamp_state slot. A missing slot
// returns the zero value with ok=false, meaning "no previous state".
func (s *Store) GetTimestampState(ctx context.Context, datasource, table string) (TimestampState, bool, error) {
	var st TimestampState
	ok, err := s.getJSON(ctx, TimestampSlot(datasource, table), &st)
	return st, ok, err
}

// PutTimestampState writes the timestamp_state slot.
func (s *Store) PutTimestampState(ctx context.Context, datasource, table string, st TimestampState) error {
	return s.putJSON(ctx, TimestampSlot(datasource, table), st)
}

// GetHashState reads an arbitrary hash-shaped slot (hash_state or a
// partition slot). A missing slot returns an empty RowHashes map.
func (s *Store) GetHashState(ctx context.Context, key string) (HashState, bool, error) {
	var st HashState
	ok, err := s.getJSON(ctx, key, &st)
	if !ok {
		st.RowHashes = map[string]string{}
	}
	return st, ok, err
}

// PutHashState writes an arbitrary hash-shaped slot.
func (s *Store) PutHashState(ctx context.Context, key string, st HashState) error {
	return s.putJSON(ctx, key, st)
}

// ListPartitionSlots lists every partition_<i>_of_<N> key currently
// stored for a table, used to garbage-collect stale partitions after
// an N change (spec §4.5.3).
func (s *Store) ListPartitionSlots(ctx context.Context, datasource, table string) ([]string, error) {
	return s.blobs.List(ctx, PartitionSlotPrefix(datasource, table))
}

// DeleteSlot removes a slot key outright (used for partition garbage
// collection).
func (s *Store) DeleteSlot(ctx context.Context, key string) error {
	return s.blobs.Delete(ctx, key)
}

func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, ok, err := s.blobs.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get state %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal state %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal state %q: %w", key, err)
	}
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put state %q: %w", key, err)
	}
	return nil
}
