// Package blobstore is the generic object-store contract consumed by
// both the state store (C2) and the snapshot writer (C3): content
// keyed by an opaque string, with put/get/list/delete semantics
// (spec §4.6). Metadata siblings with suffix "_metadata" are filtered
// out of List results so callers never see them as ordinary keys.
package blobstore

import "context"

// MetadataSuffix is appended to a key to address its sibling metadata
// blob, used by formats (parquet) that split payload from header.
const MetadataSuffix = "_metadata"

// Store is the minimal object-store contract: put is atomic at the
// key level, get returns (nil, false) for a missing key rather than
// an error, and list filters out metadata siblings.
type Store interface {
	// Put writes data under key, overwriting any existing value.
	Put(ctx context.Context, key string, data []byte) error
	// Get reads the value at key. ok is false if key does not exist.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// List returns every key with the given prefix, excluding
	// metadata siblings (suffix "_metadata").
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
