// Package cdctypes defines the shared data model for a CDC run: table
// configuration, row representation, and the change-set produced by a
// strategy.
package cdctypes

import "fmt"

// Method identifies which change-detection strategy a table uses.
type Method string

const (
	MethodTimestamp     Method = "timestamp"
	MethodHash          Method = "hash"
	MethodHashPartition Method = "hash-partition"
)

// SnapshotFormat identifies the on-disk shape of a snapshot artifact.
type SnapshotFormat string

const (
	FormatJSON    SnapshotFormat = "json"
	FormatParquet SnapshotFormat = "parquet"
	FormatCSV     SnapshotFormat = "csv"
)

// DefaultPartitionSize is used when a table's partition_size is unset.
const DefaultPartitionSize = 10_000

// DefaultBatchSize is used when global_settings.batch_size is unset.
const DefaultBatchSize = 10_000

// TableSpec is the per-table configuration from the config file's
// "tables" map (spec §6.1). It is immutable for the lifetime of a run.
type TableSpec struct {
	Name             string
	Datasource       string
	Schema           string
	Method           Method
	TimestampColumn  string
	PrimaryKey       string
	HashColumns      []string
	PartitionSize    int
	SnapshotFormat   SnapshotFormat
}

// QualifiedName returns "<schema>.<name>" when a schema is configured,
// else "<name>".
func (t TableSpec) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}

// HasWildcardHash reports whether hash_columns is the single wildcard
// token "*".
func (t TableSpec) HasWildcardHash() bool {
	return len(t.HashColumns) == 1 && t.HashColumns[0] == "*"
}

// EffectivePartitionSize returns PartitionSize or the default if unset.
func (t TableSpec) EffectivePartitionSize() int {
	if t.PartitionSize <= 0 {
		return DefaultPartitionSize
	}
	return t.PartitionSize
}

// Row is an ordered mapping from column name to scalar value, as
// produced by the source reader. A nil value represents SQL NULL and
// is distinct from absence of the key.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Get returns the value for a column and whether the column was present.
func (r Row) Get(col string) (any, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// ToMap returns a column->value map suitable for JSON/CSV/Parquet
// serialization, preserving only the columns this row actually carries.
func (r Row) ToMap() map[string]any {
	out := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		out[k] = v
	}
	return out
}

// DeletedRecord identifies a deleted row by its primary key column
// name and stringified value, per spec §3.1.
type DeletedRecord struct {
	PrimaryKey string `json:"primary_key"`
	Value      string `json:"value"`
}

// ChangeSet is the uniform output of every strategy: three disjoint
// ordered sequences of added, modified, and deleted rows.
type ChangeSet struct {
	Added    []Row
	Modified []Row
	Deleted  []DeletedRecord
}

// Empty reports whether all three buckets are empty.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Counts returns the size of each bucket, used for result summaries
// and metrics labels.
func (c ChangeSet) Counts() (added, modified, deleted int) {
	return len(c.Added), len(c.Modified), len(c.Deleted)
}
