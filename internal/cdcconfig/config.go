// Package cdcconfig is the C7 Config Model: an in-memory typed view of
// the JSON configuration file described in spec §6.1, loaded once at
// process start and passed by reference to every component (the
// "global configuration singleton" design note in spec §9).
package cdcconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/relsnap/cdc/internal/cdctypes"
)

// ConnectionPool mirrors global_settings.connection_pool.
type ConnectionPool struct {
	PoolSize    int `json:"pool_size"`
	MaxOverflow int `json:"max_overflow"`
	TimeoutSecs int `json:"timeout"`
}

// Scheduling mirrors global_settings.scheduling. Enabled and
// IntervalSeconds drive internal/schedule; MaxRetries and
// RetryDelaySecond configure the startup connection retries in
// cmd/cdc.
type Scheduling struct {
	Enabled          bool `json:"enabled"`
	IntervalSeconds  int  `json:"interval_seconds"`
	MaxRetries       int  `json:"max_retries"`
	RetryDelaySecond int  `json:"retry_delay_seconds"`
}

// SnapshotSettings mirrors global_settings.snapshot.
type SnapshotSettings struct {
	Enabled bool                     `json:"enabled"`
	Format  cdctypes.SnapshotFormat  `json:"format"`
}

// GlobalSettings mirrors the config file's global_settings block.
type GlobalSettings struct {
	BatchSize      int              `json:"batch_size"`
	ConnectionPool ConnectionPool   `json:"connection_pool"`
	Scheduling     Scheduling       `json:"scheduling"`
	Snapshot       SnapshotSettings `json:"snapshot"`
}

// Datasource mirrors one entry of the config file's "datasources" map.
type Datasource struct {
	URL string `json:"url"`
}

// Storage mirrors the config file's "storage" block: the object store
// backing both state and snapshot artifacts (spec §4.6, §6.3).
type Storage struct {
	Endpoint  string                  `json:"endpoint"`
	AccessKey string                  `json:"access_key"`
	SecretKey string                  `json:"secret_key"`
	Secure    bool                    `json:"secure"`
	Bucket    string                  `json:"bucket"`
	Format    cdctypes.SnapshotFormat `json:"format"`
}

// tableJSON is the wire shape of one entry in the config file's
// "tables" map; it is translated into a cdctypes.TableSpec by TableSpec().
type tableJSON struct {
	Datasource      string                  `json:"datasource"`
	Schema          string                  `json:"schema"`
	Method          cdctypes.Method         `json:"method"`
	TimestampColumn string                  `json:"timestamp_column"`
	PrimaryKey      string                  `json:"primary_key"`
	HashColumns     []string                `json:"hash_columns"`
	PartitionSize   int                     `json:"partition_size"`
	SnapshotFormat  cdctypes.SnapshotFormat `json:"snapshot_format"`
}

// Config is the fully parsed configuration file.
type Config struct {
	GlobalSettings GlobalSettings        `json:"global_settings"`
	Datasources    map[string]Datasource `json:"datasources"`
	Storage        Storage               `json:"storage"`
	Tables         map[string]tableJSON  `json:"tables"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate fills in defaults and rejects a config with no datasources
// or no storage bucket, matching the component-local Validate()
// pattern used throughout the rest of this repository.
func (c *Config) Validate() error {
	if c.GlobalSettings.BatchSize <= 0 {
		c.GlobalSettings.BatchSize = cdctypes.DefaultBatchSize
	}
	if c.GlobalSettings.Snapshot.Format == "" {
		c.GlobalSettings.Snapshot.Format = cdctypes.FormatJSON
	}
	if len(c.Datasources) == 0 {
		return fmt.Errorf("no datasources configured")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	return nil
}

// TableSpec looks up and translates one table's configuration into a
// cdctypes.TableSpec. ok is false when the table is not configured.
func (c *Config) TableSpec(name string) (cdctypes.TableSpec, bool) {
	t, ok := c.Tables[name]
	if !ok {
		return cdctypes.TableSpec{}, false
	}
	format := t.SnapshotFormat
	if format == "" {
		format = c.GlobalSettings.Snapshot.Format
	}
	return cdctypes.TableSpec{
		Name:            name,
		Datasource:      t.Datasource,
		Schema:          t.Schema,
		Method:          t.Method,
		TimestampColumn: t.TimestampColumn,
		PrimaryKey:      t.PrimaryKey,
		HashColumns:     t.HashColumns,
		PartitionSize:   t.PartitionSize,
		SnapshotFormat:  format,
	}, true
}

// TableNames returns every configured table name, for the "process
// all tables" default invocation (spec §6.2).
func (c *Config) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	return names
}

// SnapshotEnabled reports whether snapshot writing is globally enabled.
func (c *Config) SnapshotEnabled() bool {
	return c.GlobalSettings.Snapshot.Enabled
}

// BatchSize returns the configured batch size or the default.
func (c *Config) BatchSize() int {
	if c.GlobalSettings.BatchSize <= 0 {
		return cdctypes.DefaultBatchSize
	}
	return c.GlobalSettings.BatchSize
}
