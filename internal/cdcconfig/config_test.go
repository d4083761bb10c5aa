package cdcconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relsnap/cdc/internal/cdcconfig"
	"github.com/relsnap/cdc/internal/cdctypes"
)

const sampleConfig = `{
  "global_settings": {
    "batch_size": 5000,
    "connection_pool": {"pool_size": 4, "max_overflow": 2, "timeout": 30},
    "scheduling": {"enabled": false, "interval_seconds": 300, "max_retries": 3, "retry_delay_seconds": 10},
    "snapshot": {"enabled": true, "format": "json"}
  },
  "datasources": {"main": {"url": "postgres://u:p@host/db"}},
  "storage": {"endpoint": "localhost:9000", "access_key": "k", "secret_key": "s", "secure": false, "bucket": "cdc", "format": "json"},
  "tables": {
    "users": {"datasource": "main", "method": "hash", "primary_key": "id", "hash_columns": ["name"]},
    "events": {"datasource": "main", "method": "timestamp", "timestamp_column": "updated_at", "snapshot_format": "csv"}
  }
}`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesConfiguredValues(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := cdcconfig.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.BatchSize())
	assert.True(t, cfg.SnapshotEnabled())
	assert.ElementsMatch(t, []string{"users", "events"}, cfg.TableNames())
}

func TestTableSpecFallsBackToGlobalSnapshotFormat(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := cdcconfig.Load(path)
	require.NoError(t, err)

	users, ok := cfg.TableSpec("users")
	require.True(t, ok)
	assert.Equal(t, cdctypes.FormatJSON, users.SnapshotFormat)

	events, ok := cfg.TableSpec("events")
	require.True(t, ok)
	assert.Equal(t, cdctypes.FormatCSV, events.SnapshotFormat, "table-level snapshot_format overrides the global default")

	_, ok = cfg.TableSpec("missing")
	assert.False(t, ok)
}

func TestValidateRejectsMissingDatasourcesAndBucket(t *testing.T) {
	_, err := cdcconfig.Load(writeConfig(t, `{"storage": {"bucket": "cdc"}}`))
	assert.Error(t, err)

	_, err = cdcconfig.Load(writeConfig(t, `{"datasources": {"main": {"url": "x"}}, "storage": {}}`))
	assert.Error(t, err)
}

func TestValidateFillsBatchSizeAndFormatDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"datasources": {"main": {"url": "x"}},
		"storage": {"bucket": "cdc"},
		"tables": {}
	}`)
	cfg, err := cdcconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cdctypes.DefaultBatchSize, cfg.BatchSize())
	assert.Equal(t, cdctypes.FormatJSON, cfg.GlobalSettings.Snapshot.Format)
}
