package pgsource_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/relsnap/cdc/internal/source/pgsource"
)

// newTestContainer starts a disposable Postgres container and seeds a
// small "widgets" table, following the container lifecycle from the
// teacher's api/testing/postgres.go fixture (retry-on-start dropped:
// this engine owns no schema migrations, so the fixture only needs a
// plain CREATE TABLE, not goose).
func newTestContainer(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping testcontainers-backed integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("cdc_test"),
		tcpostgres.WithUsername("cdc"),
		tcpostgres.WithPassword("cdc"),
		tcpostgres.BasicWaitStrategies(),
		tcpostgres.WithSQLDriver("pgx"),
		tcpostgres.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(termCtx)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE TABLE widgets (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		INSERT INTO widgets (id, name) VALUES (1, 'left'), (2, 'right'), (3, 'top');
	`)
	require.NoError(t, err)

	return connStr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestReaderFetchBatchesStreamsAllRows(t *testing.T) {
	connStr := newTestContainer(t)
	ctx := context.Background()

	reader, err := pgsource.New(ctx, testLogger(), map[string]string{"main": connStr}, pgsource.PoolConfig{PoolSize: 2})
	require.NoError(t, err)
	defer reader.Close()

	it, err := reader.FetchBatches(ctx, "main", "widgets", 2, "")
	require.NoError(t, err)
	defer it.Close(ctx)

	var total int
	for {
		batch, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		total += len(batch)
	}
	require.Equal(t, 3, total)
}

func TestReaderTableInfoAndColumnDataType(t *testing.T) {
	connStr := newTestContainer(t)
	ctx := context.Background()

	reader, err := pgsource.New(ctx, testLogger(), map[string]string{"main": connStr}, pgsource.PoolConfig{PoolSize: 2})
	require.NoError(t, err)
	defer reader.Close()

	info, err := reader.TableInfo(ctx, "main", "widgets")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"id", "name", "updated_at"}, info.Columns)
	require.Equal(t, []string{"id"}, info.PrimaryKeys)

	dataType, err := reader.ColumnDataType(ctx, "main", "widgets", "id")
	require.NoError(t, err)
	require.Equal(t, "integer", dataType)
}

func TestReaderExecuteScalarCount(t *testing.T) {
	connStr := newTestContainer(t)
	ctx := context.Background()

	reader, err := pgsource.New(ctx, testLogger(), map[string]string{"main": connStr}, pgsource.PoolConfig{PoolSize: 2})
	require.NoError(t, err)
	defer reader.Close()

	v, err := reader.ExecuteScalar(ctx, "main", "SELECT COUNT(*) FROM widgets")
	require.NoError(t, err)
	require.EqualValues(t, 3, v)
}
