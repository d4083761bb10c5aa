// Package pgsource implements the C1 Source Reader against PostgreSQL
// using pgx, following the connection-pool-per-datasource pattern from
// the teacher's api/config/postgres.go (pgxpool, pool-size/lifetime
// knobs from global_settings.connection_pool, spec §6.1).
package pgsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relsnap/cdc/internal/cdcerr"
	"github.com/relsnap/cdc/internal/cdctypes"
	"github.com/relsnap/cdc/internal/source"
)

// PoolConfig mirrors global_settings.connection_pool (spec §6.1).
type PoolConfig struct {
	PoolSize    int
	MaxOverflow int
	Timeout     time.Duration
}

// Reader is a source.Reader backed by one *pgxpool.Pool per
// configured datasource.
type Reader struct {
	log   *slog.Logger
	pools map[string]*pgxpool.Pool
}

// New dials a pool for every entry in urlsByDatasource. Pools live for
// the process and are released by Close.
func New(ctx context.Context, log *slog.Logger, urlsByDatasource map[string]string, pool PoolConfig) (*Reader, error) {
	pools := make(map[string]*pgxpool.Pool, len(urlsByDatasource))
	for name, url := range urlsByDatasource {
		poolCfg, err := pgxpool.ParseConfig(url)
		if err != nil {
			return nil, cdcerr.New(cdcerr.KindConfigError, fmt.Sprintf("parse datasource url %q", name), err)
		}
		if pool.PoolSize > 0 {
			poolCfg.MaxConns = int32(pool.PoolSize + pool.MaxOverflow)
			poolCfg.MinConns = int32(min(pool.PoolSize, 1))
		}
		if pool.Timeout > 0 {
			poolCfg.MaxConnLifetime = pool.Timeout
		}

		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, cdcerr.New(cdcerr.KindSourceUnavailable, fmt.Sprintf("connect datasource %q", name), err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = p.Ping(pingCtx)
		cancel()
		if err != nil {
			p.Close()
			return nil, cdcerr.New(cdcerr.KindSourceUnavailable, fmt.Sprintf("ping datasource %q", name), err)
		}
		log.Info("connected to datasource", "datasource", name)
		pools[name] = p
	}
	return &Reader{log: log, pools: pools}, nil
}

func (r *Reader) pool(datasource string) (*pgxpool.Pool, error) {
	p, ok := r.pools[datasource]
	if !ok {
		return nil, cdcerr.New(cdcerr.KindConfigError, fmt.Sprintf("unknown datasource %q", datasource), nil)
	}
	return p, nil
}

// ExecuteScalar runs a single-row, single-column query such as
// SELECT COUNT(*).
func (r *Reader) ExecuteScalar(ctx context.Context, datasource, query string) (any, error) {
	p, err := r.pool(datasource)
	if err != nil {
		return nil, err
	}
	var v any
	if err := p.QueryRow(ctx, query).Scan(&v); err != nil {
		return nil, classifyQueryError(query, err)
	}
	return v, nil
}

// TableInfo introspects column names and primary-key columns via
// information_schema, dialect-neutral for any Postgres-wire source.
func (r *Reader) TableInfo(ctx context.Context, datasource, qualifiedTable string) (source.TableInfo, error) {
	p, err := r.pool(datasource)
	if err != nil {
		return source.TableInfo{}, err
	}
	schema, table := splitQualified(qualifiedTable)

	rows, err := p.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return source.TableInfo{}, classifyQueryError("table_info columns", err)
	}
	var columns []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return source.TableInfo{}, cdcerr.New(cdcerr.KindQueryError, "scan column name", err)
		}
		columns = append(columns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return source.TableInfo{}, cdcerr.New(cdcerr.KindQueryError, "iterate columns", err)
	}
	if len(columns) == 0 {
		return source.TableInfo{}, cdcerr.New(cdcerr.KindSchemaError, fmt.Sprintf("table %q not found", qualifiedTable), nil)
	}

	pkRows, err := p.Query(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, schema, table)
	if err != nil {
		return source.TableInfo{}, classifyQueryError("table_info primary keys", err)
	}
	var pks []string
	for pkRows.Next() {
		var c string
		if err := pkRows.Scan(&c); err != nil {
			pkRows.Close()
			return source.TableInfo{}, cdcerr.New(cdcerr.KindQueryError, "scan primary key column", err)
		}
		pks = append(pks, c)
	}
	pkRows.Close()
	if err := pkRows.Err(); err != nil {
		return source.TableInfo{}, cdcerr.New(cdcerr.KindQueryError, "iterate primary keys", err)
	}

	return source.TableInfo{Columns: columns, PrimaryKeys: pks}, nil
}

// ColumnDataType returns the information_schema.columns data_type for
// one column, e.g. "integer", "bigint", "text".
func (r *Reader) ColumnDataType(ctx context.Context, datasource, qualifiedTable, column string) (string, error) {
	p, err := r.pool(datasource)
	if err != nil {
		return "", err
	}
	schema, table := splitQualified(qualifiedTable)
	var dataType string
	err = p.QueryRow(ctx, `
		SELECT data_type FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`,
		schema, table, column).Scan(&dataType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", cdcerr.New(cdcerr.KindSchemaError, fmt.Sprintf("column %q not found on %q", column, qualifiedTable), nil)
		}
		return "", classifyQueryError("column_data_type", err)
	}
	return dataType, nil
}

// FetchBatches opens a read-only cursor over "SELECT * FROM table
// [WHERE where]" and streams it in batches of batchSize rows using
// FETCH FORWARD, so memory is bounded to one batch regardless of
// table size (spec §4.1 contract).
func (r *Reader) FetchBatches(ctx context.Context, datasource, qualifiedTable string, batchSize int, where string) (source.BatchIterator, error) {
	p, err := r.pool(datasource)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = cdctypes.DefaultBatchSize
	}

	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, cdcerr.New(cdcerr.KindSourceUnavailable, "acquire connection", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, cdcerr.New(cdcerr.KindSourceUnavailable, "begin read transaction", err)
	}

	query := fmt.Sprintf("SELECT * FROM %s", qualifiedTable)
	if where != "" {
		query += " WHERE " + where
	}
	cursorName := "cdc_cursor"
	if _, err := tx.Exec(ctx, fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", cursorName, query)); err != nil {
		tx.Rollback(ctx)
		conn.Release()
		return nil, classifyQueryError(query, err)
	}

	return &cursorIterator{
		conn:       conn,
		tx:         tx,
		cursorName: cursorName,
		batchSize:  batchSize,
	}, nil
}

// Close disposes every datasource connection pool.
func (r *Reader) Close() {
	for name, p := range r.pools {
		r.log.Info("closing datasource pool", "datasource", name)
		p.Close()
	}
}

type cursorIterator struct {
	conn       *pgxpool.Conn
	tx         pgx.Tx
	cursorName string
	batchSize  int
	closed     bool
}

func (it *cursorIterator) Next(ctx context.Context) ([]cdctypes.Row, bool, error) {
	if it.closed {
		return nil, false, nil
	}
	rows, err := it.tx.Query(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", it.batchSize, it.cursorName))
	if err != nil {
		return nil, false, cdcerr.New(cdcerr.KindQueryError, "fetch cursor batch", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	colNames := make([]string, len(fields))
	for i, f := range fields {
		colNames[i] = string(f.Name)
	}

	var batch []cdctypes.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, false, cdcerr.New(cdcerr.KindQueryError, "scan row values", err)
		}
		values := make(map[string]any, len(colNames))
		for i, name := range colNames {
			if i < len(vals) {
				values[name] = vals[i]
			}
		}
		batch = append(batch, cdctypes.Row{Columns: colNames, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, false, cdcerr.New(cdcerr.KindQueryError, "iterate cursor batch", err)
	}

	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}

func (it *cursorIterator) Close(ctx context.Context) error {
	if it.closed {
		return nil
	}
	it.closed = true
	_, execErr := it.tx.Exec(ctx, fmt.Sprintf("CLOSE %s", it.cursorName))
	rollbackErr := it.tx.Rollback(ctx)
	it.conn.Release()
	if execErr != nil && !errors.Is(execErr, pgx.ErrTxClosed) {
		return fmt.Errorf("close cursor: %w", execErr)
	}
	if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback read transaction: %w", rollbackErr)
	}
	return nil
}

func splitQualified(qualifiedTable string) (schema, table string) {
	if idx := strings.LastIndex(qualifiedTable, "."); idx >= 0 {
		return qualifiedTable[:idx], qualifiedTable[idx+1:]
	}
	return "public", qualifiedTable
}

func classifyQueryError(query string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return cdcerr.New(cdcerr.KindSchemaError, query, err)
		case "28000", "28P01", "3D000": // auth/invalid catalog
			return cdcerr.New(cdcerr.KindSourceUnavailable, query, err)
		}
	}
	return cdcerr.New(cdcerr.KindQueryError, query, err)
}
