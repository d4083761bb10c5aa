package snapshot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"time"
)

// metadata columns stamped onto every row of a parquet or CSV bucket
// (spec §4.3). Not applied to JSON, which carries the same
// information once at the payload level instead of per row.
const (
	colCdcOperation  = "_cdc_operation"
	colCdcTimestamp  = "_cdc_timestamp"
	colCdcTable      = "_cdc_table"
	colCdcDatasource = "_cdc_datasource"
)

type csvCodec struct{}

func (csvCodec) Ext() string { return "csv" }

func (csvCodec) Encode(table, datasource string, timestamp time.Time, operation string, rows []map[string]any) ([]byte, []byte, error) {
	columns := unionColumns(rows)
	header := append(append([]string{}, columns...), colCdcOperation, colCdcTimestamp, colCdcTable, colCdcDatasource)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, nil, fmt.Errorf("write csv header: %w", err)
	}

	ts := timestamp.UTC().Format(time.RFC3339Nano)
	for _, row := range rows {
		record := make([]string, 0, len(header))
		for _, col := range columns {
			record = append(record, csvCellString(row[col]))
		}
		record = append(record, operation, ts, table, datasource)
		if err := w.Write(record); err != nil {
			return nil, nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil, nil
}

// unionColumns returns every key present in any row, sorted so the
// header is stable across runs regardless of map iteration order.
func unionColumns(rows []map[string]any) []string {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func csvCellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
