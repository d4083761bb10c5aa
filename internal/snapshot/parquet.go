package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// parquetCodec writes one row group per bucket. Source columns vary
// per table and per row (sparse JSON-ish values from the source
// reader), so every source column is written as a nullable UTF8
// string and the four _cdc_* columns as non-nullable UTF8 strings;
// callers needing typed columns
// read them back through the sibling metadata blob's column list and
// cast downstream. This mirrors the dynamic-schema handling in the
// original parquet writer, which also stringifies before writing.
type parquetCodec struct{}

func (parquetCodec) Ext() string { return "parquet" }

func (parquetCodec) Encode(table, datasource string, timestamp time.Time, operation string, rows []map[string]any) ([]byte, []byte, error) {
	columns := unionColumns(rows)
	fields := make([]arrow.Field, 0, len(columns)+4)
	for _, c := range columns {
		fields = append(fields, arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: true})
	}
	fields = append(fields,
		arrow.Field{Name: colCdcOperation, Type: arrow.BinaryTypes.String},
		arrow.Field{Name: colCdcTimestamp, Type: arrow.BinaryTypes.String},
		arrow.Field{Name: colCdcTable, Type: arrow.BinaryTypes.String},
		arrow.Field{Name: colCdcDatasource, Type: arrow.BinaryTypes.String},
	)
	schema := arrow.NewSchema(fields, nil)

	pool := memory.NewGoAllocator()
	bldr := array.NewRecordBuilder(pool, schema)
	defer bldr.Release()

	ts := timestamp.UTC().Format(time.RFC3339Nano)
	for _, row := range rows {
		for i, c := range columns {
			sb := bldr.Field(i).(*array.StringBuilder)
			v, present := row[c]
			if !present || v == nil {
				sb.AppendNull()
				continue
			}
			sb.Append(csvCellString(v))
		}
		base := len(columns)
		bldr.Field(base).(*array.StringBuilder).Append(operation)
		bldr.Field(base + 1).(*array.StringBuilder).Append(ts)
		bldr.Field(base + 2).(*array.StringBuilder).Append(table)
		bldr.Field(base + 3).(*array.StringBuilder).Append(datasource)
	}

	rec := bldr.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	writerProps := parquet.NewWriterProperties(parquet.WithCompression(parquet.Compressions.Snappy))
	writer, err := pqarrow.NewFileWriter(schema, &buf, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet writer: %w", err)
	}
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return nil, nil, fmt.Errorf("write parquet row group: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, nil, fmt.Errorf("close parquet writer: %w", err)
	}

	meta := map[string]any{
		"table_name": table,
		"datasource": datasource,
		"timestamp":  ts,
		"operation":  operation,
		"count":      len(rows),
		"columns":    columns,
	}
	metaPayload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal parquet metadata: %w", err)
	}
	return buf.Bytes(), metaPayload, nil
}
