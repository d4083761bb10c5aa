package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relsnap/cdc/internal/cdctypes"
)

// summaryManifest is the always-written JSON manifest (spec §4.3).
type summaryManifest struct {
	TableName  string        `json:"table_name"`
	Datasource string        `json:"datasource"`
	Timestamp  time.Time     `json:"timestamp"`
	Format     string        `json:"format"`
	Files      []string      `json:"files"`
	Summary    summaryCounts `json:"summary"`
}

type summaryCounts struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
}

func encodeSummary(s summaryManifest) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// codec turns one bucket of rows into a payload blob plus an optional
// metadata sibling blob (non-nil only for formats that split payload
// from header, i.e. parquet, per spec §4.2/§4.3).
type codec interface {
	Ext() string
	Encode(table, datasource string, timestamp time.Time, operation string, rows []map[string]any) (payload []byte, metadata []byte, err error)
}

func codecFor(format cdctypes.SnapshotFormat) (codec, error) {
	switch format {
	case cdctypes.FormatJSON, "":
		return jsonCodec{}, nil
	case cdctypes.FormatCSV:
		return csvCodec{}, nil
	case cdctypes.FormatParquet:
		return parquetCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
}

// jsonPayload is the per-bucket JSON shape (spec §4.3).
type jsonPayload struct {
	TableName  string           `json:"table_name"`
	Datasource string           `json:"datasource"`
	Timestamp  time.Time        `json:"timestamp"`
	Operation  string           `json:"operation"`
	Count      int              `json:"count"`
	Data       []map[string]any `json:"data"`
}

type jsonCodec struct{}

func (jsonCodec) Ext() string { return "json" }

func (jsonCodec) Encode(table, datasource string, timestamp time.Time, operation string, rows []map[string]any) ([]byte, []byte, error) {
	payload := jsonPayload{
		TableName:  table,
		Datasource: datasource,
		Timestamp:  timestamp.UTC(),
		Operation:  operation,
		Count:      len(rows),
		Data:       rows,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}
