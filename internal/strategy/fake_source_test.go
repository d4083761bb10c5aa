package strategy_test

import (
	"context"

	"github.com/relsnap/cdc/internal/cdctypes"
	"github.com/relsnap/cdc/internal/source"
)

// fakeReader is a source.Reader over an in-memory table, used to drive
// strategies without a real database. Rows are filtered by a tiny
// subset of SQL the strategies actually generate: "<col> > '<val>'"
// and "MOD(ABS(CAST(COALESCE(<col>, '0') AS INTEGER)), <n>) = <i>".
type fakeReader struct {
	rows        []cdctypes.Row
	columnTypes map[string]string
}

func (f *fakeReader) FetchBatches(ctx context.Context, datasource, qualifiedTable string, batchSize int, where string) (source.BatchIterator, error) {
	matched := make([]cdctypes.Row, 0, len(f.rows))
	for _, r := range f.rows {
		if matchesWhere(r, where) {
			matched = append(matched, r)
		}
	}
	return &sliceIterator{rows: matched}, nil
}

func (f *fakeReader) ExecuteScalar(ctx context.Context, datasource, query string) (any, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeReader) TableInfo(ctx context.Context, datasource, qualifiedTable string) (source.TableInfo, error) {
	return source.TableInfo{}, nil
}

func (f *fakeReader) ColumnDataType(ctx context.Context, datasource, qualifiedTable, column string) (string, error) {
	if t, ok := f.columnTypes[column]; ok {
		return t, nil
	}
	return "integer", nil
}

func (f *fakeReader) Close() {}

type sliceIterator struct {
	rows  []cdctypes.Row
	index int
}

func (it *sliceIterator) Next(ctx context.Context) ([]cdctypes.Row, bool, error) {
	if it.index >= len(it.rows) {
		return nil, false, nil
	}
	batch := it.rows[it.index:]
	it.index = len(it.rows)
	return batch, true, nil
}

func (it *sliceIterator) Close(ctx context.Context) error { return nil }
