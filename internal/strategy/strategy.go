// Package strategy is the C5 Strategy Core (spec §4.5): three
// change-detection strategies, each a read-compare-write pipeline over
// a lazy batch stream from the Source Reader, diffed against the
// State Store and emitting a ChangeSet.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relsnap/cdc/internal/cdcerr"
	"github.com/relsnap/cdc/internal/cdctypes"
	"github.com/relsnap/cdc/internal/source"
	"github.com/relsnap/cdc/internal/statestore"
)

// Result is what process(table, spec, datasource) returns (spec §4.5).
type Result struct {
	Status    string // "success" or "error"
	Method    cdctypes.Method
	ChangeSet cdctypes.ChangeSet
	Added     int
	Modified  int
	Deleted   int
	Err       error
}

// Strategy is the common capability every change-detection method
// exposes (spec §9 "tagged variant with a common process capability").
type Strategy interface {
	Process(ctx context.Context, spec cdctypes.TableSpec, reader source.Reader, states *statestore.Store, now time.Time) Result
}

// For resolves the strategy implementation for a method string,
// erroring with KindUnsupportedMethod for anything else (spec §4.6
// step 2). log may be nil.
func For(method cdctypes.Method, log *slog.Logger) (Strategy, error) {
	switch method {
	case cdctypes.MethodTimestamp:
		return TimestampStrategy{}, nil
	case cdctypes.MethodHash:
		return HashStrategy{Log: log}, nil
	case cdctypes.MethodHashPartition:
		return HashPartitionStrategy{Log: log}, nil
	default:
		return nil, cdcerr.New(cdcerr.KindUnsupportedMethod, fmt.Sprintf("unknown method %q", method), nil)
	}
}

func errResult(method cdctypes.Method, err error) Result {
	return Result{Status: "error", Method: method, Err: err}
}

func successResult(method cdctypes.Method, cs cdctypes.ChangeSet) Result {
	added, modified, deleted := cs.Counts()
	return Result{
		Status:    "success",
		Method:    method,
		ChangeSet: cs,
		Added:     added,
		Modified:  modified,
		Deleted:   deleted,
	}
}
