// Package orchestrator is the C6 Run Orchestrator: for a set of
// tables it resolves each one's spec, dispatches to the matching
// strategy, persists state, and invokes the snapshot writer, keeping
// per-table failures from aborting the run (spec §4.6).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/relsnap/cdc/internal/blobstore"
	"github.com/relsnap/cdc/internal/cdcconfig"
	"github.com/relsnap/cdc/internal/cdcerr"
	"github.com/relsnap/cdc/internal/cdctypes"
	"github.com/relsnap/cdc/internal/metrics"
	"github.com/relsnap/cdc/internal/snapshot"
	"github.com/relsnap/cdc/internal/source"
	"github.com/relsnap/cdc/internal/statestore"
	"github.com/relsnap/cdc/internal/strategy"
)

// TableReport is one table's entry in a RunReport.
type TableReport struct {
	Table    string
	Status   string // "success", "error", "skipped"
	Method   cdctypes.Method
	Added    int
	Modified int
	Deleted  int
	Error    string
	Snapshot *SnapshotReport
}

// SnapshotReport records the Snapshot Writer's outcome for one table,
// kept separate from TableReport.Error because a snapshot failure
// does not retract an already-successful, already-persisted run
// (spec §7: SnapshotIOError leaves the table reported success).
type SnapshotReport struct {
	Status string
	Error  string
}

// RunReport aggregates every table's outcome for one orchestrator
// invocation (spec §4.6 step 6). RunID is a log correlation id only;
// it is never part of a persisted state or snapshot key.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Tables    []TableReport
}

// Orchestrator is the C6 Run Orchestrator.
type Orchestrator struct {
	log     *slog.Logger
	cfg     *cdcconfig.Config
	reader  source.Reader
	states  *statestore.Store
	writer  *snapshot.Writer
	clock   clockwork.Clock
	workers int
}

// New builds an Orchestrator. workers bounds how many tables are
// processed concurrently within one invocation (spec §5: pool size
// should not exceed datasource pool capacity); 0 or negative means
// sequential processing.
func New(log *slog.Logger, cfg *cdcconfig.Config, reader source.Reader, blobs blobstore.Store, clock clockwork.Clock, workers int) *Orchestrator {
	return &Orchestrator{
		log:     log,
		cfg:     cfg,
		reader:  reader,
		states:  statestore.New(blobs),
		writer:  snapshot.New(log, blobs),
		clock:   clock,
		workers: workers,
	}
}

// Run processes every name in tables (or, if empty, every configured
// table) and returns the aggregate report. No error returned by Run
// itself aborts the process; every per-table failure is classified
// and collected instead (spec §7 rules).
func (o *Orchestrator) Run(ctx context.Context, tables []string) RunReport {
	if len(tables) == 0 {
		tables = o.cfg.TableNames()
	}

	runID := uuid.New().String()
	started := o.clock.Now()
	reports := make([]TableReport, len(tables))

	workers := o.workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range tables {
		i, name := i, name
		g.Go(func() error {
			reports[i] = o.runTable(gctx, name)
			return nil
		})
	}
	_ = g.Wait() // runTable never returns an error; every failure is captured in its report

	status := "success"
	for _, r := range reports {
		if r.Status == "error" {
			status = "partial_failure"
			break
		}
	}
	metrics.RunDuration.WithLabelValues(status).Observe(o.clock.Since(started).Seconds())
	o.log.Info("run finished", "run_id", runID, "status", status, "tables", len(reports))

	return RunReport{
		RunID:     runID,
		StartedAt: started,
		Duration:  o.clock.Since(started),
		Tables:    reports,
	}
}

// runTable executes spec §4.6 steps 1-5 for a single table. It never
// panics or returns an error to its caller: every failure mode is
// captured in the returned TableReport (spec §7).
func (o *Orchestrator) runTable(ctx context.Context, name string) (report TableReport) {
	report.Table = name
	tableStart := o.clock.Now()
	defer func() {
		metrics.TableDuration.WithLabelValues(name, string(report.Method), report.Status).Observe(o.clock.Since(tableStart).Seconds())
		metrics.TableResultTotal.WithLabelValues(name, string(report.Method), report.Status).Inc()
	}()

	spec, ok := o.cfg.TableSpec(name)
	if !ok {
		report.Status = "skipped"
		report.Error = "no-config"
		o.log.Warn("table has no configuration", "table", name)
		return report
	}
	report.Method = spec.Method

	strat, err := strategy.For(spec.Method, o.log)
	if err != nil {
		return o.fail(report, err)
	}

	now := o.clock.Now()
	result := strat.Process(ctx, spec, o.reader, o.states, now)
	if result.Status != "success" {
		return o.fail(report, result.Err)
	}

	report.Status = "success"
	report.Added, report.Modified, report.Deleted = result.Added, result.Modified, result.Deleted
	metrics.RowsChangedTotal.WithLabelValues(name, "added").Add(float64(result.Added))
	metrics.RowsChangedTotal.WithLabelValues(name, "modified").Add(float64(result.Modified))
	metrics.RowsChangedTotal.WithLabelValues(name, "deleted").Add(float64(result.Deleted))

	o.log.Info("table processed",
		"table", name, "method", spec.Method,
		"added", result.Added, "modified", result.Modified, "deleted", result.Deleted)

	if o.cfg.SnapshotEnabled() {
		report.Snapshot = o.writeSnapshot(ctx, name, spec, result.ChangeSet, now)
	}
	return report
}

func (o *Orchestrator) writeSnapshot(ctx context.Context, name string, spec cdctypes.TableSpec, cs cdctypes.ChangeSet, now time.Time) *SnapshotReport {
	res, err := o.writer.Write(ctx, spec.Datasource, name, cs, spec.SnapshotFormat, now)
	if err != nil {
		metrics.SnapshotWriteTotal.WithLabelValues(name, string(spec.SnapshotFormat), "error").Inc()
		o.log.Error("snapshot write failed", "table", name, "error", err)
		return &SnapshotReport{Status: "error", Error: err.Error()}
	}
	metrics.SnapshotWriteTotal.WithLabelValues(name, string(spec.SnapshotFormat), res.Status).Inc()
	return &SnapshotReport{Status: res.Status}
}

// fail classifies err per the spec §7 policy table: ConfigError and
// UnsupportedMethod are reported as skipped, everything else as a
// hard per-table error. Either way the run continues to the next
// table.
func (o *Orchestrator) fail(report TableReport, err error) TableReport {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	kind, _ := cdcerr.KindOf(err)
	switch kind {
	case cdcerr.KindConfigError, cdcerr.KindUnsupportedMethod:
		report.Status = "skipped"
	default:
		report.Status = "error"
	}
	report.Error = err.Error()
	o.log.Error("table failed", "table", report.Table, "kind", kind, "error", err)
	return report
}
