// Package schedule drives repeated orchestrator runs on a ticker, the
// "one orchestrator invocation per scheduler tick" model from spec §5.
// It is an optional convenience for running the engine as a
// long-lived process instead of under an external cron; the CLI can
// also run a single invocation and exit (spec §6.2).
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/relsnap/cdc/internal/cdcconfig"
	"github.com/relsnap/cdc/internal/orchestrator"
)

// Scheduler repeats Orchestrator.Run at global_settings.scheduling's
// configured interval. Per-table failures are already classified and
// continued past by the orchestrator itself (spec §7); the scheduler
// only decides when the next full run happens.
type Scheduler struct {
	log   *slog.Logger
	orch  *orchestrator.Orchestrator
	sched cdcconfig.Scheduling
	clock clockwork.Clock
}

// New builds a Scheduler. Callers should check Enabled before calling
// Run; when scheduling is disabled the CLI runs a single invocation.
func New(log *slog.Logger, orch *orchestrator.Orchestrator, sched cdcconfig.Scheduling, clock clockwork.Clock) *Scheduler {
	return &Scheduler{log: log, orch: orch, sched: sched, clock: clock}
}

// Enabled reports whether global_settings.scheduling.enabled is set.
func (s *Scheduler) Enabled() bool {
	return s.sched.Enabled
}

// Run blocks, invoking the orchestrator once immediately and then
// again every interval_seconds, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tables []string) {
	interval := time.Duration(s.sched.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	s.tick(ctx, tables)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick(ctx, tables)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, tables []string) {
	report := s.orch.Run(ctx, tables)
	failures := 0
	for _, t := range report.Tables {
		if t.Status == "error" {
			failures++
		}
	}
	s.log.Info("scheduled run complete", "tables", len(report.Tables), "failures", failures, "duration", report.Duration)
}
