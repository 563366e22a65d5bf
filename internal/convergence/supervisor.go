// Package convergence drives reconciliation passes until the topology
// converges or no entity can make further progress. Between passes it
// sleeps with bounded exponential backoff, resetting after any pass that
// made progress.
package convergence

import (
	"context"
	"fmt"
	"time"

	"github.com/fabkube/fabkube/internal/observe"
	"github.com/fabkube/fabkube/internal/orchestration"
	"github.com/fabkube/fabkube/internal/reconcile"
	"github.com/fabkube/fabkube/internal/topology"
	"github.com/fabkube/fabkube/internal/util/retry"
)

// Supervisor owns one convergence run.
type Supervisor struct {
	orch    *orchestration.Orchestrator
	graph   *topology.Graph
	obs     observe.Observer
	metrics *observe.Metrics
	cfg     retry.Config
}

// New builds a supervisor. The retry config supplies both the per-entity
// attempt budget and the inter-pass backoff policy.
func New(orch *orchestration.Orchestrator, graph *topology.Graph, obs observe.Observer, metrics *observe.Metrics, cfg retry.Config) *Supervisor {
	return &Supervisor{orch: orch, graph: graph, obs: obs, metrics: metrics, cfg: cfg}
}

// Run executes passes until every entity is Ready, no entity can still
// progress, or ctx is cancelled. The report is returned in all cases,
// including cancellation, so callers can print partial results.
func (s *Supervisor) Run(ctx context.Context) (*Report, error) {
	backoff := retry.NewBackoff(s.cfg)
	status := s.orch.Status()

	pass := 0
	for {
		pass++
		progress, err := s.orch.RunPass(ctx, pass)
		if err != nil {
			return s.report(pass), err
		}

		s.finalize(status)
		s.publishStates(status)

		if status.AllReady() {
			return s.finish(pass, true), nil
		}
		if !s.attemptable(status) {
			return s.finish(pass, false), nil
		}

		if progress {
			backoff.Reset()
		}
		if err := sleepCtx(ctx, backoff.Next()); err != nil {
			return s.report(pass), err
		}
	}
}

// finalize turns exhausted entities into terminal failures and propagates
// Blocked to their dependents, so the final report never shows an entity
// stuck in Pending.
func (s *Supervisor) finalize(status *orchestration.StatusMap) {
	for _, es := range status.Snapshot() {
		switch es.State {
		case orchestration.StateNotStarted, orchestration.StatePending:
			if es.Attempts >= s.cfg.MaxAttempts {
				status.MarkFailed(es.ID, fmt.Errorf("attempt budget of %d exhausted", s.cfg.MaxAttempts))
			}
		}
	}

	for _, es := range status.Snapshot() {
		if es.State != orchestration.StateFailed && es.State != orchestration.StateBlocked {
			continue
		}
		for dep := range s.graph.Dependents(es.ID) {
			ds := status.Get(dep)
			if ds.State == orchestration.StateReady || ds.State == orchestration.StateFailed || ds.State == orchestration.StateBlocked {
				continue
			}
			status.MarkBlocked(dep, reconcile.Blocked(es.ID.String()))
			s.obs.Event(observe.Event{
				Type:    observe.EventEntityBlocked,
				Entity:  dep.String(),
				Message: fmt.Sprintf("blocked by failed dependency %s", es.ID),
			})
		}
	}
}

// attemptable reports whether any entity can still be reconciled.
func (s *Supervisor) attemptable(status *orchestration.StatusMap) bool {
	for _, es := range status.Snapshot() {
		switch es.State {
		case orchestration.StateNotStarted, orchestration.StatePending:
			if es.Attempts < s.cfg.MaxAttempts {
				return true
			}
		}
	}
	return false
}

func (s *Supervisor) finish(pass int, converged bool) *Report {
	report := s.report(pass)
	report.Converged = converged

	if s.metrics != nil {
		value := 0.0
		if converged {
			value = 1.0
		}
		s.metrics.RunConverged.Set(value)
	}
	s.obs.Event(observe.Event{
		Type:    observe.EventRunCompleted,
		Message: fmt.Sprintf("converged=%t after %d pass(es)", converged, pass),
	})
	return report
}

func (s *Supervisor) report(pass int) *Report {
	return &Report{
		Passes:   pass,
		Entities: s.orch.Status().Snapshot(),
	}
}

func (s *Supervisor) publishStates(status *orchestration.StatusMap) {
	if s.metrics == nil {
		return
	}
	counts := status.Counts()
	for _, state := range []orchestration.State{
		orchestration.StateNotStarted,
		orchestration.StatePending,
		orchestration.StateReady,
		orchestration.StateFailed,
		orchestration.StateBlocked,
	} {
		s.metrics.EntityStates.WithLabelValues(state.String()).Set(float64(counts[state]))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
