package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fabkube/fabkube/internal/observe"
	"github.com/fabkube/fabkube/internal/reconcile"
	"github.com/fabkube/fabkube/internal/topology"
	"github.com/fabkube/fabkube/internal/util/async"
)

// Orchestrator runs reconciliation passes over the dependency graph.
// Scheduling is layered: an entity is attempted only once all of its
// dependencies are Ready, and entities at the same depth run in parallel.
type Orchestrator struct {
	graph       *topology.Graph
	layers      [][]topology.EntityID
	pool        reconcile.Pool
	status      *StatusMap
	obs         observe.Observer
	metrics     *observe.Metrics
	maxAttempts int
}

// New builds an orchestrator over the graph. maxAttempts is the
// per-entity attempt budget; once spent, the entity is treated as
// terminally failed and its dependents are blocked.
func New(g *topology.Graph, pool reconcile.Pool, status *StatusMap, obs observe.Observer, metrics *observe.Metrics, maxAttempts int) (*Orchestrator, error) {
	layers, err := g.Layers()
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		graph:       g,
		layers:      layers,
		pool:        pool,
		status:      status,
		obs:         obs,
		metrics:     metrics,
		maxAttempts: maxAttempts,
	}, nil
}

// Status returns the shared status map.
func (o *Orchestrator) Status() *StatusMap { return o.status }

// RunPass executes one reconciliation pass and reports whether any entity
// newly reached Ready. Entities whose dependencies failed terminally are
// marked Blocked; entities whose dependencies are merely not Ready yet
// are left untouched for a later pass.
func (o *Orchestrator) RunPass(ctx context.Context, pass int) (bool, error) {
	o.obs.Event(observe.Event{
		Type:    observe.EventPassStarted,
		Message: fmt.Sprintf("pass %d", pass),
	})
	if o.metrics != nil {
		o.metrics.Passes.Inc()
	}

	var progress atomic.Bool
	for _, layer := range o.layers {
		if err := ctx.Err(); err != nil {
			return progress.Load(), err
		}

		var tasks []async.Task
		for _, id := range layer {
			id := id
			switch o.status.Get(id).State {
			case StateReady, StateFailed, StateBlocked:
				continue
			}

			if blockedBy, terminal := o.dependencyState(id); terminal {
				o.block(id, blockedBy)
				continue
			} else if blockedBy != (topology.EntityID{}) {
				// Dependency not ready yet; wait for a later pass.
				continue
			}

			tasks = append(tasks, async.Task{
				Name: id.String(),
				Func: func(ctx context.Context) error {
					if o.reconcileEntity(ctx, id) {
						progress.Store(true)
					}
					return nil
				},
			})
		}

		if err := async.RunParallel(ctx, tasks); err != nil {
			return progress.Load(), err
		}
	}

	counts := o.status.Counts()
	o.obs.Event(observe.Event{
		Type:    observe.EventPassCompleted,
		Message: fmt.Sprintf("pass %d", pass),
		Fields: map[string]string{
			"ready":   fmt.Sprintf("%d", counts[StateReady]),
			"pending": fmt.Sprintf("%d", counts[StatePending]+counts[StateNotStarted]),
			"failed":  fmt.Sprintf("%d", counts[StateFailed]),
			"blocked": fmt.Sprintf("%d", counts[StateBlocked]),
		},
	})
	return progress.Load(), nil
}

// dependencyState inspects the dependencies of id. It returns the first
// dependency that is not Ready, and whether that dependency is terminal
// (failed, blocked, or out of attempts) rather than merely in progress.
func (o *Orchestrator) dependencyState(id topology.EntityID) (topology.EntityID, bool) {
	for _, dep := range o.graph.Nodes[id].DependsOn {
		s := o.status.Get(dep)
		switch s.State {
		case StateReady:
			continue
		case StateFailed, StateBlocked:
			return dep, true
		default:
			if s.Attempts >= o.maxAttempts {
				return dep, true
			}
			return dep, false
		}
	}
	return topology.EntityID{}, false
}

func (o *Orchestrator) block(id, dep topology.EntityID) {
	reason := reconcile.Blocked(dep.String())
	o.status.MarkBlocked(id, reason)
	o.obs.Event(observe.Event{
		Type:    observe.EventEntityBlocked,
		Entity:  id.String(),
		Message: reason.Error(),
	})
	o.countAttempt(id, "blocked")
}

// reconcileEntity runs one attempt and records the outcome. It reports
// whether the entity newly reached Ready.
func (o *Orchestrator) reconcileEntity(ctx context.Context, id topology.EntityID) bool {
	attempt := o.status.BeginAttempt(id)
	o.obs.Event(observe.Event{
		Type:    observe.EventEntityReconciling,
		Entity:  id.String(),
		Message: fmt.Sprintf("attempt %d/%d", attempt, o.maxAttempts),
	})

	res := o.pool[id].Reconcile(ctx)
	switch res.Outcome {
	case reconcile.OutcomeReady:
		o.status.MarkReady(id)
		o.obs.Event(observe.Event{Type: observe.EventEntityReady, Entity: id.String(), Message: "converged"})
		o.countAttempt(id, "ready")
		return true

	case reconcile.OutcomePending:
		o.status.MarkPending(id)
		o.obs.Event(observe.Event{Type: observe.EventEntityPending, Entity: id.String(), Message: "waiting for readiness"})
		o.countAttempt(id, "pending")
		return false

	default:
		if reconcile.IsPermanent(res.Err) || attempt >= o.maxAttempts {
			o.status.MarkFailed(id, res.Err)
		} else {
			// Transient failure; the entity stays Pending and is retried
			// on the next pass.
			o.status.MarkPending(id)
		}
		o.obs.Event(observe.Event{
			Type:    observe.EventEntityFailed,
			Entity:  id.String(),
			Message: res.Err.Error(),
			Fields:  map[string]string{"permanent": fmt.Sprintf("%t", reconcile.IsPermanent(res.Err))},
		})
		o.countAttempt(id, "failed")
		return false
	}
}

func (o *Orchestrator) countAttempt(id topology.EntityID, outcome string) {
	if o.metrics != nil {
		o.metrics.Attempts.WithLabelValues(string(id.Kind), outcome).Inc()
	}
}
