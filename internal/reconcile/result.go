// Package reconcile implements the per-kind reconcilers that close the
// gap between a topology entity's desired state and the cluster. Each
// reconciler probes current state first, applies only what is missing,
// and reports Ready, Pending, or Failed with a classified reason.
package reconcile

import (
	"context"
	"time"

	"github.com/fabkube/fabkube/internal/cluster"
	"github.com/fabkube/fabkube/internal/observe"
	"github.com/fabkube/fabkube/internal/topology"
)

// Outcome is the result class of one reconciliation attempt.
type Outcome int

const (
	// OutcomeReady means the entity's actual state matches its desired
	// state.
	OutcomeReady Outcome = iota
	// OutcomePending means resources were applied but are not yet
	// ready; the caller should re-poll. Pending is not an error.
	OutcomePending
	// OutcomeFailed means the attempt failed; Result.Err carries the
	// classified reason.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "Ready"
	case OutcomePending:
		return "Pending"
	case OutcomeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Result is the outcome of a reconciliation attempt.
type Result struct {
	Outcome Outcome
	Err     error
}

func ready() Result           { return Result{Outcome: OutcomeReady} }
func pending() Result         { return Result{Outcome: OutcomePending} }
func failed(err error) Result { return Result{Outcome: OutcomeFailed, Err: err} }

// Reconciler computes and applies the desired state of one entity.
type Reconciler interface {
	// ID returns the entity this reconciler owns.
	ID() topology.EntityID

	// Reconcile performs one idempotent reconciliation attempt. It
	// never blocks longer than the configured poll timeout.
	Reconcile(ctx context.Context) Result
}

// Pool holds one reconciler per topology entity.
type Pool map[topology.EntityID]Reconciler

// Options configures reconciler construction.
type Options struct {
	// PollTimeout bounds each readiness wait inside one attempt.
	PollTimeout time.Duration

	// ChartVersion pins the Fabric chart versions; empty means latest.
	ChartVersion string
}

// DefaultOptions returns the reconciler defaults.
func DefaultOptions() Options {
	return Options{PollTimeout: 30 * time.Second}
}

// NewPool builds reconcilers for every entity in the topology.
func NewPool(topo *topology.Topology, client cluster.Interface, obs observe.Observer, opts Options) Pool {
	pool := make(Pool)

	base := base{topo: topo, client: client, obs: obs, opts: opts}

	for _, name := range topo.CANames() {
		r := &caReconciler{base: base, ca: topo.CAs[name]}
		pool[r.ID()] = r
	}
	for _, name := range topo.MSPNames() {
		msp := topo.MSPs[name]
		r := &mspReconciler{base: base, msp: msp, ca: topo.CAs[msp.CA]}
		pool[r.ID()] = r
	}
	for _, name := range topo.OrdererNames() {
		r := &ordererReconciler{base: base, group: topo.Orderers[name]}
		pool[r.ID()] = r
	}
	for _, channel := range topo.ChannelNames() {
		r := &channelReconciler{base: base, channel: channel}
		pool[r.ID()] = r
	}
	for _, name := range topo.PeerNames() {
		r := &peerReconciler{base: base, group: topo.Peers[name]}
		pool[r.ID()] = r
	}
	return pool
}

// base carries the shared dependencies of all reconcilers. The topology
// is immutable; the cluster client is safe for concurrent use.
type base struct {
	topo   *topology.Topology
	client cluster.Interface
	obs    observe.Observer
	opts   Options
}

// applied emits a resource event distinguishing fresh applies from
// already-converged resources.
func (b base) applied(entity topology.EntityID, resource string, changed bool) {
	eventType := observe.EventResourceExists
	message := "already in desired state"
	if changed {
		eventType = observe.EventResourceApplied
		message = "applied"
	}
	b.obs.Event(observe.Event{
		Type:    eventType,
		Entity:  entity.String(),
		Message: message,
		Fields:  map[string]string{"resource": resource},
	})
}
