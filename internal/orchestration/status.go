// Package orchestration schedules entity reconciliation across the
// dependency graph. One pass walks the graph depth by depth, reconciling
// every entity whose dependencies are Ready, running entities at the same
// depth in parallel.
package orchestration

import (
	"sync"

	"github.com/fabkube/fabkube/internal/topology"
)

// State is the orchestration state of one entity.
type State int

const (
	// StateNotStarted means no reconciliation attempt has been made.
	StateNotStarted State = iota
	// StatePending means resources were applied but readiness is
	// outstanding.
	StatePending
	// StateReady means the entity converged.
	StateReady
	// StateFailed means the entity failed permanently or exhausted its
	// attempt budget.
	StateFailed
	// StateBlocked means a dependency failed, so the entity was never
	// attempted.
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StatePending:
		return "Pending"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	case StateBlocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// EntityStatus is the tracked status of one entity.
type EntityStatus struct {
	ID       topology.EntityID
	State    State
	Attempts int
	Err      error
}

// StatusMap tracks entity states across passes. It is safe for concurrent
// use; reconcilers of one layer update it in parallel.
type StatusMap struct {
	mu       sync.Mutex
	statuses map[topology.EntityID]*EntityStatus
	order    []topology.EntityID
}

// NewStatusMap initializes every graph entity to NotStarted.
func NewStatusMap(g *topology.Graph) *StatusMap {
	m := &StatusMap{
		statuses: make(map[topology.EntityID]*EntityStatus, len(g.Order)),
		order:    g.Order,
	}
	for _, id := range g.Order {
		m.statuses[id] = &EntityStatus{ID: id, State: StateNotStarted}
	}
	return m
}

// Get returns a copy of the entity's status.
func (m *StatusMap) Get(id topology.EntityID) EntityStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.statuses[id]
}

// BeginAttempt counts a reconciliation attempt and moves a NotStarted
// entity to Pending. It returns the attempt number.
func (m *StatusMap) BeginAttempt(id topology.EntityID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statuses[id]
	s.Attempts++
	if s.State == StateNotStarted {
		s.State = StatePending
	}
	return s.Attempts
}

// MarkReady transitions the entity to Ready.
func (m *StatusMap) MarkReady(id topology.EntityID) {
	m.set(id, StateReady, nil)
}

// MarkPending records an attempt that applied resources but did not reach
// readiness.
func (m *StatusMap) MarkPending(id topology.EntityID) {
	m.set(id, StatePending, nil)
}

// MarkFailed records a failed attempt with its classified reason.
func (m *StatusMap) MarkFailed(id topology.EntityID, err error) {
	m.set(id, StateFailed, err)
}

// MarkBlocked records that the entity will never be attempted because a
// dependency failed.
func (m *StatusMap) MarkBlocked(id topology.EntityID, reason error) {
	m.set(id, StateBlocked, reason)
}

func (m *StatusMap) set(id topology.EntityID, state State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statuses[id]
	s.State = state
	s.Err = err
}

// AllReady reports whether every entity converged.
func (m *StatusMap) AllReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.statuses {
		if s.State != StateReady {
			return false
		}
	}
	return true
}

// Counts returns the number of entities per state.
func (m *StatusMap) Counts() map[State]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[State]int)
	for _, s := range m.statuses {
		counts[s.State]++
	}
	return counts
}

// Snapshot returns entity statuses in declaration order.
func (m *StatusMap) Snapshot() []EntityStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]EntityStatus, 0, len(m.order))
	for _, id := range m.order {
		snapshot = append(snapshot, *m.statuses[id])
	}
	return snapshot
}
