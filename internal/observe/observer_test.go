package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleObserverFormatEvent(t *testing.T) {
	obs := NewConsoleObserver()

	out := obs.formatEvent(Event{
		Type:    EventEntityReady,
		Entity:  "ca/ca1",
		Message: "converged",
	})
	assert.Equal(t, "entity.ready [ca/ca1] converged", out)
}

func TestConsoleObserverFormatEventWithFields(t *testing.T) {
	obs := NewConsoleObserver()

	out := obs.formatEvent(Event{
		Type:    EventResourceApplied,
		Entity:  "peer/org1",
		Message: "applied",
		Fields:  map[string]string{"resource": "release org1-peer1"},
	})
	assert.Contains(t, out, "resource.applied [peer/org1] applied")
	assert.Contains(t, out, "resource=release org1-peer1")
}

func TestConsoleObserverWithFields(t *testing.T) {
	obs := NewConsoleObserver().WithFields(map[string]string{"run": "abc"})

	console, ok := obs.(*ConsoleObserver)
	require.True(t, ok)
	assert.Equal(t, "abc", console.contextFields["run"])

	// Derived observers do not share the parent's map.
	child := console.WithFields(map[string]string{"pass": "1"}).(*ConsoleObserver)
	assert.Equal(t, "abc", child.contextFields["run"])
	assert.NotContains(t, console.contextFields, "pass")
}

func TestNopObserver(t *testing.T) {
	var obs Observer = NopObserver{}

	// All methods are no-ops and must not panic.
	obs.Printf("ignored %d", 1)
	obs.Event(Event{Type: EventRunCompleted})
	assert.Equal(t, NopObserver{}, obs.WithFields(map[string]string{"k": "v"}))
}

func TestMetricsRegistersCollectors(t *testing.T) {
	m := NewMetrics()

	require.NotNil(t, m.Handler())

	// Incrementing the collectors must not panic on the private registry.
	m.Passes.Inc()
	m.Attempts.WithLabelValues("ca", "ready").Inc()
	m.EntityStates.WithLabelValues("Ready").Set(3)
	m.RunConverged.Set(1)
}
