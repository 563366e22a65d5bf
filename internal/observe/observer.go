// Package observe provides structured observability for convergence runs:
// an Observer interface with a console implementation, and prometheus
// metrics exposed during long-running deployments.
package observe

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Logger is the minimal printf-style surface.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer receives structured events from the orchestrator and the
// convergence supervisor.
type Observer interface {
	Logger

	// Event emits a structured event.
	Event(event Event)

	// WithFields returns an Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured convergence event.
type Event struct {
	Type      EventType
	Entity    string // entity ID (e.g. "ca/ca1"), if applicable
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType classifies convergence events.
type EventType string

const (
	// EventPassStarted indicates a reconciliation pass has started.
	EventPassStarted EventType = "pass.started"
	// EventPassCompleted indicates a reconciliation pass finished.
	EventPassCompleted EventType = "pass.completed"

	// EventEntityReconciling indicates an entity reconciliation attempt.
	EventEntityReconciling EventType = "entity.reconciling"
	// EventEntityReady indicates an entity reached the Ready state.
	EventEntityReady EventType = "entity.ready"
	// EventEntityPending indicates an entity is not yet ready.
	EventEntityPending EventType = "entity.pending"
	// EventEntityFailed indicates an entity reconciliation failed.
	EventEntityFailed EventType = "entity.failed"
	// EventEntityBlocked indicates an entity was skipped because a
	// dependency failed permanently.
	EventEntityBlocked EventType = "entity.blocked"

	// EventResourceApplied indicates a cluster resource was created or
	// updated.
	EventResourceApplied EventType = "resource.applied"
	// EventResourceExists indicates a resource was already in the
	// desired state.
	EventResourceExists EventType = "resource.exists"

	// EventRunCompleted indicates the convergence run terminated.
	EventRunCompleted EventType = "run.completed"
)

// ConsoleObserver implements Observer on the standard log package.
type ConsoleObserver struct {
	contextFields map[string]string
}

// NewConsoleObserver creates a console-based observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{contextFields: make(map[string]string)}
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// Event implements Observer.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Fields == nil {
		event.Fields = make(map[string]string)
	}
	for k, v := range o.contextFields {
		if _, exists := event.Fields[k]; !exists {
			event.Fields[k] = v
		}
	}
	log.Print(o.formatEvent(event))
}

// WithFields implements Observer.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ConsoleObserver{contextFields: merged}
}

func (o *ConsoleObserver) formatEvent(event Event) string {
	var parts []string
	parts = append(parts, string(event.Type))
	if event.Entity != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Entity))
	}
	parts = append(parts, event.Message)
	if len(event.Fields) > 0 {
		var fieldParts []string
		for k, v := range event.Fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, v))
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}
	return strings.Join(parts, " ")
}

// NopObserver discards all output. Used in tests.
type NopObserver struct{}

// Printf implements Logger.
func (NopObserver) Printf(string, ...interface{}) {}

// Event implements Observer.
func (NopObserver) Event(Event) {}

// WithFields implements Observer.
func (n NopObserver) WithFields(map[string]string) Observer { return n }
