package manager

// Lifecycle event names.
const (
	EventLoadStart = "load_start"
	EventLoadDone  = "load_done"
	EventLoadError = "load_error"
	EventEvict     = "evict"
)

// Eviction reasons carried in the "reason" field of EventEvict.
const (
	ReasonIdle       = "idle"
	ReasonExplicit   = "explicit"
	ReasonGeneration = "generation_failure"
	ReasonShutdown   = "shutdown"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name plus optional fields via key/values.
type Event struct {
	Name   string
	Fields map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans events out to several publishers in order.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
