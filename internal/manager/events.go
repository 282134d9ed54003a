package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + model directory and optional fields.
type Event struct {
	Name     string
	ModelDir string
	Fields   map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Lifecycle event names.
const (
	EventFetchStart   = "fetch_start"
	EventFetchSkip    = "fetch_skip"
	EventFetchDone    = "fetch_done"
	EventLoadStart    = "load_start"
	EventLoadDone     = "load_done"
	EventReady        = "ready"
	EventStartupError = "startup_error"
)
