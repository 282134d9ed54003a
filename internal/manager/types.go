package manager

import "time"

// State represents the lifecycle state of the manager.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State    State
	Device   string
	ModelDir string
	Err      string
	ReadyAt  time.Time
}
