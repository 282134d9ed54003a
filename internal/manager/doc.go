// Package manager owns the inference server lifecycle: it detects the compute
// device, makes sure the model directory is on local disk, loads the model and
// then serves generation requests against the loaded handle.
//
//   - manager.go: Manager type, Start and the startup phases.
//   - config.go: Config and the collaborator interfaces.
//   - types.go: State and Snapshot.
//   - inference.go: Generate, the per-request pipeline.
//   - errors.go: sentinel errors and phase errors.
//   - events.go, eventpub_*.go: lifecycle events and publishers.
//
// Start runs once. The loaded model is immutable afterwards and shared by all
// concurrent requests without locking.
package manager
