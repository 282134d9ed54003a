package manager

import (
	"context"

	"github.com/rs/zerolog"

	"inferd/internal/artifact"
	"inferd/internal/device"
	"inferd/internal/llm"
)

// Fetcher makes sure the model directory exists locally.
type Fetcher interface {
	EnsureLocal(ctx context.Context, dir string) (artifact.Result, error)
}

// Detector reports the compute capability to load the model with.
type Detector interface {
	Detect(ctx context.Context) (device.Capability, error)
}

// Config encapsulates the collaborators of a Manager.
type Config struct {
	ModelDir  string
	Fetcher   Fetcher
	Loader    llm.Loader
	Detector  Detector
	Publisher EventPublisher
	Logger    zerolog.Logger
}

// New constructs a Manager from Config. A nil Publisher drops events and a
// nil Detector probes for CUDA with the default probe.
func New(cfg Config) *Manager {
	m := &Manager{
		modelDir: cfg.ModelDir,
		fetcher:  cfg.Fetcher,
		loader:   cfg.Loader,
		detector: cfg.Detector,
		pub:      cfg.Publisher,
		log:      cfg.Logger,
		state:    StateIdle,
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}
	if m.detector == nil {
		m.detector = device.Detector{}
	}
	return m
}
