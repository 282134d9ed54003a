package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/device"
	"inferd/internal/llm"
	"inferd/pkg/types"
)

type Manager struct {
	modelDir string
	fetcher  Fetcher
	loader   llm.Loader
	detector Detector
	pub      EventPublisher
	log      zerolog.Logger

	startOnce sync.Once

	mu      sync.RWMutex
	state   State
	capab   device.Capability
	model   *llm.Model
	err     string
	readyAt time.Time
}

// Start runs the startup phases in order: detect, fetch, load. It returns
// once the model is ready or the first phase fails. Start runs at most once.
func (m *Manager) Start(ctx context.Context) error {
	first := false
	m.startOnce.Do(func() { first = true })
	if !first {
		return ErrAlreadyStarted
	}

	capab, err := m.detector.Detect(ctx)
	if err != nil {
		return m.fail(&phaseError{phase: "detect", err: err})
	}
	m.mu.Lock()
	m.capab = capab
	m.mu.Unlock()
	m.log.Info().Str("capability", capab.String()).Msg("compute device detected")

	if err := m.fetch(ctx); err != nil {
		return m.fail(&phaseError{phase: "fetch", err: err})
	}

	m.setState(StateLoading)
	m.emit(EventLoadStart, map[string]any{"device": string(capab.Device), "precision": string(capab.Precision)})
	start := time.Now()
	model, err := m.loader.Load(ctx, m.modelDir, capab)
	if err != nil {
		return m.fail(&phaseError{phase: "load", err: err})
	}
	m.emit(EventLoadDone, map[string]any{"duration_ms": time.Since(start).Milliseconds()})

	m.mu.Lock()
	m.model = model
	m.state = StateReady
	m.readyAt = time.Now()
	m.mu.Unlock()
	m.emit(EventReady, map[string]any{"device": string(capab.Device)})
	m.log.Info().Str("model_dir", m.modelDir).Str("device", string(capab.Device)).Msg("model ready")
	return nil
}

func (m *Manager) fetch(ctx context.Context) error {
	if m.fetcher == nil {
		return nil
	}
	m.setState(StateFetching)
	m.emit(EventFetchStart, nil)
	res, err := m.fetcher.EnsureLocal(ctx, m.modelDir)
	if err != nil {
		return err
	}
	if res.Skipped {
		m.emit(EventFetchSkip, nil)
		return nil
	}
	m.emit(EventFetchDone, map[string]any{"files": res.Files, "bytes": res.Bytes})
	return nil
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.state = StateError
	m.err = err.Error()
	m.mu.Unlock()
	m.emit(EventStartupError, map[string]any{"phase": StartupPhase(err), "error": err.Error()})
	m.log.Error().Err(err).Str("phase", StartupPhase(err)).Msg("startup failed")
	return fmt.Errorf("startup: %w", err)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) emit(name string, fields map[string]any) {
	m.pub.Publish(Event{Name: name, ModelDir: m.modelDir, Fields: fields})
}

// Ready reports whether the model is loaded.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.model != nil
}

// Device returns the detected device, or "" before detection.
func (m *Manager) Device() device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capab.Device
}

// Health is the liveness payload. It reports healthy whenever the process is
// serving, with the device chosen at startup.
func (m *Manager) Health() types.HealthResponse {
	return types.HealthResponse{Status: "healthy", Device: string(m.Device())}
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:    m.state,
		Device:   string(m.capab.Device),
		ModelDir: m.modelDir,
		Err:      m.err,
		ReadyAt:  m.readyAt,
	}
}

// Close releases the loaded model and its runtime process.
func (m *Manager) Close() error {
	m.mu.Lock()
	model := m.model
	m.model = nil
	if m.state == StateReady {
		m.state = StateIdle
	}
	m.mu.Unlock()
	if model == nil {
		return nil
	}
	return model.Close()
}
