package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"inferd/internal/device"
	"inferd/internal/registry"
)

// LlamaLoader loads a model directory by spawning llama-server against its
// weights file.
type LlamaLoader struct {
	Process ProcessConfig
	Log     zerolog.Logger
	OnEvent EventFunc
}

// Load locates the weights, reads special tokens, starts the runtime with
// the capability's device and precision, and returns the model handle.
// Special tokens missing from the HF configs are taken from the runtime.
func (l *LlamaLoader) Load(ctx context.Context, dir string, capab device.Capability) (*Model, error) {
	w, err := registry.Primary(dir)
	if err != nil {
		return nil, err
	}
	special, err := ReadSpecialTokens(dir)
	if err != nil {
		return nil, fmt.Errorf("read special tokens: %w", err)
	}
	emit := l.OnEvent
	if emit == nil {
		emit = func(string, map[string]any) {}
	}
	client := &http.Client{Timeout: 0}
	proc, err := startProcess(ctx, l.Process, w.Path, capab, client, l.Log, emit)
	if err != nil {
		return nil, err
	}
	srv := NewLlamaServer(proc.baseURL, special, client)
	srv.proc = proc
	if srv.special, err = srv.ResolveSpecialTokens(ctx, special); err != nil {
		proc.stop()
		return nil, fmt.Errorf("resolve special tokens: %w", err)
	}
	if srv.special.EOS == NoToken {
		l.Log.Warn().Str("dir", dir).Msg("no end-of-sequence token known; relying on the runtime to stop")
	}
	m, err := NewModel(srv, srv, capab)
	if err != nil {
		proc.stop()
		return nil, err
	}
	l.Log.Info().Str("weights", w.Name).Int("eos", srv.special.EOS).Int("pad", m.SpecialTokens().PAD).Msg("model loaded")
	return m, nil
}
