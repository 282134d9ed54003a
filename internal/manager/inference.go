package manager

import (
	"context"
	"fmt"
	"time"

	"inferd/internal/llm"
)

// current returns the loaded model or ErrNotReady.
func (m *Manager) current() (*llm.Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.model == nil {
		return nil, ErrNotReady
	}
	return m.model, nil
}

// Generate runs prompt through the model with the fixed generation settings
// and returns the decoded sequence. The sequence starts with the prompt, so
// the result extends it. Special tokens are dropped before decoding.
func (m *Manager) Generate(ctx context.Context, prompt string) (string, error) {
	model, err := m.current()
	if err != nil {
		return "", err
	}
	start := time.Now()
	input, err := model.Tokenizer().Encode(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}
	seq, err := model.LM().Generate(ctx, input, model.GenerationConfig())
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text, err := model.Tokenizer().Decode(ctx, model.StripSpecial(seq))
	if err != nil {
		return "", fmt.Errorf("decode output: %w", err)
	}
	m.log.Debug().
		Int("prompt_tokens", len(input)).
		Int("new_tokens", len(seq)-len(input)).
		Dur("elapsed", time.Since(start)).
		Msg("generation done")
	return text, nil
}
