package llm

import (
	"errors"

	"inferd/internal/device"
)

// ErrNoRuntime is returned when a model is assembled without a tokenizer or
// language model.
var ErrNoRuntime = errors.New("llm: tokenizer and language model are required")

// Model is the loaded tokenizer and language model. It is built once during
// startup and only read afterwards, so it is safe for concurrent use.
type Model struct {
	tok     Tokenizer
	lm      CausalLM
	capab   device.Capability
	special SpecialTokens
	gen     GenerationConfig
}

// NewModel assembles the handle. A tokenizer without a padding token gets
// its end-of-sequence token as pad. With no known end-of-sequence token both
// stay NoToken and generation stops on the runtime's own end of generation.
func NewModel(tok Tokenizer, lm CausalLM, capab device.Capability) (*Model, error) {
	if tok == nil || lm == nil {
		return nil, ErrNoRuntime
	}
	st := tok.SpecialTokens().WithPadFallback()
	return &Model{
		tok:     tok,
		lm:      lm,
		capab:   capab,
		special: st,
		gen:     DefaultGenerationConfig(st),
	}, nil
}

func (m *Model) Tokenizer() Tokenizer               { return m.tok }
func (m *Model) LM() CausalLM                       { return m.lm }
func (m *Model) Capability() device.Capability      { return m.capab }
func (m *Model) SpecialTokens() SpecialTokens       { return m.special }
func (m *Model) GenerationConfig() GenerationConfig { return m.gen }

// StripSpecial drops bos/eos/pad ids, returning a new slice.
func (m *Model) StripSpecial(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if m.special.IsSpecial(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Close releases the runtime.
func (m *Model) Close() error {
	if m.lm == nil {
		return nil
	}
	return m.lm.Close()
}
