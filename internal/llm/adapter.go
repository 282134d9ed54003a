// Package llm is the boundary to the model runtime: a tokenizer and a causal
// language model loaded from a local directory. Tokenization and generation
// stay in the runtime; this package only drives it.
package llm

import (
	"context"
	"time"

	"inferd/internal/device"
)

// Tokenizer converts between text and token ids for a loaded model.
type Tokenizer interface {
	Encode(ctx context.Context, text string) ([]int, error)
	Decode(ctx context.Context, ids []int) (string, error)
	SpecialTokens() SpecialTokens
}

// CausalLM generates a continuation of an encoded prompt. The returned
// sequence starts with the input ids.
type CausalLM interface {
	Generate(ctx context.Context, input []int, cfg GenerationConfig) ([]int, error)
	Close() error
}

// Loader builds a Model from a local model directory.
type Loader interface {
	Load(ctx context.Context, dir string, capab device.Capability) (*Model, error)
}

// GenerationConfig carries the sampling setup of one generate call.
type GenerationConfig struct {
	DoSample          bool
	Temperature       float32
	TopK              int
	TopP              float32
	RepetitionPenalty float32
	NoRepeatNGramSize int
	MaxNewTokens      int
	// MaxTime bounds wall-clock generation; hitting it yields the tokens
	// produced so far, not an error.
	MaxTime       time.Duration
	EarlyStopping bool
	PadTokenID    int
	EOSTokenID    int
}

// DefaultGenerationConfig is the fixed configuration used by /generate.
func DefaultGenerationConfig(st SpecialTokens) GenerationConfig {
	return GenerationConfig{
		DoSample:          true,
		Temperature:       0.9,
		TopK:              100,
		TopP:              0.92,
		RepetitionPenalty: 1.3,
		NoRepeatNGramSize: 3,
		MaxNewTokens:      500,
		MaxTime:           20 * time.Second,
		EarlyStopping:     true,
		PadTokenID:        st.PAD,
		EOSTokenID:        st.EOS,
	}
}
