package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// NoToken marks an undefined special token.
const NoToken = -1

// SpecialTokens are the ids a tokenizer reserves for sequence bookkeeping.
type SpecialTokens struct {
	BOS int
	EOS int
	PAD int
}

// UnknownSpecialTokens has every id undefined.
func UnknownSpecialTokens() SpecialTokens {
	return SpecialTokens{BOS: NoToken, EOS: NoToken, PAD: NoToken}
}

// WithPadFallback aliases PAD to EOS when no padding token is defined.
func (s SpecialTokens) WithPadFallback() SpecialTokens {
	if s.PAD == NoToken {
		s.PAD = s.EOS
	}
	return s
}

// IsSpecial reports whether id is one of the defined special tokens.
func (s SpecialTokens) IsSpecial(id int) bool {
	if id == NoToken {
		return false
	}
	return id == s.BOS || id == s.EOS || id == s.PAD
}

// tokenConfig mirrors the special token fields of config.json and
// generation_config.json. eos_token_id may be a list.
type tokenConfig struct {
	BOS json.RawMessage `json:"bos_token_id"`
	EOS json.RawMessage `json:"eos_token_id"`
	PAD json.RawMessage `json:"pad_token_id"`
}

// ReadSpecialTokens reads special token ids from the model directory.
// generation_config.json wins over config.json; missing files are skipped.
func ReadSpecialTokens(dir string) (SpecialTokens, error) {
	st := UnknownSpecialTokens()
	for _, name := range []string{"config.json", "generation_config.json"} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return st, err
		}
		var tc tokenConfig
		if err := json.Unmarshal(b, &tc); err != nil {
			return st, fmt.Errorf("%s: %w", name, err)
		}
		for _, f := range []struct {
			raw json.RawMessage
			dst *int
		}{{tc.BOS, &st.BOS}, {tc.EOS, &st.EOS}, {tc.PAD, &st.PAD}} {
			id, ok, err := tokenID(f.raw)
			if err != nil {
				return st, fmt.Errorf("%s: %w", name, err)
			}
			if ok {
				*f.dst = id
			}
		}
	}
	return st, nil
}

// tokenID accepts null, an integer, or a list of integers (first wins).
func tokenID(raw json.RawMessage) (int, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true, nil
	}
	var ns []int
	if err := json.Unmarshal(raw, &ns); err != nil {
		return 0, false, fmt.Errorf("token id %s: %w", raw, err)
	}
	if len(ns) == 0 {
		return 0, false, nil
	}
	return ns[0], true, nil
}
