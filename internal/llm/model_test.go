package llm

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"inferd/internal/device"
)

type stubTokenizer struct{ st SpecialTokens }

func (s stubTokenizer) Encode(context.Context, string) ([]int, error) { return nil, nil }
func (s stubTokenizer) Decode(context.Context, []int) (string, error) { return "", nil }
func (s stubTokenizer) SpecialTokens() SpecialTokens                  { return s.st }

type stubLM struct{ closed bool }

func (s *stubLM) Generate(_ context.Context, in []int, _ GenerationConfig) ([]int, error) {
	return in, nil
}
func (s *stubLM) Close() error { s.closed = true; return nil }

func TestNewModelAliasesPadToEOS(t *testing.T) {
	lm := &stubLM{}
	m, err := NewModel(stubTokenizer{SpecialTokens{BOS: 1, EOS: 2, PAD: NoToken}}, lm, device.For(device.CPU))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if got := m.SpecialTokens().PAD; got != 2 {
		t.Fatalf("pad=%d want eos 2", got)
	}
	gc := m.GenerationConfig()
	if gc.PadTokenID != 2 || gc.EOSTokenID != 2 {
		t.Fatalf("generation config ids: %+v", gc)
	}
	if err := m.Close(); err != nil || !lm.closed {
		t.Fatalf("close: err=%v closed=%v", err, lm.closed)
	}
}

func TestNewModelKeepsExplicitPad(t *testing.T) {
	m, err := NewModel(stubTokenizer{SpecialTokens{BOS: NoToken, EOS: 2, PAD: 0}}, &stubLM{}, device.For(device.CUDA))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if m.SpecialTokens().PAD != 0 {
		t.Fatalf("explicit pad overwritten: %+v", m.SpecialTokens())
	}
	if m.Capability().Precision != device.Float16 {
		t.Fatalf("capability not kept: %s", m.Capability())
	}
}

func TestNewModelWithoutEOS(t *testing.T) {
	m, err := NewModel(stubTokenizer{UnknownSpecialTokens()}, &stubLM{}, device.For(device.CPU))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	st := m.SpecialTokens()
	if st.EOS != NoToken || st.PAD != NoToken {
		t.Fatalf("special=%+v", st)
	}
	if cfg := m.GenerationConfig(); cfg.EOSTokenID != NoToken || cfg.PadTokenID != NoToken {
		t.Fatalf("config ids: %+v", cfg)
	}
	if got := m.StripSpecial([]int{0, 5, 7}); !reflect.DeepEqual(got, []int{0, 5, 7}) {
		t.Fatalf("nothing should be stripped, got %v", got)
	}
}

func TestNewModelRequiresRuntime(t *testing.T) {
	if _, err := NewModel(nil, &stubLM{}, device.For(device.CPU)); !errors.Is(err, ErrNoRuntime) {
		t.Fatalf("expected ErrNoRuntime, got %v", err)
	}
}

func TestStripSpecial(t *testing.T) {
	m, err := NewModel(stubTokenizer{SpecialTokens{BOS: 1, EOS: 2, PAD: NoToken}}, &stubLM{}, device.For(device.CPU))
	if err != nil {
		t.Fatal(err)
	}
	got := m.StripSpecial([]int{1, 10, 11, 2, 2})
	if !reflect.DeepEqual(got, []int{10, 11}) {
		t.Fatalf("got %v", got)
	}
}

func TestDefaultGenerationConfig(t *testing.T) {
	gc := DefaultGenerationConfig(SpecialTokens{BOS: 1, EOS: 2, PAD: 3})
	want := GenerationConfig{
		DoSample:          true,
		Temperature:       0.9,
		TopK:              100,
		TopP:              0.92,
		RepetitionPenalty: 1.3,
		NoRepeatNGramSize: 3,
		MaxNewTokens:      500,
		MaxTime:           20 * time.Second,
		EarlyStopping:     true,
		PadTokenID:        3,
		EOSTokenID:        2,
	}
	if gc != want {
		t.Fatalf("got %+v\nwant %+v", gc, want)
	}
}
