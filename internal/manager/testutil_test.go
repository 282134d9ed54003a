package manager

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/artifact"
	"inferd/internal/device"
	"inferd/internal/llm"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// wordTokenizer maps whitespace separated words and a few punctuation marks
// to ids. Ids 1 and 2 are bos and eos.
type wordTokenizer struct {
	vocab   []string
	special llm.SpecialTokens
	encErr  error
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{
		vocab:   []string{"<unk>", "<s>", "</s>", "Hello", ",", " world", "!"},
		special: llm.SpecialTokens{BOS: 1, EOS: 2, PAD: llm.NoToken},
	}
}

func (w *wordTokenizer) Encode(_ context.Context, text string) ([]int, error) {
	if w.encErr != nil {
		return nil, w.encErr
	}
	out := []int{1}
	for _, f := range strings.Fields(text) {
		id := 0
		for i, v := range w.vocab {
			if v == f {
				id = i
			}
		}
		out = append(out, id)
	}
	return out, nil
}

func (w *wordTokenizer) Decode(_ context.Context, ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(w.vocab[id])
	}
	return b.String(), nil
}

func (w *wordTokenizer) SpecialTokens() llm.SpecialTokens { return w.special }

// fakeLM appends continuation to whatever it is given.
type fakeLM struct {
	mu           sync.Mutex
	continuation []int
	genErr       error
	calls        int
	lastCfg      llm.GenerationConfig
	closed       bool
}

func (f *fakeLM) Generate(_ context.Context, input []int, cfg llm.GenerationConfig) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastCfg = cfg
	if f.genErr != nil {
		return nil, f.genErr
	}
	out := append([]int(nil), input...)
	return append(out, f.continuation...), nil
}

func (f *fakeLM) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

type fakeLoader struct {
	tok     *wordTokenizer
	lm      *fakeLM
	err     error
	calls   int
	gotDir  string
	gotCapa device.Capability
}

func (l *fakeLoader) Load(_ context.Context, dir string, capab device.Capability) (*llm.Model, error) {
	l.calls++
	l.gotDir = dir
	l.gotCapa = capab
	if l.err != nil {
		return nil, l.err
	}
	return llm.NewModel(l.tok, l.lm, capab)
}

type fakeFetcher struct {
	res   artifact.Result
	err   error
	calls int
}

func (f *fakeFetcher) EnsureLocal(context.Context, string) (artifact.Result, error) {
	f.calls++
	return f.res, f.err
}

type fixedDetector struct {
	capab device.Capability
	err   error
}

func (d fixedDetector) Detect(context.Context) (device.Capability, error) { return d.capab, d.err }

// helloWorld returns a loader whose model continues any prompt with ", world!" and eos.
func helloWorld() *fakeLoader {
	return &fakeLoader{tok: newWordTokenizer(), lm: &fakeLM{continuation: []int{4, 5, 6, 2}}}
}

func newTestManager(loader *fakeLoader, fetcher Fetcher, pub EventPublisher) *Manager {
	return New(Config{
		ModelDir:  "/models/m",
		Fetcher:   fetcher,
		Loader:    loader,
		Detector:  fixedDetector{capab: device.For(device.CPU)},
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})
}
