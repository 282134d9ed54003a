package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// LlamaServer drives a llama.cpp server over its native HTTP API. It
// implements both Tokenizer and CausalLM.
type LlamaServer struct {
	baseURL    string
	httpClient *http.Client
	special    SpecialTokens
	proc       *llamaProcess
}

// NewLlamaServer talks to an already running llama-server at baseURL.
func NewLlamaServer(baseURL string, special SpecialTokens, client *http.Client) *LlamaServer {
	if client == nil {
		// Timeout=0: every call carries a context deadline instead.
		client = &http.Client{Timeout: 0}
	}
	return &LlamaServer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		special:    special,
	}
}

type tokenizeRequest struct {
	Content    string `json:"content"`
	AddSpecial bool   `json:"add_special"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

// completionRequest is the /completion payload. Fields a given server build
// does not know are ignored by it.
type completionRequest struct {
	Prompt            []int   `json:"prompt"`
	NPredict          int     `json:"n_predict"`
	Temperature       float32 `json:"temperature"`
	TopK              int     `json:"top_k"`
	TopP              float32 `json:"top_p"`
	RepeatPenalty     float32 `json:"repeat_penalty"`
	NoRepeatNGramSize int     `json:"no_repeat_ngram_size,omitempty"`
	TMaxPredictMS     int64   `json:"t_max_predict_ms,omitempty"`
	ReturnTokens      bool    `json:"return_tokens"`
	CachePrompt       bool    `json:"cache_prompt"`
	Stream            bool    `json:"stream"`
}

// completionChunk is one streamed /completion event.
type completionChunk struct {
	Content  string          `json:"content"`
	Tokens   []int           `json:"tokens"`
	Stop     bool            `json:"stop"`
	StopType string          `json:"stop_type"`
	Error    json.RawMessage `json:"error"`
}

// propsResponse is the subset of /props naming the vocabulary's special tokens.
type propsResponse struct {
	BOSToken string `json:"bos_token"`
	EOSToken string `json:"eos_token"`
}

func (s *LlamaServer) SpecialTokens() SpecialTokens { return s.special }

func (s *LlamaServer) Encode(ctx context.Context, text string) ([]int, error) {
	var out tokenizeResponse
	if err := s.post(ctx, "/tokenize", tokenizeRequest{Content: text, AddSpecial: true}, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

func (s *LlamaServer) Decode(ctx context.Context, ids []int) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	var out detokenizeResponse
	if err := s.post(ctx, "/detokenize", detokenizeRequest{Tokens: ids}, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// Generate returns input followed by the generated ids, cut after the first
// end-of-sequence token. The completion is streamed and reading stops once
// cfg.MaxTime elapses; the ids received by then are returned without error.
func (s *LlamaServer) Generate(ctx context.Context, input []int, cfg GenerationConfig) ([]int, error) {
	budget := ctx
	if cfg.MaxTime > 0 {
		var cancel context.CancelFunc
		budget, cancel = context.WithTimeout(ctx, cfg.MaxTime)
		defer cancel()
	}
	req := completionRequest{
		Prompt:            input,
		NPredict:          cfg.MaxNewTokens,
		Temperature:       cfg.Temperature,
		TopK:              cfg.TopK,
		TopP:              cfg.TopP,
		RepeatPenalty:     cfg.RepetitionPenalty,
		NoRepeatNGramSize: cfg.NoRepeatNGramSize,
		TMaxPredictMS:     cfg.MaxTime.Milliseconds(),
		ReturnTokens:      true,
		Stream:            true,
	}
	if !cfg.DoSample {
		// llama.cpp samples greedily at temperature <= 0
		req.Temperature = 0
	}
	var (
		gen     []int
		content strings.Builder
	)
	err := s.stream(budget, "/completion", req, func(c completionChunk) bool {
		gen = append(gen, c.Tokens...)
		content.WriteString(c.Content)
		return !c.Stop
	})
	switch {
	case err == nil:
	case ctx.Err() == nil && errors.Is(budget.Err(), context.DeadlineExceeded):
		// budget spent: keep what arrived
	default:
		return nil, err
	}
	if len(gen) == 0 && content.Len() > 0 {
		// servers without return_tokens only send text
		var tr tokenizeResponse
		if err := s.post(ctx, "/tokenize", tokenizeRequest{Content: content.String()}, &tr); err != nil {
			return nil, err
		}
		gen = tr.Tokens
	}
	seq := make([]int, 0, len(input)+len(gen))
	seq = append(seq, input...)
	for _, id := range gen {
		seq = append(seq, id)
		if cfg.EOSTokenID != NoToken && id == cfg.EOSTokenID {
			break
		}
	}
	return seq, nil
}

// ResolveSpecialTokens fills ids missing from st with the runtime's own
// special tokens, read from /props. Runtimes without /props leave st as is.
func (s *LlamaServer) ResolveSpecialTokens(ctx context.Context, st SpecialTokens) (SpecialTokens, error) {
	if st.BOS != NoToken && st.EOS != NoToken {
		return st, nil
	}
	var props propsResponse
	if err := s.get(ctx, "/props", &props); err != nil {
		var re *RuntimeError
		if errors.As(err, &re) && re.Status == http.StatusNotFound {
			return st, nil
		}
		return st, err
	}
	for _, f := range []struct {
		text string
		dst  *int
	}{{props.BOSToken, &st.BOS}, {props.EOSToken, &st.EOS}} {
		if *f.dst != NoToken || f.text == "" {
			continue
		}
		var tr tokenizeResponse
		if err := s.post(ctx, "/tokenize", tokenizeRequest{Content: f.text}, &tr); err != nil {
			return st, err
		}
		if len(tr.Tokens) == 1 {
			*f.dst = tr.Tokens[0]
		}
	}
	return st, nil
}

// Close stops the spawned process, if this client owns one.
func (s *LlamaServer) Close() error {
	s.proc.stop()
	return nil
}

func (s *LlamaServer) post(ctx context.Context, path string, in, out any) error {
	resp, err := s.do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(path, resp.Body, out)
}

func (s *LlamaServer) get(ctx context.Context, path string, out any) error {
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(path, resp.Body, out)
}

// stream posts in and hands every "data:" event to fn until fn returns
// false or the body ends.
func (s *LlamaServer) stream(ctx context.Context, path string, in any, fn func(completionChunk) bool) error {
	resp, err := s.do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			// a cut-off line is never complete JSON
			line = ""
		}
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:"); ok {
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return nil
			}
			var c completionChunk
			if jerr := json.Unmarshal([]byte(data), &c); jerr != nil {
				return fmt.Errorf("llama-server %s: decode event: %w", path, jerr)
			}
			if len(c.Error) > 0 && string(c.Error) != "null" {
				return &RuntimeError{Path: path, Status: resp.StatusCode, Body: string(c.Error)}
			}
			if !fn(c) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func (s *LlamaServer) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &RuntimeError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

func decodeBody(path string, r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("llama-server %s: decode response: %w", path, err)
	}
	return nil
}

// RuntimeError is a non-2xx answer from the runtime.
type RuntimeError struct {
	Path   string
	Status int
	Body   string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("llama-server %s: http %d: %s", e.Path, e.Status, e.Body)
}

// IsRuntimeError reports whether err came from a runtime HTTP failure.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}
