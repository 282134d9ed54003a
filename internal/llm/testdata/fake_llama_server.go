package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// Tiny stand-in for llama-server: every word of the input is one token and
// /completion always answers ", world!" followed by eos (id 2), streamed one
// token per event when asked to.
func main() {
	var model, host, port, ngl, ctk, ctv, ctx, threads string
	flag.StringVar(&model, "m", "", "model path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.StringVar(&ngl, "ngl", "0", "gpu layers")
	flag.StringVar(&ctk, "cache-type-k", "f16", "k cache type")
	flag.StringVar(&ctv, "cache-type-v", "f16", "v cache type")
	flag.StringVar(&ctx, "c", "0", "context size")
	flag.StringVar(&threads, "t", "0", "threads")
	flag.Parse()
	if os.Getenv("FAKE_LLAMA_FAIL") != "" {
		fmt.Fprintln(os.Stderr, "failed to load model", model)
		os.Exit(1)
	}

	vocab := []string{"<unk>", "<s>", "</s>", "Hello", ",", " world", "!"}
	lookup := func(w string) int {
		for i, v := range vocab {
			if v == w {
				return i
			}
		}
		return 0
	}
	tokenize := func(s string) []int {
		var out []int
		for _, w := range []string{"<s>", "</s>", "Hello", ",", " world", "!"} {
			if strings.Contains(s, w) {
				out = append(out, lookup(w))
			}
		}
		return out
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/props", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"bos_token": "<s>", "eos_token": "</s>"})
	})
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content    string `json:"content"`
			AddSpecial bool   `json:"add_special"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		toks := tokenize(req.Content)
		if req.AddSpecial {
			toks = append([]int{1}, toks...)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tokens": toks})
	})
	mux.HandleFunc("/detokenize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tokens []int `json:"tokens"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var b strings.Builder
		for _, id := range req.Tokens {
			if id >= 0 && id < len(vocab) {
				b.WriteString(vocab[id])
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"content": b.String()})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gen := []int{4, 5, 6, 2}
		if !req.Stream {
			_ = json.NewEncoder(w).Encode(map[string]any{"content": ", world!", "tokens": gen, "stop_type": "eos"})
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for i, id := range gen {
			text := ""
			if id != 2 {
				text = vocab[id]
			}
			b, _ := json.Marshal(map[string]any{"content": text, "tokens": []int{id}, "stop": i == len(gen)-1})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
	})

	srv := &http.Server{Addr: fmt.Sprintf("%s:%s", host, port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(c)
}
