package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/artifact"
	"inferd/internal/device"
	"inferd/internal/httpapi"
	"inferd/internal/llm"
	"inferd/internal/manager"
	"inferd/internal/objstore"
)

// memStore is an in-memory bucket implementing the fetcher's storage surface.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	downloads int
}

func (s *memStore) List(_ context.Context, _ string, prefix string) ([]objstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []objstore.Object
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, objstore.Object{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *memStore) Download(_ context.Context, _ string, key string, w io.WriterAt) error {
	s.mu.Lock()
	b := s.objects[key]
	s.downloads++
	s.mu.Unlock()
	_, err := w.WriteAt(b, 0)
	return err
}

// buildFakeLlama builds the fake llama-server shared with the llm package tests.
func buildFakeLlama(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake_llama_server")
	cmd := exec.Command("go", "build", "-o", bin, "../llm/testdata/fake_llama_server.go")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake server: %v: %s", err, string(out))
	}
	return bin
}

// startServer runs the full startup against store and returns an HTTP test
// server over the ready manager.
func startServer(t *testing.T, modelDir string, store artifact.Store, bin string, pub manager.EventPublisher) (*httptest.Server, *manager.Manager) {
	t.Helper()
	mgr := manager.New(manager.Config{
		ModelDir: modelDir,
		Fetcher:  &artifact.Fetcher{Store: store, Bucket: "models", Prefix: "deepseek/", Log: zerolog.Nop()},
		Loader: &llm.LlamaLoader{
			Process: llm.ProcessConfig{Bin: bin, StartupTimeout: 10 * time.Second},
			Log:     zerolog.Nop(),
		},
		Detector:  device.Detector{Override: "cpu"},
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func postJSON(t *testing.T, url, body string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}
