package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/device"
)

// ProcessConfig configures the spawned llama-server.
type ProcessConfig struct {
	Bin            string
	Host           string
	CtxSize        int
	Threads        int
	ExtraArgs      []string
	StartupTimeout time.Duration
}

// EventFunc receives runtime lifecycle events.
type EventFunc func(name string, fields map[string]any)

// llamaProcess is one running llama-server serving a single weights file.
type llamaProcess struct {
	cmd     *exec.Cmd
	baseURL string
	pid     int
	exited  chan struct{}
	waitErr error
	stderr  *tailBuffer
	log     zerolog.Logger
	emit    EventFunc
}

// serverArgs builds the llama-server command line for a capability.
func serverArgs(cfg ProcessConfig, weights, host string, port int, capab device.Capability) []string {
	args := []string{
		"-m", weights,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
	if cfg.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(cfg.CtxSize))
	}
	if cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(cfg.Threads))
	}
	if capab.Device == device.CUDA {
		args = append(args, "-ngl", "999")
	} else {
		args = append(args, "-ngl", "0")
	}
	kv := "f32"
	if capab.Precision == device.Float16 {
		kv = "f16"
	}
	args = append(args, "--cache-type-k", kv, "--cache-type-v", kv)
	return append(args, cfg.ExtraArgs...)
}

// startProcess spawns llama-server and blocks until /health reports ready,
// the process exits, the startup timeout passes, or ctx is done.
func startProcess(ctx context.Context, cfg ProcessConfig, weights string, capab device.Capability, client *http.Client, log zerolog.Logger, emit EventFunc) (*llamaProcess, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := pickFreePort(host)
	if err != nil {
		return nil, err
	}
	bin := cfg.Bin
	if bin == "" {
		bin = "llama-server"
	}
	cmd := exec.Command(bin, serverArgs(cfg, weights, host, port, capab)...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p := &llamaProcess{
		cmd:     cmd,
		baseURL: fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port))),
		pid:     cmd.Process.Pid,
		exited:  make(chan struct{}),
		stderr:  stderr,
		log:     log,
		emit:    emit,
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	log.Info().Str("weights", weights).Int("pid", p.pid).Str("url", p.baseURL).Str("capability", capab.String()).Msg("llama-server started")
	emit("spawn_start", map[string]any{"pid": p.pid, "url": p.baseURL})

	timeout := cfg.StartupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if err := p.waitReady(ctx, client, timeout); err != nil {
		p.stop()
		return nil, err
	}
	log.Info().Int("pid", p.pid).Msg("llama-server ready")
	emit("spawn_ready", map[string]any{"pid": p.pid, "url": p.baseURL})
	return p, nil
}

func (p *llamaProcess) waitReady(ctx context.Context, client *http.Client, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		if p.healthy(ctx, client) {
			return nil
		}
		select {
		case <-p.exited:
			p.emit("spawn_exit", map[string]any{"pid": p.pid, "before_ready": true})
			return fmt.Errorf("llama-server exited before ready: %v; stderr tail: %s", p.waitErr, p.stderr.String())
		case <-deadline.C:
			p.emit("spawn_timeout", map[string]any{"pid": p.pid})
			return fmt.Errorf("llama-server not ready after %s: %s", timeout, p.baseURL)
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// healthy reports whether /health answers 200. llama-server answers 503
// while the model is still loading.
func (p *llamaProcess) healthy(ctx context.Context, client *http.Client) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// stop terminates the process: SIGTERM first, SIGKILL after a grace period.
func (p *llamaProcess) stop() {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return
	}
	select {
	case <-p.exited:
		return
	default:
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.exited:
	case <-time.After(5 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	p.log.Info().Int("pid", p.pid).Msg("llama-server stopped")
	p.emit("spawn_stop", map[string]any{"pid": p.pid})
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append([]byte(nil), t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
