package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadServerYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodel_dir: /tmp/m\nbucket: b1\nprefix: models/x\nllama:\n  bin: /opt/llama-server\n  startup_timeout: 45s\n")
	cfg, err := LoadServer(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelDir != "/tmp/m" || cfg.Bucket != "b1" || cfg.Prefix != "models/x" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Llama.Bin != "/opt/llama-server" || cfg.Llama.StartupTimeout.Std() != 45*time.Second {
		t.Fatalf("unexpected llama cfg: %+v", cfg.Llama)
	}
	// untouched fields keep defaults
	if cfg.Llama.Host != "127.0.0.1" || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadServerJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","model_dir":"/m","device":"cpu","cors":{"enabled":true,"origins":["*"]}}`)
	cfg, err := LoadServer(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelDir != "/m" || cfg.Device != "cpu" || !cfg.CORS.Enabled || len(cfg.CORS.Origins) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadDeployTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "bucket=\"my-bucket\"\nendpoint_name=\"ep\"\ninstance_count=2\n[framework]\ntransformers=\"4.40.0\"\n")
	cfg, err := LoadDeploy(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bucket != "my-bucket" || cfg.EndpointName != "ep" || cfg.InstanceCount != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Framework.Transformers != "4.40.0" || cfg.Framework.PyTorch != "2.1.1" {
		t.Fatalf("unexpected framework: %+v", cfg.Framework)
	}
}

func TestDefaults(t *testing.T) {
	s, err := LoadServer("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Addr != "0.0.0.0:8080" || s.ModelDir != "./model" {
		t.Fatalf("unexpected server defaults: %+v", s)
	}
	dp, err := LoadDeploy("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if dp.Bucket != "deepseek-models" || dp.InstanceType != "ml.g4dn.xlarge" || dp.InstanceCount != 1 || dp.EndpointName != "deepseek-endpoint" {
		t.Fatalf("unexpected deploy defaults: %+v", dp)
	}
	if dp.Framework.Transformers != "4.37.0" || dp.Framework.PyTorch != "2.1.1" || dp.Framework.Python != "py310" {
		t.Fatalf("unexpected framework defaults: %+v", dp.Framework)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SAGEMAKER_BUCKET", "override-bucket")
	t.Setenv("MODEL_S3_BUCKET", "srv-bucket")
	t.Setenv("MODEL_S3_PREFIX", "p/")
	t.Setenv("LLAMA_THREADS", "6")
	dp, err := LoadDeploy("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if dp.Bucket != "override-bucket" {
		t.Fatalf("bucket override not applied: %q", dp.Bucket)
	}
	s, err := LoadServer("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Bucket != "srv-bucket" || s.Prefix != "p/" || s.Llama.Threads != 6 {
		t.Fatalf("server env not applied: %+v", s)
	}
}

func TestLoadErrors(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := LoadServer(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := LoadDeploy(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if err := decodeFile("", &Server{}); err == nil {
		t.Fatalf("expected error on empty path")
	}
}

func TestDurationsInEveryFormat(t *testing.T) {
	d := t.TempDir()
	cases := []struct {
		name, body string
	}{
		{"deploy.json", `{"wait_timeout":"45m"}`},
		{"deploy.toml", "wait_timeout = \"45m\"\n"},
		{"deploy.yaml", "wait_timeout: 45m\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadDeploy(writeTempFile(t, d, tc.name, tc.body))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.WaitTimeout.Std() != 45*time.Minute {
				t.Fatalf("wait_timeout=%v", cfg.WaitTimeout)
			}
		})
	}

	s, err := LoadServer(writeTempFile(t, d, "srv.json", `{"llama":{"startup_timeout":"90s"}}`))
	if err != nil || s.Llama.StartupTimeout.Std() != 90*time.Second {
		t.Fatalf("startup_timeout=%v err=%v", s.Llama.StartupTimeout, err)
	}
	s, err = LoadServer(writeTempFile(t, d, "srv.toml", "[llama]\nstartup_timeout = \"2m\"\n"))
	if err != nil || s.Llama.StartupTimeout.Std() != 2*time.Minute {
		t.Fatalf("startup_timeout=%v err=%v", s.Llama.StartupTimeout, err)
	}
}

func TestDurationParse(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`1500000000`)); err != nil || d.Std() != 1500*time.Millisecond {
		t.Fatalf("nanoseconds: %v err=%v", d, err)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	if err := d.UnmarshalJSON([]byte(`true`)); err == nil {
		t.Fatalf("expected error for bool")
	}
	if b, _ := Duration(30 * time.Minute).MarshalText(); string(b) != "30m0s" {
		t.Fatalf("marshal=%s", b)
	}
}
