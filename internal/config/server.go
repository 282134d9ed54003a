package config

import "time"

// Server holds runtime parameters for inferd.
type Server struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelDir     string `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	Bucket       string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Prefix       string `json:"prefix" yaml:"prefix" toml:"prefix"`
	Device       string `json:"device" yaml:"device" toml:"device"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	NATSURL      string `json:"nats_url" yaml:"nats_url" toml:"nats_url"`
	NATSSubject  string `json:"nats_subject" yaml:"nats_subject" toml:"nats_subject"`

	Llama Llama `json:"llama" yaml:"llama" toml:"llama"`
	CORS  CORS  `json:"cors" yaml:"cors" toml:"cors"`
}

// Llama configures the llama-server runtime process.
type Llama struct {
	Bin            string   `json:"bin" yaml:"bin" toml:"bin"`
	Host           string   `json:"host" yaml:"host" toml:"host"`
	CtxSize        int      `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads        int      `json:"threads" yaml:"threads" toml:"threads"`
	ExtraArgs      []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
	StartupTimeout Duration `json:"startup_timeout" yaml:"startup_timeout" toml:"startup_timeout"`
}

// CORS is opt-in; disabled means no CORS middleware is installed.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// DefaultServer returns the built-in defaults: all interfaces, port 8080,
// model directory ./model.
func DefaultServer() Server {
	return Server{
		Addr:         "0.0.0.0:8080",
		ModelDir:     "./model",
		LogLevel:     "info",
		MaxBodyBytes: 1 << 20,
		NATSSubject:  "inferd.events",
		Llama: Llama{
			Bin:            "llama-server",
			Host:           "127.0.0.1",
			StartupTimeout: Duration(5 * time.Minute),
		},
	}
}

func (c *Server) applyEnv() {
	c.Addr = envStr("INFERD_ADDR", c.Addr)
	c.ModelDir = envStr("INFERD_MODEL_DIR", c.ModelDir)
	c.Bucket = envStr("MODEL_S3_BUCKET", c.Bucket)
	c.Prefix = envStr("MODEL_S3_PREFIX", c.Prefix)
	c.Device = envStr("INFERD_DEVICE", c.Device)
	c.LogLevel = envStr("INFERD_LOG_LEVEL", c.LogLevel)
	c.NATSURL = envStr("INFERD_NATS_URL", c.NATSURL)
	c.Llama.Bin = envStr("LLAMA_SERVER_BIN", c.Llama.Bin)
	c.Llama.Threads = envInt("LLAMA_THREADS", c.Llama.Threads)
}
