package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
)

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Serve text generation from a model fetched from object storage",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg)
			return serve(cmd.Context(), cfg, newLogger(cfg.LogLevel, os.Stderr))
		},
	}
	def := config.DefaultServer()
	root.Flags().StringVar(&configPath, "config", "", "Config file (.yaml, .json or .toml)")
	root.Flags().String("addr", def.Addr, "HTTP listen address (defaults INFERD_ADDR or 0.0.0.0:8080)")
	root.Flags().String("model-dir", def.ModelDir, "Local model directory (defaults INFERD_MODEL_DIR or ./model)")
	root.Flags().String("log-level", def.LogLevel, "Log level: debug|info|warn|error (defaults INFERD_LOG_LEVEL or info)")
	root.Flags().String("device", "", "Compute device: auto|cpu|cuda (defaults INFERD_DEVICE or auto)")
	root.Flags().String("cors-origins", "", "Comma-separated allowed CORS origins; enables CORS when set")
	return root
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Server) {
	str := func(name string, dst *string) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	str("addr", &cfg.Addr)
	str("model-dir", &cfg.ModelDir)
	str("log-level", &cfg.LogLevel)
	str("device", &cfg.Device)
	if f := cmd.Flags().Lookup("cors-origins"); f != nil && f.Changed {
		cfg.CORS.Enabled = true
		cfg.CORS.Origins = splitCSV(f.Value.String())
	}
}

// splitCSV splits a comma-separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "inferd").Logger()
}
