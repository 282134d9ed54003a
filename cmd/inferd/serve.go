package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"inferd/internal/artifact"
	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/device"
	"inferd/internal/httpapi"
	"inferd/internal/llm"
	"inferd/internal/manager"
	"inferd/internal/objstore"
)

const shutdownTimeout = 5 * time.Second

// serve runs startup to completion, then listens until ctx is done or a
// termination signal arrives. Startup errors are returned before the
// listener is bound.
func serve(parent context.Context, cfg config.Server, log zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	modelDir, err := fsutil.ExpandHome(cfg.ModelDir)
	if err != nil {
		return err
	}

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(cfg.LogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)

	var pub manager.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := manager.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats %s: %w", cfg.NATSURL, err)
		}
		defer func() { _ = nc.Drain() }()
		pub = manager.NewNATSPublisher(nc, cfg.NATSSubject, log)
		log.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("publishing lifecycle events")
	}

	fetcher := &artifact.Fetcher{Bucket: cfg.Bucket, Prefix: cfg.Prefix, Log: log.With().Str("component", "fetch").Logger()}
	if cfg.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		fetcher.Store = objstore.NewS3FromConfig(awsCfg)
	}

	loader := &llm.LlamaLoader{
		Process: llm.ProcessConfig{
			Bin:            cfg.Llama.Bin,
			Host:           cfg.Llama.Host,
			CtxSize:        cfg.Llama.CtxSize,
			Threads:        cfg.Llama.Threads,
			ExtraArgs:      cfg.Llama.ExtraArgs,
			StartupTimeout: cfg.Llama.StartupTimeout.Std(),
		},
		Log: log.With().Str("component", "llama").Logger(),
	}
	if pub != nil {
		loader.OnEvent = func(name string, fields map[string]any) {
			pub.Publish(manager.Event{Name: name, ModelDir: modelDir, Fields: fields})
		}
	}

	mgr := manager.New(manager.Config{
		ModelDir:  modelDir,
		Fetcher:   fetcher,
		Loader:    loader,
		Detector:  device.Detector{Override: cfg.Device},
		Publisher: pub,
		Logger:    log,
	})
	defer mgr.Close()

	if err := mgr.Start(ctx); err != nil {
		return err
	}

	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model_dir", modelDir).Str("device", string(mgr.Device())).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
