// Package deploy uploads a packaged model archive and provisions a managed
// inference endpoint serving it.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/ledger"
	"inferd/internal/objstore"
	"inferd/pkg/types"
)

var (
	// ErrMissingArtifact is returned when the local archive does not exist.
	ErrMissingArtifact = errors.New("model archive not found")
	// ErrNoRole is returned when no execution role is configured.
	ErrNoRole = errors.New("execution role ARN is not set")
	// ErrUpload wraps storage failures while uploading the archive.
	ErrUpload = errors.New("upload failed")
	// ErrHosting wraps failures while provisioning the endpoint.
	ErrHosting = errors.New("endpoint provisioning failed")
)

// Host provisions an endpoint and blocks until it serves.
type Host interface {
	Deploy(ctx context.Context, d EndpointDescriptor) (types.Endpoint, error)
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, run ledger.Run) (string, error)
}

// Result is a successful deployment.
type Result struct {
	RunID    string
	Artifact types.Artifact
	Endpoint types.Endpoint
}

// Launcher runs one deployment: upload, describe, provision.
type Launcher struct {
	cfg    config.Deploy
	store  objstore.Uploader
	host   Host
	ledger Recorder
	log    zerolog.Logger

	open  func(name string) (io.ReadCloser, int64, error)
	now   func() time.Time
	newID func() string
}

// NewLauncher wires a Launcher. rec may be nil to skip the ledger.
func NewLauncher(cfg config.Deploy, store objstore.Uploader, host Host, rec Recorder, log zerolog.Logger) *Launcher {
	return &Launcher{
		cfg:    cfg,
		store:  store,
		host:   host,
		ledger: rec,
		log:    log,
		open:   openArchive,
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
}

func openArchive(name string) (io.ReadCloser, int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if st.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", name)
	}
	return f, st.Size(), nil
}

// Run performs the deployment. It never panics: collaborator errors and
// panics are logged and returned.
func (l *Launcher) Run(ctx context.Context) (res Result, err error) {
	artifact := types.Artifact{Bucket: l.cfg.Bucket, Key: l.cfg.Key}
	recorded := false
	var run ledger.Run
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deployment aborted: %v", r)
		}
		if err != nil {
			l.log.Error().Err(err).Str("endpoint", l.cfg.EndpointName).Msg("deployment failed")
		}
		if recorded {
			l.record(ctx, run, err)
		}
	}()

	body, size, oerr := l.open(l.cfg.Archive)
	if oerr != nil {
		return res, fmt.Errorf("%s: %w", l.cfg.Archive, ErrMissingArtifact)
	}
	defer body.Close()
	if strings.TrimSpace(l.cfg.RoleARN) == "" {
		return res, ErrNoRole
	}

	recorded = true
	run = ledger.Run{ID: l.newID(), Endpoint: l.cfg.EndpointName, ArtifactURL: artifact.URL(), StartedAt: l.now()}
	res.RunID = run.ID
	res.Artifact = artifact

	l.log.Info().Str("archive", l.cfg.Archive).Int64("bytes", size).Str("url", artifact.URL()).Msg("uploading model archive")
	if uerr := l.store.Upload(ctx, artifact.Bucket, artifact.Key, body); uerr != nil {
		return res, fmt.Errorf("%w: %s: %w", ErrUpload, artifact.URL(), uerr)
	}

	desc := NewDescriptor(l.cfg, artifact, run.ID)
	l.log.Info().
		Str("endpoint", desc.EndpointName).
		Str("model", desc.ModelName).
		Str("instance_type", desc.InstanceType).
		Int32("instance_count", desc.InstanceCount).
		Msg("deploying model to endpoint")
	ep, herr := l.host.Deploy(ctx, desc)
	if herr != nil {
		return res, fmt.Errorf("%w: %w", ErrHosting, herr)
	}
	res.Endpoint = ep
	l.log.Info().Str("endpoint", ep.Name).Str("arn", ep.ARN).Msg("model deployed")
	return res, nil
}

func (l *Launcher) record(ctx context.Context, run ledger.Run, err error) {
	if l.ledger == nil {
		return
	}
	run.FinishedAt = l.now()
	run.Status = ledger.StatusSucceeded
	if err != nil {
		run.Status = ledger.StatusFailed
		run.Error = err.Error()
	}
	if _, rerr := l.ledger.Record(context.WithoutCancel(ctx), run); rerr != nil {
		l.log.Warn().Err(rerr).Str("run", run.ID).Msg("ledger record failed")
	}
}
