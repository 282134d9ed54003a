// Package artifact makes sure the model directory is present on local disk,
// mirroring it from object storage when it is not.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/internal/objstore"
)

var (
	// ErrNoSource is returned when the directory is empty and no bucket is configured.
	ErrNoSource = errors.New("model directory is empty and no storage bucket is configured")
	// ErrNoObjects is returned when the storage prefix lists nothing.
	ErrNoObjects = errors.New("no objects under storage prefix")
	// ErrUnsafeKey is returned for keys that would land outside the model directory.
	ErrUnsafeKey = errors.New("object key escapes model directory")
)

// Store is the storage surface the fetcher needs.
type Store interface {
	objstore.Lister
	objstore.Downloader
}

// Fetcher mirrors Bucket/Prefix into a local directory.
type Fetcher struct {
	Store  Store
	Bucket string
	Prefix string
	Log    zerolog.Logger
}

// Result describes what EnsureLocal did.
type Result struct {
	Skipped bool
	Files   int
	Bytes   int64
}

// EnsureLocal fetches the model into dir unless dir already holds anything.
//
// Presence is judged by "directory is non-empty", not by a manifest: a
// download that failed half way leaves a directory this check treats as
// complete on the next start.
func (f *Fetcher) EnsureLocal(ctx context.Context, dir string) (Result, error) {
	present, err := fsutil.DirNonEmpty(dir)
	if err != nil {
		return Result{}, fmt.Errorf("inspect %s: %w", dir, err)
	}
	if present {
		f.Log.Info().Str("dir", dir).Msg("model directory present, skipping fetch")
		return Result{Skipped: true}, nil
	}
	if f.Bucket == "" || f.Store == nil {
		return Result{}, ErrNoSource
	}

	objs, err := f.Store.List(ctx, f.Bucket, f.Prefix)
	if err != nil {
		return Result{}, err
	}
	var res Result
	for _, o := range objs {
		if strings.HasSuffix(o.Key, "/") {
			// folder placeholder
			continue
		}
		local, err := localPath(dir, f.Prefix, o.Key)
		if err != nil {
			return res, err
		}
		if err := f.download(ctx, o.Key, local); err != nil {
			return res, err
		}
		res.Files++
		res.Bytes += o.Size
		f.Log.Debug().Str("key", o.Key).Str("path", local).Int64("bytes", o.Size).Msg("fetched object")
	}
	if res.Files == 0 {
		return res, fmt.Errorf("%w: s3://%s/%s", ErrNoObjects, f.Bucket, f.Prefix)
	}
	f.Log.Info().Str("dir", dir).Int("files", res.Files).Int64("bytes", res.Bytes).Msg("model fetched")
	return res, nil
}

func (f *Fetcher) download(ctx context.Context, key, local string) error {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", local, err)
	}
	out, err := os.Create(local)
	if err != nil {
		return err
	}
	if err := f.Store.Download(ctx, f.Bucket, key, out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// localPath maps an object key under prefix to its mirrored path in dir.
func localPath(dir, prefix, key string) (string, error) {
	rel := strings.TrimPrefix(key, prefix)
	rel = strings.TrimLeft(rel, "/")
	if rel == "" {
		rel = path.Base(key)
	}
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if !fsutil.WithinDir(dir, p) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeKey, key)
	}
	return p, nil
}
