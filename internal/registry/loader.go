package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"inferd/internal/common/fsutil"
)

// ErrNoWeights is returned when a model directory holds no *.gguf file.
var ErrNoWeights = errors.New("no *.gguf weights found")

// Weights is one weights file found under a model directory.
type Weights struct {
	// Name is the path relative to the model directory, slash separated.
	Name string
	// Path is the absolute file path.
	Path string
	Size int64
}

// LoadDir walks dir for *.gguf files, sorted by relative name.
// Multimodal projector files (mmproj*) are not weights and are skipped.
func LoadDir(dir string) ([]Weights, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	var out []Weights
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		if !strings.HasSuffix(name, ".gguf") || strings.HasPrefix(name, "mmproj") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(abs, p)
		out = append(out, Weights{Name: filepath.ToSlash(rel), Path: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Primary returns the weights file llama-server should be pointed at: the
// first by name, which for split models is shard 00001.
func Primary(dir string) (Weights, error) {
	ws, err := LoadDir(dir)
	if err != nil {
		return Weights{}, err
	}
	if len(ws) == 0 {
		return Weights{}, fmt.Errorf("%w in %s", ErrNoWeights, dir)
	}
	return ws[0], nil
}
