package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/foundry/releasestats/internal/core/services"
)

// OutputDir writes rendered artifacts into an existing directory.
type OutputDir struct {
	dir string
}

// NewOutputDir validates that dir exists and is a directory. It is never
// created implicitly.
func NewOutputDir(dir string) (*OutputDir, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: output directory %s", services.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("checking output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output path %s is not a directory", dir)
	}
	return &OutputDir{dir: dir}, nil
}

// WriteFile streams r into name, computing its SHA256 on the way.
// It writes to a temp file first then does an atomic rename, so readers
// never see a partially written chart.
func (o *OutputDir) WriteFile(name string, r io.Reader) (string, int64, error) {
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", 0, fmt.Errorf("invalid output file name %q", name)
	}

	tmp, err := os.CreateTemp(o.dir, ".tmp-"+name+"-*")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Ensure cleanup on failure.
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hw := newHashingWriter(tmp)
	if _, err := io.Copy(hw, r); err != nil {
		return "", 0, fmt.Errorf("streaming to file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return "", 0, fmt.Errorf("setting file mode: %w", err)
	}

	if err := os.Rename(tmpPath, o.Path(name)); err != nil {
		return "", 0, fmt.Errorf("moving %s into place: %w", name, err)
	}

	success = true
	return hw.Hash(), hw.Size(), nil
}

// Path returns the full path for name.
func (o *OutputDir) Path(name string) string {
	return filepath.Join(o.dir, name)
}

// List returns the sorted names of regular files with the given extension.
func (o *OutputDir) List(ext string) ([]string, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, fmt.Errorf("reading output directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if filepath.Ext(e.Name()) == ext {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
