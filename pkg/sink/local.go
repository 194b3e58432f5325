package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalConfig captures the parameters for the local filesystem sink.
type LocalConfig struct {
	// Dir is the directory dumps are written to. It is created if missing.
	Dir string `mapstructure:"dir"`
}

// Local writes dumps as files in a directory.
type Local struct {
	dir string
}

// NewLocal creates a filesystem sink and verifies the directory is writable.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	info, err := os.Stat(cfg.Dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create output directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat output directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("output path %s is not a directory", cfg.Dir)
	}

	probe := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("output directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Local{dir: filepath.Clean(cfg.Dir)}, nil
}

// Write stores blob as <dir>/<name>. The file is written under a temporary
// name, synced and then hard-linked into place, so a reader never sees a
// partial dump and an existing file is never replaced.
func (s *Local) Write(ctx context.Context, blob []byte, name string) (uri string, err error) {
	defer func() { observe("local", err) }()

	if err := validateName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}

	target := filepath.Join(s.dir, name)
	if _, statErr := os.Stat(target); statErr == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, target)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.partial")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, target)
		}
		return "", fmt.Errorf("link to %s: %w", target, err)
	}
	_ = os.Remove(tmpName)

	return "file://" + target, nil
}

// Dir returns the directory dumps are written to.
func (s *Local) Dir() string {
	return s.dir
}
