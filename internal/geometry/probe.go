package geometry

import (
	"context"
	"fmt"
	"os"
)

// TempDirProbe reports whether the loader's spool directory is writable.
// It is a health probe: it must stay cheap and must never touch the
// network.
type TempDirProbe struct {
	dir string
}

// NewTempDirProbe builds a probe for dir, falling back to the operating
// system default when dir is empty, matching NewLoader.
func NewTempDirProbe(dir string) *TempDirProbe {
	if dir == "" {
		dir = os.TempDir()
	}
	return &TempDirProbe{dir: dir}
}

// Name identifies the probe in health responses.
func (p *TempDirProbe) Name() string { return "temp_storage" }

// Check writes and removes a probe file in the spool directory.
func (p *TempDirProbe) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp(p.dir, tempFilePrefix+"probe-*")
	if err != nil {
		return fmt.Errorf("temp dir not writable: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("temp dir not writable: %w", err)
	}
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("temp file not removable: %w", err)
	}
	return nil
}
