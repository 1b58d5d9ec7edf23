package run

import (
	"fmt"
	"os"

	"github.com/pepyakin/holebench/pkg/config"
)

// openTarget opens (and, unless the layout is being reused, sizes) the
// benchmark's target file. With skip_layout the file is taken as-is; the
// configured validation has already checked it exists and is big enough.
func openTarget(cfg *config.Config) (*os.File, error) {
	flags := os.O_RDWR
	if !cfg.SkipLayout {
		flags |= os.O_CREATE
	}
	if cfg.Direct {
		flags |= directFlag
	}
	f, err := os.OpenFile(cfg.Filename, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Filename, err)
	}
	if cfg.SkipLayout {
		return f, nil
	}
	if err := f.Truncate(int64(cfg.Size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate %s to %d: %w", cfg.Filename, cfg.Size, err)
	}
	if cfg.NoSparse || cfg.FallocZeroRange || cfg.FallocKeepSize {
		if err := preallocate(f, cfg); err != nil {
			f.Close()
			return nil, fmt.Errorf("preallocate %s: %w", cfg.Filename, err)
		}
	}
	return f, nil
}
