//go:build linux

package run

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/pepyakin/holebench/pkg/config"
)

const directFlag = unix.O_DIRECT

// preallocate backs the whole file with real (zeroed) blocks, so the
// unpopulated remainder reads as zeros instead of holes.
func preallocate(f *os.File, cfg *config.Config) error {
	var mode uint32
	if cfg.FallocZeroRange {
		mode |= unix.FALLOC_FL_ZERO_RANGE
	}
	if cfg.FallocKeepSize {
		mode |= unix.FALLOC_FL_KEEP_SIZE
	}
	return unix.Fallocate(int(f.Fd()), mode, 0, int64(cfg.Size))
}
