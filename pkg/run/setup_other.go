//go:build !linux

package run

import (
	"fmt"
	"os"

	"github.com/pepyakin/holebench/pkg/config"
)

const directFlag = 0

func preallocate(f *os.File, cfg *config.Config) error {
	return fmt.Errorf("preallocation is only supported on Linux")
}
