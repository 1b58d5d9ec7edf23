//go:build !linux

package backend

import (
	"fmt"
	"os"
)

func newUring(f *os.File, opts Options) (Backend, error) {
	return nil, fmt.Errorf("the uring engine is only supported on Linux")
}

func newMmap(f *os.File, opts Options) (Backend, error) {
	return nil, fmt.Errorf("the mmap engine is only supported on Linux")
}
