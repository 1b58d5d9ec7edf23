//go:build linux

package backend

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mmapBackend maps the whole target file shared across the process and has
// its workers execute Ops as plain memory copies against the mapping. The
// mapping is torn down in Close only after every worker has exited.
type mmapBackend struct {
	*workerPool
	f      *os.File
	mem    []byte
	direct bool
	pgSize int64
}

func newMmap(f *os.File, opts Options) (Backend, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("mmap engine needs a positive file size, got %d", opts.Size)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(opts.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}
	b := &mmapBackend{
		f:      f,
		mem:    mem,
		direct: opts.Direct,
		pgSize: int64(os.Getpagesize()),
	}
	b.workerPool = newWorkerPool(opts.Jobs, opts.Backlog, b.exec)
	return b, nil
}

func (b *mmapBackend) exec(op *Op) {
	end := op.Off + int64(len(op.Buf))
	if op.Off < 0 || end > int64(len(b.mem)) {
		op.Res = -int32(unix.EINVAL)
		return
	}
	if op.Kind == OpRead {
		copy(op.Buf, b.mem[op.Off:end])
	} else {
		copy(b.mem[op.Off:end], op.Buf)
	}
	op.Res = int32(len(op.Buf))
	if b.direct {
		b.writeback(op.Off, int64(len(op.Buf)))
	}
}

// writeback approximates O_DIRECT for the touched range: flush it to the
// device synchronously, then hint the kernel to drop the cached pages.
// msync wants a page-aligned range, so the range is widened to page
// boundaries first.
func (b *mmapBackend) writeback(off, n int64) {
	lo := off &^ (b.pgSize - 1)
	hi := (off + n + b.pgSize - 1) &^ (b.pgSize - 1)
	if hi > int64(len(b.mem)) {
		hi = int64(len(b.mem))
	}
	if err := unix.Msync(b.mem[lo:hi], unix.MS_SYNC); err != nil {
		return
	}
	_ = unix.Fadvise(int(b.f.Fd()), lo, hi-lo, unix.FADV_DONTNEED)
}

func (b *mmapBackend) Close() error {
	b.shutdown()
	return unix.Munmap(b.mem)
}
