package backend

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncBackend executes Ops with blocking positioned read/write syscalls.
// It is the correctness baseline the other engines are validated against.
type syncBackend struct {
	*workerPool
	f *os.File
}

func newSync(f *os.File, opts Options) (Backend, error) {
	b := &syncBackend{f: f}
	b.workerPool = newWorkerPool(opts.Jobs, opts.Backlog, b.exec)
	return b, nil
}

func (b *syncBackend) exec(op *Op) {
	fd := int(b.f.Fd())
	var n int
	var err error
	for {
		if op.Kind == OpRead {
			n, err = unix.Pread(fd, op.Buf, op.Off)
		} else {
			n, err = unix.Pwrite(fd, op.Buf, op.Off)
		}
		if !isEINTR(err) {
			break
		}
	}
	op.Res = errnoResult(n, err)
}

func (b *syncBackend) Close() error {
	b.shutdown()
	return nil
}
