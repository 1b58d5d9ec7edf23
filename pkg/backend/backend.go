// Package backend implements the asynchronous I/O execution engines that
// drive benchmark workloads. Every engine exposes the same capacity-bounded
// submit/wait interface; completions arrive in arbitrary order and are
// correlated back to their requests through Op.UserData.
package backend

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// OpKind selects the I/O direction of an Op.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpWrite
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

// Op is a single I/O request. The buffer travels with the Op through the
// backend's channels, so exactly one side owns it at any time: the caller
// until Submit, the backend until the Op comes back out of Wait.
//
// Res holds the byte count on success and a negative errno on failure.
// UserData is caller-assigned correlation data; backends carry it through
// unchanged and never interpret it.
type Op struct {
	Kind OpKind
	Buf  []byte
	Off  int64
	Res  int32

	Created   time.Time
	Submitted time.Time
	Retired   time.Time

	UserData uint64
}

// NewRead builds a read Op targeting off. The read fills buf.
func NewRead(buf []byte, off int64) *Op {
	return &Op{Kind: OpRead, Buf: buf, Off: off, Created: time.Now()}
}

// NewWrite builds a write Op targeting off. The write consumes buf; the
// backend only ever reads from it.
func NewWrite(buf []byte, off int64) *Op {
	return &Op{Kind: OpWrite, Buf: buf, Off: off, Created: time.Now()}
}

// Err converts a failed Op's result into an error, or nil on success.
func (op *Op) Err() error {
	if op.Res >= 0 {
		return nil
	}
	return fmt.Errorf("%s at offset %d: %w", op.Kind, op.Off, syscall.Errno(-op.Res))
}

// Backend is a capacity-bounded asynchronous executor. It is driven by a
// single caller goroutine; none of the methods are safe for concurrent use.
//
// The driving loop alternates between keeping the backend full and draining
// completions:
//
//	for !b.Full() { b.Submit(nextOp()) }
//	op := b.Wait()
//
// Wait returning nil means nothing is in flight, so the loop never
// deadlocks on an empty backend.
type Backend interface {
	// Full reports whether the backend is at capacity. Submit must not be
	// called while Full returns true.
	Full() bool

	// Submit hands op to the backend for asynchronous execution. It never
	// blocks when Full() is false and panics if called at capacity.
	Submit(op *Op)

	// Wait blocks until the next completion and returns it with Res and
	// Retired populated. It returns nil immediately when no Op is in
	// flight.
	Wait() *Op

	// Close shuts the backend down: the submission side is closed, workers
	// drain and exit, and engine resources are released. In-flight Ops are
	// discarded; callers should drain with Wait first.
	Close() error
}

// Engine names a concrete backend implementation.
type Engine string

const (
	EngineUring Engine = "uring"
	EngineMmap  Engine = "mmap"
	EngineSync  Engine = "sync"
)

// ParseEngine validates an engine name from configuration.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineUring, EngineMmap, EngineSync:
		return Engine(s), nil
	}
	return "", fmt.Errorf("unknown engine %q (want uring, mmap or sync)", s)
}

// Options carries the knobs shared by all engines.
type Options struct {
	// Jobs is the number of worker threads.
	Jobs int

	// Backlog bounds the number of in-flight Ops across the whole backend.
	Backlog int

	// Depth is the kernel ring size per worker. Only the uring engine
	// reads it.
	Depth int

	// Size is the target file size in bytes. Only the mmap engine reads
	// it, to size the shared mapping.
	Size int64

	// Direct asks the mmap engine to approximate O_DIRECT by flushing and
	// dropping cached pages after every copy.
	Direct bool
}

// New constructs the requested engine over f. Engines unsupported on the
// current platform are rejected here, before any worker starts.
func New(engine Engine, f *os.File, opts Options) (Backend, error) {
	if opts.Jobs <= 0 {
		opts.Jobs = 1
	}
	if opts.Backlog <= 0 {
		return nil, fmt.Errorf("backlog must be positive, got %d", opts.Backlog)
	}
	if opts.Depth <= 0 {
		opts.Depth = opts.Backlog/opts.Jobs + 1
	}
	switch engine {
	case EngineUring:
		return newUring(f, opts)
	case EngineMmap:
		return newMmap(f, opts)
	case EngineSync:
		return newSync(f, opts)
	}
	return nil, fmt.Errorf("unknown engine %q", engine)
}

// errnoResult folds a syscall return into an Op result code.
func errnoResult(n int, err error) int32 {
	if err == nil {
		return int32(n)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return -int32(errno)
	}
	return -int32(syscall.EIO)
}

func isEINTR(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EINTR) {
		return true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return sysErr.Err == syscall.EINTR
	}
	return false
}
