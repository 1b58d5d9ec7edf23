//go:build linux

package backend

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/godzie44/go-uring/uring"
	"golang.org/x/sys/unix"
)

// uringBackend spreads Ops round-robin over Jobs workers, each owning an
// independent kernel ring and a bounded submission channel. Keeping the
// rings fully private to their workers avoids any cross-thread contention
// on kernel state; the only shared structure is the completion channel.
type uringBackend struct {
	sqs []chan *Op
	cq  chan *Op
	wg  sync.WaitGroup

	next     int
	inflight int
	cap      int
}

func newUring(f *os.File, opts Options) (Backend, error) {
	rings := make([]*uring.Ring, opts.Jobs)
	for i := range rings {
		r, err := uring.New(uint32(opts.Depth))
		if err != nil {
			for _, prev := range rings[:i] {
				prev.Close()
			}
			return nil, fmt.Errorf("io_uring setup (depth %d): %w", opts.Depth, err)
		}
		rings[i] = r
	}

	b := &uringBackend{
		sqs: make([]chan *Op, opts.Jobs),
		cq:  make(chan *Op, opts.Backlog),
		cap: opts.Backlog,
	}
	for i := range b.sqs {
		// Each channel holds the full backlog so a round-robined Submit
		// below capacity never blocks, however uneven the spread.
		b.sqs[i] = make(chan *Op, opts.Backlog)
		b.wg.Add(1)
		go func(ring *uring.Ring, sq chan *Op) {
			defer b.wg.Done()
			defer ring.Close()
			// The ring is driven from exactly one kernel thread.
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			uringWorker(ring, f.Fd(), opts.Depth, sq, b.cq)
		}(rings[i], b.sqs[i])
	}
	return b, nil
}

func (b *uringBackend) Full() bool {
	return b.inflight == b.cap
}

func (b *uringBackend) Submit(op *Op) {
	if b.inflight == b.cap {
		panic("backend: Submit called on a full backend")
	}
	b.sqs[b.next] <- op
	b.next = (b.next + 1) % len(b.sqs)
	b.inflight++
}

func (b *uringBackend) Wait() *Op {
	if b.inflight == 0 {
		return nil
	}
	op := <-b.cq
	b.inflight--
	return op
}

func (b *uringBackend) Close() error {
	for _, sq := range b.sqs {
		close(sq)
	}
	b.wg.Wait()
	close(b.cq)
	return nil
}

// uringWorker owns one kernel ring. Each pass drains ready completions,
// refills the ring from the submission channel, flushes, then blocks in the
// kernel for at least one completion. The receive is blocking only when the
// ring is idle, so the worker parks instead of spinning but never stalls a
// half-full ring waiting for work that may not come.
func uringWorker(ring *uring.Ring, fd uintptr, depth int, sq <-chan *Op, cq chan<- *Op) {
	pending := make(map[uint64]*Op, depth)
	var token uint64
	closed := false

	for {
		for {
			cqe, _ := ring.PeekCQE()
			if cqe == nil {
				break
			}
			op := pending[cqe.UserData]
			delete(pending, cqe.UserData)
			op.Res = cqe.Res
			op.Retired = time.Now()
			ring.SeenCQE(cqe)
			cq <- op
		}

		if closed && len(pending) == 0 {
			return
		}

		queued := 0
		for !closed && len(pending) < depth {
			var op *Op
			var ok bool
			if len(pending) == 0 {
				// Nothing in flight: park until work arrives. A closed
				// channel here is the normal shutdown signal.
				op, ok = <-sq
				if !ok {
					return
				}
			} else {
				select {
				case op, ok = <-sq:
					if !ok {
						closed = true
					}
				default:
				}
				if op == nil {
					break
				}
			}

			op.Submitted = time.Now()
			token++
			pending[token] = op

			var sqe uring.Operation
			if op.Kind == OpRead {
				sqe = uring.Read(fd, op.Buf, uint64(op.Off))
			} else {
				sqe = uring.Write(fd, op.Buf, uint64(op.Off))
			}
			if err := ring.QueueSQE(sqe, 0, token); err != nil {
				// The pending bound keeps the SQ from filling; anything
				// else here means the ring is wedged, so fail the Op.
				delete(pending, token)
				op.Res = -int32(unix.EIO)
				op.Retired = time.Now()
				cq <- op
				continue
			}
			queued++
		}

		if queued > 0 {
			for {
				if _, err := ring.Submit(); err == nil || !isEINTR(err) {
					break
				}
			}
		}

		if len(pending) > 0 {
			for {
				if _, err := ring.WaitCQEvents(1); err == nil || !isEINTR(err) {
					break
				}
			}
		}
	}
}
