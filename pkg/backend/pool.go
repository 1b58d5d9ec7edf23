package backend

import (
	"runtime"
	"sync"
	"time"
)

// workerPool is the submission/completion plumbing shared by the mmap and
// sync engines: a bounded submission channel fanned out to Jobs workers and
// a bounded completion channel fanning back in. Both channels hold backlog
// entries, so neither a Submit below capacity nor a worker forwarding a
// completion during shutdown can ever block.
type workerPool struct {
	sq chan *Op
	cq chan *Op
	wg sync.WaitGroup

	inflight int
	cap      int
}

// newWorkerPool starts jobs workers, each looping: receive an Op, stamp it
// submitted, run exec, stamp it retired, forward it. A closed submission
// channel is the normal shutdown signal.
func newWorkerPool(jobs, backlog int, exec func(*Op)) *workerPool {
	p := &workerPool{
		sq:  make(chan *Op, backlog),
		cq:  make(chan *Op, backlog),
		cap: backlog,
	}
	for i := 0; i < jobs; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			// Workers spend their life in blocking syscalls; pinning them
			// keeps one kernel thread per job as configured.
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			for op := range p.sq {
				op.Submitted = time.Now()
				exec(op)
				op.Retired = time.Now()
				p.cq <- op
			}
		}()
	}
	return p
}

func (p *workerPool) Full() bool {
	return p.inflight == p.cap
}

func (p *workerPool) Submit(op *Op) {
	if p.inflight == p.cap {
		panic("backend: Submit called on a full backend")
	}
	p.sq <- op
	p.inflight++
}

func (p *workerPool) Wait() *Op {
	if p.inflight == 0 {
		return nil
	}
	op := <-p.cq
	p.inflight--
	return op
}

// shutdown closes the submission side and joins the workers. Any Ops still
// queued are executed and parked on the buffered completion channel.
func (p *workerPool) shutdown() {
	close(p.sq)
	p.wg.Wait()
	close(p.cq)
}
