// Package buf provides the page-aligned buffer pool and the random payload
// sampler shared by the layout and measurement phases. Both hand out
// blocks sized and aligned for O_DIRECT I/O, allocated once via anonymous
// mappings rather than per operation.
package buf

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Pool hands out fixed-size page-aligned buffers identified by a stable
// slab index, so an in-flight Op can reference its buffer through the
// index in UserData instead of smuggling pointers around.
//
// A checked-out index must not be released until the Op using it has been
// retired and consumed; Release while a backend still references the
// buffer is a use-after-free. Buffers are not re-zeroed on release, so a
// reused buffer shows its previous contents until overwritten.
//
// The pool is owned by the single driving goroutine and is not safe for
// concurrent use.
type Pool struct {
	bs    int
	slabs [][]byte
	free  []int
	out   []bool
}

// NewPool creates an empty pool of bs-sized buffers. Slabs are allocated
// lazily by Checkout.
func NewPool(bs int) *Pool {
	if bs <= 0 {
		panic(fmt.Sprintf("buf: non-positive block size %d", bs))
	}
	return &Pool{bs: bs}
}

// Checkout returns a free buffer and its slab index, allocating a new slab
// when the free list is empty. It never blocks; allocation exhaustion is
// fatal.
func (p *Pool) Checkout() (int, []byte) {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.out[idx] = true
		return idx, p.slabs[idx]
	}
	slab := alignedAlloc(p.bs)
	idx := len(p.slabs)
	p.slabs = append(p.slabs, slab)
	p.out = append(p.out, true)
	return idx, slab
}

// Release returns idx to the free list. Releasing an index that is not
// checked out is a caller bug and panics.
func (p *Pool) Release(idx int) {
	if idx < 0 || idx >= len(p.slabs) || !p.out[idx] {
		panic(fmt.Sprintf("buf: release of slab %d which is not checked out", idx))
	}
	p.out[idx] = false
	p.free = append(p.free, idx)
}

// Len reports how many slabs the pool has ever allocated.
func (p *Pool) Len() int {
	return len(p.slabs)
}

// Close unmaps every slab. All buffers must have been released.
func (p *Pool) Close() {
	for idx, checkedOut := range p.out {
		if checkedOut {
			panic(fmt.Sprintf("buf: close with slab %d still checked out", idx))
		}
	}
	for _, slab := range p.slabs {
		freeAligned(slab)
	}
	p.slabs = nil
	p.free = nil
	p.out = nil
}

// alignedAlloc returns a zeroed, page-aligned allocation of n bytes. An
// anonymous mapping guarantees the alignment O_DIRECT wants without any
// manual offset fixups.
func alignedAlloc(n int) []byte {
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Sprintf("buf: anonymous mmap of %d bytes: %v", n, err))
	}
	return mem
}

func freeAligned(mem []byte) {
	_ = unix.Munmap(mem)
}
