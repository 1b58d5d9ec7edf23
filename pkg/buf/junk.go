package buf

import (
	"fmt"
	"math/rand"
)

const (
	// junkBlocks is the preferred number of pre-generated payload blocks.
	junkBlocks = 8192

	// junkMaxBytes caps the pool so large block sizes don't balloon it;
	// junkMinBlocks keeps sampling meaningful at the cap.
	junkMaxBytes  = 64 << 20
	junkMinBlocks = 16
)

// Junk is an immutable pool of random payload blocks, filled once from a
// seeded source and sampled cheaply at submission time. Sampling avoids
// both per-operation RNG cost and degenerate all-zero payloads that a
// smart device could compress away.
type Junk struct {
	bs     int
	blocks int
	mem    []byte
}

// NewJunk builds the pool for block size bs, drawing the payload bytes
// from rng so runs with the same seed lay out identical file contents.
func NewJunk(bs int, rng *rand.Rand) *Junk {
	if bs <= 0 || bs&(bs-1) != 0 {
		panic(fmt.Sprintf("buf: junk block size %d is not a power of two", bs))
	}
	blocks := junkBlocks
	if bs*blocks > junkMaxBytes {
		blocks = junkMaxBytes / bs
		if blocks < junkMinBlocks {
			blocks = junkMinBlocks
		}
	}
	j := &Junk{bs: bs, blocks: blocks, mem: alignedAlloc(bs * blocks)}
	rng.Read(j.mem)
	return j
}

// Block samples one payload block uniformly at random. The returned slice
// is a read-only view into the pool and stays valid until Close; callers
// must not write through it.
func (j *Junk) Block(rng *rand.Rand) []byte {
	i := rng.Intn(j.blocks)
	start := i * j.bs
	return j.mem[start : start+j.bs : start+j.bs]
}

// Blocks reports how many distinct payload blocks the pool holds.
func (j *Junk) Blocks() int {
	return j.blocks
}

// Close releases the pool. Views returned by Block become invalid.
func (j *Junk) Close() {
	if j.mem != nil {
		freeAligned(j.mem)
		j.mem = nil
	}
}
