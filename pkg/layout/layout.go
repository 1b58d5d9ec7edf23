// Package layout generates the set of block offsets a run populates and
// then cycles reads over. The set is a uniformly shuffled subset of every
// block-aligned offset in the file, deterministic for a given seed.
package layout

import (
	"math"
	"math/rand"
)

// Offsets returns round(N*ratio) distinct block-aligned offsets below
// size, where N = size/bs, shuffled with the given seed. The offsets not
// returned are left as holes (or zero-filled, per configuration) and are
// never targeted by I/O.
func Offsets(size, bs int64, ratio float64, seed int64) []int64 {
	n := size / bs
	offs := make([]int64, n)
	for i := range offs {
		offs[i] = int64(i) * bs
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(offs), func(i, j int) {
		offs[i], offs[j] = offs[j], offs[i]
	})
	keep := int64(math.Round(float64(n) * ratio))
	return offs[:keep]
}
