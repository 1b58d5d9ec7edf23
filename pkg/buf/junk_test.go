package buf

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJunkDeterministic(t *testing.T) {
	a := NewJunk(4096, rand.New(rand.NewSource(7)))
	defer a.Close()
	b := NewJunk(4096, rand.New(rand.NewSource(7)))
	defer b.Close()

	rngA := rand.New(rand.NewSource(42))
	rngB := rand.New(rand.NewSource(42))
	for i := 0; i < 64; i++ {
		require.Equal(t, a.Block(rngA), b.Block(rngB), "sample %d", i)
	}
}

func TestJunkBlockShape(t *testing.T) {
	j := NewJunk(4096, rand.New(rand.NewSource(1)))
	defer j.Close()

	rng := rand.New(rand.NewSource(2))
	zero := make([]byte, 4096)
	for i := 0; i < 32; i++ {
		b := j.Block(rng)
		require.Len(t, b, 4096)
		require.False(t, bytes.Equal(zero, b), "sampled an all-zero payload")
	}
}

func TestJunkCapsLargeBlockSizes(t *testing.T) {
	j := NewJunk(1<<20, rand.New(rand.NewSource(1)))
	defer j.Close()
	require.Equal(t, 64, j.Blocks())

	small := NewJunk(4096, rand.New(rand.NewSource(1)))
	defer small.Close()
	require.Equal(t, junkBlocks, small.Blocks())
}

func TestJunkRejectsBadBlockSize(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	require.Panics(t, func() { NewJunk(0, rng) })
	require.Panics(t, func() { NewJunk(4097, rng) })
}
