package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constChunk(n int, v float32) []float32 {
	c := make([]float32, n)
	for i := range c {
		c[i] = v
	}
	return c
}

func TestDCEstimateConvergesToConstantOffset(t *testing.T) {
	const bias = 0.2
	c := NewConditioner()
	var last []float32
	for i := 0; i < 20000; i++ {
		last = c.Process(constChunk(64, bias))
	}
	assert.InDelta(t, bias, c.Offset(), 1e-6)
	for _, s := range last {
		assert.InDelta(t, 0, s, 1e-5)
	}
}

func TestDCEstimateUpdateRule(t *testing.T) {
	c := NewConditioner()
	c.FadeLen = 0
	out := c.Process([]float32{1, 1, 1, 1})
	assert.InDelta(t, 0.001, c.Offset(), 1e-12)
	assert.InDelta(t, 0.999, out[0], 1e-6)

	c.Process([]float32{1, 1})
	assert.InDelta(t, 0.001*0.999+0.001, c.Offset(), 1e-12)
}

func TestFadeInFirstChunkOnly(t *testing.T) {
	c := NewConditioner()
	c.Alpha = 0 // isolate the ramp
	first := c.Process(constChunk(4096, 0.5))
	assert.Equal(t, float32(0), first[0])
	for i := 1; i < DefaultFadeLen; i++ {
		require.GreaterOrEqual(t, first[i], first[i-1], "ramp must be non-decreasing at %d", i)
	}
	assert.InDelta(t, 0.5, first[DefaultFadeLen-1], 1e-6)
	assert.InDelta(t, 0.5, first[4095], 1e-6)

	second := c.Process(constChunk(16, 0.5))
	assert.InDelta(t, 0.5, second[0], 1e-6, "later chunks are not faded")
}

func TestFadeShortChunk(t *testing.T) {
	c := NewConditioner()
	c.Alpha = 0
	out := c.Process(constChunk(5, 1))
	assert.Equal(t, []float32{0, 0.25, 0.5, 0.75, 1}, out)

	c = NewConditioner()
	assert.Empty(t, c.Process(nil))
	one := c.Process([]float32{1})
	assert.False(t, math.IsNaN(float64(one[0])))
}
