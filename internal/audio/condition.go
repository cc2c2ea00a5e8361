package audio

// Conditioning defaults.
const (
	DefaultDCAlpha = 0.001
	DefaultFadeLen = 2048
)

// Conditioner removes slow DC drift from a chunk sequence and fades in the
// first chunk. One Conditioner serves one utterance; it is not safe for
// concurrent use.
type Conditioner struct {
	Alpha   float64
	FadeLen int

	est     float64
	started bool
}

// NewConditioner returns a Conditioner with the default alpha and fade length.
func NewConditioner() *Conditioner {
	return &Conditioner{Alpha: DefaultDCAlpha, FadeLen: DefaultFadeLen}
}

// Offset is the current DC estimate.
func (c *Conditioner) Offset() float64 { return c.est }

// Process conditions chunk in place and returns it. The running estimate is
// updated with the chunk mean before subtraction:
//
//	est = est*(1-alpha) + mean*alpha
//
// The first chunk is multiplied by a linear ramp from 0 to 1 over
// min(FadeLen, len(chunk)) samples.
func (c *Conditioner) Process(chunk []float32) []float32 {
	if len(chunk) == 0 {
		return chunk
	}
	var sum float64
	for _, s := range chunk {
		sum += float64(s)
	}
	mean := sum / float64(len(chunk))
	c.est = c.est*(1-c.Alpha) + mean*c.Alpha
	off := float32(c.est)
	for i := range chunk {
		chunk[i] -= off
	}
	if !c.started {
		c.started = true
		n := min(c.FadeLen, len(chunk))
		for i := 0; i < n; i++ {
			chunk[i] *= rampAt(i, n)
		}
	}
	return chunk
}

// rampAt is sample i of n evenly spaced points from 0 to 1 inclusive.
func rampAt(i, n int) float32 {
	if n <= 1 {
		return 0
	}
	return float32(float64(i) / float64(n-1))
}
