package frame

// Downsampler retains one of every N arriving animation frames.
// Not safe for concurrent use; Pipeline serializes access.
type Downsampler struct {
	every   int64
	counter int64
}

// NewDownsampler creates a Downsampler keeping every nth frame.
// n < 1 is treated as 1 (keep everything).
func NewDownsampler(n int) *Downsampler {
	if n < 1 {
		n = 1
	}
	return &Downsampler{every: int64(n)}
}

// Admit advances the arrival counter and reports whether this frame is kept.
// With n=3 the kept positions are 3, 6, 9, ...
func (d *Downsampler) Admit() bool {
	d.counter++
	return d.counter%d.every == 0
}

// Count returns the number of frames seen.
func (d *Downsampler) Count() int64 {
	return d.counter
}
