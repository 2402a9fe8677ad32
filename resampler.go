package alsahal

import (
	"math"

	"github.com/ik5/audpbx/utils"
)

// Provider supplies interleaved 16-bit frames to a pulling resampler.
type Provider interface {
	// NextBuffer returns up to frames held frames. It may return fewer, but never zero without an error.
	NextBuffer(frames int) ([]int16, error)
	// ReleaseBuffer retires frames from the front of the last returned buffer.
	ReleaseBuffer(frames int)
}

// Resampler is a streaming Catmull-Rom rate converter over interleaved 16-bit frames.
// The phase accumulator is integral, so long runs do not drift.
type Resampler struct {
	inRate   uint64
	outRate  uint64
	channels int

	// window holds frames t-1, t, t+1, t+2; output is interpolated between t and t+1.
	window [4][2]float32
	primed bool
	need   int
	phase  uint64
}

// NewResampler creates a resampler for 1 or 2 channels.
func NewResampler(inRate, outRate uint32, channels int) (*Resampler, error) {
	if inRate == 0 || outRate == 0 {
		return nil, wrapf(ErrInvalidArgument, "resampler rates %d -> %d", inRate, outRate)
	}

	if channels < 1 || channels > 2 {
		return nil, wrapf(ErrInvalidArgument, "resampler channels %d", channels)
	}

	r := &Resampler{inRate: uint64(inRate), outRate: uint64(outRate), channels: channels}
	r.Reset()

	return r, nil
}

// Reset drops all history.
func (r *Resampler) Reset() {
	r.window = [4][2]float32{}
	r.primed = false
	r.need = 3
	r.phase = 0
}

// InRate returns the input rate.
func (r *Resampler) InRate() uint32 { return uint32(r.inRate) }

// OutRate returns the output rate.
func (r *Resampler) OutRate() uint32 { return uint32(r.outRate) }

// Channels returns the number of interleaved channels.
func (r *Resampler) Channels() int { return r.channels }

// MaxOutput returns the most frames a single call can produce from in input frames.
func (r *Resampler) MaxOutput(in int) int {
	return int(uint64(in)*r.outRate/r.inRate) + 1
}

func (r *Resampler) push(frame []int16) {
	if !r.primed {
		for i := range r.window {
			for c := 0; c < r.channels; c++ {
				r.window[i][c] = float32(frame[c])
			}
		}

		r.primed = true
	} else {
		r.window[0], r.window[1], r.window[2] = r.window[1], r.window[2], r.window[3]
		for c := 0; c < r.channels; c++ {
			r.window[3][c] = float32(frame[c])
		}
	}

	r.need--
}

func (r *Resampler) emit(frame []int16) {
	x := float32(r.phase) / float32(r.outRate)
	w := &r.window

	for c := 0; c < r.channels; c++ {
		v := utils.CubicInterpolate(w[0][c], w[1][c], w[2][c], w[3][c], x)
		frame[c] = clamp16(math.Round(float64(v)))
	}

	r.phase += r.inRate
	for r.phase >= r.outRate {
		r.phase -= r.outRate
		r.need++
	}
}

// Resample converts as much of in as fits into out and returns the frames consumed and produced.
// Both slices are interleaved; partial trailing frames are ignored.
func (r *Resampler) Resample(in, out []int16) (consumed, produced int) {
	ch := r.channels
	inFrames := len(in) / ch
	outFrames := len(out) / ch

	for {
		for r.need == 0 {
			if produced == outFrames {
				return consumed, produced
			}

			r.emit(out[produced*ch : produced*ch+ch])
			produced++
		}

		if consumed == inFrames {
			return consumed, produced
		}

		r.push(in[consumed*ch : consumed*ch+ch])
		consumed++
	}
}

// ResampleFrom fills out by pulling frames from p. It returns early only on a provider error.
func (r *Resampler) ResampleFrom(p Provider, out []int16) (int, error) {
	ch := r.channels
	outFrames := len(out) / ch
	produced := 0

	for produced < outFrames {
		want := int(uint64(outFrames-produced)*r.inRate/r.outRate) + r.need
		if want < 1 {
			want = 1
		}

		buf, err := p.NextBuffer(want)
		if err != nil {
			return produced, err
		}

		if len(buf) < ch {
			return produced, ErrReadFailure
		}

		c, n := r.Resample(buf, out[produced*ch:])
		p.ReleaseBuffer(c)
		produced += n
	}

	return produced, nil
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
