package alsahal

import (
	"fmt"
	"slices"
)

// MaxEffects is the capacity of a capture effect chain.
const MaxEffects = 3

// AudioBuffer is a mono 16-bit buffer passed to effects. FrameCount is an in/out value: on
// entry it is the most frames the effect may consume (input) or produce (output); on return
// the effect sets how many it actually consumed or produced.
type AudioBuffer struct {
	FrameCount int
	S16        []int16
}

// Effect processes one 10 ms quantum of capture audio.
//
// Every effect in a chain is handed the same input and output buffers, and each sees the
// frame counts left by the previous one. Only the last effect's output is used, so a chain of
// more than one effect works only when the effects cooperate on a single output.
type Effect interface {
	Process(in, out *AudioBuffer) error
}

// effectChain runs effects over fixed quanta and carries surplus output between reads.
type effectChain struct {
	effects []Effect

	raw       scratch[int16]
	rawFrames int

	out         scratch[int16]
	carryFrames int
}

func (c *effectChain) len() int {
	return len(c.effects)
}

func (c *effectChain) add(e Effect) error {
	if len(c.effects) >= MaxEffects {
		return wrapf(ErrUnsupported, "effect chain full (%d)", MaxEffects)
	}

	c.effects = append(c.effects, e)

	return nil
}

func (c *effectChain) remove(e Effect) error {
	if len(c.effects) == 0 {
		return wrapf(ErrUnsupported, "effect chain empty")
	}

	i := slices.Index(c.effects, e)
	if i < 0 {
		return wrapf(ErrInvalidArgument, "effect not attached")
	}

	c.effects = slices.Delete(c.effects, i, i+1)

	return nil
}

// reset drops buffered audio but keeps the effects.
func (c *effectChain) reset() {
	c.raw.release()
	c.rawFrames = 0
	c.out.release()
	c.carryFrames = 0
}

// process fills dst with processed frames in quanta of q frames, reading raw frames with read.
// read must fill its argument completely or fail.
func (c *effectChain) process(dst []int16, q int, read func([]int16) (int, error)) (int, error) {
	n := len(dst)
	rq := (n + q - 1) / q * q
	wr := 0

	if c.carryFrames > 0 {
		held := c.out.buf[:c.carryFrames]
		wr = copy(dst, held)
		c.carryFrames = copy(held, held[wr:])
	}

	for wr < n {
		if c.rawFrames < rq {
			raw := c.raw.ensure(max(rq, c.raw.len()))

			got, err := read(raw[c.rawFrames:rq])
			if err != nil {
				return wr, err
			}

			c.rawFrames += got
		}

		out := c.out.ensure(max(q, c.out.len()))

		in := AudioBuffer{FrameCount: q, S16: c.raw.buf[:q]}
		res := AudioBuffer{FrameCount: q, S16: out[:q]}

		for _, e := range c.effects {
			if err := e.Process(&in, &res); err != nil {
				return wr, fmt.Errorf("%w: effect: %w", ErrReadFailure, err)
			}
		}

		consumed := min(max(in.FrameCount, 0), c.rawFrames)
		produced := min(max(res.FrameCount, 0), q)

		if consumed == 0 && produced == 0 {
			return wr, wrapf(ErrReadFailure, "effect chain made no progress")
		}

		raw := c.raw.buf
		c.rawFrames = copy(raw, raw[consumed:c.rawFrames])

		if produced == 0 {
			continue
		}

		k := copy(dst[wr:], out[:produced])
		wr += k
		c.carryFrames = copy(out, out[k:produced])
	}

	return wr, nil
}
