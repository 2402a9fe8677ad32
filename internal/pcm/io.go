package pcm

import (
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"unsafe"
)

// Sample is any fixed-width sample type that can back an interleaved buffer.
type Sample interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~float32
}

// AsBytes reinterprets a sample slice as raw bytes without copying.
func AsBytes[T Sample](s []T) []byte {
	if len(s) == 0 {
		return nil
	}

	var zero T

	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// Write writes interleaved frames to a playback stream and returns the number of bytes written.
// Trailing bytes that do not form a whole frame are ignored.
func (p *PCM) Write(data []byte) (int, error) {
	if p.flags&PCM_IN != 0 {
		return 0, errors.New("cannot write to a capture device")
	}

	n, err := p.transfer(SNDRV_PCM_IOCTL_WRITEI_FRAMES, data)

	return int(p.FramesToBytes(n)), err
}

// Read fills data with interleaved frames from a capture stream and returns the number of bytes read.
func (p *PCM) Read(data []byte) (int, error) {
	if p.flags&PCM_IN == 0 {
		return 0, errors.New("cannot read from a playback device")
	}

	n, err := p.transfer(SNDRV_PCM_IOCTL_READI_FRAMES, data)

	return int(p.FramesToBytes(n)), err
}

func (p *PCM) transfer(req uintptr, data []byte) (uint32, error) {
	if !p.IsReady() {
		return 0, syscall.EBADF
	}

	frames := p.BytesToFrames(uint32(len(data)))
	if frames == 0 {
		return 0, nil
	}

	defer runtime.KeepAlive(data)

	switch p.State() {
	case SNDRV_PCM_STATE_SETUP, SNDRV_PCM_STATE_XRUN:
		if err := p.Prepare(); err != nil {
			return 0, err
		}
	}

	base := uintptr(unsafe.Pointer(&data[0]))

	var done uint32
	for done < frames {
		xfer := sndXferi{
			Buf:    base + uintptr(p.FramesToBytes(done)),
			Frames: sndPcmUframesT(frames - done),
		}

		err := ioctl(p.file.Fd(), req, uintptr(unsafe.Pointer(&xfer)))
		if xfer.Result > 0 {
			done += uint32(xfer.Result)
		}

		if err == nil {
			continue
		}

		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ESTRPIPE) {
			if rerr := p.recover(err); rerr != nil {
				return done, rerr
			}

			continue
		}

		if p.flags&PCM_NONBLOCK != 0 && errors.Is(err, syscall.EAGAIN) {
			return done, syscall.EAGAIN
		}

		return done, fmt.Errorf("pcm transfer on %s: %w", p.path, err)
	}

	return done, nil
}
