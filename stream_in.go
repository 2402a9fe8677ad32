package alsahal

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-audio/audio"
)

// InputStream captures mono S16LE audio at the rate it was opened with. It implements io.Reader.
type InputStream struct {
	dev    *Device
	logger *slog.Logger
	rate   uint32

	mu       sync.Mutex
	closed   bool
	standby  bool
	pcm      PCM
	hw       HardwareConfig
	endpoint Endpoint

	resampler *Resampler

	// raw holds one hardware period; period holds its first channel widened to 16 bits,
	// of which the last framesIn frames are not consumed yet.
	raw      scratch[byte]
	period   scratch[int16]
	framesIn int

	samples scratch[int16]
	effects effectChain
}

// captureProvider feeds the pulling resampler from the hardware.
type captureProvider struct {
	s *InputStream
}

// NextBuffer reads one hardware period when no frames are held and returns up to frames of
// the held ones.
func (c captureProvider) NextBuffer(frames int) ([]int16, error) {
	s := c.s
	size := int(s.hw.PeriodSize)

	if s.framesIn == 0 {
		raw := s.raw.ensure(size * s.hw.FrameSize())

		if _, err := s.pcm.Read(raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrReadFailure, s.endpoint.Node, err)
		}

		firstChannel(s.period.ensure(size), raw, int(s.hw.Channels), s.hw.Format)
		s.framesIn = size
	}

	held := s.period.buf[size-s.framesIn : size]

	return held[:min(frames, len(held))], nil
}

// ReleaseBuffer retires frames returned by the last NextBuffer.
func (c captureProvider) ReleaseBuffer(frames int) {
	c.s.framesIn -= min(frames, c.s.framesIn)
}

// readFrames fills dst with client-rate frames or fails.
func (s *InputStream) readFrames(dst []int16) (int, error) {
	p := captureProvider{s: s}

	if s.resampler != nil {
		return s.resampler.ResampleFrom(p, dst)
	}

	n := 0
	for n < len(dst) {
		buf, err := p.NextBuffer(len(dst) - n)
		if err != nil {
			return n, err
		}

		k := copy(dst[n:], buf)
		p.ReleaseBuffer(k)
		n += k
	}

	return n, nil
}

// Read fills p with captured audio, opening hardware first when the stream is in standby.
// Attached effects run over 10 ms quanta. Failures sleep for the duration of p.
func (s *InputStream) Read(p []byte) (int, error) {
	d := s.dev

	d.mu.Lock()
	s.mu.Lock()

	if s.closed || d.closed {
		s.mu.Unlock()
		d.mu.Unlock()

		return 0, ErrClosed
	}

	if s.standby {
		if err := d.startInput(s); err != nil {
			s.mu.Unlock()
			d.mu.Unlock()

			return s.backOff(p, err)
		}
	}

	mute := d.micMute

	d.mu.Unlock()

	n, err := s.read(p)

	s.mu.Unlock()

	if err != nil {
		readFailures.Inc()
		s.logger.Warn("Read failed", "node", s.endpoint.Node, "error", err)

		return s.backOff(p, err)
	}

	if mute {
		clear(p[:n])
	}

	return n, nil
}

func (s *InputStream) backOff(p []byte, err error) (int, error) {
	frames := len(p) / 2
	s.dev.sleep(time.Duration(int64(frames) * int64(time.Second) / int64(s.rate)))

	return 0, err
}

// read must be called with s.mu held and the stream active.
func (s *InputStream) read(p []byte) (int, error) {
	frames := len(p) / 2
	dst := s.samples.ensure(max(frames, s.samples.len()))[:frames]

	var (
		n   int
		err error
	)

	if s.effects.len() > 0 {
		n, err = s.effects.process(dst, int(s.rate)/100, s.readFrames)
	} else {
		n, err = s.readFrames(dst)
	}

	if err != nil {
		return 0, err
	}

	return len(encodeS16(p, dst[:n], FormatS16)), nil
}

// Standby releases the hardware. The next Read opens it again.
func (s *InputStream) Standby() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()

	return nil
}

// Close puts the stream into standby. Further reads fail with ErrClosed.
func (s *InputStream) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()
	s.closed = true

	return nil
}

// stop must be called with the device mutex and s.mu held. It is a no-op in standby.
func (s *InputStream) stop() {
	if s.standby {
		return
	}

	if err := s.pcm.Close(); err != nil {
		s.logger.Warn("Closing PCM failed", "node", s.endpoint.Node, "error", err)
	}

	s.pcm = nil
	s.resampler = nil
	s.framesIn = 0
	s.raw.release()
	s.period.release()
	s.samples.release()
	s.effects.reset()
	s.standby = true

	if s.dev.activeIn == s {
		s.dev.activeIn = nil
	}

	s.dev.streamStopped(Input, s.endpoint)
}

// Active reports whether the stream holds hardware.
func (s *InputStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return !s.standby
}

// AddEffect appends an effect to the capture chain. A full chain returns ErrUnsupported.
func (s *InputStream) AddEffect(e Effect) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.effects.add(e)
}

// RemoveEffect detaches an effect, keeping the order of the others.
func (s *InputStream) RemoveEffect(e Effect) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.effects.remove(e)
}

// SetParameters applies stream parameters. Only routing is understood; the input marker bit
// is accepted and stripped.
func (s *InputStream) SetParameters(kv string) error {
	v, ok := parseParams(kv)[ParamRouting]
	if !ok {
		return nil
	}

	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return wrapf(ErrInvalidArgument, "routing %q", v)
	}

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dev.setRoute(Input, Route(n)&^InBit, s)

	return nil
}

// GetParameters returns the requested stream parameters.
func (s *InputStream) GetParameters(keys string) string {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	params := map[string]string{}
	if requested(keys, ParamRouting) {
		params[ParamRouting] = strconv.FormatUint(uint64(s.dev.inRoute|InBit), 10)
	}

	return formatParams(params)
}

// BufferSize returns the preferred read size in bytes.
func (s *InputStream) BufferSize() int {
	return inputPeriodFrames(s.rate) * 2
}

// SampleRate returns the client rate.
func (s *InputStream) SampleRate() int {
	return int(s.rate)
}

// SetSampleRate always fails; the rate is fixed at open.
func (s *InputStream) SetSampleRate(rate int) error {
	return wrapf(ErrUnsupported, "input rate is fixed at %d", s.rate)
}

// Format returns the client format.
func (s *InputStream) Format() *audio.Format {
	return &audio.Format{NumChannels: 1, SampleRate: int(s.rate)}
}

// Hardware returns the operating point and endpoint of an active stream.
func (s *InputStream) Hardware() (HardwareConfig, Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hw, s.endpoint, !s.standby
}
