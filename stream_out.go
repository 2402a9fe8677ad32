package alsahal

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-audio/audio"
)

// Client side format of output streams.
const (
	OutputSampleRate = 48000
	OutputChannels   = 2
	outputFrameSize  = OutputChannels * 2
)

// OutputStream plays interleaved 48000 Hz stereo S16LE audio. It implements io.Writer.
type OutputStream struct {
	dev    *Device
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	standby  bool
	pcm      PCM
	hw       HardwareConfig
	endpoint Endpoint

	resampler *Resampler
	throttle  throttle

	samples   scratch[int16]
	resampled scratch[int16]
	converted scratch[byte]
}

// Write plays p, opening hardware first when the stream is in standby. Trailing bytes that do
// not form a whole frame are dropped.
//
// An underrun returns immediately with ErrUnderrun and no bytes written. Other failures sleep
// for the duration of p and report it as written together with the error.
func (s *OutputStream) Write(p []byte) (int, error) {
	d := s.dev

	d.mu.Lock()
	s.mu.Lock()

	if s.closed || d.closed {
		s.mu.Unlock()
		d.mu.Unlock()

		return 0, ErrClosed
	}

	if s.standby {
		if err := d.startOutput(s); err != nil {
			s.mu.Unlock()
			d.mu.Unlock()

			return s.backOff(p, err)
		}
	}

	bufferType := BufferShort
	if d.screenOff && d.activeIn == nil {
		bufferType = BufferLong
	}

	sco := d.outRoute.SCO(Output)

	d.mu.Unlock()

	err := s.write(p, bufferType, sco)

	s.mu.Unlock()

	switch {
	case err == nil:
		return len(p), nil
	case errors.Is(err, ErrUnderrun):
		return 0, err
	default:
		return s.backOff(p, err)
	}
}

// backOff sleeps for the playback time of p so a failing caller does not spin.
func (s *OutputStream) backOff(p []byte, err error) (int, error) {
	frames := len(p) / outputFrameSize
	s.dev.sleep(time.Duration(int64(frames) * int64(time.Second) / OutputSampleRate))

	return len(p), err
}

// write must be called with s.mu held and the stream active.
func (s *OutputStream) write(p []byte, bufferType BufferType, sco bool) error {
	hw := s.hw
	period := int(hw.PeriodSize)

	if !sco && bufferType != s.throttle.bufferType {
		s.throttle.setType(bufferType, period)
		writeThreshold.Set(float64(s.throttle.write))

		s.logger.Debug("Buffer type changed", "type", bufferType.String(), "threshold", s.throttle.write)
	}

	p = p[:len(p)/outputFrameSize*outputFrameSize]

	buf := p
	if s.resampler != nil || hw.Channels != OutputChannels || hw.Format != FormatS16 {
		buf = s.convert(p)
	}

	if !sco {
		kernel, slept := s.throttle.wait(s.pcm, int(hw.Rate), s.dev.sleep)
		throttleSleep.Observe(slept.Seconds())

		s.throttle.converge(kernel, period)
		currentThreshold.Set(float64(s.throttle.current))
	}

	if _, err := s.pcm.Write(buf); err != nil {
		if errors.Is(err, syscall.EPIPE) {
			underruns.Inc()
			s.logger.Warn("Underrun", "node", s.endpoint.Node)
			publish(s.dev, UnderrunEvent{Node: s.endpoint.Node, Time: time.Now()})

			return fmt.Errorf("%w: %s: %w", ErrUnderrun, s.endpoint.Node, err)
		}

		return fmt.Errorf("write %s: %w", s.endpoint.Node, err)
	}

	return nil
}

// convert reduces channels, resamples and narrows p to the hardware operating point.
func (s *OutputStream) convert(p []byte) []byte {
	hw := s.hw

	frames := decodeS16(s.samples.ensure(max(len(p)/2, s.samples.len())), p)
	if hw.Channels == 1 {
		frames = dropRightChannel(frames)
	}

	if s.resampler != nil {
		ch := int(hw.Channels)
		in := len(frames) / ch

		out := s.resampled.ensure(max(s.resampler.MaxOutput(in)*ch, s.resampled.len()))
		_, n := s.resampler.Resample(frames, out)
		frames = out[:n*ch]
	}

	return encodeS16(s.converted.ensure(max(len(frames)*hw.Format.Bytes(), s.converted.len())), frames, hw.Format)
}

// Standby releases the hardware. The next Write opens it again.
func (s *OutputStream) Standby() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()

	return nil
}

// Close puts the stream into standby. Further writes fail with ErrClosed.
func (s *OutputStream) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()
	s.closed = true

	return nil
}

// stop must be called with the device mutex and s.mu held. It is a no-op in standby.
func (s *OutputStream) stop() {
	if s.standby {
		return
	}

	if err := s.pcm.Close(); err != nil {
		s.logger.Warn("Closing PCM failed", "node", s.endpoint.Node, "error", err)
	}

	s.pcm = nil
	s.resampler = nil
	s.samples.release()
	s.resampled.release()
	s.converted.release()
	s.standby = true

	if s.dev.activeOut == s {
		s.dev.activeOut = nil
	}

	s.dev.streamStopped(Output, s.endpoint)
}

// Active reports whether the stream holds hardware.
func (s *OutputStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return !s.standby
}

// SetParameters applies stream parameters. Only routing is understood.
func (s *OutputStream) SetParameters(kv string) error {
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

	s.dev.setRoute(Output, Route(n), s)

	return nil
}

// GetParameters returns the requested stream parameters.
func (s *OutputStream) GetParameters(keys string) string {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	params := map[string]string{}
	if requested(keys, ParamRouting) {
		params[ParamRouting] = strconv.FormatUint(uint64(s.dev.outRoute), 10)
	}

	return formatParams(params)
}

// Latency returns the queued hardware latency for the current buffer type.
func (s *OutputStream) Latency() time.Duration {
	d := s.dev

	d.mu.Lock()
	defer d.mu.Unlock()

	count := ShortPeriodCount
	if d.screenOff && d.activeIn == nil && !d.outRoute.SCO(Output) {
		count = LongPeriodCount
	}

	ms := int(OutputConfig.PeriodSize) * count * 1000 / OutputSampleRate

	return time.Duration(ms) * time.Millisecond
}

// BufferSize returns the preferred write size in bytes.
func (s *OutputStream) BufferSize() int {
	return int(OutputConfig.PeriodSize) * outputFrameSize
}

// SampleRate returns the client rate.
func (s *OutputStream) SampleRate() int {
	return OutputSampleRate
}

// SetSampleRate always fails; the client rate is fixed.
func (s *OutputStream) SetSampleRate(rate int) error {
	return wrapf(ErrUnsupported, "output rate is fixed at %d", OutputSampleRate)
}

// Format returns the client format.
func (s *OutputStream) Format() *audio.Format {
	return &audio.Format{NumChannels: OutputChannels, SampleRate: OutputSampleRate}
}

// Hardware returns the operating point and endpoint of an active stream.
func (s *OutputStream) Hardware() (HardwareConfig, Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hw, s.endpoint, !s.standby
}
