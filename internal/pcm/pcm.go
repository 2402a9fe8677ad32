// Package pcm is a small tinyalsa-style binding to the kernel PCM interface.
// It opens direct hardware nodes (/dev/snd/pcmC*D*p|c) with interleaved read/write access only.
package pcm

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Format is a sample format, matching SNDRV_PCM_FORMAT_*.
type Format int32

const (
	SNDRV_PCM_FORMAT_INVALID  Format = -1
	SNDRV_PCM_FORMAT_S8       Format = 0
	SNDRV_PCM_FORMAT_U8       Format = 1
	SNDRV_PCM_FORMAT_S16_LE   Format = 2
	SNDRV_PCM_FORMAT_S24_LE   Format = 6
	SNDRV_PCM_FORMAT_S32_LE   Format = 10
	SNDRV_PCM_FORMAT_FLOAT_LE Format = 14
	SNDRV_PCM_FORMAT_S24_3LE  Format = 32
)

// FormatNames maps the supported formats to their ALSA names.
var FormatNames = map[Format]string{
	SNDRV_PCM_FORMAT_S8:       "S8",
	SNDRV_PCM_FORMAT_U8:       "U8",
	SNDRV_PCM_FORMAT_S16_LE:   "S16_LE",
	SNDRV_PCM_FORMAT_S24_LE:   "S24_LE",
	SNDRV_PCM_FORMAT_S32_LE:   "S32_LE",
	SNDRV_PCM_FORMAT_FLOAT_LE: "FLOAT_LE",
	SNDRV_PCM_FORMAT_S24_3LE:  "S24_3LE",
}

func (f Format) String() string {
	if name, ok := FormatNames[f]; ok {
		return name
	}

	return fmt.Sprintf("Format(%d)", int32(f))
}

// State is the kernel stream state, matching SNDRV_PCM_STATE_*.
type State int32

const (
	SNDRV_PCM_STATE_OPEN         State = 0
	SNDRV_PCM_STATE_SETUP        State = 1
	SNDRV_PCM_STATE_PREPARED     State = 2
	SNDRV_PCM_STATE_RUNNING      State = 3
	SNDRV_PCM_STATE_XRUN         State = 4
	SNDRV_PCM_STATE_DRAINING     State = 5
	SNDRV_PCM_STATE_PAUSED       State = 6
	SNDRV_PCM_STATE_SUSPENDED    State = 7
	SNDRV_PCM_STATE_DISCONNECTED State = 8
)

// Flag modifies how a stream is opened.
type Flag uint32

const (
	// PCM_OUT opens a playback stream.
	PCM_OUT Flag = 0
	// PCM_IN opens a capture stream.
	PCM_IN Flag = 0x10000000
	// PCM_NORESTART reports underruns to the caller instead of re-preparing inside Write.
	PCM_NORESTART Flag = 0x00000002
	// PCM_MONOTONIC requests CLOCK_MONOTONIC timestamps.
	PCM_MONOTONIC Flag = 0x00000004
	// PCM_NONBLOCK makes I/O return EAGAIN instead of blocking.
	PCM_NONBLOCK Flag = 0x00000010
)

const (
	paramAccess     = 0
	paramFormat     = 1
	paramSubformat  = 2
	paramSampleBits = 8
	paramChannels   = 10
	paramRate       = 11
	paramPeriodSize = 13
	paramPeriods    = 15
	paramTickTime   = 19

	intervalInteger = 1 << 2

	accessRWInterleaved = 3

	syncPtrHWSync   = 1 << 0
	syncPtrAppl     = 1 << 1
	syncPtrAvailMin = 1 << 2
)

// ErrNotRunning is returned by HTimestamp when the stream is not running.
var ErrNotRunning = errors.New("pcm: stream not running")

// Config holds the hardware and software parameters of a stream.
type Config struct {
	Channels         uint32
	Rate             uint32
	PeriodSize       uint32
	PeriodCount      uint32
	Format           Format
	StartThreshold   uint32
	StopThreshold    uint32
	SilenceThreshold uint32
	SilenceSize      uint32
	AvailMin         uint32
}

// PCM is an open hardware stream.
type PCM struct {
	file       *os.File
	path       string
	config     Config
	flags      Flag
	bufferSize uint32
	subdevice  uint32
	boundary   sndPcmUframesT
	sync       sndPcmSyncPtr
	xruns      int
}

// Path returns the device node path for a card/device pair.
func Path(card, device uint, flags Flag) string {
	stream := 'p'
	if flags&PCM_IN != 0 {
		stream = 'c'
	}

	return fmt.Sprintf("/dev/snd/pcmC%dD%d%c", card, device, stream)
}

// Open opens and configures a PCM on a hardware card/device pair.
func Open(card, device uint, flags Flag, config *Config) (*PCM, error) {
	path := Path(card, device, flags)

	// Open non-blocking so a busy device cannot hang us, then restore blocking mode if requested.
	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if flags&PCM_NONBLOCK == 0 {
		fl, err := unix.FcntlInt(file.Fd(), unix.F_GETFL, 0)
		if err != nil {
			_ = file.Close()

			return nil, fmt.Errorf("fcntl F_GETFL %s: %w", path, err)
		}

		if _, err = unix.FcntlInt(file.Fd(), unix.F_SETFL, fl&^syscall.O_NONBLOCK); err != nil {
			_ = file.Close()

			return nil, fmt.Errorf("fcntl F_SETFL %s: %w", path, err)
		}
	}

	var info sndPcmInfo
	if err := ioctl(file.Fd(), SNDRV_PCM_IOCTL_INFO, uintptr(unsafe.Pointer(&info))); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("ioctl INFO %s: %w", path, err)
	}

	p := &PCM{
		file:      file,
		path:      path,
		flags:     flags,
		subdevice: info.Subdevice,
	}

	if err := p.SetConfig(config); err != nil {
		_ = p.Close()

		return nil, err
	}

	if flags&PCM_MONOTONIC != 0 {
		var arg int32 = 1 // SNDRV_PCM_TSTAMP_TYPE_MONOTONIC
		if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_TTSTAMP, uintptr(unsafe.Pointer(&arg))); err != nil {
			_ = p.Close()

			return nil, fmt.Errorf("ioctl TTSTAMP %s: %w", path, err)
		}
	}

	return p, nil
}

// IsReady reports whether the handle is open.
func (p *PCM) IsReady() bool {
	return p != nil && p.file != nil
}

// Close releases the device. It is safe to call more than once.
func (p *PCM) Close() error {
	if !p.IsReady() {
		return nil
	}

	err := p.file.Close()
	p.file = nil
	p.bufferSize = 0

	return err
}

// Config returns the configuration as refined by the driver.
func (p *PCM) Config() Config {
	return p.config
}

// BufferSize returns the ring buffer size in frames.
func (p *PCM) BufferSize() uint32 {
	return p.bufferSize
}

// Flags returns the flags the stream was opened with.
func (p *PCM) Flags() Flag {
	return p.flags
}

// Subdevice returns the subdevice the kernel assigned.
func (p *PCM) Subdevice() uint32 {
	return p.subdevice
}

// Xruns returns how many underruns or overruns were observed.
func (p *PCM) Xruns() int {
	return p.xruns
}

// FrameSize returns the size of one frame in bytes.
func (p *PCM) FrameSize() uint32 {
	if p == nil {
		return 0
	}

	return p.config.Channels * FormatBits(p.config.Format) / 8
}

// PeriodTime returns the duration of one period.
func (p *PCM) PeriodTime() time.Duration {
	if p.config.Rate == 0 {
		return 0
	}

	return time.Duration(p.config.PeriodSize) * time.Second / time.Duration(p.config.Rate)
}

// SetConfig applies hardware and software parameters. A nil config selects
// 2 channels, 48000 Hz, S16_LE, 4 periods of 1024 frames.
func (p *PCM) SetConfig(config *Config) error {
	if config == nil {
		config = &Config{
			Channels:    2,
			Rate:        48000,
			PeriodSize:  1024,
			PeriodCount: 4,
			Format:      SNDRV_PCM_FORMAT_S16_LE,
		}
	}

	p.config = *config

	hw := &sndPcmHwParams{}
	paramInit(hw)
	paramSetMask(hw, paramAccess, accessRWInterleaved)
	paramSetMask(hw, paramFormat, uint32(config.Format))
	paramSetMin(hw, paramPeriodSize, config.PeriodSize)
	paramSetInt(hw, paramChannels, config.Channels)
	paramSetInt(hw, paramPeriods, config.PeriodCount)
	paramSetInt(hw, paramRate, config.Rate)

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_HW_PARAMS, uintptr(unsafe.Pointer(hw))); err != nil {
		return fmt.Errorf("ioctl HW_PARAMS %s: %w", p.path, err)
	}

	p.config.PeriodSize = paramGetInt(hw, paramPeriodSize)
	p.config.PeriodCount = paramGetInt(hw, paramPeriods)
	p.config.Channels = paramGetInt(hw, paramChannels)
	p.config.Rate = paramGetInt(hw, paramRate)
	p.bufferSize = p.config.PeriodSize * p.config.PeriodCount

	if p.config.Channels == 0 || p.config.Rate == 0 || p.config.PeriodSize == 0 || p.config.PeriodCount == 0 {
		return fmt.Errorf("driver finalized invalid configuration (channels=%d rate=%d period=%d count=%d)",
			p.config.Channels, p.config.Rate, p.config.PeriodSize, p.config.PeriodCount)
	}

	sw := &sndPcmSwParams{
		TstampMode: 1, // SNDRV_PCM_TSTAMP_ENABLE
		PeriodStep: 1,
	}

	if p.config.AvailMin == 0 {
		p.config.AvailMin = p.config.PeriodSize
	}
	sw.AvailMin = sndPcmUframesT(p.config.AvailMin)

	if p.config.StartThreshold == 0 {
		if p.flags&PCM_IN != 0 {
			p.config.StartThreshold = 1
		} else {
			p.config.StartThreshold = p.bufferSize / 2
		}
	}
	sw.StartThreshold = sndPcmUframesT(p.config.StartThreshold)

	if p.config.StopThreshold == 0 {
		if p.flags&PCM_IN != 0 {
			p.config.StopThreshold = p.bufferSize * 10
		} else {
			p.config.StopThreshold = p.bufferSize
		}
	}
	sw.StopThreshold = sndPcmUframesT(p.config.StopThreshold)

	sw.XferAlign = sndPcmUframesT(p.config.PeriodSize / 2)
	sw.SilenceSize = sndPcmUframesT(p.config.SilenceSize)
	sw.SilenceThreshold = sndPcmUframesT(p.config.SilenceThreshold)

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_SW_PARAMS, uintptr(unsafe.Pointer(sw))); err != nil {
		return fmt.Errorf("ioctl SW_PARAMS %s: %w", p.path, err)
	}

	p.boundary = sw.Boundary

	return nil
}

// Prepare readies the stream for I/O, also used to recover from an xrun.
func (p *PCM) Prepare() error {
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_PREPARE, 0); err != nil {
		return fmt.Errorf("ioctl PREPARE %s: %w", p.path, err)
	}

	p.sync.C.AvailMin = sndPcmUframesT(p.config.AvailMin)

	return p.syncPtr(syncPtrAppl | syncPtrAvailMin)
}

// Start explicitly starts the stream, preparing it first when needed.
func (p *PCM) Start() error {
	if p.State() == SNDRV_PCM_STATE_SETUP {
		if err := p.Prepare(); err != nil {
			return err
		}
	}

	if State(p.sync.S.State) == SNDRV_PCM_STATE_RUNNING {
		return nil
	}

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_START, 0); err != nil {
		return fmt.Errorf("ioctl START %s: %w", p.path, err)
	}

	return nil
}

// Stop drops pending frames and stops the stream.
func (p *PCM) Stop() error {
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_DROP, 0); err != nil {
		return fmt.Errorf("ioctl DROP %s: %w", p.path, err)
	}

	return nil
}

// State queries the current kernel state.
func (p *PCM) State() State {
	if !p.IsReady() {
		return SNDRV_PCM_STATE_DISCONNECTED
	}

	if err := p.syncPtr(syncPtrHWSync); err != nil {
		return SNDRV_PCM_STATE_DISCONNECTED
	}

	return State(p.sync.S.State)
}

// syncPtr exchanges pointers with the kernel through SYNC_PTR.
// Without syncPtrAppl the kernel reports the current appl_ptr back instead of taking ours.
func (p *PCM) syncPtr(flags uint32) error {
	p.sync.Flags = flags
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_SYNC_PTR, uintptr(unsafe.Pointer(&p.sync))); err != nil {
		return fmt.Errorf("ioctl SYNC_PTR %s: %w", p.path, err)
	}

	return nil
}

// recover re-prepares the stream after an xrun or suspend unless PCM_NORESTART is set.
func (p *PCM) recover(err error) error {
	if errors.Is(err, syscall.EPIPE) {
		p.xruns++
	}

	if p.flags&PCM_NORESTART != 0 {
		return err
	}

	if prepErr := p.Prepare(); prepErr != nil {
		return fmt.Errorf("recover from %w: %w", err, prepErr)
	}

	return nil
}

// FormatBits returns the container width of a sample in bits.
func FormatBits(f Format) uint32 {
	switch f {
	case SNDRV_PCM_FORMAT_S32_LE, SNDRV_PCM_FORMAT_S24_LE, SNDRV_PCM_FORMAT_FLOAT_LE:
		return 32
	case SNDRV_PCM_FORMAT_S24_3LE:
		return 24
	case SNDRV_PCM_FORMAT_S16_LE:
		return 16
	case SNDRV_PCM_FORMAT_S8, SNDRV_PCM_FORMAT_U8:
		return 8
	default:
		return 0
	}
}

// FramesToBytes converts a frame count to bytes for this stream.
func (p *PCM) FramesToBytes(frames uint32) uint32 {
	return frames * p.FrameSize()
}

// BytesToFrames converts a byte count to whole frames for this stream.
func (p *PCM) BytesToFrames(bytes uint32) uint32 {
	fs := p.FrameSize()
	if fs == 0 {
		return 0
	}

	return bytes / fs
}
