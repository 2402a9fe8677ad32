package alsahal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gen2brain/alsahal/internal/pcm"
)

// HardwareConfig is the operating point a PCM is opened with.
type HardwareConfig struct {
	Channels       uint32
	Rate           uint32
	PeriodSize     uint32
	PeriodCount    uint32
	Format         SampleFormat
	StartThreshold uint32
	StopThreshold  uint32
}

// FrameSize returns the size of one hardware frame in bytes.
func (c HardwareConfig) FrameSize() int {
	return int(c.Channels) * c.Format.Bytes()
}

// Fixed operating points.
var (
	OutputConfig = HardwareConfig{
		Channels:       2,
		Rate:           48000,
		PeriodSize:     512,
		PeriodCount:    8,
		Format:         FormatS16,
		StartThreshold: 512 * 2,
	}
	InputConfig = HardwareConfig{
		Channels:       2,
		Rate:           48000,
		PeriodSize:     1024,
		PeriodCount:    4,
		Format:         FormatS16,
		StartThreshold: 1,
		StopThreshold:  1024 * 4,
	}
	SCOConfig = HardwareConfig{
		Channels:    1,
		Rate:        8000,
		PeriodSize:  256,
		PeriodCount: 4,
		Format:      FormatS16,
	}
)

// PCM is an open hardware stream.
type PCM interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	// HTimestamp returns the frames available to the application and the time of the
	// last hardware pointer update. It fails when the stream is not running.
	HTimestamp() (uint32, time.Time, error)
	// BufferSize returns the ring buffer size in frames.
	BufferSize() uint32
	Close() error
}

// Backend opens endpoints.
type Backend interface {
	Open(ep Endpoint, cfg HardwareConfig) (PCM, error)
}

// ALSA is the kernel-backed Enumerator and Backend.
type ALSA struct {
	// Dir is the device directory, /dev/snd when empty.
	Dir    string
	Logger *slog.Logger
}

// NewALSA returns the default backend over /dev/snd.
func NewALSA(logger *slog.Logger) *ALSA {
	return &ALSA{Dir: "/dev/snd", Logger: logger}
}

func (a *ALSA) dir() string {
	if a.Dir == "" {
		return "/dev/snd"
	}

	return a.Dir
}

// Endpoints queries every PCM node. Nodes that cannot be opened are skipped.
func (a *ALSA) Endpoints() ([]Endpoint, error) {
	nodes, err := pcm.Nodes(a.dir())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", a.dir(), err)
	}

	eps := make([]Endpoint, 0, len(nodes))
	for _, node := range nodes {
		ep, err := a.Lookup(node)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Debug("Skipping node", "node", node, "error", err)
			}

			continue
		}

		eps = append(eps, ep)
	}

	return eps, nil
}

// Lookup queries one node by name.
func (a *ALSA) Lookup(node string) (Endpoint, error) {
	info, err := pcm.Info(filepath.Join(a.dir(), node))
	if err != nil {
		return Endpoint{}, err
	}

	dir := Output
	if info.Capture {
		dir = Input
	}

	return Endpoint{
		Node:      node,
		Card:      info.Card,
		Device:    info.Device,
		Direction: dir,
		ID:        info.ID,
		Name:      info.Name,
		Subname:   info.Subname,
	}, nil
}

// Open opens the endpoint. Playback streams report underruns instead of restarting.
func (a *ALSA) Open(ep Endpoint, cfg HardwareConfig) (PCM, error) {
	flags := pcm.PCM_OUT | pcm.PCM_NORESTART
	if ep.Direction == Input {
		flags = pcm.PCM_IN
	}

	p, err := pcm.Open(ep.Card, ep.Device, flags, &pcm.Config{
		Channels:       cfg.Channels,
		Rate:           cfg.Rate,
		PeriodSize:     cfg.PeriodSize,
		PeriodCount:    cfg.PeriodCount,
		Format:         cfg.Format.pcmFormat(),
		StartThreshold: cfg.StartThreshold,
		StopThreshold:  cfg.StopThreshold,
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}
