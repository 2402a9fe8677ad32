package alsahal

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gen2brain/alsahal/internal/mixer"
)

// Mixer path names, in the order MixerPaths reports them.
var mixerPathNames = []string{"speaker", "headphone", "dock", "main-mic", "headset-mic"}

// MixerConfig maps mixer paths to switch controls of one card.
type MixerConfig struct {
	Card uint `toml:"card"`
	// Paths lists, per path name, the boolean controls that carry it,
	// e.g. speaker = ["Speaker Playback Switch"].
	Paths map[string][]string `toml:"paths"`
}

func (c MixerConfig) validate() error {
	for name := range c.Paths {
		if !slices.Contains(mixerPathNames, name) {
			return wrapf(ErrInvalidArgument, "unknown mixer path %q", name)
		}
	}

	return nil
}

// Switcher toggles named switch controls on a card.
type Switcher interface {
	SetSwitch(name string, on bool) error
	Close() error
}

// MixerApplier is the default RouteApplier. It turns off the controls of paths a route pair
// leaves unused, then turns on the controls of the paths it enables. Without configured
// paths it only logs.
type MixerApplier struct {
	logger *slog.Logger
	open   func(card uint) (Switcher, error)

	mu  sync.Mutex
	cfg MixerConfig
}

// NewMixerApplier returns an applier over the control nodes in dir.
func NewMixerApplier(dir string, cfg MixerConfig, logger *slog.Logger) *MixerApplier {
	return newMixerApplier(cfg, logger, func(card uint) (Switcher, error) {
		m, err := mixer.Open(dir, card)
		if err != nil {
			return nil, err
		}

		return m, nil
	})
}

func newMixerApplier(cfg MixerConfig, logger *slog.Logger, open func(uint) (Switcher, error)) *MixerApplier {
	return &MixerApplier{logger: logger, open: open, cfg: cfg}
}

// SetConfig replaces the path table.
func (a *MixerApplier) SetConfig(cfg MixerConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg = cfg
}

func (a *MixerApplier) ApplyRoutes(out, in Route) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	enabled := MixerPaths(out, in)
	a.logger.Info("Mixer paths", "paths", enabled)

	if len(a.cfg.Paths) == 0 {
		return nil
	}

	sw, err := a.open(a.cfg.Card)
	if err != nil {
		return fmt.Errorf("mixer card %d: %w", a.cfg.Card, err)
	}
	defer sw.Close()

	var errs []error

	for _, on := range []bool{false, true} {
		for _, path := range mixerPathNames {
			if slices.Contains(enabled, path) != on {
				continue
			}

			for _, ctl := range a.cfg.Paths[path] {
				a.logger.Debug("Setting switch", "path", path, "control", ctl, "on", on)

				if err := sw.SetSwitch(ctl, on); err != nil {
					errs = append(errs, fmt.Errorf("path %s: %w", path, err))
				}
			}
		}
	}

	return errors.Join(errs...)
}
