package alsahal

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/alsahal/internal/logging"
	"github.com/gen2brain/alsahal/internal/pcm"
	"github.com/pelletier/go-toml/v2"
)

// HDMIPolicy decides when the HDMI slot of a direction is wanted.
type HDMIPolicy string

const (
	// HDMIAuto wants HDMI when the route has the direction's digital bit.
	HDMIAuto   HDMIPolicy = "auto"
	HDMIAlways HDMIPolicy = "always"
	HDMINever  HDMIPolicy = "never"
)

// Wanted reports whether HDMI is wanted for a direction and route.
func (p HDMIPolicy) Wanted(dir Direction, route Route) bool {
	switch p {
	case HDMIAlways:
		return true
	case HDMINever:
		return false
	default:
		return route.Digital(dir)
	}
}

// SampleFormat is a linear PCM hardware sample format. The zero value is 16-bit.
type SampleFormat int

const (
	FormatS16 SampleFormat = iota
	FormatS8
	FormatS32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatS8:
		return "s8"
	case FormatS32:
		return "s32"
	default:
		return "s16"
	}
}

// Bits returns the sample container width.
func (f SampleFormat) Bits() int {
	switch f {
	case FormatS8:
		return 8
	case FormatS32:
		return 32
	default:
		return 16
	}
}

// Bytes returns the sample container size in bytes.
func (f SampleFormat) Bytes() int {
	return f.Bits() / 8
}

func (f SampleFormat) pcmFormat() pcm.Format {
	switch f {
	case FormatS8:
		return pcm.SNDRV_PCM_FORMAT_S8
	case FormatS32:
		return pcm.SNDRV_PCM_FORMAT_S32_LE
	default:
		return pcm.SNDRV_PCM_FORMAT_S16_LE
	}
}

// ParseSampleFormat accepts "s8", "s16" and "s32" (case-insensitive, "_le" suffix allowed).
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "_le") {
	case "s8":
		return FormatS8, nil
	case "", "s16":
		return FormatS16, nil
	case "s32":
		return FormatS32, nil
	default:
		return FormatS16, wrapf(ErrInvalidArgument, "sample format %q", s)
	}
}

// UnmarshalText falls back to 16-bit with a warning for unknown formats.
func (f *SampleFormat) UnmarshalText(text []byte) error {
	v, err := ParseSampleFormat(string(text))
	if err != nil {
		logging.GetLogger("config").Warn("Ignoring sample format, using s16", "format", string(text))
	}

	*f = v

	return nil
}

func (f SampleFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// RouteConfig holds per-class overrides.
type RouteConfig struct {
	// Node is a literal PCM node name ("pcmC1D0p") that replaces the endpoint scan.
	Node string `toml:"node"`
	// Command is run through the CommandRunner before the stream opens.
	Command string `toml:"command"`
	// Format is the hardware sample format used when this class is active.
	Format SampleFormat `toml:"format"`
}

// Config is the device configuration.
type Config struct {
	HDMI          HDMIPolicy             `toml:"hdmi"`
	ExcludeIDs    []string               `toml:"exclude_ids"`
	HDMIMatch     string                 `toml:"hdmi_match"`
	AlternateRate uint32                 `toml:"alternate_rate"`
	Output        string                 `toml:"output"`
	Input         string                 `toml:"input"`
	Routes        map[string]RouteConfig `toml:"routes"`
	Mixer         MixerConfig            `toml:"mixer"`
	Logging       logging.Config         `toml:"logging"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		HDMI:          HDMIAuto,
		ExcludeIDs:    []string{"IntelHDMI"},
		HDMIMatch:     "HDMI",
		AlternateRate: 44100,
		Routes:        map[string]RouteConfig{},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Route returns the overrides of a class, or the zero value.
func (c Config) Route(slot Slot) RouteConfig {
	return c.Routes[slot.String()]
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.HDMI {
	case HDMIAuto, HDMIAlways, HDMINever:
	default:
		return wrapf(ErrInvalidArgument, "hdmi policy %q", c.HDMI)
	}

	for name := range c.Routes {
		if _, ok := ParseSlot(name); !ok {
			return wrapf(ErrInvalidArgument, "unknown route class %q", name)
		}
	}

	if err := c.Mixer.validate(); err != nil {
		return err
	}

	for _, node := range []string{c.Output, c.Input} {
		if node != "" {
			if _, _, _, ok := pcm.ParseNode(node); !ok {
				return wrapf(ErrInvalidArgument, "node %q", node)
			}
		}
	}

	return nil
}

// LoadConfig reads a TOML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes TOML on top of DefaultConfig. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Routes == nil {
		cfg.Routes = map[string]RouteConfig{}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
