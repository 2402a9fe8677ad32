// Package alsahal is an audio hardware abstraction over ALSA PCM devices.
//
// A Device owns routing state and hands out output and input streams. Streams open hardware
// lazily on the first Write or Read. Starting a stream puts the active stream of the same
// direction into standby, so at most one stream per direction holds hardware at a time.
package alsahal

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-audio/audio"
	"github.com/kelindar/event"

	"github.com/gen2brain/alsahal/internal/logging"
	"github.com/gen2brain/alsahal/internal/watch"
)

// Device coordinates routing and exclusivity between streams.
type Device struct {
	logger   *slog.Logger
	backend  Backend
	enum     Enumerator
	resolver *CardResolver
	runner   CommandRunner
	applier  RouteApplier
	sleep    func(time.Duration)
	events   *event.Dispatcher

	// mu guards everything below and is always taken before a stream mutex.
	mu        sync.Mutex
	cfg       Config
	outRoute  Route
	inRoute   Route
	micMute   bool
	screenOff bool
	activeOut *OutputStream
	activeIn  *InputStream
	closed    bool

	// cmdMu serializes bring-up commands.
	cmdMu sync.Mutex

	watchMu  sync.Mutex
	watchers []func() error
}

// Option configures a Device.
type Option func(*Device)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(d *Device) {
		d.cfg = cfg
	}
}

// WithBackend replaces the ALSA backend. A backend that also implements Enumerator is used
// for endpoint scans unless WithEnumerator is given.
func WithBackend(b Backend) Option {
	return func(d *Device) {
		d.backend = b
	}
}

// WithEnumerator replaces the endpoint enumerator.
func WithEnumerator(e Enumerator) Option {
	return func(d *Device) {
		d.enum = e
	}
}

// WithCommandRunner replaces ShellRunner for bring-up commands.
func WithCommandRunner(r CommandRunner) Option {
	return func(d *Device) {
		d.runner = r
	}
}

// WithRouteApplier replaces the MixerApplier built from the mixer configuration.
func WithRouteApplier(a RouteApplier) Option {
	return func(d *Device) {
		d.applier = a
	}
}

// WithLogger sets the device logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) {
		d.logger = l
	}
}

// WithSleep replaces time.Sleep for throttling and error back-off.
func WithSleep(fn func(time.Duration)) Option {
	return func(d *Device) {
		d.sleep = fn
	}
}

// Open creates a device with speaker output and builtin mic input routes.
func Open(opts ...Option) (*Device, error) {
	d := &Device{
		cfg:      DefaultConfig(),
		outRoute: DefaultOutputRoute,
		inRoute:  DefaultInputRoute,
		sleep:    time.Sleep,
		events:   event.NewDispatcher(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}

	if d.logger == nil {
		d.logger = logging.GetLogger("hal")
	}

	if d.backend == nil {
		d.backend = NewALSA(logging.GetLogger("alsa"))
	}

	if d.enum == nil {
		if e, ok := d.backend.(Enumerator); ok {
			d.enum = e
		} else {
			d.enum = NewALSA(logging.GetLogger("alsa"))
		}
	}

	if d.runner == nil {
		d.runner = ShellRunner{}
	}

	if d.applier == nil {
		dir := "/dev/snd"
		if a, ok := d.backend.(*ALSA); ok {
			dir = a.dir()
		}

		d.applier = NewMixerApplier(dir, d.cfg.Mixer, logging.GetLogger("mixer"))
	}

	d.resolver = NewCardResolver(d.enum, d.cfg, logging.GetLogger("card"))

	return d, nil
}

// Close stops watchers and puts every active stream into standby.
func (d *Device) Close() error {
	d.watchMu.Lock()
	var errs []error
	for _, stop := range d.watchers {
		errs = append(errs, stop())
	}
	d.watchers = nil
	d.watchMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.Join(errs...)
	}

	if s := d.activeOut; s != nil {
		s.mu.Lock()
		s.stop()
		s.mu.Unlock()
	}

	if s := d.activeIn; s != nil {
		s.mu.Lock()
		s.stop()
		s.mu.Unlock()
	}

	d.closed = true

	return errors.Join(errs...)
}

// Config returns the configuration in use.
func (d *Device) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cfg
}

// Resolver returns the card resolver of the device.
func (d *Device) Resolver() *CardResolver {
	return d.resolver
}

// OpenOutputStream creates a 48000 Hz stereo output stream in standby.
// It fails with ErrNoDevice when the current output route resolves to nothing.
func (d *Device) OpenOutputStream() (*OutputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	if _, err := d.resolver.Resolve(Output, d.outRoute); err != nil {
		return nil, err
	}

	return &OutputStream{
		dev:     d,
		logger:  logging.GetLogger("stream").With("direction", Output.String()),
		standby: true,
	}, nil
}

// OpenInputStream creates a mono input stream in standby. The rate must be a multiple of 100.
func (d *Device) OpenInputStream(format audio.Format) (*InputStream, error) {
	if err := checkInputFormat(format); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	return &InputStream{
		dev:     d,
		logger:  logging.GetLogger("stream").With("direction", Input.String(), "rate", format.SampleRate),
		standby: true,
		rate:    uint32(format.SampleRate),
	}, nil
}

func checkInputFormat(format audio.Format) error {
	if format.NumChannels != 1 {
		return wrapf(ErrInvalidArgument, "%d input channels, only mono is supported", format.NumChannels)
	}

	if format.SampleRate <= 0 || format.SampleRate%100 != 0 {
		return wrapf(ErrInvalidArgument, "input rate %d", format.SampleRate)
	}

	return nil
}

// InputBufferSize returns the read size in bytes an input stream with format would use.
func (d *Device) InputBufferSize(format audio.Format) (int, error) {
	if format.SampleRate <= 0 || format.SampleRate%100 != 0 || format.NumChannels < 1 {
		return 0, wrapf(ErrInvalidArgument, "input format %d Hz %d channels", format.SampleRate, format.NumChannels)
	}

	return inputPeriodFrames(uint32(format.SampleRate)) * format.NumChannels * 2, nil
}

// inputPeriodFrames scales the hardware input period to a client rate, rounded up to 16 frames.
func inputPeriodFrames(rate uint32) int {
	frames := int(InputConfig.PeriodSize) * int(rate) / int(InputConfig.Rate)

	return (frames + 15) &^ 15
}

// SetParameters applies device parameters. Only screen_state is understood.
func (d *Device) SetParameters(kv string) error {
	params := parseParams(kv)

	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := params[ParamScreenState]; ok {
		d.screenOff = v != "on"
		d.logger.Debug("Screen state", "off", d.screenOff)
	}

	return nil
}

// GetParameters returns the requested device parameters.
func (d *Device) GetParameters(keys string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	params := map[string]string{}
	if requested(keys, ParamScreenState) {
		params[ParamScreenState] = "on"
		if d.screenOff {
			params[ParamScreenState] = "off"
		}
	}

	return formatParams(params)
}

// SetMicMute zeroes captured audio while set.
func (d *Device) SetMicMute(mute bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.micMute = mute
}

// MicMute reports the mic mute flag.
func (d *Device) MicMute() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.micMute
}

// Routes returns the current output and input routes.
func (d *Device) Routes() (out, in Route) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.outRoute, d.inRoute
}

// Rescan drops the endpoint cache so the next stream start scans hardware again.
func (d *Device) Rescan() {
	d.resolver.Rescan()
}

// WatchConfig reloads the configuration from path whenever it changes.
func (d *Device) WatchConfig(path string) error {
	w := watch.New(path, LoadConfig, d.logger.With("watch", "config"))

	w.OnReload(func(cfg Config) {
		d.mu.Lock()
		d.cfg = cfg
		d.mu.Unlock()

		d.resolver.SetConfig(cfg)
		if a, ok := d.applier.(*MixerApplier); ok {
			a.SetConfig(cfg.Mixer)
		}

		logging.Initialize(cfg.Logging)

		d.logger.Info("Configuration reloaded", "path", path)
		publish(d, ConfigReloadedEvent{Path: path, Config: cfg})
	})

	return d.addWatcher(w.Start, w.Stop)
}

// WatchHotplug drops the endpoint cache whenever PCM nodes appear in or vanish from dir.
func (d *Device) WatchHotplug(dir string) error {
	w := watch.New(dir, func(string) (struct{}, error) { return struct{}{}, nil }, d.logger.With("watch", "hotplug"),
		watch.WithOps[struct{}](fsnotify.Create|fsnotify.Remove),
		watch.WithDebounce[struct{}](500*time.Millisecond))

	w.OnReload(func(struct{}) {
		d.logger.Info("Device nodes changed, rescanning", "dir", dir)
		d.Rescan()
	})

	return d.addWatcher(w.Start, w.Stop)
}

func (d *Device) addWatcher(start, stop func() error) error {
	if err := start(); err != nil {
		return err
	}

	d.watchMu.Lock()
	d.watchers = append(d.watchers, stop)
	d.watchMu.Unlock()

	return nil
}

// clockGroupConflict reports whether two rates come from different clock families.
func clockGroupConflict(rate, other uint32) bool {
	return (rate%8000 == 0 && other%8000 != 0) || (rate%11025 == 0 && other%11025 != 0)
}

// openHardware resolves, brings up and opens an endpoint. It must be called with d.mu held.
func (d *Device) openHardware(dir Direction, route Route, cfg HardwareConfig) (PCM, Endpoint, HardwareConfig, error) {
	ep, err := d.resolver.Resolve(dir, route)
	if err != nil {
		openFailures.WithLabelValues(dir.String()).Inc()

		return nil, Endpoint{}, cfg, err
	}

	cfg.Format = d.bringUp(dir, route)

	p, err := d.backend.Open(ep, cfg)
	if err != nil && d.cfg.AlternateRate != 0 && d.cfg.AlternateRate != cfg.Rate {
		d.logger.Warn("Open failed, retrying at alternate rate", "node", ep.Node,
			"rate", cfg.Rate, "alternate", d.cfg.AlternateRate, "error", err)

		cfg.Rate = d.cfg.AlternateRate
		p, err = d.backend.Open(ep, cfg)
	}

	if err != nil {
		openFailures.WithLabelValues(dir.String()).Inc()

		return nil, ep, cfg, fmt.Errorf("%w: %s: %w", ErrHardwareUnavailable, ep.Node, err)
	}

	return p, ep, cfg, nil
}

// startOutput brings s out of standby. It must be called with d.mu and s.mu held.
func (d *Device) startOutput(s *OutputStream) error {
	cfg := OutputConfig
	if d.outRoute.SCO(Output) {
		cfg = SCOConfig
	} else {
		s.throttle.reset()
	}

	if prev := d.activeOut; prev != nil && prev != s {
		d.logger.Info("Output busy, stopping previous stream", "node", prev.endpoint.Node)

		prev.mu.Lock()
		prev.stop()
		prev.mu.Unlock()
	}

	if in := d.activeIn; in != nil && clockGroupConflict(cfg.Rate, in.hw.Rate) {
		d.logger.Info("Clock group conflict, stopping input", "out", cfg.Rate, "in", in.hw.Rate)

		in.mu.Lock()
		in.stop()
		in.mu.Unlock()
	}

	p, ep, hw, err := d.openHardware(Output, d.outRoute, cfg)
	if err != nil {
		return err
	}

	var rs *Resampler
	if hw.Rate != OutputSampleRate {
		rs, err = NewResampler(OutputSampleRate, hw.Rate, int(hw.Channels))
		if err != nil {
			_ = p.Close()

			return err
		}

		s.resampled.ensure((int(OutputConfig.PeriodSize)*int(hw.Rate)/OutputSampleRate + 1) * int(hw.Channels))
	}

	s.pcm, s.endpoint, s.hw, s.resampler = p, ep, hw, rs
	s.standby = false
	d.activeOut = s

	d.streamStarted(Output, ep, hw)

	return nil
}

// startInput brings s out of standby. It must be called with d.mu and s.mu held.
func (d *Device) startInput(s *InputStream) error {
	cfg := InputConfig
	if d.inRoute.SCO(Input) {
		cfg = SCOConfig
	}

	if prev := d.activeIn; prev != nil && prev != s {
		d.logger.Info("Input busy, stopping previous stream", "node", prev.endpoint.Node)

		prev.mu.Lock()
		prev.stop()
		prev.mu.Unlock()
	}

	if out := d.activeOut; out != nil && clockGroupConflict(cfg.Rate, out.hw.Rate) {
		d.logger.Info("Clock group conflict, stopping output", "in", cfg.Rate, "out", out.hw.Rate)

		out.mu.Lock()
		out.stop()
		out.mu.Unlock()
	}

	p, ep, hw, err := d.openHardware(Input, d.inRoute, cfg)
	if err != nil {
		return err
	}

	var rs *Resampler
	if hw.Rate != s.rate {
		rs, err = NewResampler(hw.Rate, s.rate, 1)
		if err != nil {
			_ = p.Close()

			return err
		}
	}

	s.pcm, s.endpoint, s.hw, s.resampler = p, ep, hw, rs
	s.framesIn = 0
	s.effects.reset()
	s.standby = false
	d.activeIn = s

	d.streamStarted(Input, ep, hw)

	return nil
}

func (d *Device) streamStarted(dir Direction, ep Endpoint, hw HardwareConfig) {
	d.logger.Info("Stream started", "direction", dir.String(), "node", ep.Node,
		"rate", hw.Rate, "channels", hw.Channels, "format", hw.Format.String())

	streamStarts.WithLabelValues(dir.String()).Inc()
	activeStreams.WithLabelValues(dir.String()).Inc()
	publish(d, StreamStateEvent{Direction: dir, Active: true, Node: ep.Node, Rate: hw.Rate, Time: time.Now()})
}

func (d *Device) streamStopped(dir Direction, ep Endpoint) {
	d.logger.Info("Stream stopped", "direction", dir.String(), "node", ep.Node)

	activeStreams.WithLabelValues(dir.String()).Dec()
	publish(d, StreamStateEvent{Direction: dir, Active: false, Node: ep.Node, Time: time.Now()})
}

// stoppable is a stream whose hardware can be released.
type stoppable interface {
	stop()
}

// setRoute stores a new route for dir and stops s so its next start re-resolves hardware.
// It must be called with d.mu and s's mutex held.
func (d *Device) setRoute(dir Direction, route Route, s stoppable) {
	cur := &d.outRoute
	if dir == Input {
		cur = &d.inRoute
	}

	old := *cur
	if route == 0 || route == old {
		return
	}

	if old.SCO(dir) != route.SCO(dir) {
		s.stop()
	}

	*cur = route

	if err := d.applier.ApplyRoutes(d.outRoute, d.inRoute); err != nil {
		d.logger.Warn("Applying mixer routes failed", "error", err)
	}

	s.stop()

	d.logger.Info("Route changed", "direction", dir.String(), "from", old.Describe(dir), "to", route.Describe(dir))
	publish(d, RouteChangedEvent{Direction: dir, Old: old, New: route})
}
