package alsahal

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gen2brain/alsahal/internal/pcm"
)

type fakePCM struct {
	mu sync.Mutex

	ep  Endpoint
	cfg HardwareConfig

	written  []byte
	writes   int
	writeErr error

	reads   int
	readErr error
	next    int16

	// avail is consulted by HTimestamp; nil reports an empty ring buffer.
	avail    func() (uint32, error)
	queries  int
	closed   int
	closeErr error
}

func (p *fakePCM) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writes++
	if p.writeErr != nil {
		return 0, p.writeErr
	}

	p.written = append(p.written, b...)

	return len(b), nil
}

// Read fills b with an incrementing sample counter on every channel.
func (p *fakePCM) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reads++
	if p.readErr != nil {
		return 0, p.readErr
	}

	frame := p.cfg.FrameSize()
	samples := make([]int16, p.cfg.Channels)
	for off := 0; off+frame <= len(b); off += frame {
		for c := range samples {
			samples[c] = p.next
		}

		encodeS16(b[off:off+frame], samples, p.cfg.Format)
		p.next++
	}

	return len(b), nil
}

func (p *fakePCM) HTimestamp() (uint32, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queries++
	if p.avail == nil {
		return p.BufferSize(), time.Now(), nil
	}

	avail, err := p.avail()

	return avail, time.Now(), err
}

func (p *fakePCM) BufferSize() uint32 {
	return p.cfg.PeriodSize * p.cfg.PeriodCount
}

func (p *fakePCM) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed++

	return p.closeErr
}

// fakeBackend is both Enumerator and Backend.
type fakeBackend struct {
	mu sync.Mutex

	endpoints []Endpoint
	// fail makes Open fail when it returns true.
	fail   func(Endpoint, HardwareConfig) bool
	opened []*fakePCM
	setup  func(*fakePCM)
}

func (b *fakeBackend) Endpoints() ([]Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Endpoint(nil), b.endpoints...), nil
}

func (b *fakeBackend) Lookup(node string) (Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ep := range b.endpoints {
		if ep.Node == node {
			return ep, nil
		}
	}

	return Endpoint{}, fmt.Errorf("lookup %s: %w", node, syscall.ENOENT)
}

func (b *fakeBackend) Open(ep Endpoint, cfg HardwareConfig) (PCM, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail != nil && b.fail(ep, cfg) {
		return nil, fmt.Errorf("open %s at %d: %w", ep.Node, cfg.Rate, syscall.EINVAL)
	}

	p := &fakePCM{ep: ep, cfg: cfg}
	if b.setup != nil {
		b.setup(p)
	}

	b.opened = append(b.opened, p)

	return p, nil
}

func (b *fakeBackend) last(t *testing.T) *fakePCM {
	t.Helper()

	b.mu.Lock()
	defer b.mu.Unlock()

	require.NotEmpty(t, b.opened)

	return b.opened[len(b.opened)-1]
}

type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (r *fakeRunner) Run(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, command)

	return r.err
}

type fakeApplier struct {
	mu    sync.Mutex
	calls [][2]Route
}

func (a *fakeApplier) ApplyRoutes(out, in Route) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, [2]Route{out, in})

	return nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sleeps = append(r.sleeps, d)
}

func (r *sleepRecorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Duration(nil), r.sleeps...)
}

func endpoint(node, id string) Endpoint {
	card, device, capture, ok := pcm.ParseNode(node)
	if !ok {
		panic("bad node " + node)
	}

	dir := Output
	if capture {
		dir = Input
	}

	return Endpoint{Node: node, Card: card, Device: device, Direction: dir, ID: id, Name: id}
}

// defaultEndpoints is one analog card with playback and capture.
func defaultEndpoints() []Endpoint {
	return []Endpoint{
		endpoint("pcmC0D0c", "PCH"),
		endpoint("pcmC0D0p", "PCH"),
	}
}

type testDevice struct {
	*Device
	backend *fakeBackend
	runner  *fakeRunner
	applier *fakeApplier
	sleeper *sleepRecorder
}

func newTestDevice(t *testing.T, cfg Config, eps ...Endpoint) *testDevice {
	t.Helper()

	if len(eps) == 0 {
		eps = defaultEndpoints()
	}

	td := &testDevice{
		backend: &fakeBackend{endpoints: eps},
		runner:  &fakeRunner{},
		applier: &fakeApplier{},
		sleeper: &sleepRecorder{},
	}

	dev, err := Open(
		WithConfig(cfg),
		WithBackend(td.backend),
		WithCommandRunner(td.runner),
		WithRouteApplier(td.applier),
		WithSleep(td.sleeper.sleep),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = dev.Close() })

	td.Device = dev

	return td
}
