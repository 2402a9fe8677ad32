package alsahal

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/alsahal/internal/logging"
)

func newResolver(cfg Config, eps ...Endpoint) (*CardResolver, *fakeBackend) {
	fb := &fakeBackend{endpoints: eps}

	return NewCardResolver(fb, cfg, logging.GetLogger("card")), fb
}

func TestPlainSlot(t *testing.T) {
	tests := []struct {
		name  string
		dir   Direction
		route Route
		want  Slot
	}{
		{"no bits forces speaker", Output, 0, SlotSpeaker},
		{"earpiece only forces speaker", Output, OutEarpiece, SlotSpeaker},
		{"speaker", Output, OutSpeaker, SlotSpeaker},
		{"headphone beats dock", Output, OutWiredHeadphone | OutAnalogDock | OutSpeaker, SlotHeadphone},
		{"headset counts as headphone", Output, OutWiredHeadset, SlotHeadphone},
		{"dock beats speaker", Output, OutAnalogDock | OutSpeaker, SlotDock},
		{"no bits forces mic", Input, 0, SlotMic},
		{"builtin mic", Input, InBuiltinMic, SlotMic},
		{"headset beats mic", Input, InBuiltinMic | InWiredHeadset, SlotHeadset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainSlot(tt.dir, tt.route))
		})
	}
}

func TestActiveClasses(t *testing.T) {
	assert.Equal(t, []Slot{SlotSpeaker}, ActiveClasses(Output, 0))
	assert.Equal(t, []Slot{SlotHeadphone, SlotSpeaker, SlotDock},
		ActiveClasses(Output, OutSpeaker|OutWiredHeadphone|OutAnalogDock))
	assert.Equal(t, []Slot{SlotMic}, ActiveClasses(Input, 0))
	assert.Equal(t, []Slot{SlotHeadset}, ActiveClasses(Input, InWiredHeadset))
	assert.Equal(t, []Slot{SlotMic, SlotHeadset}, ActiveClasses(Input, InBuiltinMic|InWiredHeadset))
}

func TestSlotNames(t *testing.T) {
	for s := SlotSpeaker; s < slotCount; s++ {
		got, ok := ParseSlot(s.String())
		require.True(t, ok, s.String())
		assert.Equal(t, s, got)
	}

	_, ok := ParseSlot("earpiece")
	assert.False(t, ok)
	assert.Equal(t, Input, SlotHDMIIn.Direction())
	assert.Equal(t, Output, SlotDock.Direction())
}

func TestResolveDefaultSlots(t *testing.T) {
	r, _ := newResolver(DefaultConfig(), defaultEndpoints()...)

	out, err := r.Resolve(Output, 0)
	require.NoError(t, err)
	assert.Equal(t, "pcmC0D0p", out.Node)

	in, err := r.Resolve(Input, 0)
	require.NoError(t, err)
	assert.Equal(t, "pcmC0D0c", in.Node)

	cached, ok := r.Cached(SlotSpeaker)
	require.True(t, ok)
	assert.Equal(t, out, cached)

	cached, ok = r.Cached(SlotMic)
	require.True(t, ok)
	assert.Equal(t, in, cached)

	_, ok = r.Cached(SlotHeadphone)
	assert.False(t, ok)
}

func TestResolveExcludesAndFirstMatchWins(t *testing.T) {
	r, _ := newResolver(DefaultConfig(),
		endpoint("pcmC0D3p", "IntelHDMI"),
		endpoint("pcmC1D0p", "USB Audio"),
		endpoint("pcmC2D0p", "PCH"),
	)

	ep, err := r.Resolve(Output, OutSpeaker)
	require.NoError(t, err)
	assert.Equal(t, "pcmC1D0p", ep.Node)

	_, ok := r.Cached(SlotHDMIOut)
	assert.False(t, ok, "excluded endpoint must not be classified")
}

func TestResolveHDMI(t *testing.T) {
	eps := []Endpoint{
		endpoint("pcmC0D0p", "PCH"),
		endpoint("pcmC2D3p", "NVidia HDMI 0"),
	}

	t.Run("digital bit selects hdmi", func(t *testing.T) {
		r, _ := newResolver(DefaultConfig(), eps...)

		ep, err := r.Resolve(Output, OutSpeaker|OutAuxDigital)
		require.NoError(t, err)
		assert.Equal(t, "pcmC2D3p", ep.Node)
	})

	t.Run("plain route keeps analog", func(t *testing.T) {
		r, _ := newResolver(DefaultConfig(), eps...)

		ep, err := r.Resolve(Output, OutSpeaker)
		require.NoError(t, err)
		assert.Equal(t, "pcmC0D0p", ep.Node)

		hdmi, ok := r.Cached(SlotHDMIOut)
		require.True(t, ok)
		assert.Equal(t, "pcmC2D3p", hdmi.Node)
	})

	t.Run("never policy", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HDMI = HDMINever
		r, _ := newResolver(cfg, eps...)

		ep, err := r.Resolve(Output, OutAuxDigital|OutSpeaker)
		require.NoError(t, err)
		assert.Equal(t, "pcmC0D0p", ep.Node)
	})

	t.Run("always policy", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HDMI = HDMIAlways
		r, _ := newResolver(cfg, eps...)

		ep, err := r.Resolve(Output, OutSpeaker)
		require.NoError(t, err)
		assert.Equal(t, "pcmC2D3p", ep.Node)
	})

	t.Run("hdmi fallback", func(t *testing.T) {
		r, _ := newResolver(DefaultConfig(), endpoint("pcmC2D3p", "HDMI 0"))

		ep, err := r.Resolve(Output, OutSpeaker)
		require.NoError(t, err)
		assert.Equal(t, "pcmC2D3p", ep.Node)
	})
}

func TestResolveNoDevice(t *testing.T) {
	r, _ := newResolver(DefaultConfig(), endpoint("pcmC0D0c", "PCH"))

	_, err := r.Resolve(Output, OutSpeaker)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDevice))
}

func TestResolveOverrides(t *testing.T) {
	eps := []Endpoint{
		endpoint("pcmC0D0p", "PCH"),
		endpoint("pcmC1D0p", "USB Audio"),
		endpoint("pcmC2D3p", "HDMI 0"),
	}

	t.Run("generic", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Output = "pcmC1D0p"
		r, _ := newResolver(cfg, eps...)

		ep, err := r.Resolve(Output, OutSpeaker)
		require.NoError(t, err)
		assert.Equal(t, "pcmC1D0p", ep.Node)
	})

	t.Run("class beats generic", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Output = "pcmC1D0p"
		cfg.Routes["headphone"] = RouteConfig{Node: "pcmC0D0p"}
		r, _ := newResolver(cfg, eps...)

		ep, err := r.Resolve(Output, OutWiredHeadphone)
		require.NoError(t, err)
		assert.Equal(t, "pcmC0D0p", ep.Node)
	})

	t.Run("hdmi class when wanted", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Routes["hdmi-out"] = RouteConfig{Node: "pcmC1D0p"}
		r, _ := newResolver(cfg, eps...)

		ep, err := r.Resolve(Output, OutAuxDigital)
		require.NoError(t, err)
		assert.Equal(t, "pcmC1D0p", ep.Node)
	})

	t.Run("missing node", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Output = "pcmC9D0p"
		r, _ := newResolver(cfg, eps...)

		_, err := r.Resolve(Output, OutSpeaker)
		assert.ErrorIs(t, err, ErrNoDevice)
	})
}

func TestResolveCachesUntilRescan(t *testing.T) {
	r, fb := newResolver(DefaultConfig(), endpoint("pcmC0D0p", "PCH"))

	scans := testutil.ToFloat64(resolverScans.WithLabelValues("out"))

	ep, err := r.Resolve(Output, OutSpeaker)
	require.NoError(t, err)
	assert.Equal(t, "pcmC0D0p", ep.Node)

	fb.mu.Lock()
	fb.endpoints = []Endpoint{endpoint("pcmC1D0p", "USB Audio")}
	fb.mu.Unlock()

	ep, err = r.Resolve(Output, OutSpeaker)
	require.NoError(t, err)
	assert.Equal(t, "pcmC0D0p", ep.Node, "cached endpoint survives enumeration changes")
	assert.Equal(t, scans+1, testutil.ToFloat64(resolverScans.WithLabelValues("out")))

	r.Rescan()

	ep, err = r.Resolve(Output, OutSpeaker)
	require.NoError(t, err)
	assert.Equal(t, "pcmC1D0p", ep.Node)
	assert.Equal(t, scans+2, testutil.ToFloat64(resolverScans.WithLabelValues("out")))
}
