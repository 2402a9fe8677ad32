package alsahal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/alsahal/internal/logging"
)

type switchCall struct {
	name string
	on   bool
}

type fakeSwitcher struct {
	calls  []switchCall
	fail   map[string]error
	closed int
}

func (s *fakeSwitcher) SetSwitch(name string, on bool) error {
	s.calls = append(s.calls, switchCall{name, on})

	return s.fail[name]
}

func (s *fakeSwitcher) Close() error {
	s.closed++

	return nil
}

func testMixerApplier(cfg MixerConfig) (*MixerApplier, *fakeSwitcher, *[]uint) {
	sw := &fakeSwitcher{}
	var cards []uint

	a := newMixerApplier(cfg, logging.GetLogger("mixer"), func(card uint) (Switcher, error) {
		cards = append(cards, card)

		return sw, nil
	})

	return a, sw, &cards
}

var testMixerPaths = map[string][]string{
	"speaker":     {"Speaker Playback Switch"},
	"headphone":   {"Headphone Playback Switch", "Headphone Amp Switch"},
	"main-mic":    {"Mic Capture Switch"},
	"headset-mic": {"Headset Mic Capture Switch"},
}

func TestMixerApplierOrder(t *testing.T) {
	a, sw, cards := testMixerApplier(MixerConfig{Card: 2, Paths: testMixerPaths})

	require.NoError(t, a.ApplyRoutes(OutWiredHeadphone, InWiredHeadset))

	assert.Equal(t, []uint{2}, *cards)
	assert.Equal(t, 1, sw.closed)
	assert.Equal(t, []switchCall{
		{"Speaker Playback Switch", false},
		{"Mic Capture Switch", false},
		{"Headphone Playback Switch", true},
		{"Headphone Amp Switch", true},
		{"Headset Mic Capture Switch", true},
	}, sw.calls)
}

func TestMixerApplierUnconfigured(t *testing.T) {
	a, sw, cards := testMixerApplier(MixerConfig{})

	require.NoError(t, a.ApplyRoutes(OutSpeaker, InBuiltinMic))
	assert.Empty(t, *cards)
	assert.Empty(t, sw.calls)

	a.SetConfig(MixerConfig{Paths: map[string][]string{"speaker": {"Speaker Playback Switch"}}})

	require.NoError(t, a.ApplyRoutes(OutSpeaker, InBuiltinMic))
	assert.Equal(t, []switchCall{{"Speaker Playback Switch", true}}, sw.calls)
}

func TestMixerApplierErrors(t *testing.T) {
	a, sw, _ := testMixerApplier(MixerConfig{Paths: testMixerPaths})
	sw.fail = map[string]error{"Speaker Playback Switch": errors.New("busy")}

	err := a.ApplyRoutes(OutWiredHeadphone, InBuiltinMic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path speaker")
	assert.Len(t, sw.calls, 5, "a failing control does not stop the others")

	failing := newMixerApplier(MixerConfig{Paths: testMixerPaths}, logging.GetLogger("mixer"),
		func(card uint) (Switcher, error) { return nil, fmt.Errorf("open card %d: no such device", card) })
	assert.ErrorContains(t, failing.ApplyRoutes(OutSpeaker, InBuiltinMic), "mixer card 0")
}

func TestMixerApplierOnRouteChange(t *testing.T) {
	sw := &fakeSwitcher{}
	cfg := DefaultConfig()
	cfg.Mixer.Paths = testMixerPaths

	dev, err := Open(
		WithConfig(cfg),
		WithBackend(&fakeBackend{endpoints: defaultEndpoints()}),
		WithCommandRunner(&fakeRunner{}),
		WithRouteApplier(newMixerApplier(cfg.Mixer, logging.GetLogger("mixer"),
			func(uint) (Switcher, error) { return sw, nil })),
	)
	require.NoError(t, err)
	defer dev.Close()

	out, err := dev.OpenOutputStream()
	require.NoError(t, err)

	require.NoError(t, out.SetParameters("routing=4"))
	assert.Contains(t, sw.calls, switchCall{"Headphone Amp Switch", true})
	assert.Contains(t, sw.calls, switchCall{"Speaker Playback Switch", false})
}

func TestMixerConfigValidate(t *testing.T) {
	assert.NoError(t, MixerConfig{Paths: testMixerPaths}.validate())
	assert.ErrorIs(t, MixerConfig{Paths: map[string][]string{"earpiece": nil}}.validate(), ErrInvalidArgument)
}
