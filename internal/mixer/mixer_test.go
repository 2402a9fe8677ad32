package mixer

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	assert.Equal(t, "/dev/snd/controlC2", Path("/dev/snd", 2))
}

func TestCString(t *testing.T) {
	assert.Equal(t, "Master", cString([]byte("Master\x00junk")))
	assert.Equal(t, "abc", cString([]byte("abc")))
	assert.Equal(t, "", cString(make([]byte, 4)))
}

func TestValueUnion(t *testing.T) {
	var v sndCtlElemValue

	assert.Len(t, longs(&v), 128)

	setBools(&v, 2, true)
	assert.Equal(t, []bool{true, true}, bools(&v, 2))
	assert.Equal(t, []bool{true, true, false}, bools(&v, 3))

	// The second channel lives one C long further into the union.
	off := unsafe.Sizeof(clong(0))
	assert.Equal(t, byte(1), v.Value[off])

	setBools(&v, 1, false)
	assert.Equal(t, []bool{false, true}, bools(&v, 2))

	setBools(&v, 1000, true)
	assert.Len(t, bools(&v, 1000), 128)
}

func TestClosedMixer(t *testing.T) {
	var m *Mixer

	assert.NoError(t, m.Close())
	assert.Empty(t, m.Name())
	assert.Nil(t, m.Controls())
	assert.ErrorIs(t, m.SetSwitch("Speaker Playback Switch", true), ErrNotFound)

	_, err := m.Switch("Speaker Playback Switch")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(t.TempDir(), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestHardware needs a card 0, for example the one created by "modprobe snd-dummy".
func TestHardware(t *testing.T) {
	m, err := Open("/dev/snd", 0)
	if err != nil {
		t.Skipf("Skipping mixer hardware test: %v", err)
	}
	defer m.Close()

	assert.NotEmpty(t, m.Name())
	require.NotEmpty(t, m.Controls())

	assert.ErrorIs(t, m.SetSwitch("No Such Control", true), ErrNotFound)

	for _, name := range m.Controls() {
		before, err := m.Switch(name)
		if err != nil {
			continue
		}

		if err := m.SetSwitch(name, !before[0]); err != nil {
			continue
		}

		after, err := m.Switch(name)
		require.NoError(t, err)
		assert.Equal(t, !before[0], after[0], name)

		require.NoError(t, m.SetSwitch(name, before[0]))

		return
	}

	t.Skip("Card 0 has no writable switch")
}
