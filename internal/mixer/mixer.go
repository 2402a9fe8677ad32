// Package mixer toggles switch controls on an ALSA control device (/dev/snd/controlC*).
package mixer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unsafe"
)

var (
	// ErrNotFound is returned for control names the card does not have.
	ErrNotFound = errors.New("mixer: control not found")
	// ErrNotSwitch is returned when a named control is not a writable boolean.
	ErrNotSwitch = errors.New("mixer: control is not a writable switch")
)

// Mixer is an open control device.
type Mixer struct {
	file     *os.File
	cardInfo sndCtlCardInfo
	ctls     map[string][]sndCtlElemInfo
}

// Path returns the control node of a card below dir.
func Path(dir string, card uint) string {
	return filepath.Join(dir, fmt.Sprintf("controlC%d", card))
}

// Open opens the control node of a card below dir and enumerates its controls.
func Open(dir string, card uint) (*Mixer, error) {
	path := Path(dir, card)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open mixer %s: %w", path, err)
	}

	m := &Mixer{file: file, ctls: map[string][]sndCtlElemInfo{}}

	if err := ioctl(m.file.Fd(), SNDRV_CTL_IOCTL_CARD_INFO, uintptr(unsafe.Pointer(&m.cardInfo))); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("ioctl CARD_INFO: %w", err)
	}

	if err := m.enumerate(); err != nil {
		_ = m.Close()

		return nil, err
	}

	return m, nil
}

// Close releases the control node.
func (m *Mixer) Close() error {
	if m == nil || m.file == nil {
		return nil
	}

	err := m.file.Close()
	m.file = nil

	return err
}

// Name returns the card name.
func (m *Mixer) Name() string {
	if m == nil {
		return ""
	}

	return cString(m.cardInfo.Name[:])
}

// Controls returns the sorted control names.
func (m *Mixer) Controls() []string {
	if m == nil {
		return nil
	}

	names := make([]string, 0, len(m.ctls))
	for name := range m.ctls {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Switch reports the channel states of every control with the given name.
func (m *Mixer) Switch(name string) ([]bool, error) {
	infos, err := m.switches(name, SNDRV_CTL_ELEM_ACCESS_READ)
	if err != nil {
		return nil, err
	}

	var states []bool
	for _, info := range infos {
		v := sndCtlElemValue{Id: info.Id}
		if err := ioctl(m.file.Fd(), SNDRV_CTL_IOCTL_ELEM_READ, uintptr(unsafe.Pointer(&v))); err != nil {
			return nil, fmt.Errorf("ioctl ELEM_READ %q: %w", name, err)
		}

		states = append(states, bools(&v, info.Count)...)
	}

	return states, nil
}

// SetSwitch turns every channel of every control with the given name on or off.
func (m *Mixer) SetSwitch(name string, on bool) error {
	infos, err := m.switches(name, SNDRV_CTL_ELEM_ACCESS_WRITE)
	if err != nil {
		return err
	}

	for _, info := range infos {
		v := sndCtlElemValue{Id: info.Id}
		setBools(&v, info.Count, on)

		if err := ioctl(m.file.Fd(), SNDRV_CTL_IOCTL_ELEM_WRITE, uintptr(unsafe.Pointer(&v))); err != nil {
			return fmt.Errorf("ioctl ELEM_WRITE %q: %w", name, err)
		}
	}

	return nil
}

func (m *Mixer) switches(name string, access uint32) ([]sndCtlElemInfo, error) {
	if m == nil || m.file == nil {
		return nil, fmt.Errorf("%w: %q: mixer closed", ErrNotFound, name)
	}

	infos, ok := m.ctls[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	for _, info := range infos {
		if info.Typ != SNDRV_CTL_ELEM_TYPE_BOOLEAN || info.Access&access == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNotSwitch, name)
		}
	}

	return infos, nil
}

// enumerate lists the element ids, then reads the info of each one.
func (m *Mixer) enumerate() error {
	list := &sndCtlElemList{}
	if err := ioctl(m.file.Fd(), SNDRV_CTL_IOCTL_ELEM_LIST, uintptr(unsafe.Pointer(list))); err != nil {
		return fmt.Errorf("ioctl ELEM_LIST count: %w", err)
	}

	if list.Count == 0 {
		return nil
	}

	ids := make([]sndCtlElemId, list.Count)
	list.Space = list.Count
	list.Pids = uintptr(unsafe.Pointer(&ids[0]))

	if err := ioctl(m.file.Fd(), SNDRV_CTL_IOCTL_ELEM_LIST, uintptr(unsafe.Pointer(list))); err != nil {
		return fmt.Errorf("ioctl ELEM_LIST ids: %w", err)
	}

	for i := uint32(0); i < list.Used; i++ {
		info := sndCtlElemInfo{Id: ids[i]}
		if err := ioctl(m.file.Fd(), SNDRV_CTL_IOCTL_ELEM_INFO, uintptr(unsafe.Pointer(&info))); err != nil {
			continue
		}

		name := cString(info.Id.Name[:])
		m.ctls[name] = append(m.ctls[name], info)
	}

	return nil
}

// longs views the integer member of the value union.
func longs(v *sndCtlElemValue) []clong {
	n := len(v.Value) / int(unsafe.Sizeof(clong(0)))

	return unsafe.Slice((*clong)(unsafe.Pointer(&v.Value[0])), n)
}

func setBools(v *sndCtlElemValue, count uint32, on bool) {
	var x clong
	if on {
		x = 1
	}

	vals := longs(v)
	for i := range min(int(count), len(vals)) {
		vals[i] = x
	}
}

func bools(v *sndCtlElemValue, count uint32) []bool {
	vals := longs(v)

	states := make([]bool, min(int(count), len(vals)))
	for i := range states {
		states[i] = vals[i] != 0
	}

	return states
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}

	return string(b)
}
