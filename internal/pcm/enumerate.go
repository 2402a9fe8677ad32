package pcm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"syscall"
	"unsafe"
)

// NodeInfo describes one PCM device node as reported by the driver.
type NodeInfo struct {
	Path    string
	Card    uint
	Device  uint
	Capture bool
	ID      string
	Name    string
	Subname string
}

var nodeName = regexp.MustCompile(`^pcmC(\d+)D(\d+)([pc])$`)

// ParseNode splits a node name such as "pcmC1D0c" into card, device and direction.
func ParseNode(name string) (card, device uint, capture bool, ok bool) {
	m := nodeName.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false, false
	}

	c, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, 0, false, false
	}

	d, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return 0, 0, false, false
	}

	return uint(c), uint(d), m[3] == "c", true
}

// Nodes returns the PCM node names under dir in sorted order.
func Nodes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if _, _, _, ok := ParseNode(e.Name()); ok {
			names = append(names, e.Name())
		}
	}

	slices.Sort(names)

	return names, nil
}

// Info opens a PCM node briefly and queries its driver identity.
func Info(path string) (NodeInfo, error) {
	card, device, capture, ok := ParseNode(filepath.Base(path))
	if !ok {
		return NodeInfo{}, fmt.Errorf("%s: not a pcm node", path)
	}

	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return NodeInfo{}, err
	}
	defer f.Close()

	var info sndPcmInfo
	if err := ioctl(f.Fd(), SNDRV_PCM_IOCTL_INFO, uintptr(unsafe.Pointer(&info))); err != nil {
		return NodeInfo{}, fmt.Errorf("ioctl INFO %s: %w", path, err)
	}

	return NodeInfo{
		Path:    path,
		Card:    card,
		Device:  device,
		Capture: capture,
		ID:      cString(info.Id[:]),
		Name:    cString(info.Name[:]),
		Subname: cString(info.Subname[:]),
	}, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}
