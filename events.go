package alsahal

import (
	"time"

	"github.com/kelindar/event"
)

// Event type identifiers.
const (
	TypeStreamState uint32 = iota + 1
	TypeUnderrun
	TypeRouteChanged
	TypeConfigReloaded
)

// Event is implemented by everything published on a device.
type Event interface {
	Type() uint32
}

// StreamStateEvent is published when a stream opens or releases its hardware.
type StreamStateEvent struct {
	Direction Direction
	Active    bool
	Node      string
	Rate      uint32
	Time      time.Time
}

func (StreamStateEvent) Type() uint32 { return TypeStreamState }

// UnderrunEvent is published when playback ran dry.
type UnderrunEvent struct {
	Node string
	Time time.Time
}

func (UnderrunEvent) Type() uint32 { return TypeUnderrun }

// RouteChangedEvent is published after a route update was applied.
type RouteChangedEvent struct {
	Direction Direction
	Old       Route
	New       Route
}

func (RouteChangedEvent) Type() uint32 { return TypeRouteChanged }

// ConfigReloadedEvent is published after WatchConfig swapped in a new configuration.
type ConfigReloadedEvent struct {
	Path   string
	Config Config
}

func (ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// Subscribe registers fn for events of type T on a device and returns a func that removes it.
// Handlers run asynchronously.
func Subscribe[T Event](d *Device, fn func(T)) func() {
	return event.Subscribe(d.events, fn)
}

func publish[T Event](d *Device, ev T) {
	event.Publish(d.events, ev)
}
