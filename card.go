package alsahal

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Slot is a route class and the key of the resolver cache.
type Slot int

const (
	SlotSpeaker Slot = iota
	SlotHeadphone
	SlotDock
	SlotMic
	SlotHeadset
	SlotHDMIOut
	SlotHDMIIn
	slotCount
)

var slotNames = [slotCount]string{"speaker", "headphone", "dock", "mic", "headset", "hdmi-out", "hdmi-in"}

func (s Slot) String() string {
	if s < 0 || s >= slotCount {
		return fmt.Sprintf("Slot(%d)", int(s))
	}

	return slotNames[s]
}

// ParseSlot maps a class name back to its slot.
func ParseSlot(name string) (Slot, bool) {
	for i, n := range slotNames {
		if n == name {
			return Slot(i), true
		}
	}

	return 0, false
}

// Direction returns the data direction the slot belongs to.
func (s Slot) Direction() Direction {
	switch s {
	case SlotMic, SlotHeadset, SlotHDMIIn:
		return Input
	default:
		return Output
	}
}

// HDMISlot returns the HDMI slot of a direction.
func HDMISlot(dir Direction) Slot {
	if dir == Input {
		return SlotHDMIIn
	}

	return SlotHDMIOut
}

// PlainSlot picks the non-HDMI slot for a route. Output prefers headphone, then dock, then
// speaker; input prefers the headset mic. The speaker and builtin mic are forced when no
// class bit is set.
func PlainSlot(dir Direction, route Route) Slot {
	if dir == Input {
		if route&InWiredHeadset != 0 {
			return SlotHeadset
		}

		return SlotMic
	}

	switch {
	case route&outHeadphoneFamily != 0:
		return SlotHeadphone
	case route&OutAnalogDock != 0:
		return SlotDock
	default:
		return SlotSpeaker
	}
}

// ActiveClasses lists every plain class a route switches on, in bring-up order.
func ActiveClasses(dir Direction, route Route) []Slot {
	var classes []Slot

	if dir == Input {
		mic := route&InBuiltinMic != 0
		headset := route&InWiredHeadset != 0

		if mic || !headset {
			classes = append(classes, SlotMic)
		}

		if headset {
			classes = append(classes, SlotHeadset)
		}

		return classes
	}

	headphone := route&outHeadphoneFamily != 0
	speaker := route&OutSpeaker != 0
	dock := route&OutAnalogDock != 0

	if !headphone && !speaker && !dock {
		speaker = true
	}

	if headphone {
		classes = append(classes, SlotHeadphone)
	}

	if speaker {
		classes = append(classes, SlotSpeaker)
	}

	if dock {
		classes = append(classes, SlotDock)
	}

	return classes
}

// Endpoint is a physical PCM device.
type Endpoint struct {
	Node      string
	Card      uint
	Device    uint
	Direction Direction
	ID        string
	Name      string
	Subname   string
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (%s: %s)", e.Node, e.ID, e.Name)
}

// Enumerator lists the endpoints present on the system.
type Enumerator interface {
	// Endpoints returns all endpoints in node-name order.
	Endpoints() ([]Endpoint, error)
	// Lookup returns a single endpoint by node name.
	Lookup(node string) (Endpoint, error)
}

// CardResolver maps a route to an endpoint and caches the answer per slot.
type CardResolver struct {
	enum   Enumerator
	logger *slog.Logger

	mu    sync.RWMutex
	cfg   Config
	cache [slotCount]*Endpoint
}

// NewCardResolver creates a resolver over an enumerator.
func NewCardResolver(enum Enumerator, cfg Config, logger *slog.Logger) *CardResolver {
	return &CardResolver{enum: enum, cfg: cfg, logger: logger}
}

// SetConfig replaces the configuration and drops the cache.
func (r *CardResolver) SetConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg = cfg
	r.cache = [slotCount]*Endpoint{}
}

// Rescan drops every cached endpoint so the next Resolve scans again.
func (r *CardResolver) Rescan() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = [slotCount]*Endpoint{}
}

// Cached returns the endpoint cached for a slot.
func (r *CardResolver) Cached(slot Slot) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if slot < 0 || slot >= slotCount || r.cache[slot] == nil {
		return Endpoint{}, false
	}

	return *r.cache[slot], true
}

// Resolve returns the endpoint for a direction and route, or ErrNoDevice.
func (r *CardResolver) Resolve(dir Direction, route Route) (Endpoint, error) {
	plain := PlainSlot(dir, route)
	hdmi := HDMISlot(dir)

	r.mu.Lock()
	defer r.mu.Unlock()

	wantHDMI := r.cfg.HDMI.Wanted(dir, route)
	if r.cache[plain] == nil || (wantHDMI && r.cache[hdmi] == nil) {
		r.scan(dir, plain, wantHDMI)
	}

	var (
		ep   *Endpoint
		slot Slot
	)

	switch {
	case wantHDMI && r.cache[hdmi] != nil:
		ep, slot = r.cache[hdmi], hdmi
	case r.cache[plain] != nil:
		ep, slot = r.cache[plain], plain
	case r.cache[hdmi] != nil:
		ep, slot = r.cache[hdmi], hdmi
	default:
		return Endpoint{}, wrapf(ErrNoDevice, "%s route %s", dir, route.Describe(dir))
	}

	r.logger.Info("Chose endpoint", "node", ep.Node, "slot", slot.String(), "route", route.Describe(dir))

	return *ep, nil
}

// scan must be called with mu held.
func (r *CardResolver) scan(dir Direction, plain Slot, wantHDMI bool) {
	resolverScans.WithLabelValues(dir.String()).Inc()

	if node, slot := r.override(dir, plain, wantHDMI); node != "" {
		ep, err := r.enum.Lookup(node)
		if err != nil {
			r.logger.Warn("Configured node unavailable", "node", node, "slot", slot.String(), "error", err)

			return
		}

		r.logger.Info("Using configured node", "node", node, "slot", slot.String())
		r.cache[slot] = &ep

		return
	}

	eps, err := r.enum.Endpoints()
	if err != nil {
		r.logger.Warn("Endpoint scan failed", "error", err)

		return
	}

	for i := range eps {
		ep := eps[i]
		if ep.Direction != dir || r.excluded(ep.ID) {
			continue
		}

		r.logger.Debug("Found endpoint", "direction", dir.String(), "node", ep.Node,
			"card", ep.Card, "device", ep.Device, "id", ep.ID, "name", ep.Name)

		slot := plain
		if r.isHDMI(ep.ID) {
			slot = HDMISlot(dir)
		}

		if r.cache[slot] != nil {
			r.logger.Debug("Ignoring endpoint, slot already filled", "node", ep.Node, "slot", slot.String())

			continue
		}

		r.cache[slot] = &ep
	}
}

// override returns the configured node replacing the scan and the slot it fills.
func (r *CardResolver) override(dir Direction, plain Slot, wantHDMI bool) (string, Slot) {
	hdmi := HDMISlot(dir)
	if node := r.cfg.Route(hdmi).Node; wantHDMI && node != "" {
		return node, hdmi
	}

	if node := r.cfg.Route(plain).Node; node != "" {
		return node, plain
	}

	generic := r.cfg.Output
	if dir == Input {
		generic = r.cfg.Input
	}

	return generic, plain
}

func (r *CardResolver) excluded(id string) bool {
	for _, pattern := range r.cfg.ExcludeIDs {
		if pattern != "" && strings.Contains(id, pattern) {
			return true
		}
	}

	return false
}

func (r *CardResolver) isHDMI(id string) bool {
	return r.cfg.HDMIMatch != "" && strings.Contains(strings.ToLower(id), strings.ToLower(r.cfg.HDMIMatch))
}
