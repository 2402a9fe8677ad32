package alsahal

import (
	"fmt"
	"strings"
)

// Direction is the data direction of a stream or endpoint.
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "in"
	}

	return "out"
}

// Route is a routing bitmask. Output and input routes share the type but use separate bit sets.
type Route uint32

// Output route bits.
const (
	OutEarpiece        Route = 0x1
	OutSpeaker         Route = 0x2
	OutWiredHeadset    Route = 0x4
	OutWiredHeadphone  Route = 0x8
	OutSCO             Route = 0x10
	OutSCOHeadset      Route = 0x20
	OutSCOCarkit       Route = 0x40
	OutAuxDigital      Route = 0x400
	OutAnalogDock      Route = 0x800
	OutAllSCO                = OutSCO | OutSCOHeadset | OutSCOCarkit
	outHeadphoneFamily       = OutWiredHeadset | OutWiredHeadphone
)

// Input route bits. InBit marks a value as an input route on the parameter channel and is
// stripped before a route is stored.
const (
	InBit           Route = 0x80000000
	InCommunication Route = 0x1
	InAmbient       Route = 0x2
	InBuiltinMic    Route = 0x4
	InSCOHeadset    Route = 0x8
	InWiredHeadset  Route = 0x10
	InAuxDigital    Route = 0x20
	InAllSCO              = InSCOHeadset
)

// Default routes of a freshly opened device.
const (
	DefaultOutputRoute = OutSpeaker
	DefaultInputRoute  = InBuiltinMic
)

// SCO reports whether the route selects the call path for the given direction.
func (r Route) SCO(dir Direction) bool {
	if dir == Input {
		return r&InAllSCO != 0
	}

	return r&OutAllSCO != 0
}

// Digital reports whether the route has the direction's HDMI/digital bit set.
func (r Route) Digital(dir Direction) bool {
	if dir == Input {
		return r&InAuxDigital != 0
	}

	return r&OutAuxDigital != 0
}

var routeNames = []struct {
	dir  Direction
	bit  Route
	name string
}{
	{Output, OutEarpiece, "earpiece"},
	{Output, OutSpeaker, "speaker"},
	{Output, OutWiredHeadset, "wired-headset"},
	{Output, OutWiredHeadphone, "wired-headphone"},
	{Output, OutSCO, "sco"},
	{Output, OutSCOHeadset, "sco-headset"},
	{Output, OutSCOCarkit, "sco-carkit"},
	{Output, OutAuxDigital, "aux-digital"},
	{Output, OutAnalogDock, "analog-dock"},
	{Input, InCommunication, "communication"},
	{Input, InAmbient, "ambient"},
	{Input, InBuiltinMic, "builtin-mic"},
	{Input, InSCOHeadset, "sco-headset"},
	{Input, InWiredHeadset, "wired-headset"},
	{Input, InAuxDigital, "aux-digital"},
}

// Describe renders the set bits of a route for logs, e.g. "speaker|wired-headphone".
func (r Route) Describe(dir Direction) string {
	var parts []string
	rest := r &^ InBit

	for _, n := range routeNames {
		if n.dir == dir && rest&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}

	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}

	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, "|")
}
