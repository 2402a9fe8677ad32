package alsahal

import "time"

// BufferType selects how many periods the output keeps queued in hardware.
type BufferType int

const (
	BufferUnknown BufferType = iota
	BufferShort
	BufferLong
)

func (b BufferType) String() string {
	switch b {
	case BufferShort:
		return "short"
	case BufferLong:
		return "long"
	default:
		return "unknown"
	}
}

// Period counts queued per buffer type.
const (
	ShortPeriodCount = 2
	LongPeriodCount  = 8
)

// Sleep bounds for one throttled write.
const (
	MinWriteSleep = 2 * time.Millisecond
	MaxWriteSleep = time.Duration(512*ShortPeriodCount*1000000/48000) * time.Microsecond
)

// PeriodCount returns the queued period count of a buffer type.
func (b BufferType) PeriodCount() int {
	if b == BufferLong {
		return LongPeriodCount
	}

	return ShortPeriodCount
}

// throttle keeps hardware occupancy near a threshold that moves towards its target in
// quarter-period steps.
type throttle struct {
	bufferType BufferType
	write      int // target threshold in frames
	current    int // threshold applied to this write
}

func (t *throttle) reset() {
	t.bufferType = BufferUnknown
}

// setType retargets the threshold when the buffer type changes. Leaving standby snaps the
// current threshold to the target.
func (t *throttle) setType(bt BufferType, period int) {
	if bt == t.bufferType {
		return
	}

	t.write = period * bt.PeriodCount()
	if t.bufferType == BufferUnknown {
		t.current = t.write
	}

	t.bufferType = bt
}

// wait sleeps until hardware occupancy drops to the current threshold, within the sleep
// bounds, and returns the last observed occupancy and the total time slept.
// A failing occupancy query reports zero frames.
func (t *throttle) wait(p PCM, rate int, sleep func(time.Duration)) (int, time.Duration) {
	minUs := int(MinWriteSleep / time.Microsecond)
	maxUs := int(MaxWriteSleep / time.Microsecond)
	totalUs := 0

	var kernel int

	for {
		avail, _, err := p.HTimestamp()
		if err != nil {
			kernel = 0

			break
		}

		kernel = int(p.BufferSize()) - int(avail)

		if kernel > t.current {
			us := int(int64(kernel-t.current) * 1000000 / int64(rate))
			if us < minUs {
				break
			}

			totalUs += us
			if totalUs > maxUs {
				us = maxUs - (totalUs - us)
			}

			sleep(time.Duration(us) * time.Microsecond)
		}

		if kernel <= t.current || totalUs > maxUs {
			break
		}
	}

	slept := time.Duration(min(totalUs, maxUs)) * time.Microsecond

	return kernel, slept
}

// converge moves the current threshold a quarter period towards the target, or re-seeds it
// just above the observed occupancy when the hardware buffer is badly depleted.
func (t *throttle) converge(kernel, period int) {
	step := period / 4

	switch {
	case t.current > t.write:
		t.current = max(t.current-step, t.write)
	case t.current < t.write:
		t.current = min(t.current+step, t.write)
	case kernel < t.write && t.write-kernel > period*ShortPeriodCount:
		t.current = (kernel/period+1)*period + step
	}
}
