package pcm

import "time"

// HTimestamp returns the number of frames the application may transfer without
// blocking, together with the time the hardware pointer was last updated.
// It fails with ErrNotRunning unless the stream is running or draining.
func (p *PCM) HTimestamp() (avail uint32, ts time.Time, err error) {
	if !p.IsReady() {
		return 0, time.Time{}, ErrNotRunning
	}

	if err = p.syncPtr(syncPtrHWSync); err != nil {
		return 0, time.Time{}, err
	}

	switch State(p.sync.S.State) {
	case SNDRV_PCM_STATE_RUNNING, SNDRV_PCM_STATE_DRAINING:
	default:
		return 0, time.Time{}, ErrNotRunning
	}

	if p.sync.S.Tstamp.Sec == 0 && p.sync.S.Tstamp.Nsec == 0 {
		return 0, time.Time{}, ErrNotRunning
	}

	ts = time.Unix(int64(p.sync.S.Tstamp.Sec), int64(p.sync.S.Tstamp.Nsec))

	return p.avail(uint64(p.sync.S.HwPtr), uint64(p.sync.C.ApplPtr)), ts, nil
}

// avail computes free space (playback) or pending frames (capture) across the pointer boundary.
func (p *PCM) avail(hw, appl uint64) uint32 {
	boundary := uint64(p.boundary)

	if p.flags&PCM_IN != 0 {
		a := int64(hw) - int64(appl)
		if a < 0 {
			a += int64(boundary)
		}

		return uint32(a)
	}

	a := int64(hw) + int64(p.bufferSize) - int64(appl)
	if a < 0 {
		a += int64(boundary)
	} else if boundary > 0 && uint64(a) >= boundary {
		a -= int64(boundary)
	}

	return uint32(a)
}
