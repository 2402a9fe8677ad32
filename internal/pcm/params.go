package pcm

// paramInit opens every mask and interval to its full range.
func paramInit(p *sndPcmHwParams) {
	for n := range p.Masks {
		for i := range p.Masks[n].Bits {
			p.Masks[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Mres {
		for i := range p.Mres[n].Bits {
			p.Mres[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Intervals {
		p.Intervals[n] = sndInterval{MaxVal: ^uint32(0)}
	}

	for n := range p.Ires {
		p.Ires[n] = sndInterval{MaxVal: ^uint32(0)}
	}

	p.Rmask = ^uint32(0)
	p.Info = ^uint32(0)
}

// paramSetMask restricts a mask parameter to a single bit.
func paramSetMask(p *sndPcmHwParams, param int, bit uint32) {
	if param < paramAccess || param > paramSubformat || bit >= 256 {
		return
	}

	mask := &p.Masks[param-paramAccess]
	mask.Bits = [8]uint32{}
	mask.Bits[bit>>5] |= 1 << (bit & 31)
}

func interval(p *sndPcmHwParams, param int) *sndInterval {
	if param < paramSampleBits || param > paramTickTime {
		return nil
	}

	return &p.Intervals[param-paramSampleBits]
}

// paramSetInt pins an interval parameter to one integer value.
func paramSetInt(p *sndPcmHwParams, param int, val uint32) {
	if i := interval(p, param); i != nil {
		*i = sndInterval{MinVal: val, MaxVal: val, Flags: intervalInteger}
	}
}

func paramSetMin(p *sndPcmHwParams, param int, val uint32) {
	if i := interval(p, param); i != nil {
		i.MinVal = val
	}
}

// paramGetInt reads the refined value; the driver narrows the interval to its minimum.
func paramGetInt(p *sndPcmHwParams, param int) uint32 {
	if i := interval(p, param); i != nil {
		return i.MinVal
	}

	return 0
}
