//go:build linux && (386 || arm)

package pcm

// sndPcmUframesT is the C unsigned long, 32 bits wide here.
type sndPcmUframesT = uint32

// kernelTimespec is the 64-bit time layout used by time64 kernels on 32-bit hosts.
type kernelTimespec struct {
	Sec  int64
	Nsec int64
}

type sndXferi struct {
	Result int32
	Buf    uintptr
	Frames sndPcmUframesT
}

type sndPcmHwParams struct {
	Flags     uint32
	Masks     [3]sndMask
	Mres      [5]sndMask
	Intervals [12]sndInterval
	Ires      [9]sndInterval
	Rmask     uint32
	Cmask     uint32
	Info      uint32
	Msbits    uint32
	RateNum   uint32
	RateDen   uint32
	FifoSize  sndPcmUframesT
	Reserved  [64]byte
}

type sndPcmMmapStatus struct {
	State          int32
	Pad1           int32
	HwPtr          sndPcmUframesT
	_              [4]byte
	Tstamp         kernelTimespec
	SuspendedState int32
	_              [4]byte
	AudioTstamp    kernelTimespec
}

type sndPcmSyncPtr struct {
	Flags uint32
	_     [4]byte
	S     struct {
		sndPcmMmapStatus
		_ [8]byte
	}
	C struct {
		sndPcmMmapControl
		_ [56]byte
	}
}

type sndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	AvailMin         sndPcmUframesT
	XferAlign        sndPcmUframesT
	StartThreshold   sndPcmUframesT
	StopThreshold    sndPcmUframesT
	SilenceThreshold sndPcmUframesT
	SilenceSize      sndPcmUframesT
	Boundary         sndPcmUframesT
	Reserved         [64]byte
}
