//go:build linux && (amd64 || arm64)

package pcm

import "golang.org/x/sys/unix"

// sndPcmUframesT is the C unsigned long, 64 bits wide here.
type sndPcmUframesT = uint64

type sndXferi struct {
	Result int
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
	Tstamp         unix.Timespec
	SuspendedState int32
	_              [4]byte
	AudioTstamp    unix.Timespec
}

// sndPcmSyncPtr must match the kernel layout exactly; both unions are padded to 64 bytes.
type sndPcmSyncPtr struct {
	Flags uint32
	_     [4]byte
	S     struct {
		sndPcmMmapStatus
		_ [8]byte
	}
	C struct {
		sndPcmMmapControl
		_ [48]byte
	}
}

// sndPcmSwParams has 4 bytes of padding after SleepMin to align the 64-bit fields.
type sndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	_                [4]byte
	AvailMin         sndPcmUframesT
	XferAlign        sndPcmUframesT
	StartThreshold   sndPcmUframesT
	StopThreshold    sndPcmUframesT
	SilenceThreshold sndPcmUframesT
	SilenceSize      sndPcmUframesT
	Boundary         sndPcmUframesT
	Reserved         [64]byte
}
