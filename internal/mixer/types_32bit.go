//go:build linux && (386 || arm)

package mixer

// clong is the C long.
type clong = int32

type sndCtlElemValue struct {
	Id sndCtlElemId
	_  [4]byte
	// Value is the union of long long value64[64] and the other members.
	Value    [512]byte
	Reserved [128]byte
}

type sndCtlElemList struct {
	Offset   uint32
	Space    uint32
	Used     uint32
	Count    uint32
	Pids     uintptr
	Reserved [50]byte
}
