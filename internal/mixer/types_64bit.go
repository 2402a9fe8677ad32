//go:build linux && (amd64 || arm64)

package mixer

// clong is the C long.
type clong = int64

type sndCtlElemValue struct {
	Id sndCtlElemId
	_  [8]byte
	// Value is the union of long value[128] and the other members.
	Value    [1024]byte
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
