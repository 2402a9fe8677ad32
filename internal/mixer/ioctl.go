package mixer

import (
	"syscall"
	"unsafe"
)

func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}

	return nil
}

const (
	iocWrite = 1
	iocRead  = 2

	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr | size<<iocSizeShift
}

// Control element type of switches.
const (
	SNDRV_CTL_ELEM_TYPE_BOOLEAN = 1
)

// Control element access flags.
const (
	SNDRV_CTL_ELEM_ACCESS_READ  = 1 << 0
	SNDRV_CTL_ELEM_ACCESS_WRITE = 1 << 1
)

var (
	SNDRV_CTL_IOCTL_CARD_INFO  = ioc(iocRead, 'U', 0x01, unsafe.Sizeof(sndCtlCardInfo{}))
	SNDRV_CTL_IOCTL_ELEM_LIST  = ioc(iocRead|iocWrite, 'U', 0x10, unsafe.Sizeof(sndCtlElemList{}))
	SNDRV_CTL_IOCTL_ELEM_INFO  = ioc(iocRead|iocWrite, 'U', 0x11, unsafe.Sizeof(sndCtlElemInfo{}))
	SNDRV_CTL_IOCTL_ELEM_READ  = ioc(iocRead|iocWrite, 'U', 0x12, unsafe.Sizeof(sndCtlElemValue{}))
	SNDRV_CTL_IOCTL_ELEM_WRITE = ioc(iocRead|iocWrite, 'U', 0x13, unsafe.Sizeof(sndCtlElemValue{}))
)
