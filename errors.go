package alsahal

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrNoDevice is returned when no endpoint matches a route.
	ErrNoDevice = errors.New("alsahal: no matching audio device")
	// ErrHardwareUnavailable is returned when an endpoint resolved but could not be opened.
	ErrHardwareUnavailable = errors.New("alsahal: hardware unavailable")
	// ErrUnsupported is returned for operations the HAL does not implement or when a limit is reached.
	ErrUnsupported = errors.New("alsahal: unsupported")
	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("alsahal: invalid argument")
	// ErrUnderrun is returned by Write when the hardware ran dry. It also matches syscall.EPIPE.
	ErrUnderrun error = underrunError{}
	// ErrReadFailure is returned when capture produced no data.
	ErrReadFailure = errors.New("alsahal: read failure")
	// ErrClosed is returned when a closed device or stream is used.
	ErrClosed = errors.New("alsahal: closed")
)

type underrunError struct{}

func (underrunError) Error() string { return "alsahal: underrun" }

func (underrunError) Is(target error) bool { return target == syscall.EPIPE }

func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
