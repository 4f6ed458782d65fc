package panda

import (
	"errors"
	"fmt"
)

// Sentinel errors for device discovery and state preconditions.
var (
	// ErrNoDevice means no Panda matched during USB enumeration.
	ErrNoDevice = errors.New("no panda device found")

	// ErrNoDFUDevice means no ST DFU bootloader matched during enumeration.
	ErrNoDFUDevice = errors.New("no panda DFU device found")

	// ErrNotBootstub is returned when an operation requires the bootstub
	// but the device is running application firmware.
	ErrNotBootstub = errors.New("device is not in bootstub mode")
)

// ProtocolError wraps a failed control transfer with the operation that
// issued it.
type ProtocolError struct {
	// Op names the logical device operation, e.g. "get version".
	Op string

	// Err is the underlying transfer error.
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("panda: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IntegrityError reports a device response that failed its checksum.
type IntegrityError struct {
	Op string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("panda: %s: response failed integrity check", e.Op)
}

// FlashError reports a failure at a specific stage of the flashing
// sequence. The stage tells how far the flasher got, which matters for
// judging whether the device was left in a recoverable state.
type FlashError struct {
	Stage string
	Err   error
}

func (e *FlashError) Error() string {
	return fmt.Sprintf("flash %s: %v", e.Stage, e.Err)
}

func (e *FlashError) Unwrap() error {
	return e.Err
}
