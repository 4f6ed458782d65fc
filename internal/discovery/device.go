package discovery

import (
	"fmt"
	"sort"
	"time"
)

// Mode is the state a discovered device is in, derived from its USB
// product ID.
type Mode int

const (
	ModeApplication Mode = iota
	ModeBootstub
	ModeDFU
)

// String returns the mode name as shown in listings
func (m Mode) String() string {
	switch m {
	case ModeApplication:
		return "application"
	case ModeBootstub:
		return "bootstub"
	case ModeDFU:
		return "DFU"
	default:
		return "unknown"
	}
}

// Device represents a panda found on the USB bus
type Device struct {
	// Serial is the USB serial string. For DFU devices this is the
	// bootloader's UID-derived serial, not the panda serial.
	Serial string

	// Mode is the device state derived from the product ID
	Mode Mode

	// VendorID and ProductID are the raw USB identity
	VendorID  uint16
	ProductID uint16

	// DiscoveredAt is when the device was seen on the bus
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("panda %s (%s)", d.Serial, d.Mode)
}

// Recoverable reports whether the device is sitting in DFU mode and
// needs the recover flow before it can be opened as a panda.
func (d *Device) Recoverable() bool {
	return d.Mode == ModeDFU
}

// SortDevices orders a scan result for display: pandas before DFU
// devices, then by serial.
func SortDevices(devices []*Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Mode != devices[j].Mode {
			return devices[i].Mode < devices[j].Mode
		}
		return devices[i].Serial < devices[j].Serial
	})
}
