package discovery

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// USB identities a panda can enumerate with.
const (
	pandaVendorID    = 0xbbaa
	pandaAppPID      = 0xddcc
	pandaBootstubPID = 0xddee

	dfuVendorID  = 0x0483
	dfuProductID = 0xdf11
)

// classify maps a USB identity to a device mode. The second return is
// false for devices that are not pandas.
func classify(vendor, product uint16) (Mode, bool) {
	switch {
	case vendor == pandaVendorID && product == pandaAppPID:
		return ModeApplication, true
	case vendor == pandaVendorID && product == pandaBootstubPID:
		return ModeBootstub, true
	case vendor == dfuVendorID && product == dfuProductID:
		return ModeDFU, true
	default:
		return 0, false
	}
}

// Scan enumerates the USB bus and returns every panda found, in display
// order. Devices whose serial cannot be read (typically a permission
// problem) are skipped.
func Scan() ([]*Device, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := classify(uint16(desc.Vendor), uint16(desc.Product))
		return ok
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("usb enumeration: %w", err)
	}

	now := time.Now()
	var found []*Device
	for _, dev := range devs {
		mode, _ := classify(uint16(dev.Desc.Vendor), uint16(dev.Desc.Product))
		sn, snErr := dev.SerialNumber()
		_ = dev.Close()
		if snErr != nil {
			continue
		}
		found = append(found, &Device{
			Serial:       sn,
			Mode:         mode,
			VendorID:     uint16(dev.Desc.Vendor),
			ProductID:    uint16(dev.Desc.Product),
			DiscoveredAt: now,
		})
	}

	SortDevices(found)
	return found, nil
}
