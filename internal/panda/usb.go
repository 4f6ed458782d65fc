package panda

import (
	"fmt"

	"github.com/google/gousb"

	"github.com/afflitto/comma-guru/internal/logging"
)

// USB identity of the Panda in its three states.
const (
	pandaVendorID    = gousb.ID(0xbbaa)
	pandaAppPID      = gousb.ID(0xddcc)
	pandaBootstubPID = gousb.ID(0xddee)

	// ST system bootloader (DFU mode).
	dfuVendorID  = gousb.ID(0x0483)
	dfuProductID = gousb.ID(0xdf11)
)

// Control transfer request types (bmRequestType bit fields).
const (
	vendorRequestIn  uint8 = gousb.ControlVendor | gousb.ControlDevice | gousb.ControlIn
	vendorRequestOut uint8 = gousb.ControlVendor | gousb.ControlDevice | gousb.ControlOut
	classRequestIn   uint8 = gousb.ControlClass | gousb.ControlInterface | gousb.ControlIn
	classRequestOut  uint8 = gousb.ControlClass | gousb.ControlInterface | gousb.ControlOut
)

// transport is the slice of USB I/O the protocol layer needs. Tests drive
// the protocol with a scripted fake; usbTransport is the only real
// implementation.
type transport interface {
	controlIn(request uint8, value, index uint16, length int) ([]byte, error)
	controlOut(request uint8, value, index uint16, data []byte) error
	bulkWrite(endpoint int, data []byte) (int, error)
	close() error
}

// usbTransport implements transport over a gousb device. The bulk
// endpoint is claimed lazily since only bootstub flashing needs it.
type usbTransport struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	reqIn  uint8
	reqOut uint8
}

func (t *usbTransport) controlIn(request uint8, value, index uint16, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := t.dev.Control(t.reqIn, request, value, index, buf)
	if err != nil {
		return nil, err
	}
	logging.LogControlTransfer("in", request, value, index, buf[:n])
	return buf[:n], nil
}

func (t *usbTransport) controlOut(request uint8, value, index uint16, data []byte) error {
	logging.LogControlTransfer("out", request, value, index, data)
	_, err := t.dev.Control(t.reqOut, request, value, index, data)
	return err
}

func (t *usbTransport) bulkWrite(endpoint int, data []byte) (int, error) {
	if err := t.claimInterface(); err != nil {
		return 0, err
	}
	ep, err := t.intf.OutEndpoint(endpoint)
	if err != nil {
		return 0, fmt.Errorf("open bulk OUT endpoint %d: %w", endpoint, err)
	}
	logging.LogRawBytes(fmt.Sprintf("bulk OUT ep%d", endpoint), data)
	return ep.Write(data)
}

func (t *usbTransport) claimInterface() error {
	if t.intf != nil {
		return nil
	}
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("claim configuration: %w", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("claim interface: %w", err)
	}
	t.cfg = cfg
	t.intf = intf
	return nil
}

func (t *usbTransport) close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		_ = t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		_ = t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		err := t.ctx.Close()
		t.ctx = nil
		return err
	}
	return nil
}

// openPandaDevice enumerates Panda devices and opens one. When serial is
// non-empty only a device with that USB serial string matches. Returns
// the transport, the product ID (which tells app firmware from bootstub
// apart) and the device's USB serial.
func openPandaDevice(serial string) (*usbTransport, gousb.ID, string, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == pandaVendorID &&
			(desc.Product == pandaAppPID || desc.Product == pandaBootstubPID)
	})
	if err != nil && len(devs) == 0 {
		_ = ctx.Close()
		return nil, 0, "", fmt.Errorf("usb enumeration: %w", err)
	}

	var picked *gousb.Device
	var pickedSerial string
	for _, dev := range devs {
		if picked != nil {
			_ = dev.Close()
			continue
		}
		sn, snErr := dev.SerialNumber()
		if serial != "" && (snErr != nil || sn != serial) {
			_ = dev.Close()
			continue
		}
		picked = dev
		pickedSerial = sn
	}
	if picked == nil {
		_ = ctx.Close()
		return nil, 0, "", ErrNoDevice
	}

	_ = picked.SetAutoDetach(true)

	t := &usbTransport{
		ctx:    ctx,
		dev:    picked,
		reqIn:  vendorRequestIn,
		reqOut: vendorRequestOut,
	}
	return t, picked.Desc.Product, pickedSerial, nil
}

// openDFUDevice opens the ST bootloader with the given DFU serial.
func openDFUDevice(serial string) (*usbTransport, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == dfuVendorID && desc.Product == dfuProductID
	})
	if err != nil && len(devs) == 0 {
		_ = ctx.Close()
		return nil, fmt.Errorf("usb enumeration: %w", err)
	}

	var picked *gousb.Device
	for _, dev := range devs {
		if picked != nil {
			_ = dev.Close()
			continue
		}
		sn, snErr := dev.SerialNumber()
		if serial != "" && (snErr != nil || sn != serial) {
			_ = dev.Close()
			continue
		}
		picked = dev
	}
	if picked == nil {
		_ = ctx.Close()
		return nil, ErrNoDFUDevice
	}

	_ = picked.SetAutoDetach(true)

	return &usbTransport{
		ctx:    ctx,
		dev:    picked,
		reqIn:  classRequestIn,
		reqOut: classRequestOut,
	}, nil
}

// listDFUSerials returns the serial strings of all enumerated ST DFU
// devices. Used to poll for a recovering Panda dropping into DFU mode.
func listDFUSerials() ([]string, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == dfuVendorID && desc.Product == dfuProductID
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("usb enumeration: %w", err)
	}

	var serials []string
	for _, dev := range devs {
		if sn, snErr := dev.SerialNumber(); snErr == nil {
			serials = append(serials, sn)
		}
		_ = dev.Close()
	}
	return serials, nil
}
