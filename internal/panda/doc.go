// Package panda drives a comma.ai Panda over USB.
//
// The Panda enumerates as vendor 0xbbaa with product 0xddcc when running
// application firmware and 0xddee when sitting in the bootstub. A bricked
// device falls back to the ST system bootloader at 0483:df11, which speaks
// standard ST DFU and is handled by the DFU type in this package.
//
// # Protocol
//
// All device queries are vendor control transfers against the default
// endpoint: firmware version (0xd6), build signature (0xd3/0xd4), serial
// block (0xd0), hardware type (0xc1), chip UID (0xc3). State transitions
// are writes: reset (0xd8), enter bootstub or system bootloader (0xd1).
// Application flashing talks to the bootstub's flasher (0xb0-0xb2) and
// streams code over bulk OUT endpoint 2.
//
// The protocol layer sits on a narrow transport interface so tests can
// drive it with a scripted fake instead of real hardware; the gousb-backed
// implementation lives in usb.go.
//
// # Typical flow
//
//	p, err := panda.Connect(ctx, "", logger)
//	if err != nil { ... }
//	defer p.Close()
//
//	version, err := p.Version()
//	sig, err := p.Signature()
//
// Flashing requires the device to be in the bootstub first:
//
//	p.ResetToBootstub()
//	p, err = panda.Reconnect(ctx, serial, logger)
//	err = p.FlashApplication(code, nil)
package panda
