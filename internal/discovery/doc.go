// Package discovery enumerates panda devices connected over USB.
//
// A panda shows up on the bus in one of three states, each with its own
// USB identity:
//
//   - Application firmware: 0xbbaa:0xddcc
//   - Bootstub:             0xbbaa:0xddee
//   - ST DFU bootloader:    0x0483:0xdf11
//
// Discovery reads descriptors only; no control transfers are issued, so
// scanning never disturbs a device mid-operation.
//
// # Usage Example
//
//	devices, err := discovery.Scan()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, device := range devices {
//	    fmt.Println(device)
//	}
//
// # DFU Serial Caveat
//
// A device in DFU mode reports the serial of the ST system bootloader,
// derived from the chip UID, not the panda's own USB serial. Matching a
// DFU entry back to a specific panda requires the UID-derived serial
// (see the panda package).
//
// # Thread Safety
//
// Scan opens its own libusb context per call and is safe for concurrent
// use.
package discovery
