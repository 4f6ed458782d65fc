package panda

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/afflitto/comma-guru/internal/firmware"
)

// Vendor control requests understood by Panda firmware (app and bootstub).
const (
	requestHardwareType = 0xc1
	requestUID          = 0xc3
	requestSerial       = 0xd0
	requestEnterMode    = 0xd1
	requestSignaturePt1 = 0xd3
	requestSignaturePt2 = 0xd4
	requestVersion      = 0xd6
	requestReset        = 0xd8
)

// wValue arguments for requestEnterMode.
const (
	enterBootloader = 0
	enterBootstub   = 1
)

const reconnectPollInterval = 100 * time.Millisecond

// Panda is an open connection to one device.
type Panda struct {
	tr        transport
	logger    *zap.Logger
	usbSerial string
	bootstub  bool
	board     *Board
	mcu       McuType
}

// Connect enumerates Panda devices and opens one. When serial is
// non-empty, only the device with that USB serial string matches;
// otherwise the first device found is used. The hardware type is probed
// immediately so the MCU family is known for the connection's lifetime.
func Connect(serial string, logger *zap.Logger) (*Panda, error) {
	tr, productID, usbSerial, err := openPandaDevice(serial)
	if err != nil {
		return nil, err
	}

	p := &Panda{
		tr:        tr,
		logger:    logger,
		usbSerial: usbSerial,
		bootstub:  productID == pandaBootstubPID,
	}

	if err := p.probe(); err != nil {
		_ = tr.close()
		return nil, err
	}

	logger.Debug("connected to panda",
		zap.String("usb_serial", usbSerial),
		zap.Bool("bootstub", p.bootstub),
		zap.String("board", p.board.Name),
		zap.Stringer("mcu", p.mcu),
	)
	return p, nil
}

// Reconnect polls for the device to come back after a reset, bounded by
// ctx.
func Reconnect(ctx context.Context, serial string, logger *zap.Logger) (*Panda, error) {
	for {
		p, err := Connect(serial, logger)
		if err == nil {
			return p, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for panda to reconnect: %w", ctx.Err())
		case <-time.After(reconnectPollInterval):
		}
	}
}

// probe reads the hardware type and resolves board and MCU family from
// the catalog.
func (p *Panda) probe() error {
	dat, err := p.tr.controlIn(requestHardwareType, 0, 0, 1)
	if err != nil {
		return &ProtocolError{Op: "get hardware type", Err: err}
	}
	if len(dat) < 1 {
		return &ProtocolError{Op: "get hardware type", Err: fmt.Errorf("empty response")}
	}

	db, err := LoadBoards()
	if err != nil {
		return err
	}
	board, ok := db.Get(dat[0])
	if !ok {
		return &ProtocolError{Op: "get hardware type", Err: fmt.Errorf("unknown hardware type 0x%02x", dat[0])}
	}

	p.board = board
	p.mcu = board.McuType()
	return nil
}

// Close releases the USB device.
func (p *Panda) Close() error {
	return p.tr.close()
}

// Bootstub reports whether the device is sitting in the bootstub rather
// than running application firmware.
func (p *Panda) Bootstub() bool { return p.bootstub }

// Board returns the probed hardware revision.
func (p *Panda) Board() *Board { return p.board }

// Mcu returns the probed MCU family.
func (p *Panda) Mcu() McuType { return p.mcu }

// USBSerial returns the USB descriptor serial string of the open device.
func (p *Panda) USBSerial() string { return p.usbSerial }

// Version returns the firmware version string, e.g.
// "v1.2.3-DEV-deadbeef-DEBUG". In bootstub mode this is the bootstub's
// own version.
func (p *Panda) Version() (string, error) {
	dat, err := p.tr.controlIn(requestVersion, 0, 0, 0x40)
	if err != nil {
		return "", &ProtocolError{Op: "get version", Err: err}
	}
	if i := bytes.IndexByte(dat, 0); i >= 0 {
		dat = dat[:i]
	}
	return string(dat), nil
}

// Signature returns the running firmware's build signature. The device
// reports it in two 64-byte halves.
func (p *Panda) Signature() (firmware.Signature, error) {
	var sig firmware.Signature

	part1, err := p.tr.controlIn(requestSignaturePt1, 0, 0, 0x40)
	if err != nil {
		return sig, &ProtocolError{Op: "get signature", Err: err}
	}
	part2, err := p.tr.controlIn(requestSignaturePt2, 0, 0, 0x40)
	if err != nil {
		return sig, &ProtocolError{Op: "get signature", Err: err}
	}
	if len(part1)+len(part2) != firmware.SignatureLength {
		return sig, &ProtocolError{
			Op:  "get signature",
			Err: fmt.Errorf("expected %d bytes, got %d", firmware.SignatureLength, len(part1)+len(part2)),
		}
	}

	copy(sig[:], part1)
	copy(sig[len(part1):], part2)
	return sig, nil
}

// Serial returns the two fields of the device's serial block. The block
// carries a truncated SHA-1 over its payload; a checksum mismatch means
// the response was corrupted in transfer.
func (p *Panda) Serial() (string, string, error) {
	dat, err := p.tr.controlIn(requestSerial, 0, 0, 0x20)
	if err != nil {
		return "", "", &ProtocolError{Op: "get serial", Err: err}
	}
	if len(dat) != 0x20 {
		return "", "", &ProtocolError{Op: "get serial", Err: fmt.Errorf("expected 32 bytes, got %d", len(dat))}
	}

	sum := sha1.Sum(dat[:0x1c])
	if !bytes.Equal(sum[:4], dat[0x1c:]) {
		return "", "", &IntegrityError{Op: "get serial"}
	}

	return string(trimNul(dat[0:0x10])), string(trimNul(dat[0x10:0x1a])), nil
}

// UID returns the 96-bit chip UID as lowercase hex.
func (p *Panda) UID() (string, error) {
	dat, err := p.tr.controlIn(requestUID, 0, 0, uidLength)
	if err != nil {
		return "", &ProtocolError{Op: "get uid", Err: err}
	}
	if len(dat) != uidLength {
		return "", &ProtocolError{Op: "get uid", Err: fmt.Errorf("expected %d bytes, got %d", uidLength, len(dat))}
	}
	return fmt.Sprintf("%x", dat), nil
}

// DFUSerial returns the serial the ST bootloader will report when this
// device is dropped into DFU mode.
func (p *Panda) DFUSerial() (string, error) {
	uid, err := p.UID()
	if err != nil {
		return "", err
	}
	return DFUSerialFromUID(uid, p.mcu)
}

// UpToDate reports whether the device already runs the firmware image at
// path, by comparing build signatures.
func (p *Panda) UpToDate(path string) (bool, error) {
	fileSig, err := firmware.SignatureFromFirmware(path)
	if err != nil {
		return false, err
	}
	devSig, err := p.Signature()
	if err != nil {
		return false, err
	}
	return fileSig == devSig, nil
}

// Reset restarts the device into application firmware. The device drops
// off the bus mid-transfer, so transfer errors are expected and ignored.
func (p *Panda) Reset() {
	p.resetOut(requestReset, 0)
}

// ResetToBootstub restarts the device into the bootstub.
func (p *Panda) ResetToBootstub() {
	p.resetOut(requestEnterMode, enterBootstub)
	p.bootstub = true
}

// ResetToBootloader drops the device into the ST system bootloader (DFU
// mode). Only honored by the bootstub.
func (p *Panda) ResetToBootloader() {
	p.resetOut(requestEnterMode, enterBootloader)
}

func (p *Panda) resetOut(request uint8, value uint16) {
	if err := p.tr.controlOut(request, value, 0, nil); err != nil {
		p.logger.Debug("reset transfer error (expected, device went away)",
			zap.Uint8("request", request),
			zap.Error(err),
		)
	}
}

// WaitForDFU polls USB enumeration until a DFU device with the given
// serial appears, bounded by ctx.
func WaitForDFU(ctx context.Context, dfuSerial string) error {
	for {
		serials, err := listDFUSerials()
		if err == nil {
			for _, s := range serials {
				if s == dfuSerial {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for DFU device %s: %w", dfuSerial, ctx.Err())
		case <-time.After(reconnectPollInterval):
		}
	}
}

func trimNul(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}
