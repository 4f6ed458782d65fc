package panda

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

// Standard DFU class requests.
const (
	dfuDnload    = 0x01
	dfuGetStatus = 0x03
	dfuClrStatus = 0x04
	dfuAbort     = 0x06
)

// DfuSe extension commands, sent as the first byte of a wBlockNum=0
// DNLOAD transfer.
const (
	dfuseSetAddress = 0x21
	dfuseErase      = 0x41
)

// dfuStatusLength is the size of a GETSTATUS response.
const dfuStatusLength = 6

// DFU is an open connection to a Panda stuck in the ST system bootloader.
// It can reprogram the bootstub, which is enough to make the device
// recoverable with a normal flash afterwards.
type DFU struct {
	tr     transport
	mcu    McuType
	logger *zap.Logger
}

// OpenDFU connects to the DFU device with the given serial. The MCU
// family must be supplied by the caller since the bare bootloader cannot
// report it; it is normally remembered from the device before it was
// reset into DFU mode.
func OpenDFU(dfuSerial string, mcu McuType, logger *zap.Logger) (*DFU, error) {
	tr, err := openDFUDevice(dfuSerial)
	if err != nil {
		return nil, err
	}
	return &DFU{tr: tr, mcu: mcu, logger: logger}, nil
}

// Close releases the USB device.
func (d *DFU) Close() error {
	return d.tr.close()
}

// ProgramBootstub erases the bootstub and application regions and writes
// a new bootstub. Erasing the application region too guarantees the
// bootstub won't jump into stale firmware on the next boot.
func (d *DFU) ProgramBootstub(code []byte) error {
	if len(code) == 0 {
		return &FlashError{Stage: "validate", Err: fmt.Errorf("empty bootstub image")}
	}
	cfg := d.mcu.Config()
	if cfg.BootstubAddress == 0 {
		return &FlashError{Stage: "validate", Err: fmt.Errorf("no flash layout for MCU family %s", d.mcu)}
	}

	d.logger.Info("programming bootstub over DFU",
		zap.Int("size", len(code)),
		zap.Stringer("mcu", d.mcu),
	)

	if err := d.clearStatus(); err != nil {
		return &FlashError{Stage: "clear status", Err: err}
	}
	if err := d.erase(cfg.BootstubAddress); err != nil {
		return &FlashError{Stage: "erase bootstub region", Err: err}
	}
	if err := d.erase(cfg.AppAddress); err != nil {
		return &FlashError{Stage: "erase application region", Err: err}
	}
	if err := d.program(cfg.BootstubAddress, code, cfg.DFUBlockSize); err != nil {
		return err
	}
	return nil
}

// Reset leaves DFU mode by setting the address pointer and sending a
// zero-length download, which triggers manifestation and a reboot. The
// device drops off the bus before the final status poll completes, so an
// error there is expected.
func (d *DFU) Reset() {
	cfg := d.mcu.Config()
	if err := d.setAddress(cfg.BootstubAddress); err != nil {
		d.logger.Debug("DFU reset: set address failed", zap.Error(err))
		return
	}
	if err := d.tr.controlOut(dfuDnload, 2, 0, nil); err != nil {
		d.logger.Debug("DFU reset: manifest download failed", zap.Error(err))
		return
	}
	if err := d.pollStatus(); err != nil {
		d.logger.Debug("DFU reset: device went away (expected)", zap.Error(err))
	}
}

// clearStatus drains any error state left over from a previous session.
func (d *DFU) clearStatus() error {
	dat, err := d.tr.controlIn(dfuGetStatus, 0, 0, dfuStatusLength)
	if err != nil {
		return err
	}
	if len(dat) == dfuStatusLength && dat[4] == 0x0a { // dfuERROR
		if err := d.tr.controlOut(dfuClrStatus, 0, 0, nil); err != nil {
			return err
		}
	}
	return nil
}

// pollStatus issues GETSTATUS until the device reports it is done with
// the previous command.
func (d *DFU) pollStatus() error {
	for {
		dat, err := d.tr.controlIn(dfuGetStatus, 0, 0, dfuStatusLength)
		if err != nil {
			return err
		}
		if len(dat) != dfuStatusLength {
			return fmt.Errorf("short DFU status response: %d bytes", len(dat))
		}
		if dat[1] == 0 {
			return nil
		}
	}
}

func (d *DFU) setAddress(address uint32) error {
	cmd := make([]byte, 5)
	cmd[0] = dfuseSetAddress
	binary.LittleEndian.PutUint32(cmd[1:], address)
	if err := d.tr.controlOut(dfuDnload, 0, 0, cmd); err != nil {
		return err
	}
	return d.pollStatus()
}

func (d *DFU) erase(address uint32) error {
	cmd := make([]byte, 5)
	cmd[0] = dfuseErase
	binary.LittleEndian.PutUint32(cmd[1:], address)
	if err := d.tr.controlOut(dfuDnload, 0, 0, cmd); err != nil {
		return err
	}
	return d.pollStatus()
}

// program writes code at address in blockSize chunks, padding the last
// block with 0xFF so partial blocks never program stray bytes. Data
// blocks start at wBlockNum 2 per the DfuSe convention.
func (d *DFU) program(address uint32, code []byte, blockSize int) error {
	if err := d.setAddress(address); err != nil {
		return &FlashError{Stage: "set address", Err: err}
	}

	padded := code
	if rem := len(code) % blockSize; rem != 0 {
		padded = make([]byte, len(code)+blockSize-rem)
		copy(padded, code)
		for i := len(code); i < len(padded); i++ {
			padded[i] = 0xFF
		}
	}

	for i := 0; i < len(padded)/blockSize; i++ {
		block := padded[i*blockSize : (i+1)*blockSize]
		if err := d.tr.controlOut(dfuDnload, uint16(2+i), 0, block); err != nil {
			return &FlashError{Stage: fmt.Sprintf("program block %d", i), Err: err}
		}
		if err := d.pollStatus(); err != nil {
			return &FlashError{Stage: fmt.Sprintf("program block %d", i), Err: err}
		}
	}
	return nil
}
