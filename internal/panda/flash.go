package panda

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"
)

// Bootstub flasher control requests.
const (
	requestFlasherHello  = 0xb0
	requestFlasherUnlock = 0xb1
	requestFlasherErase  = 0xb2
)

// flasherMagic is the marker the bootstub flasher returns from its hello
// response, at offset 4.
var flasherMagic = []byte{0xde, 0xad, 0xd0, 0x0d}

// flashChunkSize is how much code goes into each bulk transfer. The
// bootstub writes flash one small chunk at a time.
const flashChunkSize = 0x10

// flashEndpoint is the bulk OUT endpoint the bootstub flasher reads code
// from.
const flashEndpoint = 2

// FlashApplication programs application firmware through the bootstub
// flasher and resets the device into it. The device must already be in
// bootstub mode. onProgress, when non-nil, is called after every chunk
// with the running byte count.
func (p *Panda) FlashApplication(code []byte, onProgress func(written, total int)) error {
	if !p.bootstub {
		return ErrNotBootstub
	}
	if len(code) == 0 {
		return &FlashError{Stage: "validate", Err: fmt.Errorf("empty firmware image")}
	}

	cfg := p.mcu.Config()
	if cfg.AppAddress == 0 {
		return &FlashError{Stage: "validate", Err: fmt.Errorf("no flash layout for MCU family %s", p.mcu)}
	}

	p.logger.Info("flashing application firmware",
		zap.Int("size", len(code)),
		zap.Stringer("mcu", p.mcu),
		zap.Uint16s("sectors", cfg.AppSectors),
	)

	// Confirm the flasher is listening before touching flash.
	hello, err := p.tr.controlIn(requestFlasherHello, 0, 0, 0xc)
	if err != nil {
		return &FlashError{Stage: "hello", Err: err}
	}
	if len(hello) < 8 || !bytes.Equal(hello[4:8], flasherMagic) {
		return &FlashError{Stage: "hello", Err: fmt.Errorf("flasher not responding (got % x)", hello)}
	}

	if err := p.tr.controlOut(requestFlasherUnlock, 0, 0, nil); err != nil {
		return &FlashError{Stage: "unlock", Err: err}
	}

	for _, sector := range cfg.AppSectors {
		if err := p.tr.controlOut(requestFlasherErase, sector, 0, nil); err != nil {
			return &FlashError{Stage: fmt.Sprintf("erase sector %d", sector), Err: err}
		}
	}

	for off := 0; off < len(code); off += flashChunkSize {
		end := off + flashChunkSize
		if end > len(code) {
			end = len(code)
		}
		if _, err := p.tr.bulkWrite(flashEndpoint, code[off:end]); err != nil {
			return &FlashError{Stage: fmt.Sprintf("program at offset 0x%x", off), Err: err}
		}
		if onProgress != nil {
			onProgress(end, len(code))
		}
	}

	p.logger.Info("flash complete, resetting device")
	p.Reset()
	p.bootstub = false
	return nil
}
