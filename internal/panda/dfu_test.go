package panda

import (
	"bytes"
	"encoding/binary"
	"testing"

	"go.uber.org/zap"
)

// dfuStatusOK is a GETSTATUS response reporting no error and no pending
// poll timeout.
func dfuStatusOK() []byte {
	return make([]byte, dfuStatusLength)
}

func testDFU(tr transport, mcu McuType) *DFU {
	return &DFU{tr: tr, mcu: mcu, logger: zap.NewNop()}
}

func dnloadWrites(outs []outTransfer) []outTransfer {
	var dn []outTransfer
	for _, o := range outs {
		if o.request == dfuDnload {
			dn = append(dn, o)
		}
	}
	return dn
}

func TestProgramBootstub(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(dfuGetStatus, dfuStatusOK())

	code := bytes.Repeat([]byte{0x11}, 0x900)
	if err := testDFU(fake, McuF4).ProgramBootstub(code); err != nil {
		t.Fatalf("ProgramBootstub failed: %v", err)
	}

	dn := dnloadWrites(fake.outs)
	// erase bootstub, erase app, set address, two data blocks
	if len(dn) != 5 {
		t.Fatalf("expected 5 DNLOAD transfers, got %d", len(dn))
	}

	cfg := McuF4.Config()

	eraseBootstub := dn[0]
	if eraseBootstub.value != 0 || eraseBootstub.data[0] != dfuseErase {
		t.Errorf("unexpected first transfer %+v", eraseBootstub)
	}
	if binary.LittleEndian.Uint32(eraseBootstub.data[1:]) != cfg.BootstubAddress {
		t.Error("first erase must target the bootstub address")
	}

	eraseApp := dn[1]
	if eraseApp.data[0] != dfuseErase || binary.LittleEndian.Uint32(eraseApp.data[1:]) != cfg.AppAddress {
		t.Error("second erase must target the application address")
	}

	setAddr := dn[2]
	if setAddr.data[0] != dfuseSetAddress || binary.LittleEndian.Uint32(setAddr.data[1:]) != cfg.BootstubAddress {
		t.Error("set address must point at the bootstub address")
	}

	// 0x900 bytes pad to 0x1000 with block size 0x800: blocks 2 and 3.
	block0, block1 := dn[3], dn[4]
	if block0.value != 2 || block1.value != 3 {
		t.Errorf("data blocks numbered %d and %d, want 2 and 3", block0.value, block1.value)
	}
	if len(block0.data) != cfg.DFUBlockSize || len(block1.data) != cfg.DFUBlockSize {
		t.Errorf("block sizes %d and %d, want %d", len(block0.data), len(block1.data), cfg.DFUBlockSize)
	}
	if !bytes.Equal(block0.data, code[:cfg.DFUBlockSize]) {
		t.Error("first block does not match the image")
	}
	if !bytes.Equal(block1.data[:0x100], code[cfg.DFUBlockSize:]) {
		t.Error("second block does not start with the image tail")
	}
	if !bytes.Equal(block1.data[0x100:], bytes.Repeat([]byte{0xFF}, cfg.DFUBlockSize-0x100)) {
		t.Error("partial final block must be padded with 0xFF")
	}
}

func TestProgramBootstub_ClearsErrorState(t *testing.T) {
	fake := newFakeTransport()
	// First status poll reports dfuERROR; everything after is clean.
	errStatus := dfuStatusOK()
	errStatus[4] = 0x0a
	fake.respond(dfuGetStatus, errStatus)
	fake.respond(dfuGetStatus, dfuStatusOK())

	code := bytes.Repeat([]byte{0x22}, 0x400)
	if err := testDFU(fake, McuH7).ProgramBootstub(code); err != nil {
		t.Fatalf("ProgramBootstub failed: %v", err)
	}

	if len(fake.outs) == 0 || fake.outs[0].request != dfuClrStatus {
		t.Error("expected CLRSTATUS before touching flash")
	}
}

func TestDFUReset(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(dfuGetStatus, dfuStatusOK())

	testDFU(fake, McuF4).Reset()

	dn := dnloadWrites(fake.outs)
	if len(dn) != 2 {
		t.Fatalf("expected 2 DNLOAD transfers, got %d", len(dn))
	}
	if dn[0].data[0] != dfuseSetAddress {
		t.Error("reset must set the address pointer first")
	}
	if dn[1].value != 2 || len(dn[1].data) != 0 {
		t.Errorf("manifest transfer was %+v, want zero-length block 2", dn[1])
	}
}
