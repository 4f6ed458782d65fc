package panda

import (
	"bytes"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func flasherHello() []byte {
	hello := make([]byte, 0xc)
	copy(hello[4:8], flasherMagic)
	return hello
}

func TestFlashApplication(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(requestFlasherHello, flasherHello())

	p := testPanda(fake)
	p.bootstub = true

	code := bytes.Repeat([]byte{0x42}, 0x28)
	var progress []int
	err := p.FlashApplication(code, func(written, total int) {
		progress = append(progress, written)
		if total != len(code) {
			t.Errorf("progress total %d, want %d", total, len(code))
		}
	})
	if err != nil {
		t.Fatalf("FlashApplication failed: %v", err)
	}

	// unlock, erase x3 (F4 app sectors), reset
	if len(fake.outs) != 5 {
		t.Fatalf("expected 5 control writes, got %d", len(fake.outs))
	}
	if fake.outs[0].request != requestFlasherUnlock {
		t.Errorf("first write was 0x%02x, want unlock", fake.outs[0].request)
	}
	for i, sector := range []uint16{1, 2, 3} {
		out := fake.outs[1+i]
		if out.request != requestFlasherErase || out.value != sector {
			t.Errorf("erase %d: got request 0x%02x value %d", i, out.request, out.value)
		}
	}
	if fake.outs[4].request != requestReset {
		t.Errorf("last write was 0x%02x, want reset", fake.outs[4].request)
	}

	// 0x28 bytes in 0x10 chunks: 0x10 + 0x10 + 0x8
	if len(fake.bulks) != 3 {
		t.Fatalf("expected 3 bulk writes, got %d", len(fake.bulks))
	}
	if len(fake.bulks[0]) != 0x10 || len(fake.bulks[1]) != 0x10 || len(fake.bulks[2]) != 0x8 {
		t.Errorf("unexpected chunk sizes %d/%d/%d",
			len(fake.bulks[0]), len(fake.bulks[1]), len(fake.bulks[2]))
	}
	if !bytes.Equal(bytes.Join(fake.bulks, nil), code) {
		t.Error("bulk writes do not reassemble into the firmware image")
	}

	want := []int{0x10, 0x20, 0x28}
	if len(progress) != len(want) {
		t.Fatalf("expected %d progress callbacks, got %d", len(want), len(progress))
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, progress[i], want[i])
		}
	}

	if p.Bootstub() {
		t.Error("device should leave bootstub mode after flashing")
	}
}

func TestFlashApplication_NotBootstub(t *testing.T) {
	p := testPanda(newFakeTransport())
	err := p.FlashApplication([]byte{0x01}, nil)
	if !errors.Is(err, ErrNotBootstub) {
		t.Fatalf("expected ErrNotBootstub, got %v", err)
	}
}

func TestFlashApplication_BadFlasherMagic(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(requestFlasherHello, make([]byte, 0xc))

	p := testPanda(fake)
	p.bootstub = true

	err := p.FlashApplication([]byte{0x01}, nil)
	var ferr *FlashError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FlashError, got %v", err)
	}
	if ferr.Stage != "hello" {
		t.Errorf("expected failure at hello stage, got %q", ferr.Stage)
	}
	if len(fake.outs) != 0 {
		t.Error("no writes should happen when the flasher is absent")
	}
}

func TestFlashApplication_EmptyImage(t *testing.T) {
	p := &Panda{tr: newFakeTransport(), logger: zap.NewNop(), mcu: McuF4, bootstub: true}
	err := p.FlashApplication(nil, nil)
	var ferr *FlashError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FlashError for empty image, got %v", err)
	}
}
