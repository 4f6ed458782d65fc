package panda

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// outTransfer records one control OUT issued against the fake.
type outTransfer struct {
	request uint8
	value   uint16
	index   uint16
	data    []byte
}

// fakeTransport serves canned control IN responses and records all
// writes. Responses queue per request byte; the last response for a
// request repeats once the queue drains.
type fakeTransport struct {
	responses map[uint8][][]byte
	outs      []outTransfer
	bulks     [][]byte
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[uint8][][]byte)}
}

func (f *fakeTransport) respond(request uint8, data []byte) {
	f.responses[request] = append(f.responses[request], data)
}

func (f *fakeTransport) controlIn(request uint8, value, index uint16, length int) ([]byte, error) {
	queue := f.responses[request]
	if len(queue) == 0 {
		return nil, errors.New("no canned response")
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[request] = queue[1:]
	}
	if len(resp) > length {
		resp = resp[:length]
	}
	return resp, nil
}

func (f *fakeTransport) controlOut(request uint8, value, index uint16, data []byte) error {
	f.outs = append(f.outs, outTransfer{request: request, value: value, index: index, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeTransport) bulkWrite(endpoint int, data []byte) (int, error) {
	if endpoint != flashEndpoint {
		return 0, errors.New("unexpected endpoint")
	}
	f.bulks = append(f.bulks, append([]byte(nil), data...))
	return len(data), nil
}

func (f *fakeTransport) close() error {
	f.closed = true
	return nil
}

func testPanda(tr transport) *Panda {
	return &Panda{
		tr:     tr,
		logger: zap.NewNop(),
		mcu:    McuF4,
		board:  &Board{HwType: 0x06, Name: "dos", Mcu: "STM32F4"},
	}
}

func TestVersion(t *testing.T) {
	fake := newFakeTransport()
	resp := make([]byte, 0x40)
	copy(resp, "v1.2.3-DEV-deadbeef-DEBUG\x00leftover")
	fake.respond(requestVersion, resp)

	v, err := testPanda(fake).Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v != "v1.2.3-DEV-deadbeef-DEBUG" {
		t.Errorf("unexpected version %q", v)
	}
}

func TestSignature(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(requestSignaturePt1, bytes.Repeat([]byte{0xaa}, 0x40))
	fake.respond(requestSignaturePt2, bytes.Repeat([]byte{0xbb}, 0x40))

	sig, err := testPanda(fake).Signature()
	if err != nil {
		t.Fatalf("Signature failed: %v", err)
	}
	hex := sig.Hex()
	if !strings.HasPrefix(hex, "aaaa") || !strings.HasSuffix(hex, "bbbb") {
		t.Errorf("unexpected signature %s", hex)
	}
}

func TestSignature_ShortResponse(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(requestSignaturePt1, bytes.Repeat([]byte{0xaa}, 0x20))
	fake.respond(requestSignaturePt2, bytes.Repeat([]byte{0xbb}, 0x40))

	_, err := testPanda(fake).Signature()
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError for short signature, got %v", err)
	}
}

func serialBlock(serial, tag string) []byte {
	dat := make([]byte, 0x20)
	copy(dat[0:0x10], serial)
	copy(dat[0x10:0x1a], tag)
	sum := sha1.Sum(dat[:0x1c])
	copy(dat[0x1c:], sum[:4])
	return dat
}

func TestSerial(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(requestSerial, serialBlock("1234567890abcdef", "v2.0.0-rel"))

	a, b, err := testPanda(fake).Serial()
	if err != nil {
		t.Fatalf("Serial failed: %v", err)
	}
	if a != "1234567890abcdef" {
		t.Errorf("unexpected serial %q", a)
	}
	if b != "v2.0.0-rel" {
		t.Errorf("unexpected serial tag %q", b)
	}
}

func TestSerial_BadChecksum(t *testing.T) {
	fake := newFakeTransport()
	block := serialBlock("1234567890abcdef", "v2.0.0-rel")
	block[0x1c] ^= 0xff
	fake.respond(requestSerial, block)

	_, _, err := testPanda(fake).Serial()
	var ierr *IntegrityError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}

func TestUID(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(requestUID, []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00, 0x05, 0x00, 0x06, 0x00})

	uid, err := testPanda(fake).UID()
	if err != nil {
		t.Fatalf("UID failed: %v", err)
	}
	if uid != "010002000300040005000600" {
		t.Errorf("unexpected uid %q", uid)
	}
}

func TestProbe(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(requestHardwareType, []byte{0x07})

	p := &Panda{tr: fake, logger: zap.NewNop()}
	if err := p.probe(); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if p.board.Name != "red" {
		t.Errorf("expected red board, got %s", p.board.Name)
	}
	if p.mcu != McuH7 {
		t.Errorf("expected H7, got %s", p.mcu)
	}
}

func TestProbe_UnknownHardwareType(t *testing.T) {
	fake := newFakeTransport()
	fake.respond(requestHardwareType, []byte{0xee})

	p := &Panda{tr: fake, logger: zap.NewNop()}
	err := p.probe()
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError for unknown hardware type, got %v", err)
	}
}

func TestResetRequests(t *testing.T) {
	fake := newFakeTransport()
	p := testPanda(fake)

	p.Reset()
	p.ResetToBootstub()
	p.ResetToBootloader()

	if len(fake.outs) != 3 {
		t.Fatalf("expected 3 control writes, got %d", len(fake.outs))
	}
	if fake.outs[0].request != requestReset {
		t.Errorf("Reset sent request 0x%02x", fake.outs[0].request)
	}
	if fake.outs[1].request != requestEnterMode || fake.outs[1].value != enterBootstub {
		t.Errorf("ResetToBootstub sent %+v", fake.outs[1])
	}
	if !p.Bootstub() {
		t.Error("ResetToBootstub should mark the connection as bootstub")
	}
	if fake.outs[2].request != requestEnterMode || fake.outs[2].value != enterBootloader {
		t.Errorf("ResetToBootloader sent %+v", fake.outs[2])
	}
}
