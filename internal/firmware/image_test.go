package firmware

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panda.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func TestSignatureFromFirmware(t *testing.T) {
	code := bytes.Repeat([]byte{0xAB}, 256)
	sigBlock := bytes.Repeat([]byte{0x5A}, SignatureLength)
	path := writeTempImage(t, append(code, sigBlock...))

	sig, err := SignatureFromFirmware(path)
	if err != nil {
		t.Fatalf("SignatureFromFirmware failed: %v", err)
	}
	if !bytes.Equal(sig[:], sigBlock) {
		t.Error("expected signature to be the last 128 bytes of the image")
	}
}

func TestSignatureFromFirmware_ExactLength(t *testing.T) {
	// An image that is nothing but a signature block is still valid.
	path := writeTempImage(t, bytes.Repeat([]byte{0x01}, SignatureLength))

	if _, err := SignatureFromFirmware(path); err != nil {
		t.Fatalf("expected signature-only image to be accepted, got %v", err)
	}
}

func TestSignatureFromFirmware_MissingFile(t *testing.T) {
	_, err := SignatureFromFirmware(filepath.Join(t.TempDir(), "nope.bin"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}

	var invalid *InvalidFirmwareError
	if errors.As(err, &invalid) {
		t.Error("missing file must surface as an I/O error, not InvalidFirmwareError")
	}
}

func TestSignatureFromFirmware_EmptyFile(t *testing.T) {
	path := writeTempImage(t, nil)

	_, err := SignatureFromFirmware(path)
	if err == nil {
		t.Fatal("expected error for zero-length image")
	}

	var invalid *InvalidFirmwareError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidFirmwareError, got %v", err)
	}
	if invalid.Path != path {
		t.Errorf("expected error path %q, got %q", path, invalid.Path)
	}
}

func TestSignatureFromFirmware_TooShort(t *testing.T) {
	path := writeTempImage(t, bytes.Repeat([]byte{0xFF}, SignatureLength-1))

	_, err := SignatureFromFirmware(path)
	var invalid *InvalidFirmwareError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidFirmwareError for short image, got %v", err)
	}
}

func TestSignatureHex(t *testing.T) {
	var sig Signature
	sig[0] = 0xa1
	sig[1] = 0xb2
	sig[SignatureLength-1] = 0x0f

	h := sig.Hex()
	if len(h) != SignatureLength*2 {
		t.Fatalf("expected %d hex digits, got %d", SignatureLength*2, len(h))
	}
	if !strings.HasPrefix(h, "a1b2") {
		t.Errorf("unexpected hex prefix %q", h[:8])
	}
	if !strings.HasSuffix(h, "0f") {
		t.Errorf("unexpected hex suffix %q", h[len(h)-2:])
	}
	if h != strings.ToLower(h) {
		t.Error("signature hex must be lowercase")
	}
}

func TestReadImage(t *testing.T) {
	data := []byte("firmware bytes")
	path := writeTempImage(t, data)

	got, err := ReadImage(path)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("ReadImage returned different content")
	}

	if _, err := ReadImage(filepath.Join(t.TempDir(), "missing.bin")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist for missing file, got %v", err)
	}
}
