// Package firmware handles Panda firmware image files on disk.
//
// A signed image is the application code followed by a fixed 128-byte
// signature block. The signature identifies the exact build; comparing it
// against the signature reported by a running device tells whether the
// device is up to date without reflashing.
package firmware

import (
	"encoding/hex"
	"fmt"
	"os"
)

// SignatureLength is the size of the signature block appended to a signed
// firmware image.
const SignatureLength = 128

// Signature is the fixed-length digest identifying a firmware build.
type Signature [SignatureLength]byte

// Hex returns the signature as lowercase hex digits with no separators.
func (s Signature) Hex() string {
	return hex.EncodeToString(s[:])
}

// InvalidFirmwareError reports an image that is malformed or too short to
// carry a signature block.
type InvalidFirmwareError struct {
	Path   string
	Reason string
}

func (e *InvalidFirmwareError) Error() string {
	return fmt.Sprintf("invalid firmware image %s: %s", e.Path, e.Reason)
}

// ReadImage loads a whole firmware image into memory. Images for this
// device class are at most a few megabytes, so no streaming is needed.
func ReadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read firmware image: %w", err)
	}
	return data, nil
}

// SignatureFromFirmware extracts the signature block from a firmware file.
// File access failures surface the underlying I/O error; an image shorter
// than SignatureLength fails with *InvalidFirmwareError.
func SignatureFromFirmware(path string) (Signature, error) {
	var sig Signature

	data, err := os.ReadFile(path)
	if err != nil {
		return sig, fmt.Errorf("read firmware image: %w", err)
	}
	if len(data) < SignatureLength {
		return sig, &InvalidFirmwareError{
			Path:   path,
			Reason: fmt.Sprintf("image is %d bytes, signature block needs %d", len(data), SignatureLength),
		}
	}

	copy(sig[:], data[len(data)-SignatureLength:])
	return sig, nil
}
