package panda

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// uidLength is the size of the STM32 unique device ID in bytes.
const uidLength = 12

// DFUSerialFromUID derives the serial number the ST system bootloader will
// report from the 96-bit chip UID the application firmware reports. The
// bootloader folds the six little-endian UID words into three big-endian
// words; the F4 ROM additionally offsets two of them. Deriving the DFU
// serial up front lets recovery target the right device before it ever
// enumerates in DFU mode.
func DFUSerialFromUID(uid string, mcu McuType) (string, error) {
	raw, err := hex.DecodeString(uid)
	if err != nil {
		return "", fmt.Errorf("malformed device UID %q: %w", uid, err)
	}
	if len(raw) != uidLength {
		return "", fmt.Errorf("malformed device UID %q: expected %d bytes, got %d", uid, uidLength, len(raw))
	}

	var w [6]uint16
	for i := range w {
		w[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}

	var a, b, c uint16
	switch mcu {
	case McuH7:
		a, b, c = w[1]+w[5], w[0]+w[4], w[3]
	default:
		a, b, c = w[1]+w[5], w[0]+w[4]+0x0A, w[3]+0x0700
	}

	out := make([]byte, 6)
	binary.BigEndian.PutUint16(out[0:], a)
	binary.BigEndian.PutUint16(out[2:], b)
	binary.BigEndian.PutUint16(out[4:], c)
	return strings.ToUpper(hex.EncodeToString(out)), nil
}
