package panda

import "testing"

func TestDFUSerialFromUID(t *testing.T) {
	// UID words (little-endian): 1, 2, 3, 4, 5, 6
	const uid = "010002000300040005000600"

	tests := []struct {
		name string
		mcu  McuType
		want string
	}{
		// H7: w1+w5, w0+w4, w3
		{name: "H7", mcu: McuH7, want: "000800060004"},
		// F4 adds the ROM offsets 0xA and 0x700
		{name: "F4", mcu: McuF4, want: "000800100704"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DFUSerialFromUID(uid, tt.mcu)
			if err != nil {
				t.Fatalf("DFUSerialFromUID failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDFUSerialFromUID_WordOverflowWraps(t *testing.T) {
	// w1 = 0xFFFF, w5 = 2: the sum wraps to 0x0001 in 16-bit arithmetic.
	got, err := DFUSerialFromUID("0000ffff0000000000000200", McuH7)
	if err != nil {
		t.Fatalf("DFUSerialFromUID failed: %v", err)
	}
	if got != "000100000000" {
		t.Errorf("got %s, want 000100000000", got)
	}
}

func TestDFUSerialFromUID_Malformed(t *testing.T) {
	cases := []string{
		"",
		"zz0002000300040005000600", // not hex
		"01000200",                 // too short
		"0100020003000400050006000700", // too long
	}
	for _, uid := range cases {
		if _, err := DFUSerialFromUID(uid, McuF4); err == nil {
			t.Errorf("expected error for uid %q", uid)
		}
	}
}
