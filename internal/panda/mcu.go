package panda

// McuType identifies the microcontroller family a Panda board is built on.
// The family decides flash geometry and DFU transfer sizing.
type McuType int

const (
	McuUnknown McuType = iota
	// McuF4 is the STM32F413 used by white, grey, black, uno and dos boards.
	McuF4
	// McuH7 is the STM32H725 used by red panda and tres boards.
	McuH7
)

// String returns the family name, e.g. "STM32F4".
func (m McuType) String() string {
	switch m {
	case McuF4:
		return "STM32F4"
	case McuH7:
		return "STM32H7"
	default:
		return "unknown"
	}
}

// McuConfig holds the flash layout constants for one MCU family.
type McuConfig struct {
	// BootstubAddress is where the bootstub image lives in flash.
	BootstubAddress uint32

	// AppAddress is where application firmware starts.
	AppAddress uint32

	// AppSectors are the flash sector numbers the bootstub flasher must
	// erase before programming application firmware.
	AppSectors []uint16

	// DFUBlockSize is the transfer size for ST DFU programming.
	DFUBlockSize int
}

var mcuConfigs = map[McuType]McuConfig{
	McuF4: {
		BootstubAddress: 0x08000000,
		AppAddress:      0x08004000,
		AppSectors:      []uint16{1, 2, 3},
		DFUBlockSize:    0x800,
	},
	McuH7: {
		BootstubAddress: 0x08000000,
		AppAddress:      0x08020000,
		AppSectors:      []uint16{1, 2, 3, 4, 5, 6, 7},
		DFUBlockSize:    0x400,
	},
}

// Config returns the flash layout for the family. The zero McuConfig is
// returned for McuUnknown; callers must check the family before flashing.
func (m McuType) Config() McuConfig {
	return mcuConfigs[m]
}
