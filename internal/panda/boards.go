package panda

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed boards.yaml
var boardsYAML []byte

// Board describes one Panda hardware revision.
type Board struct {
	// HwType is the hardware type byte the device reports.
	HwType uint8 `yaml:"hw_type"`

	// Name is the board's short name, e.g. "dos" or "red".
	Name string `yaml:"name"`

	// Mcu is the MCU family name as it appears in the catalog.
	Mcu string `yaml:"mcu"`

	// Description explains the revision.
	Description string `yaml:"description"`
}

// McuType maps the catalog family name to its McuType.
func (b *Board) McuType() McuType {
	switch b.Mcu {
	case "STM32F4":
		return McuF4
	case "STM32H7":
		return McuH7
	default:
		return McuUnknown
	}
}

// BoardDB holds the known board catalog.
type BoardDB struct {
	// Boards is the catalog in declaration order.
	Boards []*Board

	// index maps hardware type bytes to entries for fast lookup
	index map[uint8]*Board
}

type boardDBContainer struct {
	Boards []*Board `yaml:"boards"`
}

var (
	globalBoardDB   *BoardDB
	globalBoardOnce sync.Once
	globalBoardErr  error
)

// LoadBoards loads the embedded board catalog. Safe to call repeatedly;
// the catalog is parsed once.
func LoadBoards() (*BoardDB, error) {
	globalBoardOnce.Do(func() {
		globalBoardDB, globalBoardErr = loadBoardsInternal()
	})
	return globalBoardDB, globalBoardErr
}

func loadBoardsInternal() (*BoardDB, error) {
	var container boardDBContainer
	if err := yaml.Unmarshal(boardsYAML, &container); err != nil {
		return nil, fmt.Errorf("failed to parse board catalog: %w", err)
	}
	if len(container.Boards) == 0 {
		return nil, fmt.Errorf("board catalog is empty")
	}

	db := &BoardDB{
		Boards: container.Boards,
		index:  make(map[uint8]*Board, len(container.Boards)),
	}
	for _, b := range container.Boards {
		if _, dup := db.index[b.HwType]; dup {
			return nil, fmt.Errorf("duplicate hw_type 0x%02x in board catalog", b.HwType)
		}
		db.index[b.HwType] = b
	}
	return db, nil
}

// Get returns the board for a hardware type byte.
func (db *BoardDB) Get(hwType uint8) (*Board, bool) {
	b, ok := db.index[hwType]
	return b, ok
}

// List returns all cataloged boards.
func (db *BoardDB) List() []*Board {
	return db.Boards
}
