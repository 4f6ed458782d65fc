package panda

import "testing"

func TestLoadBoards(t *testing.T) {
	db, err := LoadBoards()
	if err != nil {
		t.Fatalf("LoadBoards failed: %v", err)
	}
	if db == nil || len(db.Boards) == 0 {
		t.Fatal("expected a non-empty board catalog")
	}

	db2, err2 := LoadBoards()
	if err2 != nil {
		t.Fatalf("second LoadBoards failed: %v", err2)
	}
	if db != db2 {
		t.Error("expected LoadBoards to return the same instance")
	}
}

func TestBoardDB_Get(t *testing.T) {
	db, err := LoadBoards()
	if err != nil {
		t.Fatalf("LoadBoards failed: %v", err)
	}

	dos, ok := db.Get(0x06)
	if !ok {
		t.Fatal("expected to find hw_type 0x06")
	}
	if dos.Name != "dos" {
		t.Errorf("expected dos, got %s", dos.Name)
	}
	if dos.McuType() != McuF4 {
		t.Errorf("expected dos to be STM32F4, got %s", dos.McuType())
	}

	red, ok := db.Get(0x07)
	if !ok {
		t.Fatal("expected to find hw_type 0x07")
	}
	if red.McuType() != McuH7 {
		t.Errorf("expected red to be STM32H7, got %s", red.McuType())
	}

	if _, ok := db.Get(0xee); ok {
		t.Error("expected hw_type 0xee to be unknown")
	}
}

func TestBoardDB_List(t *testing.T) {
	db, err := LoadBoards()
	if err != nil {
		t.Fatalf("LoadBoards failed: %v", err)
	}
	list := db.List()
	if len(list) != len(db.Boards) {
		t.Errorf("List returned %d entries, want %d", len(list), len(db.Boards))
	}
	for _, b := range list {
		if b.McuType() == McuUnknown {
			t.Errorf("board %s has unmapped MCU family %q", b.Name, b.Mcu)
		}
	}
}

func TestMcuConfig(t *testing.T) {
	f4 := McuF4.Config()
	if f4.AppAddress != 0x08004000 || len(f4.AppSectors) == 0 {
		t.Errorf("unexpected F4 layout %+v", f4)
	}

	h7 := McuH7.Config()
	if h7.AppAddress != 0x08020000 || h7.DFUBlockSize == 0 {
		t.Errorf("unexpected H7 layout %+v", h7)
	}

	unknown := McuUnknown.Config()
	if unknown.AppAddress != 0 {
		t.Error("unknown MCU must have a zero layout")
	}
}
