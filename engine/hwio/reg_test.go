package hwio

import "testing"

func TestReg32(t *testing.T) {
	r := Reg32{Value: 0x1111, RoMask: 0xFFFF0000}

	if r.Read32(0) != 0x1111 {
		t.Errorf("invalid read: %x", r.Read32(0))
	}
	if r.Read32(0x40d00000) != 0x1111 {
		t.Errorf("invalid read with offset: %x", r.Read32(0x40d00000))
	}

	r.Write32(0, 0x77777777)
	if r.Value != 0x7777 {
		t.Errorf("writemask not respected: %x", r.Value)
	}
	r.Write32(0x40d00000, 0x88888888)
	if r.Value != 0x8888 {
		t.Errorf("writemask with offset not respected: %x", r.Value)
	}
}
