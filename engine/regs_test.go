package engine

import "testing"

func TestExcRegsSnapshot(t *testing.T) {
	cpu := newFakeCPU()
	var r [13]uint32
	for i := range r {
		r[i] = uint32(i * 0x11)
	}
	er := NewExcRegs(cpu, r, 0xa0001008)

	if er.Reg(0) != 0 || er.Reg(5) != 0x55 || er.Reg(12) != 0xcc {
		t.Error("snapshot registers wrong")
	}
	if er.Reg(15) != 0xa0001008 {
		t.Errorf("pc = %08x", er.Reg(15))
	}
	if cpu.fetches != 0 {
		t.Error("banked fetch without r13/r14 access")
	}
}

func TestExcRegsBankedFetchOnce(t *testing.T) {
	cpu := newFakeCPU()
	cpu.spsr = 0x13 // interrupted in svc mode
	cpu.banked[0x13] = [2]uint32{0xdead0000, 0xbeef0000}

	er := NewExcRegs(cpu, [13]uint32{}, 0)
	if er.Reg(13) != 0xdead0000 || er.Reg(14) != 0xbeef0000 {
		t.Errorf("banked regs: %08x %08x", er.Reg(13), er.Reg(14))
	}
	er.Reg(13)
	er.Reg(14)
	if cpu.fetches != 1 {
		t.Errorf("mode switched %d times, want 1", cpu.fetches)
	}
}

func TestTransPC(t *testing.T) {
	cpu := newFakeCPU()
	cpu.regs[CpPID] = 0x44000000

	if got := TransPC(cpu, 0x00012345); got != 0x44012345 {
		t.Errorf("slot-zero pc translated to %08x", got)
	}
	if got := TransPC(cpu, 0xa0001000); got != 0xa0001000 {
		t.Errorf("high pc translated to %08x", got)
	}
}

func TestInsnName(t *testing.T) {
	tests := []struct {
		insn uint32
		want string
	}{
		{0xe5802000, "str"},  // str r2, [r0]
		{0xe5902000, "ldr"},  // ldr r2, [r0]
		{0xe5c02000, "strb"}, // strb r2, [r0]
		{0xe5d02000, "ldrb"}, // ldrb r2, [r0]
		{0xe1c020b0, "strh"}, // strh r2, [r0]
		{0xe1d020b0, "ldrh"}, // ldrh r2, [r0]
		{0xe1d020d0, "ldrsb"},
		{0xe1d020f0, "ldrsh"},
		{0xe1002090, "swp?"},
		{0xeafffffe, "?"}, // branch
	}
	for _, tt := range tests {
		if got := InsnName(tt.insn); got != tt.want {
			t.Errorf("InsnName(%08x) = %q, want %q", tt.insn, got, tt.want)
		}
	}
}
