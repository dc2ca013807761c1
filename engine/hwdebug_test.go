package engine

import "testing"

func TestHwDebugRegisterImages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch = WatchPoint{Addr: 0x40001000, Type: WatchStore}
	hw := NewHwDebug(&cfg)
	if hw.DBR0 != 0x40001000 || hw.DBCON != 0x1 {
		t.Errorf("store watch: DBR0 %08x DBCON %08x", hw.DBR0, hw.DBCON)
	}

	cfg = DefaultConfig()
	cfg.Watch = WatchPoint{Addr: 0x40001000, Mask: 0xff, Type: WatchLoadStore}
	hw = NewHwDebug(&cfg)
	if hw.DBR1 != 0xff || hw.DBCON&(1<<8) == 0 {
		t.Errorf("masked watch: DBR1 %08x DBCON %08x", hw.DBR1, hw.DBCON)
	}

	cfg = DefaultConfig()
	cfg.Watch = WatchPoint{Addr: 0x100, Type: WatchLoad}
	cfg.Watch2 = WatchPoint{Addr: 0x200, Type: WatchStore}
	hw = NewHwDebug(&cfg)
	if hw.DBR0 != 0x100 || hw.DBR1 != 0x200 || hw.DBCON != 0x3|0x1<<2 {
		t.Errorf("dual watch: DBR0 %08x DBR1 %08x DBCON %08x", hw.DBR0, hw.DBR1, hw.DBCON)
	}

	cfg = DefaultConfig()
	cfg.Insn.Addr = 0x8000
	hw = NewHwDebug(&cfg)
	if hw.Pairs[0].Primary != 0x8000 || hw.Pairs[0].Secondary != 0x8004 {
		t.Errorf("breakpoint pair: %+v", hw.Pairs[0])
	}
}

func TestHwDebugArmDisarm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch = WatchPoint{Addr: 0x40001000, Type: WatchStore}
	cfg.Insn.Addr = 0x8000
	hw := NewHwDebug(&cfg)

	cpu := newFakeCPU()
	hw.Arm(cpu)

	checks := []struct {
		reg  CPReg
		want uint32
	}{
		{CpEVTSEL, 0xffffffff},
		{CpINTEN, 0},
		{CpPMNC, 0xf},
		{CpDBR0, 0x40001000},
		{CpDBCON, 0x1},
		{CpDCSR, 1 << 31},
		{CpIBCR0, 0x8000 | 1},
	}
	for _, c := range checks {
		if got := cpu.regs[c.reg]; got != c.want {
			t.Errorf("armed cp reg %d = %08x, want %08x", c.reg, got, c.want)
		}
	}

	hw.Disarm(cpu)
	for _, reg := range []CPReg{CpIBCR0, CpIBCR1, CpDBCON, CpDCSR, CpPMNC} {
		if got := cpu.regs[reg]; got != 0 {
			t.Errorf("disarmed cp reg %d = %08x, want 0", reg, got)
		}
	}
}

func TestBreakpointSingleStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Insn.Addr = 0x8000
	hw := NewHwDebug(&cfg)
	cpu := newFakeCPU()

	pair := hw.hit(cpu, 0x8000)
	if pair == nil {
		t.Fatal("primary hit not recognized")
	}
	if pair.State() != ArmedAtSecondary || cpu.regs[CpIBCR0] != 0x8004|1 {
		t.Errorf("after primary: state %v IBCR0 %08x", pair.State(), cpu.regs[CpIBCR0])
	}

	pair = hw.hit(cpu, 0x8004)
	if pair == nil {
		t.Fatal("secondary hit not recognized")
	}
	if pair.State() != ArmedAtPrimary || cpu.regs[CpIBCR0] != 0x8000|1 {
		t.Errorf("after secondary: state %v IBCR0 %08x", pair.State(), cpu.regs[CpIBCR0])
	}
}

func TestBreakpointInconsistencyDisarms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Insn.Addr = 0x8000
	cfg.Insn2.Addr = 0x9000
	hw := NewHwDebug(&cfg)
	cpu := newFakeCPU()
	cpu.regs[CpIBCR0] = 0x8000 | 1
	cpu.regs[CpIBCR1] = 0x9000 | 1

	if pair := hw.hit(cpu, 0x4444); pair != nil {
		t.Fatalf("stray address matched pair %+v", pair)
	}
	if cpu.regs[CpIBCR0] != 0 || cpu.regs[CpIBCR1] != 0 {
		t.Errorf("comparators still armed: IBCR0 %08x IBCR1 %08x",
			cpu.regs[CpIBCR0], cpu.regs[CpIBCR1])
	}
}
