package engine

// UnsetAddr marks an unused breakpoint or watch address.
const UnsetAddr uint32 = 0xFFFFFFFF

// DBCON field encoding.
const (
	dbconMaskBit uint32 = 1 << 8

	dcsrGlobalEnable uint32 = 1 << 31

	// FSR bit set when an abort was raised by the debug unit rather
	// than the MMU.
	FSRDebugEvent uint32 = 1 << 9
)

func dbconE0(val uint32) uint32 { return (val & 0x3) << 0 }
func dbconE1(val uint32) uint32 { return (val & 0x3) << 2 }

// BreakpointState is the phase of one time-multiplexed hardware
// comparator.
type BreakpointState uint8

const (
	ArmedAtPrimary BreakpointState = iota
	ArmedAtSecondary
)

// BreakpointPair describes one instruction breakpoint: one physical
// comparator multiplexed between the primary (detect) address and the
// secondary (single-step past) address, plus the two registers reported
// when it fires.
type BreakpointPair struct {
	Primary   uint32
	Secondary uint32
	Reg1      uint32
	Reg2      uint32

	state BreakpointState
}

func (bp *BreakpointPair) State() BreakpointState { return bp.state }

// HwDebug is the accumulated hardware debug configuration: the data
// watch register images and the two breakpoint pairs. It is built once
// from the session configuration, applied atomically before observation
// starts and cleared on stop.
type HwDebug struct {
	Pairs [2]BreakpointPair

	DBR0  uint32
	DBR1  uint32
	DBCON uint32
}

var pairIBCR = [2]CPReg{CpIBCR0, CpIBCR1}

// NewHwDebug folds the watch/breakpoint configuration into register
// images. A breakpoint with no explicit re-arm address single-steps to
// the next instruction.
func NewHwDebug(cfg *Config) *HwDebug {
	h := &HwDebug{}

	if cfg.Watch.Addr != UnsetAddr {
		h.DBR0 = cfg.Watch.Addr
		h.DBCON |= dbconE0(uint32(cfg.Watch.Type))
		if cfg.Watch.Mask != 0 {
			h.DBR1 = cfg.Watch.Mask
			h.DBCON |= dbconMaskBit
		} else if cfg.Watch2.Addr != UnsetAddr {
			h.DBR1 = cfg.Watch2.Addr
			h.DBCON |= dbconE1(uint32(cfg.Watch2.Type))
		}
	}

	for i, bcfg := range [2]Breakpoint{cfg.Insn, cfg.Insn2} {
		pair := &h.Pairs[i]
		pair.Primary = bcfg.Addr
		if bcfg.Reenable == UnsetAddr {
			pair.Secondary = bcfg.Addr + 4
		} else {
			pair.Secondary = bcfg.Reenable
		}
		pair.Reg1 = bcfg.Reg1
		pair.Reg2 = bcfg.Reg2
		pair.state = ArmedAtPrimary
	}
	return h
}

// configured reports whether any data watch or breakpoint is armed.
func (h *HwDebug) configured() bool {
	return h.DBCON != 0 || h.Pairs[0].Primary != UnsetAddr || h.Pairs[1].Primary != UnsetAddr
}

// Arm enables the CPU registers to catch insns and memory accesses:
// the free-running performance counter always, the debug unit when
// configured.
func (h *HwDebug) Arm(cpu CPU) {
	// Enable performance monitor.
	cpu.WriteCP(CpEVTSEL, 0xffffffff) // disable explicit event counts
	cpu.WriteCP(CpINTEN, 0)           // don't use interrupts
	cpu.WriteCP(CpPMNC, 0xf)          // enable; clear counter

	if !h.configured() {
		return
	}
	cpu.WriteCP(CpDBCON, 0)
	cpu.WriteCP(CpDBR0, h.DBR0)
	cpu.WriteCP(CpDBR1, h.DBR1)
	cpu.WriteCP(CpDBCON, h.DBCON)
	cpu.WriteCP(CpDCSR, dcsrGlobalEnable)
	for i := range h.Pairs {
		if h.Pairs[i].Primary != UnsetAddr {
			cpu.WriteCP(pairIBCR[i], h.Pairs[i].armedAddr()|0x01)
		}
	}
}

// Disarm resets the CPU registers that control software debug and
// performance monitoring.
func (h *HwDebug) Disarm(cpu CPU) {
	cpu.WriteCP(CpIBCR0, 0)
	cpu.WriteCP(CpIBCR1, 0)
	cpu.WriteCP(CpDBCON, 0)
	cpu.WriteCP(CpDCSR, 0)
	cpu.WriteCP(CpPMNC, 0)
}

func (bp *BreakpointPair) armedAddr() uint32 {
	if bp.state == ArmedAtSecondary {
		return bp.Secondary
	}
	return bp.Primary
}

// hit runs the re-arm state machine for a breakpoint event at pc.
// A hit at the primary address rearms the comparator at the secondary
// address to single-step past the instruction; a hit at the secondary
// address completes the step and rearms at the primary. The matched
// pair is returned. A pc matching no pair is an inconsistency: both
// comparators are forcibly disarmed and nil is returned - fail-safe,
// not fail-silent.
func (h *HwDebug) hit(cpu CPU, pc uint32) *BreakpointPair {
	for i := range h.Pairs {
		pair := &h.Pairs[i]
		switch pc {
		case pair.Primary:
			// Match on breakpoint. Setup to single step next time.
			cpu.WriteCP(pairIBCR[i], pair.Secondary|0x01)
			pair.state = ArmedAtSecondary
			return pair
		case pair.Secondary:
			// Called after single stepping - reset breakpoint.
			cpu.WriteCP(pairIBCR[i], pair.Primary|0x01)
			pair.state = ArmedAtPrimary
			return pair
		}
	}
	// Got breakpoint for an address not watched.
	cpu.WriteCP(CpIBCR0, 0)
	cpu.WriteCP(CpIBCR1, 0)
	return nil
}
