package sim

import (
	"irqwatch/engine"
)

// CPU models the processor state the engine touches: the XScale
// debug/performance coprocessor registers, the saved program status of
// the interrupted context and the banked r13/r14 of every mode.
type CPU struct {
	mainID uint32
	pid    uint32
	fsr    uint32
	spsr   uint32

	// Performance monitor.
	ccnt    uint32
	pmnc    uint32
	evtsel  uint32
	inten   uint32
	running bool

	// Debug unit.
	dbcon uint32
	dbr0  uint32
	dbr1  uint32
	dcsr  uint32
	ibcr0 uint32
	ibcr1 uint32

	// Banked r13/r14 per processor mode (mode bits index).
	banked [32][2]uint32

	modeSwitches int
}

func (c *CPU) ReadCP(reg engine.CPReg) uint32 {
	switch reg {
	case engine.CpMainID:
		return c.mainID
	case engine.CpPID:
		return c.pid
	case engine.CpFSR:
		return c.fsr
	case engine.CpCCNT:
		return c.ccnt
	case engine.CpEVTSEL:
		return c.evtsel
	case engine.CpINTEN:
		return c.inten
	case engine.CpPMNC:
		return c.pmnc
	case engine.CpDBCON:
		return c.dbcon
	case engine.CpDBR0:
		return c.dbr0
	case engine.CpDBR1:
		return c.dbr1
	case engine.CpDCSR:
		return c.dcsr
	case engine.CpIBCR0:
		return c.ibcr0
	case engine.CpIBCR1:
		return c.ibcr1
	}
	return 0
}

func (c *CPU) WriteCP(reg engine.CPReg, val uint32) {
	switch reg {
	case engine.CpPID:
		c.pid = val
	case engine.CpFSR:
		c.fsr = val
	case engine.CpEVTSEL:
		c.evtsel = val
	case engine.CpINTEN:
		c.inten = val
	case engine.CpPMNC:
		c.pmnc = val
		c.running = val&1 != 0
		if val&0x4 != 0 || val&0xf == 0xf {
			// Enable clears the cycle counter.
			c.ccnt = 0
		}
	case engine.CpDBCON:
		c.dbcon = val
	case engine.CpDBR0:
		c.dbr0 = val
	case engine.CpDBR1:
		c.dbr1 = val
	case engine.CpDCSR:
		c.dcsr = val
	case engine.CpIBCR0:
		c.ibcr0 = val
	case engine.CpIBCR1:
		c.ibcr1 = val
	}
}

func (c *CPU) SPSR() uint32 {
	return c.spsr
}

// BankedRegs switches to the given mode and copies out its r13/r14.
// The switch count is observable so tests can assert the per-exception
// fetch cache works.
func (c *CPU) BankedRegs(mode uint32) (uint32, uint32) {
	c.modeSwitches++
	b := c.banked[mode&0x1f]
	return b[0], b[1]
}

// SetBankedRegs plants the r13/r14 values of a processor mode.
func (c *CPU) SetBankedRegs(mode, r13, r14 uint32) {
	c.banked[mode&0x1f] = [2]uint32{r13, r14}
}

// ModeSwitches returns how many times the banked register fetch
// switched processor modes.
func (c *CPU) ModeSwitches() int { return c.modeSwitches }

// advance moves the free-running cycle counter, when enabled.
func (c *CPU) advance(cycles uint32) {
	if c.running {
		c.ccnt += cycles
	}
}
