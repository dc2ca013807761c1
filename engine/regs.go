package engine

// ExcRegs is the frozen register snapshot taken at vector entry. If a
// handler changes a register it _will_ alter the machine state after the
// exception handler exits, so the snapshot is treated as read-only here.
//
// R13/R14 belong to the interrupted mode and are not part of the
// snapshot: they are fetched on first use by switching processor modes
// with interrupts disabled, and cached for the remainder of this single
// exception occurrence.
type ExcRegs struct {
	R  [13]uint32
	PC uint32 // pc at the time of the exception, pipeline offset included

	cpu      CPU
	banked   [2]uint32
	didfetch bool
}

func NewExcRegs(cpu CPU, r [13]uint32, pc uint32) *ExcRegs {
	return &ExcRegs{R: r, PC: pc, cpu: cpu}
}

// Reg returns the value of register nr as seen by the interrupted code.
func (er *ExcRegs) Reg(nr uint32) uint32 {
	if nr < 13 {
		return er.R[nr]
	}
	if nr >= 15 {
		return er.PC
	}
	if !er.didfetch {
		mode := er.cpu.SPSR() & 0x1f
		er.banked[0], er.banked[1] = er.cpu.BankedRegs(mode)
		er.didfetch = true
	}
	return er.banked[nr-13]
}
