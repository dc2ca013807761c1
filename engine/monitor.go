package engine

import (
	"irqwatch/engine/hwio"
	"irqwatch/mach"
	"irqwatch/pxa"
)

// monitor is the state shared between the exception handlers and the
// reporting code. Handlers run in exception context: they touch nothing
// but this pre-allocated state, the mapped device registers and the
// trace ring.
type monitor struct {
	ring *Ring

	family mach.Family
	bus    Bus
	cpu    CPU

	// Mapped controller bases (pre-paging addresses).
	irqCtrl  uint32
	gpioCtrl uint32

	ignoredIrqs hwio.Bitmap
	demuxGPIO   bool

	irqPolls   []Poll
	tracePolls []Poll

	ignorePC      []uint32
	traceForWatch bool

	hw *HwDebug

	// Summary counters.
	irqCount      uint32
	abortCount    uint32
	prefetchCount uint32
	errors        uint32
}

func newMonitor(t Target, cfg *Config, ring *Ring, hw *HwDebug) *monitor {
	return &monitor{
		ring:          ring,
		family:        cfg.Family,
		bus:           t.Bus(),
		cpu:           t.CPU(),
		irqCtrl:       t.MapPhys(pxa.IrqBase),
		gpioCtrl:      t.MapPhys(pxa.GpioBase),
		ignoredIrqs:   cfg.ignoredBitmap(),
		demuxGPIO:     cfg.DemuxGPIO,
		irqPolls:      cfg.IrqPolls,
		tracePolls:    cfg.TracePolls,
		ignorePC:      cfg.IgnorePC,
		traceForWatch: cfg.TraceForWatch,
		hw:            hw,
	}
}

func (m *monitor) handlers() Handlers {
	return Handlers{
		IRQ:      m.onIRQ,
		Abort:    m.onAbort,
		Prefetch: m.onPrefetch,
	}
}

// onIRQ handles interrupt events.
func (m *monitor) onIRQ(er *ExcRegs) {
	m.irqCount++
	if m.family != mach.FamilyPXA {
		// No per-source decoding outside the PXA family.
		m.checkPolls(m.irqPolls, 0)
		m.checkPolls(m.tracePolls, 0)
		return
	}

	clock := m.cpu.ReadCP(CpCCNT)

	if m.cpu.ReadCP(CpDBCON) != m.hw.DBCON {
		// The host OS reset the debug unit across a power transition.
		// Reapply the trap configuration before decoding anything.
		m.ring.Append(Entry{Kind: KindResume})
		m.hw.Arm(m.cpu)
		clock = 0
	}

	m.cpu.WriteCP(CpDBCON, 0)

	irqs := [2]uint32{
		m.bus.Read32(m.irqCtrl+pxa.ICIPOff) & m.bus.Read32(m.irqCtrl+pxa.ICMROff),
		m.bus.Read32(m.irqCtrl+pxa.ICIP2Off) & m.bus.Read32(m.irqCtrl+pxa.ICMR2Off),
	}
	for i := uint(0); i < pxa.StartGpioIrqs; i++ {
		if hwio.Bitmap(irqs[:]).Test(i) && !m.ignoredIrqs.Test(i) {
			m.ring.Append(Entry{Kind: KindIrq, D0: clock, D1: uint32(i)})
		}
	}
	if irqs[0]&(1<<pxa.GpioDemuxIrq) != 0 && m.demuxGPIO {
		// Gpio activity.
		gpioIrqs := [4]uint32{
			m.bus.Read32(m.gpioCtrl + pxa.GEDR0Off),
			m.bus.Read32(m.gpioCtrl + pxa.GEDR1Off),
			m.bus.Read32(m.gpioCtrl + pxa.GEDR2Off),
			m.bus.Read32(m.gpioCtrl + pxa.GEDR3Off),
		}
		for i := uint(0); i < pxa.NumGpioIrqs; i++ {
			if hwio.Bitmap(gpioIrqs[:]).Test(i) && !m.ignoredIrqs.Test(pxa.StartGpioIrqs+i) {
				m.ring.Append(Entry{Kind: KindIrq, D0: clock, D1: uint32(pxa.StartGpioIrqs + i)})
			}
		}
	}

	// Irq time memory polling.
	m.checkPolls(m.irqPolls, clock)
	// Trace time memory polling.
	m.checkPolls(m.tracePolls, clock)
	m.cpu.WriteCP(CpDBCON, m.hw.DBCON)
}

// onAbort handles memory access events. Returns false to chain the
// abort to the original OS handler.
func (m *monitor) onAbort(er *ExcRegs) bool {
	m.abortCount++
	if m.family != mach.FamilyPXA {
		return false
	}
	if m.cpu.ReadCP(CpFSR)&FSRDebugEvent == 0 {
		// Not a debug trace event.
		return false
	}

	clock := m.cpu.ReadCP(CpCCNT)

	// Trace time memory polling.
	m.cpu.WriteCP(CpDBCON, 0)
	count := m.checkPolls(m.tracePolls, clock)
	m.cpu.WriteCP(CpDBCON, m.hw.DBCON)

	if m.traceForWatch && count == 0 {
		return true
	}

	oldPC := TransPC(m.cpu, er.PC-8)
	for _, addr := range m.ignorePC {
		if oldPC == addr {
			// This address is being ignored.
			return true
		}
	}

	insn := m.bus.Read32(oldPC)
	m.ring.Append(Entry{
		Kind: KindMemAccess,
		D0:   clock,
		D1:   oldPC,
		D2:   insn,
		D3:   er.Reg(maskRd(insn)),
		D4:   er.Reg(maskRn(insn)),
	})
	return true
}

// onPrefetch handles instruction breakpoint events. Returns false to
// chain to the original OS handler.
func (m *monitor) onPrefetch(er *ExcRegs) bool {
	m.prefetchCount++
	if m.family != mach.FamilyPXA {
		return false
	}
	if m.cpu.ReadCP(CpFSR)&FSRDebugEvent == 0 {
		return false
	}

	clock := m.cpu.ReadCP(CpCCNT)
	oldPC := TransPC(m.cpu, er.PC-4)

	pair := m.hw.hit(m.cpu, oldPC)
	if pair == nil {
		m.errors++
		return true
	}
	m.ring.Append(Entry{
		Kind: KindInsnTrace,
		D0:   clock,
		D1:   oldPC,
		D2:   er.Reg(pair.Reg1),
		D3:   er.Reg(pair.Reg2),
	})

	// Trace time memory polling.
	m.cpu.WriteCP(CpDBCON, 0)
	m.checkPolls(m.tracePolls, clock)
	m.cpu.WriteCP(CpDBCON, m.hw.DBCON)
	return true
}
