package sim

import (
	"errors"
	"fmt"
	"sync"

	"irqwatch/engine"
	"irqwatch/engine/hwio"
	"irqwatch/engine/log"
	"irqwatch/pxa"
)

// Physical memory layout of the simulated machine.
const (
	RAMBase uint32 = 0xa0000000
	RAMSize        = 1 << 20

	// First allocatable offset; everything below is reserved for the
	// resident "OS" handlers.
	allocStart uint32 = 0x8000
)

// Resident OS exception handlers. These addresses sit in the reserved
// low RAM area and are what the vector table points at before any
// wrapper is chained in.
const (
	osIRQHandler      uint32 = RAMBase + 0x4000
	osAbortHandler    uint32 = RAMBase + 0x4100
	osPrefetchHandler uint32 = RAMBase + 0x4200
)

const (
	vecIRQ = iota
	vecAbort
	vecPrefetch
)

var vecOffsets = [3]uint32{0x18, 0x10, 0x0C}

// stmdb sp!, {r0-r12, lr}: the first instruction of a register-capturing
// wrapper, planted at each installed entry point.
const wrapperPrologue uint32 = 0xe92d5fff

// Machine is a simulated PXA-class handheld: a register-accurate bus
// with the interrupt controller and GPIO banks, a CPU with the XScale
// debug unit, and a vector table living in real (simulated) memory.
// Exception delivery performs the same vector walk the silicon does, so
// chained wrappers are reached only through the table.
//
// Injection methods (RaiseIRQ, Store, Execute, ...) are the producer
// side: they run the installed handlers synchronously on the calling
// goroutine, mutually excluded with ExclusiveControl sections.
type Machine struct {
	mu sync.Mutex

	bus *hwio.Table
	cpu *CPU
	ram hwio.Mem
	vec hwio.Mem

	Intc IntCtrl
	Gpio GpioCtrl

	handlers engine.Handlers
	wrappers map[uint32]int
	osCalls  [3]int
	flushes  int

	allocTop uint32
	allocs   map[uint32]int
	noAlloc  bool

	ctxRegs [13]uint32
	ctxPC   uint32
	ctxMode uint32
}

// Options selects the simulated hardware variant.
type Options struct {
	MainID  uint32 // CP15 ID register; zero selects a PXA255
	NoAlloc bool   // withhold contiguous allocation support
}

func New(opts Options) *Machine {
	mainID := opts.MainID
	if mainID == 0 {
		mainID = 0x69052d06
	}

	m := &Machine{
		cpu:      &CPU{mainID: mainID},
		bus:      hwio.NewTable("sim"),
		ram:      hwio.Mem{Name: "ram", Data: make([]byte, RAMSize)},
		vec:      hwio.Mem{Name: "vectors", Data: make([]byte, 0x1000)},
		wrappers: make(map[uint32]int),
		allocs:   make(map[uint32]int),
		allocTop: allocStart,
		noAlloc:  opts.NoAlloc,
		ctxPC:    RAMBase + 0x1000,
		ctxMode:  0x13, // svc
	}

	if err := hwio.InitRegs(&m.Intc); err != nil {
		panic(err)
	}
	if err := hwio.InitRegs(&m.Gpio); err != nil {
		panic(err)
	}

	m.bus.MapMem(RAMBase, &m.ram)
	m.bus.MapMem(engine.VectorTableAddr, &m.vec)
	m.bus.MapBank(pxa.IrqBase, &m.Intc, 0)
	m.bus.MapBank(pxa.GpioBase, &m.Gpio, 0)

	// Populate the vector table the way a running OS leaves it:
	// "ldr pc, [pc, #imm]" at each vector, literal words nearby.
	m.bus.Write32(engine.VectorTableAddr+0x0C, 0xe59ff000|0x104)
	m.bus.Write32(engine.VectorTableAddr+0x10, 0xe59ff000|0x104)
	m.bus.Write32(engine.VectorTableAddr+0x18, 0xe59ff000|0x100)
	m.bus.Write32(engine.VectorTableAddr+0x118, osPrefetchHandler)
	m.bus.Write32(engine.VectorTableAddr+0x11C, osAbortHandler)
	m.bus.Write32(engine.VectorTableAddr+0x120, osIRQHandler)

	log.ModSim.InfoZ("simulated machine ready").
		Hex32("mainid", mainID).
		Hex32("rambase", RAMBase).
		End()
	return m
}

func (m *Machine) Bus() engine.Bus { return m.bus }
func (m *Machine) CPU() engine.CPU { return m.cpu }

// Proc exposes the concrete CPU for state setup in tests and scripts.
func (m *Machine) Proc() *CPU { return m.cpu }

func (m *Machine) CanAlloc() bool { return !m.noAlloc }

func (m *Machine) AllocContiguous(size int) (*engine.Block, error) {
	if m.noAlloc {
		return nil, errors.New("no contiguous allocator on this machine")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	size = (size + 0xfff) &^ 0xfff
	if m.allocTop+uint32(size) > RAMSize {
		return nil, fmt.Errorf("out of contiguous memory (%d bytes requested)", size)
	}
	base := RAMBase + m.allocTop
	for i := m.allocTop; i < m.allocTop+uint32(size); i++ {
		m.ram.Data[i] = 0
	}
	m.allocTop += uint32(size)
	m.allocs[base] = size
	return &engine.Block{Base: base, Size: size}, nil
}

func (m *Machine) FreeContiguous(blk *engine.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.allocs, blk.Base)
	// Rewind the bump pointer past any tail no live block covers, so
	// sequential sessions don't leak the 1MB of simulated RAM away.
	top := uint32(allocStart)
	for base, size := range m.allocs {
		if end := base + uint32(size) - RAMBase; end > top {
			top = end
		}
	}
	m.allocTop = top
}

// OutstandingAllocs reports how many contiguous blocks are still live.
func (m *Machine) OutstandingAllocs() int { return len(m.allocs) }

// MapPhys is the identity on the simulated machine: the bus already
// speaks physical addresses.
func (m *Machine) MapPhys(addr uint32) uint32 { return addr }

func (m *Machine) VectorTableBase() uint32 { return engine.VectorTableAddr }

func (m *Machine) InstallWrappers(blk *engine.Block, h engine.Handlers) (engine.WrapperAddrs, error) {
	// deliver reads handlers and wrappers under m.mu from whatever
	// goroutine injects events; publication must hold the same lock.
	m.mu.Lock()
	defer m.mu.Unlock()
	code := blk.Base + uint32(blk.Size) - 0x1000
	wa := engine.WrapperAddrs{
		IRQ:      code + 0x00,
		Abort:    code + 0x40,
		Prefetch: code + 0x80,
	}
	for _, entry := range []uint32{wa.IRQ, wa.Abort, wa.Prefetch} {
		m.bus.Write32(entry, wrapperPrologue)
	}
	m.handlers = h
	m.wrappers = map[uint32]int{
		wa.IRQ:      vecIRQ,
		wa.Abort:    vecAbort,
		wa.Prefetch: vecPrefetch,
	}
	return wa, nil
}

func (m *Machine) ExclusiveControl(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

func (m *Machine) FlushICache() { m.flushes++ }

// Flushes reports how many instruction cache flushes were requested.
func (m *Machine) Flushes() int { return m.flushes }

// OSCalls returns how many exceptions reached the resident OS handlers
// (directly or chained through an installed wrapper).
func (m *Machine) OSCalls() (irq, abort, prefetch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.osCalls[vecIRQ], m.osCalls[vecAbort], m.osCalls[vecPrefetch]
}

// SetContext plants the general registers, program counter and
// processor mode of the code the next exceptions will appear to
// interrupt.
func (m *Machine) SetContext(regs [13]uint32, pc, mode uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxRegs = regs
	m.ctxPC = pc
	m.ctxMode = mode & 0x1f
}

// AdvanceClock moves the cycle counter forward, when it is running.
func (m *Machine) AdvanceClock(cycles uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu.advance(cycles)
}

// deliver walks the vector table exactly like the processor: fetch the
// vector instruction, follow the literal slot, jump to whatever is
// there. Callers hold m.mu.
func (m *Machine) deliver(kind int, pc uint32) {
	off := vecOffsets[kind]
	insn := m.bus.Read32(engine.VectorTableAddr + off)
	if insn&0xfffff000 != 0xe59ff000 {
		m.osCalls[kind]++
		return
	}
	slot := engine.VectorTableAddr + off + (insn & 0xfff) + 8
	target := m.bus.Read32(slot)

	k, ok := m.wrappers[target]
	if !ok || k != kind {
		m.osCalls[kind]++
		return
	}

	m.cpu.spsr = m.ctxMode
	er := engine.NewExcRegs(m.cpu, m.ctxRegs, pc)
	switch kind {
	case vecIRQ:
		m.handlers.IRQ(er)
		// The irq wrapper always chains to the OS handler.
		m.osCalls[kind]++
	case vecAbort:
		if !m.handlers.Abort(er) {
			m.osCalls[kind]++
		}
	case vecPrefetch:
		if !m.handlers.Prefetch(er) {
			m.osCalls[kind]++
		}
	}
}

// RaiseIRQ pends one interrupt controller source and, if unmasked,
// delivers an IRQ exception. The pending bit is acknowledged after the
// OS handler runs, like a level source that was serviced.
func (m *Machine) RaiseIRQ(src uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu.advance(0x20)

	var pend *hwio.Reg32
	var mask uint32
	if src < 32 {
		pend, mask = &m.Intc.ICIP, m.Intc.ICMR.Value
	} else {
		pend, mask = &m.Intc.ICIP2, m.Intc.ICMR2.Value
		src -= 32
	}
	bit := uint32(1) << src
	pend.Value |= bit
	m.Intc.ICPR.Value |= bit

	if mask&bit != 0 {
		m.deliver(vecIRQ, m.ctxPC+4)
	}
	pend.Value &^= bit
	m.Intc.ICPR.Value &^= bit
}

// RaiseGPIO flags an edge on one GPIO pin and pends the shared GPIO
// demux source. The edge-detect bit stays sticky across delivery, which
// is what lets the handler attribute the interrupt to the pin.
func (m *Machine) RaiseGPIO(pin uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu.advance(0x20)

	gedr := [...]*hwio.Reg32{&m.Gpio.GEDR0, &m.Gpio.GEDR1, &m.Gpio.GEDR2, &m.Gpio.GEDR3}
	gedr[pin/32].Value |= 1 << (pin % 32)

	bit := uint32(1) << pxa.GpioDemuxIrq
	m.Intc.ICIP.Value |= bit
	if m.Intc.ICMR.Value&bit != 0 {
		m.deliver(vecIRQ, m.ctxPC+4)
	}
	m.Intc.ICIP.Value &^= bit
	gedr[pin/32].Value &^= 1 << (pin % 32)
}

// StrInsn encodes "str rd, [rn]"; LdrInsn encodes "ldr rd, [rn]".
func StrInsn(rd, rn uint32) uint32 { return 0xe5800000 | rn<<16 | rd<<12 }
func LdrInsn(rd, rn uint32) uint32 { return 0xe5900000 | rn<<16 | rd<<12 }

// Store executes one word store at pc. The instruction word is placed
// at pc so an abort handler can fetch and decode it; a hit on an armed
// data watch raises the debug data abort, pipeline offset included.
func (m *Machine) Store(pc, insn, addr, val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu.advance(0x08)
	m.bus.Write32(pc, insn)
	m.bus.Write32(addr, val)
	if m.watchHit(addr, true) {
		m.cpu.fsr = engine.FSRDebugEvent
		m.deliver(vecAbort, pc+8)
		m.cpu.fsr = 0
	}
}

// Load executes one word load at pc and returns the value read.
func (m *Machine) Load(pc, insn, addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu.advance(0x08)
	m.bus.Write32(pc, insn)
	val := m.bus.Read32(addr)
	if m.watchHit(addr, false) {
		m.cpu.fsr = engine.FSRDebugEvent
		m.deliver(vecAbort, pc+8)
		m.cpu.fsr = 0
	}
	return val
}

// Execute runs one instruction fetch at pc. A hit on an armed
// instruction breakpoint raises the debug prefetch abort.
func (m *Machine) Execute(pc uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu.advance(0x04)
	if m.cpu.ibcr0 == pc|1 || m.cpu.ibcr1 == pc|1 {
		m.cpu.fsr = engine.FSRDebugEvent
		m.deliver(vecPrefetch, pc+4)
		m.cpu.fsr = 0
	}
}

// SimulateSleep models a suspend/resume cycle: the debug unit loses its
// configuration, everything else survives.
func (m *Machine) SimulateSleep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu.dbcon = 0
	m.cpu.dcsr = 0
}

func typeMatches(mode uint32, store bool) bool {
	switch mode {
	case 1:
		return store
	case 2:
		return true
	case 3:
		return !store
	}
	return false
}

// watchHit checks an access against the armed data-watch registers,
// honoring the mask mode where DBR1 widens DBR0 into an address range.
func (m *Machine) watchHit(addr uint32, store bool) bool {
	c := m.cpu
	if c.dcsr&(1<<31) == 0 || c.dbcon == 0 {
		return false
	}
	e0 := c.dbcon & 0x3
	e1 := (c.dbcon >> 2) & 0x3
	if c.dbcon&(1<<8) != 0 {
		return typeMatches(e0, store) && addr&^c.dbr1 == c.dbr0&^c.dbr1
	}
	if typeMatches(e0, store) && addr == c.dbr0 {
		return true
	}
	return typeMatches(e1, store) && addr == c.dbr1
}
