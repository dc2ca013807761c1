package engine

import (
	"errors"
	"fmt"

	"irqwatch/engine/log"
)

// Exception vector table layout: the processor reads the handler
// instruction for each exception at a fixed offset.
const (
	VectorTableAddr uint32 = 0xffff0000

	vecPrefetchOff uint32 = 0x0C
	vecAbortOff    uint32 = 0x10
	vecIRQOff      uint32 = 0x18
)

// Per-vector stack space inside the contiguous block.
const irqStackSize = 4096

// ErrVectorEncoding is returned when a vector target instruction is not
// the one recognized load-PC-from-offset encoding.
var ErrVectorEncoding = errors.New("unsupported vector encoding")

// vectorSlot is the binding of one exception vector: the address of the
// literal word the vector instruction loads the handler address from,
// the original OS target, and the installed wrapper.
type vectorSlot struct {
	offset   uint32
	slotAddr uint32
	orig     uint32
	wrapper  uint32
}

// VectorChain replaces the three exception vector targets with wrappers
// that capture registers, invoke the core handlers and conditionally
// chain to the original handlers. Either all three vectors are swapped
// or none; restoration always matches the most recent install.
type VectorChain struct {
	target Target
	block  *Block
	slots  [3]vectorSlot

	installed bool
}

func NewVectorChain(t Target) *VectorChain {
	return &VectorChain{target: t}
}

// findSlot locates the literal word of one vector. Only the
// "ldr pc, [pc, #imm]" encoding observed on supported hosts is
// recognized; anything else aborts before any state change.
func findSlot(bus Bus, table, offset uint32) (uint32, error) {
	insn := bus.Read32(table + offset)
	if insn&ldrPCMask != ldrPCSet {
		return 0, fmt.Errorf("%w: %08x at vector %02x", ErrVectorEncoding, insn, offset)
	}
	return table + offset + (insn & 0xFFF) + 8, nil
}

// blockSize returns the allocation covering the three per-vector stacks,
// the shared data area and the relocated wrapper code.
func blockSize() int {
	const dataSize = 4096
	const codeSize = 4096
	return 3*irqStackSize + dataSize + codeSize
}

// Install validates all three vectors, allocates and populates the
// handler block, then atomically redirects the vectors inside one
// exclusive-control scope, arming the hardware traps on the way.
func (vc *VectorChain) Install(h Handlers, hw *HwDebug) error {
	if vc.installed {
		return errors.New("vector chain already installed")
	}
	bus := vc.target.Bus()
	table := vc.target.VectorTableBase()

	slots := [3]vectorSlot{
		{offset: vecIRQOff},
		{offset: vecAbortOff},
		{offset: vecPrefetchOff},
	}
	for i := range slots {
		addr, err := findSlot(bus, table, slots[i].offset)
		if err != nil {
			return err
		}
		slots[i].slotAddr = addr
		slots[i].orig = bus.Read32(addr)
	}

	blk, err := vc.target.AllocContiguous(blockSize())
	if err != nil {
		return fmt.Errorf("can't allocate memory for irq code: %w", err)
	}

	wrappers, err := vc.target.InstallWrappers(blk, h)
	if err != nil {
		vc.target.FreeContiguous(blk)
		return err
	}
	slots[0].wrapper = wrappers.IRQ
	slots[1].wrapper = wrappers.Abort
	slots[2].wrapper = wrappers.Prefetch

	// The data area header records the chain targets, the way the
	// relocated code finds them.
	dataBase := blk.Base + 3*irqStackSize
	bus.Write32(dataBase+0, dataBase)
	bus.Write32(dataBase+4, slots[0].orig)
	bus.Write32(dataBase+8, slots[1].orig)
	bus.Write32(dataBase+12, slots[2].orig)

	for _, s := range slots {
		log.ModVector.InfoZ("chaining vector").
			Hex32("vector", s.offset).
			Hex32("slot", s.slotAddr).
			Hex32("orig", s.orig).
			Hex32("wrapper", s.wrapper).
			End()
	}

	vc.target.ExclusiveControl(func() {
		hw.Arm(vc.target.CPU())
		vc.target.FlushICache()
		for _, s := range slots {
			bus.Write32(s.slotAddr, s.wrapper)
		}
	})

	vc.block = blk
	vc.slots = slots
	vc.installed = true
	return nil
}

// Restore puts back the original vector targets exactly as captured and
// releases the handler block. Safe to call once per Install; the chain
// can be reused afterwards.
func (vc *VectorChain) Restore(hw *HwDebug) {
	if !vc.installed {
		return
	}
	bus := vc.target.Bus()

	vc.target.ExclusiveControl(func() {
		hw.Disarm(vc.target.CPU())
		vc.target.FlushICache()
		for _, s := range vc.slots {
			bus.Write32(s.slotAddr, s.orig)
		}
	})

	vc.target.FreeContiguous(vc.block)
	vc.block = nil
	vc.installed = false

	log.ModVector.InfoZ("restored exception handlers").End()
}
