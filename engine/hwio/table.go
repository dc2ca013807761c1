package hwio

import (
	"fmt"
	"sort"

	"irqwatch/engine/log"
)

// BankIO32 is the access interface of mapped device registers.
type BankIO32 interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, val uint32)
}

type mapping struct {
	begin, end uint32 // inclusive
	io         any    // *Mem or BankIO32
}

// Table maps a 32-bit physical address space to registers and memory
// areas. Lookups go through a sorted interval list; the table is built
// once at machine setup so lookup speed dominates.
type Table struct {
	Name string

	maps []mapping
}

func NewTable(name string) *Table {
	t := new(Table)
	t.Name = name
	return t
}

func (t *Table) Reset() {
	t.maps = nil
}

func (t *Table) search(addr uint32) any {
	i := sort.Search(len(t.maps), func(i int) bool {
		return addr <= t.maps[i].end
	})
	if i < len(t.maps) && addr >= t.maps[i].begin {
		return t.maps[i].io
	}
	return nil
}

func (t *Table) insert(begin, end uint32, io any) {
	i := sort.Search(len(t.maps), func(i int) bool {
		return begin <= t.maps[i].end
	})
	if i < len(t.maps) && end >= t.maps[i].begin {
		panic(fmt.Errorf("hwio: overlapping mapping %08x-%08x on bus %s",
			begin, end, t.Name))
	}
	t.maps = append(t.maps, mapping{})
	copy(t.maps[i+1:], t.maps[i:])
	t.maps[i] = mapping{begin: begin, end: end, io: io}
}

// MapBank maps a register bank (that is, a structure containing multiple
// Reg32 fields). For this function to work, registers must have a struct
// tag "hwio", containing the following fields:
//
//	offset=0x12     Byte-offset within the register bank at which this
//	                register is mapped. There is no default value: if this
//	                option is missing, the register is assumed not to be
//	                part of the bank, and is ignored by this call.
//
//	bank=NN         Ordinal bank number (if not specified, default to zero).
//	                This option allows for a structure to expose multiple
//	                banks, as regs can be grouped by bank by specifying the
//	                bank number.
func (t *Table) MapBank(addr uint32, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		switch r := reg.regPtr.(type) {
		case *Mem:
			t.MapMem(addr+reg.offset, r)
		case *Reg32:
			t.MapReg32(addr+reg.offset, r)
		default:
			panic(fmt.Errorf("invalid reg type: %T", r))
		}
	}
}

func (t *Table) MapReg32(addr uint32, io *Reg32) {
	t.insert(addr, addr+3, io)
}

func (t *Table) MapMem(addr uint32, mem *Mem) {
	log.ModHwIo.DebugZ("mapping mem").
		Hex32("addr", addr).
		Hex32("size", uint32(mem.vsize())).
		String("area", mem.Name).
		String("bus", t.Name).
		End()

	mem.mask() // panics early on a non-pow2 buffer
	t.insert(addr, addr+uint32(mem.vsize())-1, mem)
}

func (t *Table) Unmap(begin, end uint32) {
	out := t.maps[:0]
	for _, m := range t.maps {
		if m.begin > end || m.end < begin {
			out = append(out, m)
		}
	}
	t.maps = out
}

func (t *Table) Read32(addr uint32) uint32 {
	switch io := t.search(addr).(type) {
	case *Mem:
		return io.Read32(addr)
	case BankIO32:
		return io.Read32(addr)
	}
	log.ModHwIo.ErrorZ("unmapped Read32").
		String("name", t.Name).
		Hex32("addr", addr).
		End()
	return 0
}

func (t *Table) Write32(addr uint32, val uint32) {
	switch io := t.search(addr).(type) {
	case *Mem:
		io.Write32(addr, val)
		return
	case BankIO32:
		io.Write32(addr, val)
		return
	}
	log.ModHwIo.ErrorZ("unmapped Write32").
		String("name", t.Name).
		Hex32("addr", addr).
		Hex32("val", val).
		End()
}

func (t *Table) Read16(addr uint32) uint16 {
	switch io := t.search(addr).(type) {
	case *Mem:
		return io.Read16(addr)
	case BankIO32:
		// Sub-word device access: extract from the aligned word.
		shift := (addr & 2) * 8
		return uint16(io.Read32(addr&^3) >> shift)
	}
	log.ModHwIo.ErrorZ("unmapped Read16").
		String("name", t.Name).
		Hex32("addr", addr).
		End()
	return 0
}

func (t *Table) Write16(addr uint32, val uint16) {
	switch io := t.search(addr).(type) {
	case *Mem:
		io.Write16(addr, val)
		return
	case BankIO32:
		shift := (addr & 2) * 8
		old := io.Read32(addr &^ 3)
		merged := old&^(0xffff<<shift) | uint32(val)<<shift
		io.Write32(addr&^3, merged)
		return
	}
	log.ModHwIo.ErrorZ("unmapped Write16").
		String("name", t.Name).
		Hex32("addr", addr).
		Hex16("val", val).
		End()
}

func (t *Table) Read8(addr uint32) uint8 {
	switch io := t.search(addr).(type) {
	case *Mem:
		return io.Read8(addr)
	case BankIO32:
		shift := (addr & 3) * 8
		return uint8(io.Read32(addr&^3) >> shift)
	}
	log.ModHwIo.ErrorZ("unmapped Read8").
		String("name", t.Name).
		Hex32("addr", addr).
		End()
	return 0
}

func (t *Table) Write8(addr uint32, val uint8) {
	switch io := t.search(addr).(type) {
	case *Mem:
		io.Write8(addr, val)
		return
	case BankIO32:
		shift := (addr & 3) * 8
		old := io.Read32(addr &^ 3)
		merged := old&^(0xff<<shift) | uint32(val)<<shift
		io.Write32(addr&^3, merged)
		return
	}
	log.ModHwIo.ErrorZ("unmapped Write8").
		String("name", t.Name).
		Hex32("addr", addr).
		Hex8("val", val).
		End()
}

// FetchPointer returns a direct slice over mapped linear memory, or nil
// if addr does not fall into a Mem area.
func (t *Table) FetchPointer(addr uint32) []uint8 {
	if mem, ok := t.search(addr).(*Mem); ok {
		return mem.FetchPointer(addr)
	}
	return nil
}
