package hwio

import (
	"encoding/binary"

	"irqwatch/engine/log"
)

type MemFlags int

const (
	MemFlagReadOnly MemFlags = (1 << iota) // all writes are refused
	MemFlagNoROLog                         // skip logging attempts to write when configured to readonly
)

// Mem is a linear little-endian memory area that can be mapped into a
// Table. The backing buffer size must be a power of two; VSize allows
// the area to be mirrored over a larger virtual window.
type Mem struct {
	Name    string            // name of the memory area (for debugging)
	Data    []byte            // actual memory buffer
	VSize   int               // virtual size of the memory (can be bigger than physical size)
	Flags   MemFlags          // flags determining how the memory can be accessed
	WriteCb func(uint32, int) // optional write callback (receives full address and number of bytes written)
}

func (mem *Mem) vsize() int {
	if mem.VSize == 0 {
		return len(mem.Data)
	}
	return mem.VSize
}

func (mem *Mem) mask() uint32 {
	if len(mem.Data)&(len(mem.Data)-1) != 0 {
		panic("memory buffer size is not pow2")
	}
	return uint32(len(mem.Data) - 1)
}

func (mem *Mem) checkRO(addr uint32, nbytes int) bool {
	if mem.Flags&MemFlagReadOnly == 0 {
		return true
	}
	if mem.Flags&MemFlagNoROLog == 0 {
		log.ModHwIo.ErrorZ("write to readonly memory").
			String("area", mem.Name).
			Hex32("addr", addr).
			Int("size", nbytes).
			End()
	}
	return false
}

func (mem *Mem) Read8(addr uint32) uint8 {
	return mem.Data[addr&mem.mask()]
}

func (mem *Mem) Write8(addr uint32, val uint8) {
	if !mem.checkRO(addr, 1) {
		return
	}
	mem.Data[addr&mem.mask()] = val
	if mem.WriteCb != nil {
		mem.WriteCb(addr, 1)
	}
}

func (mem *Mem) Read16(addr uint32) uint16 {
	off := addr & mem.mask()
	return binary.LittleEndian.Uint16(mem.Data[off : off+2])
}

func (mem *Mem) Write16(addr uint32, val uint16) {
	if !mem.checkRO(addr, 2) {
		return
	}
	off := addr & mem.mask()
	binary.LittleEndian.PutUint16(mem.Data[off:off+2], val)
	if mem.WriteCb != nil {
		mem.WriteCb(addr, 2)
	}
}

func (mem *Mem) Read32(addr uint32) uint32 {
	off := addr & mem.mask()
	return binary.LittleEndian.Uint32(mem.Data[off : off+4])
}

func (mem *Mem) Write32(addr uint32, val uint32) {
	if !mem.checkRO(addr, 4) {
		return
	}
	off := addr & mem.mask()
	binary.LittleEndian.PutUint32(mem.Data[off:off+4], val)
	if mem.WriteCb != nil {
		mem.WriteCb(addr, 4)
	}
}

// FetchPointer returns the backing slice from addr to the end of the
// (physical) area.
func (mem *Mem) FetchPointer(addr uint32) []uint8 {
	off := addr & mem.mask()
	return mem.Data[off:]
}
