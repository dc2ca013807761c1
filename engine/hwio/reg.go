package hwio

import (
	"fmt"

	"irqwatch/engine/log"
)

type RegFlags uint8

const (
	RegFlagReadOnly RegFlags = (1 << iota)
	RegFlagWriteOnly
)

// Reg32 models one 32-bit memory-mapped device register.
type Reg32 struct {
	Name   string
	Value  uint32
	RoMask uint32

	Flags   RegFlags
	ReadCb  func(val uint32) uint32
	WriteCb func(old uint32, val uint32)
}

func (reg Reg32) String() string {
	s := fmt.Sprintf("%s{%08x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

func (reg *Reg32) write(val uint32, romask uint32) {
	romask = romask | reg.RoMask
	old := reg.Value
	reg.Value = (reg.Value & romask) | (val &^ romask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

func (reg *Reg32) Write32(addr uint32, val uint32) {
	if reg.Flags&RegFlagReadOnly != 0 {
		log.ModHwIo.ErrorZ("invalid Write32 to readonly reg").
			String("name", reg.Name).
			Hex32("addr", addr).
			End()
		return
	}
	reg.write(val, 0)
}

func (reg *Reg32) Read32(addr uint32) uint32 {
	if reg.Flags&RegFlagWriteOnly != 0 {
		log.ModHwIo.ErrorZ("invalid Read32 from writeonly reg").
			String("name", reg.Name).
			Hex32("addr", addr).
			End()
		return 0
	}
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value)
	}
	return reg.Value
}
