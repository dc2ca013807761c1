package sim

import (
	"irqwatch/engine/hwio"
)

// IntCtrl is the PXA interrupt controller register bank. Pending bits
// are driven by the machine when a source is raised; the mask registers
// come up fully open so raised interrupts deliver without extra setup.
type IntCtrl struct {
	ICIP  hwio.Reg32 `hwio:"offset=0x00,readonly"`
	ICMR  hwio.Reg32 `hwio:"offset=0x04,reset=0xffffffff"`
	ICLR  hwio.Reg32 `hwio:"offset=0x08"`
	ICPR  hwio.Reg32 `hwio:"offset=0x10,readonly"`
	ICCR  hwio.Reg32 `hwio:"offset=0x14,rwmask=0x1"`
	ICIP2 hwio.Reg32 `hwio:"offset=0x9c,readonly"`
	ICMR2 hwio.Reg32 `hwio:"offset=0xa0,reset=0xffffffff"`
}

// GpioCtrl carries the GPIO level and edge-detect registers. Edge bits
// are sticky until software writes one to clear them, which is how the
// real block behaves.
type GpioCtrl struct {
	GPLR0 hwio.Reg32 `hwio:"offset=0x00,readonly"`
	GPLR1 hwio.Reg32 `hwio:"offset=0x04,readonly"`
	GPLR2 hwio.Reg32 `hwio:"offset=0x08,readonly"`
	GEDR0 hwio.Reg32 `hwio:"offset=0x48,wcb"`
	GEDR1 hwio.Reg32 `hwio:"offset=0x4c,wcb"`
	GEDR2 hwio.Reg32 `hwio:"offset=0x50,wcb"`
	GEDR3 hwio.Reg32 `hwio:"offset=0x148,wcb"`
}

func (g *GpioCtrl) WriteGEDR0(old, val uint32) { g.GEDR0.Value = old &^ val }
func (g *GpioCtrl) WriteGEDR1(old, val uint32) { g.GEDR1.Value = old &^ val }
func (g *GpioCtrl) WriteGEDR2(old, val uint32) { g.GEDR2.Value = old &^ val }
func (g *GpioCtrl) WriteGEDR3(old, val uint32) { g.GEDR3.Value = old &^ val }
