// Package pxa holds the Intel PXA (XScale) interrupt controller and
// GPIO register layout, and decodes pending interrupt sources for that
// chip family.
package pxa

// Physical register layout.
const (
	IrqBase uint32 = 0x40D00000

	ICIPOff  uint32 = 0x00 // pending
	ICMROff  uint32 = 0x04 // mask
	ICHPOff  uint32 = 0x18 // highest priority
	ICIP2Off uint32 = 0x9c // pending, sources 32+
	ICMR2Off uint32 = 0xA0 // mask, sources 32+

	GpioBase uint32 = 0x40E00000

	GEDR0Off uint32 = 0x48 // edge detect status, gpio 0-31
	GEDR1Off uint32 = 0x4c // gpio 32-63
	GEDR2Off uint32 = 0x50 // gpio 64-95
	GEDR3Off uint32 = 0x148 // gpio 96-119
)

// Interrupt source layout: 32+2 controller sources, then up to 120
// demuxed GPIO edges.
const (
	StartGpioIrqs = 34
	NumGpioIrqs   = 120
	MaxIrq        = StartGpioIrqs + NumGpioIrqs

	// Controller source 10 collects edges of gpio 2..80; when it is
	// pending the GEDR registers tell which line fired.
	GpioDemuxIrq = 10
)

var irqNames = map[uint32]string{
	7:  "HWUART",
	8:  "GPIO0",
	9:  "GPIO1",
	10: "GPIOx",
	11: "USB",
	12: "PMU",
	13: "I2S",
	14: "AC97",
	15: "ASSP",
	16: "NSSP",
	17: "LCD",
	18: "I2C",
	19: "ICP",
	20: "STUART",
	21: "BTUART",
	22: "FFUART",
	23: "MMC",
	24: "SSP",
	25: "DMA",
	26: "OST0",
	27: "OST1",
	28: "OST2",
	29: "OST3",
	30: "RTC_HZ",
	31: "RTC_AL",
	32: "TPM",
	33: "USIM",
}

// IrqName returns the name of a controller interrupt source, or "?" for
// reserved ids.
func IrqName(irq uint32) string {
	if name, ok := irqNames[irq]; ok {
		return name
	}
	return "?"
}
