package engine

import (
	"fmt"
	"slices"

	"irqwatch/engine/hwio"
	"irqwatch/mach"
	"irqwatch/pxa"
)

// WatchType selects the accesses a data watch fires on.
type WatchType uint8

const (
	WatchStore     WatchType = 1
	WatchLoadStore WatchType = 2
	WatchLoad      WatchType = 3
)

// WatchPoint configures one data-watch comparator. A non-zero Mask
// turns the second comparator register into an address mask instead.
type WatchPoint struct {
	Addr uint32    `toml:"addr"`
	Mask uint32    `toml:"mask"`
	Type WatchType `toml:"type"`
}

// Breakpoint configures one instruction breakpoint pair. Reenable left
// unset defaults to the next instruction.
type Breakpoint struct {
	Addr     uint32 `toml:"addr"`
	Reenable uint32 `toml:"reenable"`
	Reg1     uint32 `toml:"reg1"`
	Reg2     uint32 `toml:"reg2"`
}

// Config is the monitoring configuration consumed from the command
// layer. A session snapshots it on start: later changes never affect an
// in-progress session.
type Config struct {
	Family mach.Family `toml:"-"`

	IgnoredIrqs   []uint32 `toml:"ignored_irqs"`
	DemuxGPIO     bool     `toml:"demux_gpio"`
	IgnorePC      []uint32 `toml:"ignore_pc"`
	TraceForWatch bool     `toml:"trace_for_watch"`

	Watch  WatchPoint `toml:"watch"`
	Watch2 WatchPoint `toml:"watch2"`
	Insn   Breakpoint `toml:"insn"`
	Insn2  Breakpoint `toml:"insn2"`

	IrqPolls   []Poll `toml:"-"`
	TracePolls []Poll `toml:"-"`

	RingSize int `toml:"ring_size"`
}

// DefaultConfig returns a configuration with every watch and breakpoint
// unset and GPIO demuxing on.
func DefaultConfig() Config {
	unsetWatch := WatchPoint{Addr: UnsetAddr, Type: WatchLoadStore}
	unsetInsn := Breakpoint{Addr: UnsetAddr, Reenable: UnsetAddr, Reg1: 0, Reg2: 1}
	return Config{
		DemuxGPIO: true,
		Watch:     unsetWatch,
		Watch2:    unsetWatch,
		Insn:      unsetInsn,
		Insn2:     unsetInsn,
		RingSize:  NumTrace,
	}
}

// Normalize fills zero values left by partial decoding (toml files omit
// unset watches entirely).
func (c *Config) Normalize() {
	if c.Watch.Addr == 0 {
		c.Watch.Addr = UnsetAddr
	}
	if c.Watch2.Addr == 0 {
		c.Watch2.Addr = UnsetAddr
	}
	if c.Watch.Type == 0 {
		c.Watch.Type = WatchLoadStore
	}
	if c.Watch2.Type == 0 {
		c.Watch2.Type = WatchLoadStore
	}
	if c.Insn.Addr == 0 {
		c.Insn.Addr = UnsetAddr
	}
	if c.Insn2.Addr == 0 {
		c.Insn2.Addr = UnsetAddr
	}
	if c.Insn.Reenable == 0 {
		c.Insn.Reenable = UnsetAddr
	}
	if c.Insn2.Reenable == 0 {
		c.Insn2.Reenable = UnsetAddr
	}
	if c.RingSize == 0 {
		c.RingSize = NumTrace
	}
}

// Validate rejects values Normalize cannot repair. The ring indexes
// with a bitmask, so its capacity must be a power of two.
func (c *Config) Validate() error {
	if c.RingSize <= 0 || c.RingSize&(c.RingSize-1) != 0 {
		return fmt.Errorf("ring_size %d is not a power of two", c.RingSize)
	}
	return nil
}

// snapshot deep-copies the configuration for the duration of a session.
func (c *Config) snapshot() Config {
	out := *c
	out.IgnoredIrqs = slices.Clone(c.IgnoredIrqs)
	out.IgnorePC = slices.Clone(c.IgnorePC)
	out.IrqPolls = slices.Clone(c.IrqPolls)
	out.TracePolls = slices.Clone(c.TracePolls)
	return out
}

// ignoredBitmap renders the ignore list as the bitset the irq handler
// tests.
func (c *Config) ignoredBitmap() hwio.Bitmap {
	b := hwio.NewBitmap(pxa.MaxIrq)
	for _, id := range c.IgnoredIrqs {
		if id < pxa.MaxIrq {
			b.Set(uint(id))
		}
	}
	return b
}
