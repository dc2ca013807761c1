package engine

import (
	"fmt"
	"testing"
)

/* general testing helpers */

func tcheck(tb testing.TB, err error) {
	if err == nil {
		return
	}

	tb.Helper()
	tb.Fatalf("fatal error:\n\n%s\n", err)
}

func tcheckf(tb testing.TB, err error, format string, args ...any) {
	if err == nil {
		return
	}

	tb.Helper()
	tb.Fatalf("fatal error:\n\n%s: %s\n", fmt.Sprintf(format, args...), err)
}

// fakeCPU records coprocessor traffic for handler-level tests.
type fakeCPU struct {
	regs    map[CPReg]uint32
	spsr    uint32
	banked  map[uint32][2]uint32
	fetches int
}

func newFakeCPU() *fakeCPU {
	return &fakeCPU{
		regs:   make(map[CPReg]uint32),
		banked: make(map[uint32][2]uint32),
	}
}

func (c *fakeCPU) ReadCP(reg CPReg) uint32       { return c.regs[reg] }
func (c *fakeCPU) WriteCP(reg CPReg, val uint32) { c.regs[reg] = val }
func (c *fakeCPU) SPSR() uint32                  { return c.spsr }

func (c *fakeCPU) BankedRegs(mode uint32) (uint32, uint32) {
	c.fetches++
	b := c.banked[mode]
	return b[0], b[1]
}
