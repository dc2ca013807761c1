package engine_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"irqwatch/engine"
	"irqwatch/mach"
	"irqwatch/output"
	"irqwatch/sim"
)

func pxaConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Family = mach.FamilyPXA
	cfg.RingSize = 256
	return cfg
}

// runSession executes a session while inject runs against the machine,
// and returns everything the session printed.
func runSession(t *testing.T, m *sim.Machine, cfg engine.Config, inject func()) string {
	t.Helper()
	var buf bytes.Buffer
	s := engine.NewSession(m, cfg, output.New(&buf))

	done := make(chan error, 1)
	go func() { done <- s.Run(500 * time.Millisecond) }()

	time.Sleep(100 * time.Millisecond)
	inject()

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != engine.StateRestored {
		t.Fatalf("session state = %s after run", got)
	}
	return buf.String()
}

func wantLine(t *testing.T, out, sub string) {
	t.Helper()
	if !strings.Contains(out, sub) {
		t.Errorf("output lacks %q:\n%s", sub, out)
	}
}

func TestSessionIrqAndWatch(t *testing.T) {
	m := sim.New(sim.Options{})
	watchAddr := sim.RAMBase + 0x3000
	storePC := sim.RAMBase + 0x2000

	cfg := pxaConfig()
	cfg.IgnoredIrqs = []uint32{10} // gpio demux source itself
	cfg.Watch = engine.WatchPoint{Addr: watchAddr, Type: engine.WatchStore}

	var regs [13]uint32
	regs[2] = 0x12345678
	regs[3] = watchAddr
	m.SetContext(regs, storePC, 0x13)

	out := runSession(t, m, cfg, func() {
		m.RaiseGPIO(5)
		m.Store(storePC, sim.StrInsn(2, 3), watchAddr, 0x12345678)
		// A read of the watched address must not trap a store watch.
		m.Load(storePC+8, sim.LdrInsn(4, 3), watchAddr)
	})

	wantLine(t, out, fmt.Sprintf("Will set memory tracing to:%08x 00000000 00000001", watchAddr))
	wantLine(t, out, "Replacing host exception handlers...")
	wantLine(t, out, "irq 39(gpio 5)")
	wantLine(t, out, fmt.Sprintf("debug %08x: %08x(str) 12345678 %08x", storePC, sim.StrInsn(2, 3), watchAddr))
	wantLine(t, out, "Handled 1 irq, 1 abort, 0 prefetch, 0 lost, 0 errors")

	if m.OutstandingAllocs() != 0 {
		t.Errorf("%d blocks leaked", m.OutstandingAllocs())
	}
	_, osAborts, _ := m.OSCalls()
	if osAborts != 0 {
		t.Errorf("debug abort chained to the OS (%d calls)", osAborts)
	}
}

func TestSessionBreakpointSingleStep(t *testing.T) {
	m := sim.New(sim.Options{})
	bpPC := sim.RAMBase + 0x5000

	cfg := pxaConfig()
	cfg.Insn = engine.Breakpoint{Addr: bpPC, Reenable: engine.UnsetAddr, Reg1: 0, Reg2: 1}

	var regs [13]uint32
	regs[0] = 0xaaaa0000
	regs[1] = 0xbbbb0000
	m.SetContext(regs, bpPC, 0x13)

	out := runSession(t, m, cfg, func() {
		m.Execute(bpPC)     // breakpoint hit, rearms at the next insn
		m.Execute(bpPC + 4) // single step completes, rearms at bpPC
	})

	wantLine(t, out, fmt.Sprintf("insn %08x: aaaa0000 bbbb0000", bpPC))
	wantLine(t, out, fmt.Sprintf("insn %08x: aaaa0000 bbbb0000", bpPC+4))
	wantLine(t, out, "Handled 0 irq, 0 abort, 2 prefetch, 0 lost, 0 errors")
}

func TestSessionResumeRearm(t *testing.T) {
	m := sim.New(sim.Options{})
	watchAddr := sim.RAMBase + 0x3000
	storePC := sim.RAMBase + 0x2000

	cfg := pxaConfig()
	cfg.Watch = engine.WatchPoint{Addr: watchAddr, Type: engine.WatchStore}

	out := runSession(t, m, cfg, func() {
		m.SimulateSleep()
		m.RaiseIRQ(26) // first irq after wakeup notices the lost debug state
		m.Store(storePC, sim.StrInsn(2, 3), watchAddr, 1)
	})

	wantLine(t, out, "cpu resumed")
	// The watch works again after the re-arm.
	wantLine(t, out, "Handled 1 irq, 1 abort, 0 prefetch, 0 lost, 0 errors")
}

func TestSessionNoAllocator(t *testing.T) {
	m := sim.New(sim.Options{NoAlloc: true})
	s := engine.NewSession(m, pxaConfig(), output.New(&bytes.Buffer{}))
	if err := s.Run(time.Millisecond); !errors.Is(err, engine.ErrNoAlloc) {
		t.Fatalf("err = %v, want ErrNoAlloc", err)
	}
	if s.State() != engine.StateIdle {
		t.Errorf("state = %s after refused run", s.State())
	}
}

func TestSessionSingleUse(t *testing.T) {
	m := sim.New(sim.Options{})
	s := engine.NewSession(m, pxaConfig(), output.New(&bytes.Buffer{}))
	if err := s.Run(time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(time.Millisecond); err == nil {
		t.Fatal("second run accepted")
	}
}
