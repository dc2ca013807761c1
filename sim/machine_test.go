package sim

import (
	"testing"

	"irqwatch/engine"
	"irqwatch/pxa"
)

func TestResetState(t *testing.T) {
	m := New(Options{})
	if m.Intc.ICMR.Value != 0xffffffff || m.Intc.ICMR2.Value != 0xffffffff {
		t.Error("interrupt masks not open at reset")
	}
	if id := m.cpu.ReadCP(0); id != 0x69052d06 {
		t.Errorf("main id = %08x", id)
	}
}

func TestGEDRWriteOneToClear(t *testing.T) {
	m := New(Options{})
	m.Gpio.GEDR0.Value = 0x30

	m.bus.Write32(pxa.GpioBase+pxa.GEDR0Off, 0x10)
	if m.Gpio.GEDR0.Value != 0x20 {
		t.Errorf("GEDR0 = %08x after w1c, want 00000020", m.Gpio.GEDR0.Value)
	}
}

func TestAllocator(t *testing.T) {
	m := New(Options{})
	blk, err := m.AllocContiguous(100)
	if err != nil {
		t.Fatal(err)
	}
	if blk.Size != 0x1000 {
		t.Errorf("size not rounded to a page: %#x", blk.Size)
	}
	if blk.Base < RAMBase+allocStart {
		t.Errorf("block %08x inside the reserved area", blk.Base)
	}
	if m.OutstandingAllocs() != 1 {
		t.Error("allocation not tracked")
	}
	m.FreeContiguous(blk)
	if m.OutstandingAllocs() != 0 {
		t.Error("free not tracked")
	}

	m = New(Options{NoAlloc: true})
	if m.CanAlloc() {
		t.Error("NoAlloc machine reports an allocator")
	}
	if _, err := m.AllocContiguous(16); err == nil {
		t.Error("NoAlloc machine handed out a block")
	}
}

func TestAllocatorReclaim(t *testing.T) {
	m := New(Options{})

	// A long-lived process runs many sessions; alloc/free cycles must
	// not consume RAM for good.
	first, err := m.AllocContiguous(20480)
	if err != nil {
		t.Fatal(err)
	}
	m.FreeContiguous(first)
	for i := 0; i < 100; i++ {
		blk, err := m.AllocContiguous(20480)
		if err != nil {
			t.Fatalf("cycle %d: %s", i, err)
		}
		if blk.Base != first.Base {
			t.Fatalf("cycle %d: block at %08x, freed space at %08x not reused",
				i, blk.Base, first.Base)
		}
		m.FreeContiguous(blk)
	}

	// Freeing below a live block reclaims nothing until the top block
	// goes too.
	lo, err := m.AllocContiguous(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	hi, err := m.AllocContiguous(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	m.FreeContiguous(lo)
	if got := m.allocTop; got != hi.Base+uint32(hi.Size)-RAMBase {
		t.Errorf("allocTop = %#x with live top block", got)
	}
	m.FreeContiguous(hi)
	if m.allocTop != allocStart {
		t.Errorf("allocTop = %#x after freeing everything, want %#x",
			m.allocTop, allocStart)
	}
}

func TestConcurrentInstallDelivery(t *testing.T) {
	m := New(Options{})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				m.RaiseIRQ(7)
			}
		}
	}()

	// Wrapper installation must be safe against a workload goroutine
	// injecting events the whole time.
	for i := 0; i < 50; i++ {
		blk, err := m.AllocContiguous(20480)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.InstallWrappers(blk, engine.Handlers{
			IRQ:      func(*engine.ExcRegs) {},
			Abort:    func(*engine.ExcRegs) bool { return true },
			Prefetch: func(*engine.ExcRegs) bool { return true },
		}); err != nil {
			t.Fatal(err)
		}
		m.FreeContiguous(blk)
	}
	close(stop)
	<-done
}

func TestWatchMatching(t *testing.T) {
	m := New(Options{})
	c := m.cpu
	c.dcsr = 1 << 31

	// DBR0 exact address, store-only.
	c.dbcon = 0x1
	c.dbr0 = 0x40001000
	if !m.watchHit(0x40001000, true) {
		t.Error("store at watched address missed")
	}
	if m.watchHit(0x40001000, false) {
		t.Error("load trapped by a store watch")
	}
	if m.watchHit(0x40001004, true) {
		t.Error("neighbouring address trapped")
	}

	// DBR1 as address mask: any access in the masked range.
	c.dbcon = 0x2 | 1<<8
	c.dbr1 = 0xff
	if !m.watchHit(0x400010a8, false) {
		t.Error("masked range miss")
	}
	if m.watchHit(0x40002000, false) {
		t.Error("outside masked range trapped")
	}

	// Disabled debug unit never matches.
	c.dcsr = 0
	if m.watchHit(0x40001000, true) {
		t.Error("watch fired with the debug unit disabled")
	}
}

func TestVectorTableWalk(t *testing.T) {
	m := New(Options{})
	for _, off := range []uint32{0x0C, 0x10, 0x18} {
		insn := m.bus.Read32(0xffff0000 + off)
		if insn&0xfffff000 != 0xe59ff000 {
			t.Fatalf("vector %02x: %08x not a literal pc load", off, insn)
		}
		slot := 0xffff0000 + off + (insn & 0xfff) + 8
		if tgt := m.bus.Read32(slot); tgt < RAMBase || tgt >= RAMBase+RAMSize {
			t.Errorf("vector %02x target %08x outside ram", off, tgt)
		}
	}

	// Unhandled exceptions land in the resident OS handlers.
	m.RaiseIRQ(7)
	irq, _, _ := m.OSCalls()
	if irq != 1 {
		t.Errorf("os irq calls = %d, want 1", irq)
	}
}
