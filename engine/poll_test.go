package engine

import (
	"testing"

	"irqwatch/engine/hwio"
)

const pollAddr uint32 = 0x40000000

func pollTestMonitor(ringCap int) *monitor {
	tbl := hwio.NewTable("polltest")
	tbl.MapMem(pollAddr, &hwio.Mem{Name: "scratch", Data: make([]byte, 0x100)})
	return &monitor{ring: NewRing(ringCap), bus: tbl}
}

func TestPollChangeDetection(t *testing.T) {
	m := pollTestMonitor(8)
	p, err := NewPoll(3, pollAddr, 32, 0, 0, false)
	tcheck(t, err)
	list := []Poll{p}

	// The first sample only establishes the baseline.
	if n := m.checkPolls(list, 10); n != 0 {
		t.Fatalf("baseline sample reported %d matches", n)
	}
	if n := m.checkPolls(list, 20); n != 0 {
		t.Fatalf("unchanged value reported %d matches", n)
	}

	m.bus.Write32(pollAddr, 0xcafe)
	if n := m.checkPolls(list, 30); n != 1 {
		t.Fatalf("change reported %d matches, want 1", n)
	}

	entries, _ := drainAll(m.ring)
	if len(entries) != 1 {
		t.Fatalf("traced %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != KindPollMatch || e.D0 != 30 || e.D1 != 3 || e.D2 != pollAddr || e.D3 != 0xcafe {
		t.Errorf("bad poll entry: %+v", e)
	}
}

func TestPollCompareEdge(t *testing.T) {
	m := pollTestMonitor(8)
	p, err := NewPoll(0, pollAddr, 32, 0xff, 0x42, true)
	tcheck(t, err)
	list := []Poll{p}

	m.checkPolls(list, 0)
	m.bus.Write32(pollAddr, 0x1142)
	if n := m.checkPolls(list, 0); n != 1 {
		t.Fatalf("entering compare state reported %d matches", n)
	}
	// Still in the matching state: edge triggered, no repeat.
	if n := m.checkPolls(list, 0); n != 0 {
		t.Fatalf("steady compare state reported %d matches", n)
	}
	m.bus.Write32(pollAddr, 0)
	m.checkPolls(list, 0)
	m.bus.Write32(pollAddr, 0x42)
	if n := m.checkPolls(list, 0); n != 1 {
		t.Fatalf("re-entering compare state reported %d matches", n)
	}
}

func TestPollSuppressedAfterLostReport(t *testing.T) {
	m := pollTestMonitor(1)
	m.ring.Append(Entry{Kind: KindIrq}) // fill the ring

	p, err := NewPoll(0, pollAddr, 32, 0, 0, false)
	tcheck(t, err)
	list := []Poll{p}

	m.checkPolls(list, 0)
	m.bus.Write32(pollAddr, 1)
	if n := m.checkPolls(list, 0); n != 1 {
		t.Fatalf("change reported %d matches", n)
	}
	if list[0].Retrigger {
		t.Fatal("descriptor still armed after an undeliverable report")
	}

	// Ring has room again, but the descriptor stays silent.
	drainAll(m.ring)
	m.bus.Write32(pollAddr, 2)
	if n := m.checkPolls(list, 0); n != 0 {
		t.Errorf("suppressed descriptor reported %d matches", n)
	}
}

func TestPollValidation(t *testing.T) {
	if _, err := NewPoll(0, pollAddr, 13, 0, 0, false); err == nil {
		t.Error("width 13 accepted")
	}
	p, err := NewPoll(0, pollAddr, 0, 0, 0, false)
	tcheck(t, err)
	if p.Width != 32 || p.Mask != 0xffffffff {
		t.Errorf("defaults not applied: width %d mask %08x", p.Width, p.Mask)
	}
}
