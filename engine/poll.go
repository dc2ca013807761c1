package engine

import "fmt"

// MaxPolls bounds each of the irq-time and trace-time poll lists.
const MaxPolls = 32

// Poll is a periodic comparator over one memory-mapped address. A
// descriptor without a compare value reports changes of the masked
// value; with one it reports transitions into the matching state.
// Retrigger is cleared once a report could not be delivered (trace
// buffer full): the descriptor stays silent until explicitly recreated.
type Poll struct {
	ID        int
	Addr      uint32
	Width     uint8 // 8, 16 or 32
	Mask      uint32
	CmpVal    uint32
	HasCmp    bool
	Retrigger bool

	lastVal  uint32
	haveLast bool
}

// NewPoll validates and builds a descriptor. Width zero defaults to 32,
// mask zero to all bits.
func NewPoll(id int, addr uint32, width uint8, mask, cmpVal uint32, hasCmp bool) (Poll, error) {
	if width == 0 {
		width = 32
	}
	if width != 8 && width != 16 && width != 32 {
		return Poll{}, fmt.Errorf("invalid poll width %d (want 8, 16 or 32)", width)
	}
	if mask == 0 {
		mask = 0xffffffff
	}
	return Poll{
		ID:        id,
		Addr:      addr,
		Width:     width,
		Mask:      mask,
		CmpVal:    cmpVal,
		HasCmp:    hasCmp,
		Retrigger: true,
	}, nil
}

func (p *Poll) read(bus Bus) uint32 {
	switch p.Width {
	case 8:
		return uint32(bus.Read8(p.Addr))
	case 16:
		return uint32(bus.Read16(p.Addr))
	}
	return bus.Read32(p.Addr)
}

// test samples the descriptor and reports whether a reportable event
// occurred. It updates the last-value bookkeeping either way.
func (p *Poll) test(bus Bus) (val uint32, ok bool) {
	raw := p.read(bus)
	masked := raw & p.Mask

	defer func() {
		p.lastVal = masked
		p.haveLast = true
	}()

	if !p.Retrigger {
		return raw, false
	}
	if p.HasCmp {
		// Edge-triggered match: report entering the compare state.
		hit := masked == p.CmpVal&p.Mask
		was := p.haveLast && p.lastVal == p.CmpVal&p.Mask
		return raw, hit && !was
	}
	// Change detection.
	return raw, p.haveLast && masked != p.lastVal
}

func (p *Poll) String() string {
	s := fmt.Sprintf("%08x mask %08x %d-bit", p.Addr, p.Mask, p.Width)
	if p.HasCmp {
		s += fmt.Sprintf(" cmp %08x", p.CmpVal)
	}
	if !p.Retrigger {
		s += " (suppressed)"
	}
	return s
}

// checkPolls performs a set of memory polls and adds matches to the
// trace buffer. Exception context. Returns the number of matches found
// (delivered or not).
func (m *monitor) checkPolls(list []Poll, clock uint32) int {
	foundcount := 0
	for i := range list {
		p := &list[i]
		val, ok := p.test(m.bus)
		if !ok {
			continue
		}
		foundcount++
		delivered := m.ring.Append(Entry{
			Kind: KindPollMatch,
			D0:   clock,
			D1:   uint32(p.ID),
			D2:   p.Addr,
			D3:   val,
			D4:   p.Mask,
		})
		if !delivered {
			// Couldn't add trace - stop generating undeliverable output.
			p.Retrigger = false
		}
	}
	return foundcount
}
