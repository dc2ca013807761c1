package engine

import (
	"sync/atomic"
)

// NumTrace is the default trace buffer capacity. MUST be a power of 2.
const NumTrace = 8192

// Kind tags a trace entry with its event type; rendering dispatches on
// the tag at drain time.
type Kind uint8

const (
	KindResume Kind = iota
	KindIrq
	KindMemAccess
	KindInsnTrace
	KindPollMatch
)

// Entry is one item of the trace buffer shared between the exception
// handlers and the reporting code: the event kind plus up to five data
// words whose meaning depends on the kind. D0 is always the sampled
// clock.
type Entry struct {
	Kind           Kind
	D0, D1, D2, D3 uint32
	D4             uint32
}

// Ring is the trace buffer: single producer (exception context), single
// consumer (the observation loop). Cursors are monotonic; occupancy is
// writePos-readPos and never exceeds the capacity. Cursor publication
// goes through atomics: Go guarantees no implicit single-core ordering,
// so the store of writePos is the order-visible step that makes the
// entry reachable by the consumer.
type Ring struct {
	overflows atomic.Uint32
	writePos  atomic.Uint32
	readPos   atomic.Uint32
	traces    []Entry
	mask      uint32

	// Consumer-side only.
	lastOverflowReport uint32
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("trace ring capacity is not pow2")
	}
	return &Ring{
		traces: make([]Entry, capacity),
		mask:   uint32(capacity - 1),
	}
}

// Append adds an item to the trace buffer. Exception context only.
// Returns false when the buffer is full; the entry is dropped and the
// overflow counter incremented.
func (r *Ring) Append(e Entry) bool {
	w := r.writePos.Load()
	if w-r.readPos.Load() > r.mask {
		// No more space in trace buffer.
		r.overflows.Add(1)
		return false
	}
	r.traces[w&r.mask] = e
	r.writePos.Store(w + 1)
	return true
}

// Drain pulls one trace event from the buffer. Normal context only.
// Returns false if nothing was available. If traces were lost since the
// last report, overflowed is called once with the coalesced count before
// the entry is rendered.
func (r *Ring) Drain(render func(Entry), overflowed func(lost uint32)) bool {
	w := r.writePos.Load()
	rd := r.readPos.Load()
	if rd == w {
		return false
	}
	if ovf := r.overflows.Load(); ovf != r.lastOverflowReport {
		overflowed(ovf - r.lastOverflowReport)
		r.lastOverflowReport = ovf
	}
	render(r.traces[rd&r.mask])
	r.readPos.Store(rd + 1)
	return true
}

// Overflows returns the number of dropped entries.
func (r *Ring) Overflows() uint32 {
	return r.overflows.Load()
}

// Occupancy returns the number of entries currently buffered.
func (r *Ring) Occupancy() int {
	return int(r.writePos.Load() - r.readPos.Load())
}

// ResetReport forgets the overflow watermark of the previous session.
func (r *Ring) ResetReport() {
	r.lastOverflowReport = 0
}
