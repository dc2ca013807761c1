package engine

import (
	"errors"
	"fmt"
	"time"

	"irqwatch/engine/log"
	"irqwatch/mach"
	"irqwatch/output"
	"irqwatch/pxa"
)

// SessionState is the linear lifecycle of one observation window.
type SessionState int

const (
	StateIdle SessionState = iota
	StateInstalled
	StateRestored
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInstalled:
		return "installed"
	case StateRestored:
		return "restored"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Process this many consecutive traces before reconsulting the clock,
// so a high event rate cannot overrun the configured stop time.
const maxDrainBurst = 100

// Session is one timed monitoring run: install the vector chain,
// consume the trace buffer until the time is up, restore, summarize.
// The configuration is snapshotted at creation and frozen for the
// session.
type Session struct {
	target Target
	cfg    Config
	out    *output.Console

	ring  *Ring
	hw    *HwDebug
	mon   *monitor
	chain *VectorChain

	state SessionState
	start time.Time
}

// ErrNoAlloc gates the whole feature: without physically-contiguous
// executable allocation there is nowhere to put the wrappers.
var ErrNoAlloc = errors.New("target lacks contiguous executable allocation")

func NewSession(t Target, cfg Config, out *output.Console) *Session {
	snap := cfg.snapshot()
	ring := NewRing(snap.RingSize)
	hw := NewHwDebug(&snap)
	return &Session{
		target: t,
		cfg:    snap,
		out:    out,
		ring:   ring,
		hw:     hw,
		mon:    newMonitor(t, &snap, ring, hw),
		chain:  NewVectorChain(t),
	}
}

func (s *Session) State() SessionState { return s.state }

// Run executes the session for the given duration. Whatever happens
// after a successful install, the original vectors are restored and the
// block released before Run returns.
func (s *Session) Run(d time.Duration) error {
	if s.state != StateIdle {
		return fmt.Errorf("session already ran (state %s)", s.state)
	}
	if !s.target.CanAlloc() {
		return ErrNoAlloc
	}

	if s.cfg.Family == mach.FamilyPXA && s.hw.configured() {
		s.out.Printf("Will set memory tracing to:%08x %08x %08x",
			s.hw.DBR0, s.hw.DBR1, s.hw.DBCON)
		s.out.Printf("Will set software debug to:%08x->%08x %08x->%08x",
			s.hw.Pairs[0].Primary, s.hw.Pairs[0].Secondary,
			s.hw.Pairs[1].Primary, s.hw.Pairs[1].Secondary)
	}

	s.ring.ResetReport()

	s.out.Printf("Replacing host exception handlers...")
	if err := s.chain.Install(s.mon.handlers(), s.hw); err != nil {
		return err
	}
	s.state = StateInstalled
	s.out.Printf("Finished installing exception handlers.")

	s.start = time.Now()
	s.mainLoop(d)

	s.out.Printf("Restoring host exception handlers...")
	s.chain.Restore(s.hw)
	s.state = StateRestored
	s.out.Printf("Finished restoring exception handlers.")

	s.postLoop()
	return nil
}

// mainLoop consumes traces until the deadline passes. On an empty drain
// the cpu is yielded until the next scheduling tick rather than spun.
func (s *Session) mainLoop(d time.Duration) {
	deadline := s.start.Add(d)
	burst := 0
	for time.Now().Before(deadline) {
		if s.drainOne() {
			// Processed a trace - try to process another without
			// sleeping, but recheck the clock now and then so that we
			// don't run away reporting traces.
			burst++
			if burst < maxDrainBurst {
				continue
			}
		} else {
			time.Sleep(time.Millisecond)
		}
		burst = 0
	}
}

// postLoop flushes whatever is left in the trace buffer and reports the
// session totals. The flush runs after restore, outside the observation
// window, so its entries carry a zero time offset.
func (s *Session) postLoop() {
	for s.ring.Drain(
		func(e Entry) { s.report(0, e) },
		func(lost uint32) { s.out.Printf("overflowed %d traces", lost) },
	) {
	}
	s.out.Printf("Handled %d irq, %d abort, %d prefetch, %d lost, %d errors",
		s.mon.irqCount, s.mon.abortCount, s.mon.prefetchCount,
		s.ring.Overflows(), s.mon.errors)
}

func (s *Session) drainOne() bool {
	msecs := uint32(time.Since(s.start).Milliseconds())
	return s.ring.Drain(
		func(e Entry) { s.report(msecs, e) },
		func(lost uint32) { s.out.Printf("overflowed %d traces", lost) },
	)
}

// report renders one trace entry. Pure dispatch over the kind tag; the
// producer never attaches code to entries.
func (s *Session) report(msecs uint32, e Entry) {
	switch e.Kind {
	case KindResume:
		s.out.Printf("%06d: %08x: cpu resumed", msecs, e.D0)
	case KindIrq:
		irq := e.D1
		if irq >= pxa.StartGpioIrqs {
			s.out.Printf("%06d: %08x: irq %d(gpio %d)",
				msecs, e.D0, irq, irq-pxa.StartGpioIrqs)
		} else {
			s.out.Printf("%06d: %08x: irq %d(%s)",
				msecs, e.D0, irq, pxa.IrqName(irq))
		}
	case KindMemAccess:
		s.out.Printf("%06d: %08x: debug %08x: %08x(%s) %08x %08x",
			msecs, e.D0, e.D1, e.D2, InsnName(e.D2), e.D3, e.D4)
	case KindInsnTrace:
		s.out.Printf("%06d: %08x: insn %08x: %08x %08x",
			msecs, e.D0, e.D1, e.D2, e.D3)
	case KindPollMatch:
		s.out.Printf("%06d: %08x: poll %d: %08x=%08x (mask %08x)",
			msecs, e.D0, e.D1, e.D2, e.D3, e.D4)
	default:
		log.ModTrace.ErrorZ("unknown trace kind").
			Uint("kind", uint(e.Kind)).
			End()
	}
}
