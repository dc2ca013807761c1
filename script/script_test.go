package script

import (
	"bytes"
	"strings"
	"testing"

	"irqwatch/engine"
	"irqwatch/mach"
	"irqwatch/output"
	"irqwatch/sim"
)

func testEnv(t *testing.T) (*Env, *engine.Config, *bytes.Buffer) {
	t.Helper()
	m := sim.New(sim.Options{})
	cfg := engine.DefaultConfig()
	var buf bytes.Buffer
	e := New(m, &cfg, output.New(&buf))
	if cfg.Family != mach.FamilyPXA {
		t.Fatalf("family not detected: %s", cfg.Family)
	}
	return e, &cfg, &buf
}

func TestExpression(t *testing.T) {
	e, _, _ := testEnv(t)
	tests := []struct {
		expr string
		want uint32
	}{
		{"42", 42},
		{"0x10", 16},
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"0x10|1", 0x11},
		{"0xff&0x0f", 0x0f},
		{"10%3", 1},
		{"8/2", 4},
		{"1^3", 2},
		{"-1", 0xffffffff},
		{"!5", 0},
		{"!0", 1},
		{"~0&0xf", 0xf},
		{"2*(3+4)-1", 13},
	}
	for _, tt := range tests {
		p := &parser{env: e, s: tt.expr}
		got, err := p.expression(0, 0)
		if err != nil {
			t.Errorf("%q: %s", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q = %d, want %d", tt.expr, got, tt.want)
		}
	}
}

func TestExpressionErrors(t *testing.T) {
	e, _, _ := testEnv(t)
	for _, expr := range []string{"", "1/0", "(1+2", "nosuchvar"} {
		p := &parser{env: e, s: expr}
		if _, err := p.expression(0, 0); err == nil {
			t.Errorf("%q: no error", expr)
		}
	}
}

func TestSetVariables(t *testing.T) {
	e, cfg, _ := testEnv(t)

	e.Interpret("SET TRACE 0xa0003000", 1)
	if cfg.Watch.Addr != 0xa0003000 {
		t.Errorf("watch addr = %08x", cfg.Watch.Addr)
	}
	e.Interpret("set tracetype 1", 2)
	if cfg.Watch.Type != engine.WatchStore {
		t.Errorf("watch type = %d", cfg.Watch.Type)
	}

	e.Interpret("SET II 10 1", 3)
	if len(cfg.IgnoredIrqs) != 1 || cfg.IgnoredIrqs[0] != 10 {
		t.Errorf("ignored irqs = %v", cfg.IgnoredIrqs)
	}
	e.Interpret("SET II 10 0", 4)
	if len(cfg.IgnoredIrqs) != 0 {
		t.Errorf("ignored irqs = %v after clear", cfg.IgnoredIrqs)
	}

	e.Interpret("SET TRACEIGNORE 0x100 0x200", 5)
	if len(cfg.IgnorePC) != 2 || cfg.IgnorePC[1] != 0x200 {
		t.Errorf("trace ignore = %v", cfg.IgnorePC)
	}

	// User variables spring into existence on first SET.
	e.Interpret("SET FOO 5+5", 6)
	p := &parser{env: e, s: "FOO*2"}
	if v, err := p.expression(0, 0); err != nil || v != 20 {
		t.Errorf("FOO*2 = %d, %v", v, err)
	}
}

func TestKeywordAbbreviation(t *testing.T) {
	e, cfg, buf := testEnv(t)

	e.Interpret("s TRACE 0x1234", 1) // SET abbreviated
	if cfg.Watch.Addr != 0x1234 {
		t.Error("abbreviated SET not recognized")
	}

	e.Interpret("BOGUS", 2)
	if !strings.Contains(buf.String(), "Unknown keyword: `BOGUS'") {
		t.Errorf("output: %s", buf.String())
	}
}

func TestWatchPollCommands(t *testing.T) {
	e, _, buf := testEnv(t)

	e.Interpret("ADDIRQWATCH 0xa0010000 0xff 16 0x42", 1)
	if len(e.irqPolls) != 1 {
		t.Fatalf("%d polls after add", len(e.irqPolls))
	}
	p := e.irqPolls[0]
	if p.Addr != 0xa0010000 || p.Width != 16 || p.Mask != 0xff || !p.HasCmp || p.CmpVal != 0x42 {
		t.Errorf("poll = %+v", p)
	}

	e.Interpret("ADDTRACEWATCH 0xa0020000", 2)
	if len(e.tracePolls) != 1 || e.tracePolls[0].Width != 32 {
		t.Errorf("trace polls = %+v", e.tracePolls)
	}

	e.Interpret("LSIRQWATCH", 3)
	if !strings.Contains(buf.String(), "a0010000 mask 000000ff 16-bit cmp 00000042") {
		t.Errorf("ls output: %s", buf.String())
	}

	e.Interpret("CLEARIRQWATCH", 4)
	if len(e.irqPolls) != 0 {
		t.Error("clear left polls behind")
	}
}

func TestIfAndQuit(t *testing.T) {
	e, cfg, _ := testEnv(t)

	e.Interpret("IF 2-2 SET TRACE 0x999", 1)
	if cfg.Watch.Addr == 0x999 {
		t.Error("IF ran the command on a zero condition")
	}
	e.Interpret("IF 1 SET TRACE 0x999", 2)
	if cfg.Watch.Addr != 0x999 {
		t.Error("IF skipped the command on a non-zero condition")
	}

	if e.Interpret("QUIT", 3) {
		t.Error("QUIT did not end the session")
	}
	if !e.Interpret("# comment", 4) {
		t.Error("comment ended the session")
	}
}

func TestWirqCommand(t *testing.T) {
	e, _, buf := testEnv(t)
	e.Interpret("WIRQ 0", 1)
	out := buf.String()
	for _, sub := range []string{
		"Replacing host exception handlers...",
		"Restoring host exception handlers...",
		"Handled 0 irq, 0 abort, 0 prefetch, 0 lost, 0 errors",
	} {
		if !strings.Contains(out, sub) {
			t.Errorf("output lacks %q:\n%s", sub, out)
		}
	}
}

func TestAvailabilityGating(t *testing.T) {
	m := sim.New(sim.Options{NoAlloc: true})
	cfg := engine.DefaultConfig()
	var buf bytes.Buffer
	e := New(m, &cfg, output.New(&buf))

	e.Interpret("WIRQ 1", 1)
	if !strings.Contains(buf.String(), "Unknown keyword") {
		t.Error("WIRQ registered without an allocator")
	}
	if len(e.vars) != 0 {
		t.Errorf("%d trap variables registered without an allocator", len(e.vars))
	}
}
