// Package script is the command layer the monitoring engine is driven
// by: a line-oriented interpreter with integer, bitset and int-list
// variables, a small expression evaluator and availability-gated
// commands.
package script

import (
	"bufio"
	"io"
	"os"
	"strings"

	"irqwatch/engine"
	"irqwatch/engine/log"
	"irqwatch/mach"
	"irqwatch/output"
)

// Env is one interpreter instance: the target it drives, the live
// monitoring configuration its variables mutate, and the poll lists the
// watch commands maintain.
type Env struct {
	target engine.Target
	cfg    *engine.Config
	out    *output.Console

	cmds []*Command
	vars []Variable
	user map[string]*intVar

	irqPolls   []engine.Poll
	tracePolls []engine.Poll
	nextPollID int

	line int
}

// New builds an interpreter over a target. Commands whose availability
// test fails (no allocator, wrong hardware family) are not registered
// at all, matching what the hardware can actually do.
func New(t engine.Target, cfg *engine.Config, out *output.Console) *Env {
	if cfg.Family == mach.FamilyUnknown {
		cfg.Family = mach.Detect(t.CPU().ReadCP(engine.CpMainID))
	}

	e := &Env{
		target:     t,
		cfg:        cfg,
		out:        out,
		user:       make(map[string]*intVar),
		irqPolls:   cfg.IrqPolls,
		tracePolls: cfg.TracePolls,
	}
	for _, list := range [][]engine.Poll{e.irqPolls, e.tracePolls} {
		for _, p := range list {
			if p.ID >= e.nextPollID {
				e.nextPollID = p.ID + 1
			}
		}
	}
	for _, c := range builtinCommands {
		if c.avail != nil && !c.avail(e) {
			log.ModScript.InfoZ("not registering command").
				String("name", c.name).
				End()
			continue
		}
		e.cmds = append(e.cmds, c)
	}
	e.registerVars()
	return e
}

// Interpret runs one script line. The return value is false only for
// QUIT, which ends the enclosing session (console or connection).
func (e *Env) Interpret(line string, lineno int) bool {
	e.line = lineno

	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == '#' {
		return true
	}

	p := &parser{env: e, s: line}
	tok := p.token(true)
	if tok == "" {
		return true
	}

	for _, c := range e.cmds {
		if matchKeyword(tok, c.name) {
			c.run(e, strings.ToUpper(tok), p)
			return true
		}
	}
	if matchKeyword(tok, "Q|UIT") {
		return false
	}

	e.out.Printf("Unknown keyword: `%s'", tok)
	return true
}

// RunReader interprets every line of r, stopping early on QUIT.
func (e *Env) RunReader(r io.Reader) error {
	scan := bufio.NewScanner(r)
	for line := 1; scan.Scan(); line++ {
		if !e.Interpret(scan.Text(), line) {
			break
		}
	}
	return scan.Err()
}

// RunFile interprets a script file.
func (e *Env) RunFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.RunReader(f)
}

// getVar resolves a variable reference inside an expression. Indexed
// variables consume their argument list from the parser.
func (e *Env) getVar(name string, p *parser) (uint32, error) {
	if v := e.findVar(name); v != nil {
		return v.Get(p)
	}
	return 0, p.errorf("unknown variable '%s' in expression", name)
}

func (e *Env) findVar(name string) Variable {
	for _, v := range e.vars {
		if strings.EqualFold(name, v.Name()) {
			return v
		}
	}
	if v, ok := e.user[strings.ToUpper(name)]; ok {
		return v
	}
	return nil
}

// availAlloc gates the trap-installing commands on the contiguous
// allocator, without which there is nowhere to put the handlers.
func availAlloc(e *Env) bool {
	return e.target.CanAlloc()
}

func availPXA(e *Env) bool {
	return availAlloc(e) && e.cfg.Family == mach.FamilyPXA
}
