package script

import (
	"strings"
	"time"

	"irqwatch/engine"
)

// Command is one registered keyword. The name mask separates the
// mandatory prefix from the optional suffix with a '|'.
type Command struct {
	name  string
	desc  string
	avail func(e *Env) bool
	run   func(e *Env, cmd string, p *parser)
}

var builtinCommands = []*Command{
	{
		name:  "WI|RQ",
		desc:  "WIRQ <seconds>\n  Watch which IRQ occurs for some period of time and report them.",
		avail: availAlloc,
		run:   cmdWirq,
	},
	{
		name:  "ADDIRQWATCH",
		desc:  "ADDIRQWATCH <addr> [<mask> <32|16|8> <cmpValue>]\n  Setup an address to be polled when an irq hits.\n  <CLEAR|LS>IRQWATCH is also available.",
		avail: availAlloc,
		run:   func(e *Env, cmd string, p *parser) { e.watchCmd(cmd, p, &e.irqPolls) },
	},
	{name: "CLEARIRQWATCH", avail: availAlloc,
		run: func(e *Env, cmd string, p *parser) { e.watchCmd(cmd, p, &e.irqPolls) }},
	{name: "LSIRQWATCH", avail: availAlloc,
		run: func(e *Env, cmd string, p *parser) { e.watchCmd(cmd, p, &e.irqPolls) }},
	{
		name:  "ADDTRACEWATCH",
		desc:  "ADDTRACEWATCH <addr> [<mask> <32|16|8> <cmpValue>]\n  Setup an address to be polled when a trace event hits.\n  <CLEAR|LS>TRACEWATCH is also available.",
		avail: availAlloc,
		run:   func(e *Env, cmd string, p *parser) { e.watchCmd(cmd, p, &e.tracePolls) },
	},
	{name: "CLEARTRACEWATCH", avail: availAlloc,
		run: func(e *Env, cmd string, p *parser) { e.watchCmd(cmd, p, &e.tracePolls) }},
	{name: "LSTRACEWATCH", avail: availAlloc,
		run: func(e *Env, cmd string, p *parser) { e.watchCmd(cmd, p, &e.tracePolls) }},
	{
		name: "S|ET",
		desc: "SET <variable> <value>\n  Assign a value to a variable. Use HELP VARS for a list of variables.",
		run:  cmdSet,
	},
	{
		name: "H|ELP",
		desc: "HELP [VARS]\n  Display a description of either commands or variables.",
		run:  cmdHelp,
	},
	{
		name: "IF",
		desc: "IF <expr> <command>\n  Run <command> iff <expr> is non-zero.",
		run:  cmdIf,
	},
	{
		name: "R|UNSCRIPT",
		desc: "RUNSCRIPT <filename>\n  Run the commands located in the specified file.",
		run:  cmdRunScript,
	},
}

// cmdWirq runs one timed observation session with the configuration and
// poll lists accumulated so far.
func cmdWirq(e *Env, cmd string, p *parser) {
	seconds, err := p.expression(0, 0)
	if err != nil {
		e.out.Printf("line %d: Expected <seconds>", e.line)
		return
	}

	cfg := *e.cfg
	cfg.IrqPolls = e.irqPolls
	cfg.TracePolls = e.tracePolls

	s := engine.NewSession(e.target, cfg, e.out)
	if err := s.Run(time.Duration(seconds) * time.Second); err != nil {
		e.out.Printf("Error: %s", err)
	}
}

// watchCmd implements the ADD/CLEAR/LS triple over one poll list.
func (e *Env) watchCmd(cmd string, p *parser, list *[]engine.Poll) {
	switch {
	case strings.HasPrefix(cmd, "CLEAR"):
		*list = nil
		return

	case strings.HasPrefix(cmd, "LS"):
		if len(*list) == 0 {
			e.out.Printf("No watch points set")
			return
		}
		for i := range *list {
			pl := &(*list)[i]
			e.out.Printf("%2d: %s", pl.ID, pl.String())
		}
		return
	}

	if len(*list) >= engine.MaxPolls {
		e.out.Printf("line %d: Already at max number of watch points", e.line)
		return
	}

	addr, err := p.expression(0, 0)
	if err != nil {
		e.out.Printf("line %d: Expected <addr>", e.line)
		return
	}

	// Optional mask, width and compare value.
	var opt [3]uint32
	count := 0
	for count < len(opt) && p.peek() != 0 {
		v, err := p.expression(0, 0)
		if err != nil {
			e.out.Printf("Error: %s", err)
			return
		}
		opt[count] = v
		count++
	}
	width := uint8(32)
	if count >= 2 {
		width = uint8(opt[1])
	}

	pl, err := engine.NewPoll(e.nextPollID, addr, width, opt[0], opt[2], count >= 3)
	if err != nil {
		e.out.Printf("Error: %s", err)
		return
	}
	e.nextPollID++
	*list = append(*list, pl)
}

func cmdSet(e *Env, cmd string, p *parser) {
	name := p.token(true)
	if name == "" {
		e.out.Printf("line %d: Expected <varname>", e.line)
		return
	}

	v := e.findVar(name)
	if v == nil {
		uv := newUserVar(name)
		e.user[uv.Name()] = uv
		v = uv
	}
	if err := v.Set(p); err != nil {
		e.out.Printf("Error: %s", err)
	}
}

func cmdHelp(e *Env, cmd string, p *parser) {
	topic := p.token(false)

	if strings.EqualFold(topic, "VARS") {
		for _, line := range fmtVarList(e.vars) {
			e.out.Printf("%s", line)
		}
		return
	}
	if topic != "" {
		e.out.Printf("No help on this topic available")
		return
	}

	e.out.Printf("Available commands:")
	e.out.Printf("  [A|B] denotes either A or B")
	e.out.Printf("  <ABC> denotes a mandatory argument")
	e.out.Printf("  Any command name can be shortened to minimal unambiguous length,")
	e.out.Printf("  e.g. you can use 'h' for 'help'")
	for _, c := range e.cmds {
		if c.desc != "" {
			e.out.Printf("%s", c.desc)
		}
	}
	e.out.Printf("QUIT\n  Quit the session.")
}

func cmdIf(e *Env, cmd string, p *parser) {
	v, err := p.expression(0, 0)
	if err != nil {
		e.out.Printf("line %d: expected <expr>", e.line)
		return
	}
	if v != 0 {
		e.Interpret(p.rest(), e.line)
	}
}

func cmdRunScript(e *Env, cmd string, p *parser) {
	fn := p.token(false)
	if fn == "" {
		e.out.Printf("line %d: file name expected", e.line)
		return
	}
	if err := e.RunFile(fn); err != nil {
		e.out.Printf("Cannot run script file %s: %s", fn, err)
	}
}
