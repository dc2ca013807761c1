package script

import (
	"slices"

	"irqwatch/engine"
	"irqwatch/mach"
	"irqwatch/pxa"
)

// intField binds one uint32 configuration field as a variable.
func intField(name, desc string, field *uint32) Variable {
	return &intVar{
		name: name,
		desc: desc,
		get:  func() uint32 { return *field },
		set:  func(v uint32) { *field = v },
	}
}

// registerVars wires the configuration into named variables. The trap
// tuning variables only exist on PXA hardware, like the traps they
// control.
func (e *Env) registerVars() {
	if e.cfg.Family != mach.FamilyPXA || !e.target.CanAlloc() {
		return
	}
	cfg := e.cfg

	e.vars = append(e.vars,
		&bitsetVar{
			name: "II",
			desc: "Mask of IRQs/GPIOs to ignore during WIRQ",
			max:  pxa.MaxIrq,
			test: func(idx uint32) bool { return slices.Contains(cfg.IgnoredIrqs, idx) },
			assign: func(idx uint32, val bool) {
				has := slices.Contains(cfg.IgnoredIrqs, idx)
				if val && !has {
					cfg.IgnoredIrqs = append(cfg.IgnoredIrqs, idx)
				} else if !val && has {
					cfg.IgnoredIrqs = slices.DeleteFunc(cfg.IgnoredIrqs,
						func(v uint32) bool { return v == idx })
				}
			},
		},
		&intVar{
			name: "IRQGPIO",
			desc: "Demux GPIO interrupts during WIRQ",
			get:  func() uint32 { return boolToUint32(cfg.DemuxGPIO) },
			set:  func(v uint32) { cfg.DemuxGPIO = v != 0 },
		},
		&intListVar{
			name: "TRACEIGNORE",
			desc: "List of pc addresses to ignore when tracing",
			max:  64,
			get:  func() []uint32 { return cfg.IgnorePC },
			set:  func(l []uint32) { cfg.IgnorePC = l },
		},
		&intVar{
			name: "TRACEFORWATCH",
			desc: "Report memory trace only if an ADDTRACEWATCH poll matches",
			get:  func() uint32 { return boolToUint32(cfg.TraceForWatch) },
			set:  func(v uint32) { cfg.TraceForWatch = v != 0 },
		},

		intField("TRACE", "Memory location to trace during WIRQ", &cfg.Watch.Addr),
		intField("TRACEMASK", "Mask to apply to memory trace address", &cfg.Watch.Mask),
		&intVar{
			name: "TRACETYPE",
			desc: "1=store only, 2=loads or stores, 3=load only",
			get:  func() uint32 { return uint32(cfg.Watch.Type) },
			set:  func(v uint32) { cfg.Watch.Type = engine.WatchType(v) },
		},
		intField("TRACE2", "Second memory location to trace during WIRQ", &cfg.Watch2.Addr),
		&intVar{
			name: "TRACE2TYPE",
			desc: "1=store only, 2=loads or stores, 3=load only",
			get:  func() uint32 { return uint32(cfg.Watch2.Type) },
			set:  func(v uint32) { cfg.Watch2.Type = engine.WatchType(v) },
		},

		intField("INSN", "Instruction address to monitor during WIRQ", &cfg.Insn.Addr),
		intField("INSNREENABLE", "Instruction address to re-enable breakpoint", &cfg.Insn.Reenable),
		intField("INSNREG1", "Register to report during INSN breakpoint", &cfg.Insn.Reg1),
		intField("INSNREG2", "Second register to report during INSN breakpoint", &cfg.Insn.Reg2),
		intField("INSN2", "Second instruction address to monitor", &cfg.Insn2.Addr),
		intField("INSN2REENABLE", "Instruction address to re-enable breakpoint", &cfg.Insn2.Reenable),
		intField("INSN2REG1", "Register to report during INSN2 breakpoint", &cfg.Insn2.Reg1),
		intField("INSN2REG2", "Second register to report during INSN2 breakpoint", &cfg.Insn2.Reg2),
	)
}
