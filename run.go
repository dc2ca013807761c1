package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"irqwatch/engine"
	"irqwatch/mach"
	"irqwatch/output"
	"irqwatch/script"
	"irqwatch/server"
	"irqwatch/sim"
)

// Simulated workload addresses: a scratch "status register" the demo
// writes to, and the code address it writes from. Point a watch or poll
// at these to see the trap machinery fire.
const (
	workloadPC     = sim.RAMBase + 0x6000
	workloadStatus = sim.RAMBase + 0x7000
)

const timerIrq = 26 // OST0

// startWorkload generates background activity on the machine: a
// periodic timer interrupt, occasional GPIO edges and stores to the
// status word.
func startWorkload(m *sim.Machine) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()

		n := uint32(0)
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				n++
				m.RaiseIRQ(timerIrq)
				if n%5 == 0 {
					m.RaiseGPIO(1 + n/5%8)
				}
				if n%3 == 0 {
					m.Store(workloadPC, sim.StrInsn(2, 3), workloadStatus, n)
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// buildWorld assembles the machine, configuration and output sink every
// command runs against. The returned cleanup stops the workload and
// closes the report file.
func buildWorld(configPath, outputPath string, quiet bool) (*sim.Machine, engine.Config, *output.Console, func()) {
	cfg, err := loadConfig(configPath)
	checkf(err, "failed to load config %s", configPath)

	out := output.Stdout()
	if outputPath != "" {
		checkf(out.OpenLogFile(outputPath), "failed to open output file")
	}

	m := sim.New(sim.Options{})
	cfg.Family = mach.Detect(m.CPU().ReadCP(engine.CpMainID))

	stop := func() {}
	if !quiet {
		stop = startWorkload(m)
	}
	return m, cfg, out, func() {
		stop()
		out.CloseLogFile()
	}
}

func watchMain(args Watch) {
	m, cfg, out, cleanup := buildWorld(args.Config, args.Output, args.Quiet)
	defer cleanup()

	s := engine.NewSession(m, cfg, out)
	checkf(s.Run(time.Duration(args.Seconds)*time.Second), "watch failed")
}

func scriptMain(args RunScript) {
	m, cfg, out, cleanup := buildWorld(args.Config, args.Output, args.Quiet)
	defer cleanup()

	env := script.New(m, &cfg, out)
	checkf(env.RunFile(args.ScriptPath), "script failed")
}

func consoleMain(args Console) {
	m, cfg, out, cleanup := buildWorld(args.Config, "", args.Quiet)
	defer cleanup()

	env := script.New(m, &cfg, out)
	checkf(env.RunReader(os.Stdin), "console failed")
}

func serveMain(args Serve) {
	m, cfg, _, cleanup := buildWorld(args.Config, "", args.Quiet)
	defer cleanup()

	srv := server.New(func(out *output.Console) *script.Env {
		conncfg := cfg
		return script.New(m, &conncfg, out)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	checkf(srv.ListenAndServe(ctx, args.Addr), "serve failed")
}
