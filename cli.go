package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"irqwatch/engine/log"
)

type mode byte

const (
	watchMode   mode = iota // timed observation run
	scriptMode              // run a script file
	consoleMode             // interactive console on stdin
	serveMode               // TCP console
	versionMode             // show irqwatch version
)

type (
	CLI struct {
		Watch     Watch     `cmd:"" help:"Observe interrupt activity for a period of time. (default command)" default:"true"`
		RunScript RunScript `cmd:"" help:"Run a script file." name:"run-script"`
		Console   Console   `cmd:"" help:"Interactive command console on stdin."`
		Serve     Serve     `cmd:"" help:"Serve the command console over TCP."`
		Version   Version   `cmd:"" help:"Show irqwatch version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Watch struct {
		Seconds uint32 `arg:"" optional:"" default:"10" help:"How long to observe, in seconds."`

		Config string `name:"config" help:"${config_help}" type:"existingfile"`
		Output string `name:"output" help:"Copy the report to a file." type:"path"`
		Quiet  bool   `name:"quiet" help:"${quiet_help}"`
	}

	RunScript struct {
		ScriptPath string `arg:"" name:"/path/to/script" help:"Script file to run." required:"true" type:"existingfile"`

		Config string `name:"config" help:"${config_help}" type:"existingfile"`
		Output string `name:"output" help:"Copy the report to a file." type:"path"`
		Quiet  bool   `name:"quiet" help:"${quiet_help}"`
	}

	Console struct {
		Config string `name:"config" help:"${config_help}" type:"existingfile"`
		Quiet  bool   `name:"quiet" help:"${quiet_help}"`
	}

	Serve struct {
		Addr string `name:"addr" help:"Address to listen on." default:"127.0.0.1:4718"`

		Config string `name:"config" help:"${config_help}" type:"existingfile"`
		Quiet  bool   `name:"quiet" help:"${quiet_help}"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"config_help": "Load watch configuration from a TOML file.",
	"quiet_help":  "No simulated workload: only injected events are observed.",
	"log_help":    "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("irqwatch"),
		kong.Description("ARM interrupt and exception monitor."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch {
	case ctx.Command() == "version":
		cfg.mode = versionMode
	case ctx.Command() == "console":
		cfg.mode = consoleMode
	case ctx.Command() == "serve":
		cfg.mode = serveMode
	case strings.HasPrefix(ctx.Command(), "run-script"):
		cfg.mode = scriptMode
	default:
		cfg.mode = watchMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}

	loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
	var strs []string
	for _, m := range log.ModuleNames() {
		strs = append(strs, "    - "+m)
	}
	fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
