package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case versionMode:
		fmt.Printf("irqwatch %s\n", version)

	case watchMode:
		watchMain(cli.Watch)

	case scriptMode:
		scriptMain(cli.RunScript)

	case consoleMode:
		consoleMain(cli.Console)

	case serveMode:
		serveMain(cli.Serve)
	}
}
