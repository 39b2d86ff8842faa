package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"pvefw.dev/core/cmd"
	"pvefw.dev/core/internal/lockfile"
	"pvefw.dev/core/internal/reconcile"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "start":
		startFlags := flag.NewFlagSet("start", flag.ExitOnError)
		debug := startFlags.Bool("debug", false, "raise the log level to debug")
		metricsAddr := startFlags.String("metrics-addr", "", "serve /metrics on this address for the duration of the cycle")
		startFlags.Parse(os.Args[2:])
		err = cmd.RunStart(*debug, *metricsAddr)

	case "stop":
		err = cmd.RunStop()

	case "compile":
		compileFlags := flag.NewFlagSet("compile", flag.ExitOnError)
		verbose := compileFlags.Bool("verbose", false, "render a unified diff of changed chains")
		compileFlags.Parse(os.Args[2:])
		err = cmd.RunCompile(*verbose)

	case "status":
		err = cmd.RunStatus()

	default:
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "pvefw-core: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, lockfile.ErrTimeout):
		return 1
	case errors.Is(err, reconcile.ErrApplyFailed), errors.Is(err, reconcile.ErrVerifyFailed):
		return 2
	default:
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: pvefw-core <start [--debug] [--metrics-addr=host:port] | stop | compile [--verbose] | status>")
}
