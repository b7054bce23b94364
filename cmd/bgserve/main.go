// Command bgserve loads a Program, routes and physicalizes it, lints the
// result, and serves it over BGCF.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bitgrid/bitgrid/bitstream"
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/lint"
	"github.com/bitgrid/bitgrid/internal/obs"
	"github.com/bitgrid/bitgrid/physical"
	"github.com/bitgrid/bitgrid/router"
	"github.com/bitgrid/bitgrid/server"
	"github.com/tebeka/atexit"
)

func main() {
	programPath := flag.String("program", "", "path to a Program JSON file (required)")
	bitstreamPath := flag.String("bitstream", "", "path to a bitstream blob to preload after physicalization")
	host := flag.String("host", "0.0.0.0", "BGCF listen host")
	port := flag.Int("port", 9000, "BGCF listen port")
	statusAddr := flag.String("status-addr", "", "HTTP /status diagnostics address, empty to disable")
	linkForward := flag.String("link-forward", "both", "default link forward policy: both|phase|cycle")
	turnPenalty := flag.Int("turn-penalty", 1, "router A* turn penalty")
	verbose := flag.Bool("verbose", false, "trace every BGCF frame's disposition")
	flag.Parse()

	if *programPath == "" {
		fmt.Fprintln(os.Stderr, "bgserve: -program is required")
		os.Exit(2)
	}

	data, err := os.ReadFile(*programPath)
	if err != nil {
		fatalf("reading program: %v", err)
	}
	prog, err := grid.LoadProgramJSON(data)
	if err != nil {
		fatalf("parsing program: %v", err)
	}
	if err := prog.Validate(); err != nil {
		fatalf("invalid program: %v", err)
	}

	if err := router.RouteProgram(prog, *turnPenalty); err != nil {
		fatalf("routing program: %v", err)
	}

	lanes := physical.NewBuilder().WithTurnPenalty(*turnPenalty)
	physicalized, err := lanes.Physicalize(prog)
	if err != nil {
		fatalf("physicalizing program: %v", err)
	}

	if issues := lint.CheckAll(physicalized); len(issues) > 0 {
		for _, iss := range issues {
			fmt.Fprintf(os.Stderr, "bgserve: lint: [%s] (%d,%d) %s\n", iss.Type, iss.X, iss.Y, iss.Message)
		}
		fatalf("%d lint issue(s) found, refusing to serve", len(issues))
	}

	policy, err := server.ParseForwardPolicy(*linkForward)
	if err != nil {
		fatalf("%v", err)
	}

	srv, err := server.NewBuilder(physicalized, lanes).
		WithHost(*host).
		WithPort(*port).
		WithStatusAddr(*statusAddr).
		WithDefaultForward(policy).
		WithVerbose(*verbose).
		Build()
	if err != nil {
		fatalf("starting server: %v", err)
	}

	if *bitstreamPath != "" {
		blob, err := os.ReadFile(*bitstreamPath)
		if err != nil {
			fatalf("reading bitstream: %v", err)
		}
		if err := bitstream.ApplyToProgram(blob, physicalized); err != nil {
			fatalf("applying preload bitstream: %v", err)
		}
	}

	obs.Logger().Info("bgserve listening", "addr", srv.Addr().String())

	if err := srv.Serve(); err != nil {
		fatalf("serve: %v", err)
	}
	atexit.Exit(0)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "bgserve: "+format+"\n", args...)
	atexit.Exit(1)
}
