// Command bgclient is a one-shot BGCF driver: it issues a single
// subcommand against a running bgserve, prints the result, and exits.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bitgrid/bitgrid/bgcf"
	"github.com/bitgrid/bitgrid/client"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tebeka/atexit"
)

func main() {
	host := flag.String("host", "127.0.0.1", "bgserve host")
	port := flag.Int("port", 9000, "bgserve port")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fatalf("usage: bgclient [-host H] [-port P] <hello|load|set|step|outputs|link|unlink|quit|shutdown> [args...]")
	}
	cmd, rest := args[0], args[1:]

	drv, err := client.NewBuilder().WithHost(*host).WithPort(*port).Build()
	if err != nil {
		fatalf("connecting: %v", err)
	}
	defer drv.Close()

	switch cmd {
	case "hello":
		runHello(drv)
	case "load":
		runLoad(drv, rest)
	case "set":
		runSet(drv, rest)
	case "step":
		runStep(drv, rest)
	case "outputs":
		runOutputs(drv)
	case "link":
		runLink(drv, rest)
	case "unlink":
		must(drv.Unlink())
	case "quit":
		must(drv.Quit())
	case "shutdown":
		must(drv.Shutdown())
	default:
		fatalf("unknown command %q", cmd)
	}
	atexit.Exit(0)
}

func runHello(drv *client.Driver) {
	hello, err := drv.Hello()
	must(err)
	fmt.Printf("grid %dx%d, protocol v%d\n", hello.Width, hello.Height, hello.ProtoVersion)
}

func runLoad(drv *client.Driver, args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	session := fs.Uint("session", 1, "load session id")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fatalf("usage: bgclient load [-session N] <bitstream-path>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	must(err)
	must(drv.LoadBitstream(uint16(*session), data))
	fmt.Println("loaded and applied")
}

func runSet(drv *client.Driver, args []string) {
	values := map[string]uint64{}
	for _, kv := range args {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			fatalf("malformed assignment %q, expected name=value", kv)
		}
		v, err := strconv.ParseUint(raw, 0, 64)
		must(err)
		values[name] = v
	}
	must(drv.SetInputs(values))
}

func runStep(drv *client.Driver, args []string) {
	n := uint32(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 32)
		must(err)
		n = uint32(v)
	}
	must(drv.Step(n))
}

func runOutputs(drv *client.Driver) {
	outs, err := drv.GetOutputs()
	must(err)
	names := make([]string, 0, len(outs))
	for n := range outs {
		names = append(names, n)
	}
	sort.Strings(names)

	w := table.NewWriter()
	w.AppendHeader(table.Row{"bus", "value (hex)", "value (dec)"})
	for _, n := range names {
		w.AppendRow(table.Row{n, fmt.Sprintf("0x%x", outs[n]), outs[n]})
	}
	fmt.Println(w.Render())
}

func runLink(drv *client.Driver, args []string) {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	dir := fs.String("dir", "E", "seam direction: E|W|N|S")
	localOut := fs.String("local-out", "", "local output bus driving the seam")
	remoteIn := fs.String("remote-in", "", "peer input bus receiving the seam")
	host := fs.String("peer-host", "", "peer bgserve host")
	port := fs.Uint("peer-port", 0, "peer bgserve port")
	lanes := fs.Uint("lanes", 0, "requested lane count")
	fs.Parse(args)

	d, err := parseLinkDir(*dir)
	must(err)
	accepted, err := drv.Link(d, *localOut, *remoteIn, *host, uint16(*port), uint16(*lanes))
	must(err)
	fmt.Printf("link accepted: %d lanes\n", accepted)
}

func parseLinkDir(s string) (bgcf.LinkDir, error) {
	switch strings.ToUpper(s) {
	case "E":
		return bgcf.LinkDirEast, nil
	case "W":
		return bgcf.LinkDirWest, nil
	case "N":
		return bgcf.LinkDirNorth, nil
	case "S":
		return bgcf.LinkDirSouth, nil
	default:
		return 0, fmt.Errorf("unknown link direction %q", s)
	}
}

func must(err error) {
	if err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "bgclient: "+format+"\n", args...)
	atexit.Exit(1)
}
