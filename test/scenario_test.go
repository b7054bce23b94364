// Package test exercises the server and client packages together over a
// real loopback TCP connection, driving a built device end to end rather
// than mocking the transport.
package test

import (
	"net"
	"testing"
	"time"

	"github.com/bitgrid/bitgrid/client"
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
	"github.com/bitgrid/bitgrid/internal/stimgen"
	"github.com/bitgrid/bitgrid/physical"
	"github.com/bitgrid/bitgrid/router"
	"github.com/bitgrid/bitgrid/server"
)

// identityProgram declares one interior buffer cell wired from input bus
// "a" to output bus "y", left unrouted/unphysicalized so the caller
// exercises the full Route -> Physicalize pipeline.
func identityProgram() *grid.Program {
	p := grid.NewProgram(4, 4)
	c := &grid.Cell{X: 1, Y: 1, Op: grid.OpLUT}
	in := grid.Input("a", 0)
	c.Inputs[sides.W] = &in
	mask := sides.VariableMask(sides.W)
	c.Params.LUTs = &[sides.Count]uint16{0, mask, 0, 0}
	p.AddCell(c)
	p.InputBits["a"] = []grid.Source{grid.Input("a", 0)}
	p.OutputBits["y"] = []grid.Source{grid.FromCell(1, 1, sides.E)}
	return p
}

func mustPhysicalize(t *testing.T, p *grid.Program) (*grid.Program, physical.Builder) {
	t.Helper()
	if err := router.RouteProgram(p, 1); err != nil {
		t.Fatalf("RouteProgram: %v", err)
	}
	b := physical.NewBuilder().WithTurnPenalty(1)
	out, err := b.Physicalize(p)
	if err != nil {
		t.Fatalf("Physicalize: %v", err)
	}
	return out, b
}

func startServer(t *testing.T, p *grid.Program, b physical.Builder) (host string, port int) {
	t.Helper()
	srv, err := server.NewBuilder(p, b).WithHost("127.0.0.1").WithPort(0).Build()
	if err != nil {
		t.Fatalf("Build server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	go srv.Serve()

	addr := srv.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func dial(t *testing.T, host string, port int) *client.Driver {
	t.Helper()
	drv, err := client.NewBuilder().WithHost(host).WithPort(port).WithTimeout(2 * time.Second).Build()
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { drv.Close() })
	return drv
}

func TestHelloReportsGridDimensions(t *testing.T) {
	p, b := mustPhysicalize(t, identityProgram())
	host, port := startServer(t, p, b)
	drv := dial(t, host, port)

	hello, err := drv.Hello()
	if err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if int(hello.Width) != p.Width || int(hello.Height) != p.Height {
		t.Fatalf("Hello dims = %dx%d, want %dx%d", hello.Width, hello.Height, p.Width, p.Height)
	}
}

func TestSetInputsStepGetOutputsIdentityBus(t *testing.T) {
	p, b := mustPhysicalize(t, identityProgram())
	host, port := startServer(t, p, b)
	drv := dial(t, host, port)

	if _, err := drv.Hello(); err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if err := drv.SetInputs(map[string]uint64{"a": 1}); err != nil {
		t.Fatalf("SetInputs: %v", err)
	}
	// Enough subcycles for the value to propagate through however many
	// routed hops separate the input edge from the interior cell,
	// regardless of the exact path the router chose.
	const settleSteps = 32
	if err := drv.Step(settleSteps); err != nil {
		t.Fatalf("Step: %v", err)
	}
	outs, err := drv.GetOutputs()
	if err != nil {
		t.Fatalf("GetOutputs: %v", err)
	}
	if outs["y"] != 1 {
		t.Fatalf("output bus y = %d, want 1", outs["y"])
	}

	if err := drv.SetInputs(map[string]uint64{"a": 0}); err != nil {
		t.Fatalf("SetInputs: %v", err)
	}
	if err := drv.Step(settleSteps); err != nil {
		t.Fatalf("Step: %v", err)
	}
	outs, err = drv.GetOutputs()
	if err != nil {
		t.Fatalf("GetOutputs: %v", err)
	}
	if outs["y"] != 0 {
		t.Fatalf("output bus y = %d, want 0 after clearing input", outs["y"])
	}
}

func TestUnknownInputBusIsSilentlyDropped(t *testing.T) {
	p, b := mustPhysicalize(t, identityProgram())
	host, port := startServer(t, p, b)
	drv := dial(t, host, port)

	if err := drv.SetInputs(map[string]uint64{"nonexistent": 42}); err != nil {
		t.Fatalf("SetInputs with unknown bus should not error: %v", err)
	}
}

func TestLoadBitstreamRejectsMalformedBlob(t *testing.T) {
	p, b := mustPhysicalize(t, identityProgram())
	host, port := startServer(t, p, b)
	drv := dial(t, host, port)

	bogus := make([]byte, 4)
	copy(bogus, "BGBS")
	if err := drv.LoadBitstream(1, bogus); err == nil {
		t.Fatal("LoadBitstream with a malformed framed blob should fail")
	}
}

// TestStreamBytesRoundTrip drives a counting byte sequence onto a 9-bit
// present-bit bus through a live server and checks that the client's
// present/clear streaming helper completes without error. It does not
// read the bytes back: only bit 0 of the bus reaches "bus_out", and the
// other output bits are constant 1.
func TestStreamBytesRoundTrip(t *testing.T) {
	p := grid.NewProgram(4, 4)
	c := &grid.Cell{X: 1, Y: 1, Op: grid.OpLUT}
	in := grid.Input("bus", 0)
	c.Inputs[sides.W] = &in
	mask := sides.VariableMask(sides.W)
	c.Params.LUTs = &[sides.Count]uint16{0, mask, 0, 0}
	p.AddCell(c)

	var inBits, outBits []grid.Source
	for bit := 0; bit < 9; bit++ {
		inBits = append(inBits, grid.Input("bus", bit))
	}
	outBits = append(outBits, grid.FromCell(1, 1, sides.E))
	for bit := 1; bit < 9; bit++ {
		outBits = append(outBits, grid.Const(1))
	}
	p.InputBits["bus"] = inBits
	p.OutputBits["bus_out"] = outBits

	physicalized, b := mustPhysicalize(t, p)
	host, port := startServer(t, physicalized, b)
	drv := dial(t, host, port)

	data := stimgen.Bytes(stimgen.Counting(0), 3)
	if err := drv.StreamBytes("bus", data, 2); err != nil {
		t.Fatalf("StreamBytes: %v", err)
	}
}
