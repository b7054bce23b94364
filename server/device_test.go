package server

import (
	"net"
	"testing"
	"time"

	"github.com/bitgrid/bitgrid/bgcf"
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
	"github.com/bitgrid/bitgrid/physical"
	"github.com/bitgrid/bitgrid/router"
)

// identityDevice builds a routed, physicalized one-cell buffer program
// ("a" -> "y") and wraps it in a Device, the same shape link forwarding
// runs against.
func identityDevice(t *testing.T) (*Device, physical.Builder) {
	t.Helper()
	p := grid.NewProgram(4, 4)
	c := &grid.Cell{X: 1, Y: 1, Op: grid.OpLUT}
	in := grid.Input("a", 0)
	c.Inputs[sides.W] = &in
	mask := sides.VariableMask(sides.W)
	c.Params.LUTs = &[sides.Count]uint16{0, mask, 0, 0}
	p.AddCell(c)
	p.InputBits["a"] = []grid.Source{grid.Input("a", 0)}
	p.OutputBits["y"] = []grid.Source{grid.FromCell(1, 1, sides.E)}

	if err := router.RouteProgram(p, 1); err != nil {
		t.Fatalf("RouteProgram: %v", err)
	}
	b := physical.NewBuilder().WithTurnPenalty(1)
	out, err := b.Physicalize(p)
	if err != nil {
		t.Fatalf("Physicalize: %v", err)
	}
	d, err := NewDevice(out, b)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	return d, b
}

// pipeLink wires a Link over an in-memory net.Pipe, with a background
// reader on the far end decoding every frame sent so forwardStep's writes
// never block. It returns the decoded frame types observed, in order,
// once the test is done draining.
func pipeLink(t *testing.T, peer string, out *Device) (*Link, <-chan bgcf.Type) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() { local.Close(); remote.Close() })

	types := make(chan bgcf.Type, 16)
	go func() {
		var framer bgcf.Framer
		buf := make([]byte, 4096)
		for {
			for {
				frame, ok := framer.Next()
				if !ok {
					break
				}
				types <- frame.Type
			}
			n, err := remote.Read(buf)
			if err != nil {
				close(types)
				return
			}
			framer.Feed(buf[:n])
		}
	}()

	l := &Link{Dir: bgcf.LinkDirEast, LocalOut: "y", RemoteIn: "b", Peer: peer, Policy: ForwardBoth, conn: local}
	cells, err := out.OutputBusCells("y")
	if err != nil {
		t.Fatalf("OutputBusCells: %v", err)
	}
	l.SetGeometry(1, cells, 1)
	return l, types
}

func TestForwardStepSendsSetInputsThenOneStepPerPeer(t *testing.T) {
	d, _ := identityDevice(t)
	l, types := pipeLink(t, "peer-a:9000", d)
	d.AddLink(l)

	d.SetInputs(map[string]uint64{"a": 1})
	d.StepCycles(1, false)

	// forwardStep must emit SET_INPUTS before the single forwarded STEP,
	// and exactly one STEP regardless of how many links share the peer.
	deadline := time.After(2 * time.Second)
	var got []bgcf.Type
	for i := 0; i < 2; i++ {
		select {
		case typ := <-types:
			got = append(got, typ)
		case <-deadline:
			t.Fatalf("timed out waiting for forwarded frames, got %v so far", got)
		}
	}
	if len(got) != 2 || got[0] != bgcf.TypeSetInputs || got[1] != bgcf.TypeStep {
		t.Fatalf("forwarded frames = %v, want [SET_INPUTS STEP]", got)
	}
}

func TestForwardStepSendsOneStepForMultipleLinksToSamePeer(t *testing.T) {
	d, _ := identityDevice(t)
	l1, types := pipeLink(t, "peer-a:9000", d)
	l2, types2 := pipeLink(t, "peer-a:9000", d)
	l2.Peer = l1.Peer // force the two links to share a peer key
	d.AddLink(l1)
	d.AddLink(l2)

	d.StepCycles(1, false)

	deadline := time.After(2 * time.Second)
	var setInputs, steps int
	// Each link writes its SET_INPUTS on its own connection, so frames are
	// collected from both links' readers.
	for i := 0; i < 3; i++ {
		var typ bgcf.Type
		var ok bool
		select {
		case typ, ok = <-types:
		case typ, ok = <-types2:
		case <-deadline:
			t.Fatal("timed out waiting for forwarded frames")
		}
		if !ok {
			t.Fatal("reader closed before expected frame count")
		}
		switch typ {
		case bgcf.TypeSetInputs:
			setInputs++
		case bgcf.TypeStep:
			steps++
		}
	}
	if setInputs != 2 {
		t.Fatalf("SET_INPUTS frames = %d, want 2 (one per link)", setInputs)
	}
	if steps != 1 {
		t.Fatalf("STEP frames = %d, want exactly 1 per peer regardless of link count", steps)
	}
}

func TestStepCyclesDoesNotForwardAForwardedStep(t *testing.T) {
	d, _ := identityDevice(t)
	l, types := pipeLink(t, "peer-a:9000", d)
	d.AddLink(l)

	d.StepCycles(1, true) // forwarded=true: must not cascade

	select {
	case typ, ok := <-types:
		if ok {
			t.Fatalf("forwarded STEP must not trigger further forwarding, got %v", typ)
		}
	case <-time.After(100 * time.Millisecond):
		// no frame sent, as expected
	}
}

func TestClearLinksRemovesForwardingTargets(t *testing.T) {
	d, _ := identityDevice(t)
	l, types := pipeLink(t, "peer-a:9000", d)
	d.AddLink(l)
	d.ClearLinks()

	if len(d.Links()) != 0 {
		t.Fatalf("Links() after ClearLinks = %v, want empty", d.Links())
	}

	d.StepCycles(1, false)
	select {
	case typ, ok := <-types:
		if ok {
			t.Fatalf("cleared link must not receive forwarded frames, got %v", typ)
		}
	case <-time.After(100 * time.Millisecond):
		// no frame sent, as expected
	}
}
