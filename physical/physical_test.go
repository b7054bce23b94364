package physical_test

import (
	"testing"

	"github.com/bitgrid/bitgrid/emulator"
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
	"github.com/bitgrid/bitgrid/physical"
	"github.com/bitgrid/bitgrid/router"
)

// A single interior LUT cell that buffers its west pin onto its east
// output: after physicalization, input bus "a" should drive it from the
// west edge and output bus "y" should be readable from the east edge.
func bufferProgram() *grid.Program {
	p := grid.NewProgram(4, 4)
	c := &grid.Cell{X: 1, Y: 0, Op: grid.OpLUT}
	in := grid.Input("a", 0)
	c.Inputs[sides.W] = &in
	mask := sides.VariableMask(sides.W)
	c.Params.LUTs = &[sides.Count]uint16{0, mask, 0, 0}
	p.AddCell(c)
	p.InputBits["a"] = []grid.Source{grid.Input("a", 0)}
	p.OutputBits["y"] = []grid.Source{grid.FromCell(1, 0, sides.E)}
	return p
}

func TestPhysicalizeWiresInputFromWestEdge(t *testing.T) {
	p := bufferProgram()
	out, err := physical.NewBuilder().WithTurnPenalty(1).Physicalize(p)
	if err != nil {
		t.Fatalf("Physicalize: %v", err)
	}

	c := out.CellAt(1, 0)
	if c == nil {
		t.Fatal("interior cell lost after physicalization")
	}
	src := c.Inputs[sides.W]
	if src == nil || src.Kind != grid.SourceCell {
		t.Fatalf("interior cell's W input not wired to a cell source: %+v", src)
	}
	if src.ManhattanDistance(1, 0) != 1 || src.Out != sides.E {
		t.Fatalf("interior cell's W input = %+v, not a correct neighbor", src)
	}
}

func TestPhysicalizeWiresOutputToEastEdge(t *testing.T) {
	p := bufferProgram()
	out, err := physical.NewBuilder().WithTurnPenalty(1).Physicalize(p)
	if err != nil {
		t.Fatalf("Physicalize: %v", err)
	}

	bit := out.OutputBits["y"][0]
	if bit.Kind != grid.SourceCell || bit.X != out.Width-1 {
		t.Fatalf("output bit y[0] = %+v, want a cell on the east edge column %d", bit, out.Width-1)
	}
}

func TestPhysicalizedProgramEvaluatesEndToEnd(t *testing.T) {
	p := bufferProgram()
	out, err := physical.NewBuilder().WithTurnPenalty(1).Physicalize(p)
	if err != nil {
		t.Fatalf("Physicalize: %v", err)
	}
	if err := router.RouteProgram(out, 1); err != nil {
		t.Fatalf("RouteProgram after physicalize: %v", err)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	lg, err := grid.FromProgram(out)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}
	m := emulator.NewMachine(lg)

	outBit := out.OutputBits["y"][0]
	edgeIn := emulator.EdgeBits{W: make([]uint8, lg.Height)}

	// Find the west-edge input lane position physicalization assigned.
	var pos = -1
	for y := 0; y < lg.Height; y++ {
		c := out.CellAt(0, y)
		if c != nil && c.Op == grid.OpRoute4 {
			pos = y
			break
		}
	}
	if pos < 0 {
		t.Fatal("no west-edge ingress cell found")
	}
	edgeIn.W[pos] = 1

	var lastOut emulator.EdgeBits
	for i := 0; i < 8; i++ {
		lastOut = m.Step(edgeIn)
	}
	if lastOut.E[outBit.Y] != 1 {
		t.Fatalf("east edge output = %v, want bit %d set", lastOut.E, outBit.Y)
	}
}
