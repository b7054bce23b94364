package emulator_test

import (
	"testing"

	"github.com/bitgrid/bitgrid/emulator"
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

// A single ROUTE4 cell wired N->S: this models one hop of a routed chain
// and exercises the two-phase schedule directly against raw LUTs.
func TestMachineStepRoutesEdgeNorthToSouth(t *testing.T) {
	g := grid.NewLUTGrid(2, 2)
	g.Set(0, 0, [sides.Count]uint16{0, 0, sides.VariableMask(sides.N), 0})

	m := emulator.NewMachine(g)

	edgeIn := emulator.EdgeBits{N: []uint8{1, 0}}
	out := m.Step(edgeIn)
	if m.Cycle() != 1 {
		t.Fatalf("cycle = %d, want 1", m.Cycle())
	}
	// (0,0) has even parity and is active on cycle 0; its computed S
	// output is visible immediately in this same step's commit.
	if got := m.OutputAt(0, 0)[sides.S]; got != 1 {
		t.Errorf("OutputAt(0,0)[S] = %d, want 1", got)
	}
	_ = out
}

func TestMachineResetZeroesState(t *testing.T) {
	g := grid.NewLUTGrid(2, 2)
	g.Set(0, 0, [sides.Count]uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF})
	m := emulator.NewMachine(g)
	m.Step(emulator.EdgeBits{})
	m.Reset()
	if m.Cycle() != 0 {
		t.Fatalf("cycle after reset = %d, want 0", m.Cycle())
	}
	if got := m.OutputAt(0, 0); got != [sides.Count]uint8{} {
		t.Fatalf("output after reset = %v, want zero", got)
	}
}

func TestMachineOnlyActiveParityUpdatesPerStep(t *testing.T) {
	g := grid.NewLUTGrid(2, 2)
	// (1,0) has odd parity: constant-1 on every output.
	g.Set(1, 0, [sides.Count]uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF})
	m := emulator.NewMachine(g)

	m.Step(emulator.EdgeBits{}) // phase A: even-parity cells only
	if got := m.OutputAt(1, 0); got != [sides.Count]uint8{} {
		t.Fatalf("odd-parity cell updated during phase A: %v", got)
	}
	m.Step(emulator.EdgeBits{}) // phase B: odd-parity cells
	for d := 0; d < sides.Count; d++ {
		if m.OutputAt(1, 0)[d] != 1 {
			t.Fatalf("odd-parity cell not updated during phase B: %v", m.OutputAt(1, 0))
		}
	}
}

func TestSetGridPreservesCycleAndOutputs(t *testing.T) {
	g := grid.NewLUTGrid(2, 2)
	g.Set(0, 0, [sides.Count]uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF})
	m := emulator.NewMachine(g)
	m.Step(emulator.EdgeBits{})
	cycleBefore := m.Cycle()
	outBefore := m.OutputAt(0, 0)

	m.SetGrid(grid.NewLUTGrid(2, 2))
	if m.Cycle() != cycleBefore {
		t.Fatalf("SetGrid changed cycle: got %d, want %d", m.Cycle(), cycleBefore)
	}
	if got := m.OutputAt(0, 0); got != outBefore {
		t.Fatalf("SetGrid changed outputs: got %v, want %v", got, outBefore)
	}
}
