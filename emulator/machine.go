// Package emulator implements BitGrid's two evaluators: Machine, the
// strict LUT-only two-phase evaluator that reads exclusively from
// adjacent cells' previous outputs (§4.1), and LogicalEmulator, which
// dereferences a Program's symbolic Sources lazily each cycle for
// integration tests (§4.7). Both apply the same checkerboard schedule,
// separating "gather inputs" from "commit outputs" each subcycle.
package emulator

import (
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

// Machine is the dense, LUT-only grid evaluator: the runtime component a
// Server owns. Its only state is the cycle counter and every cell's last
// committed four output bits.
type Machine struct {
	g     *grid.LUTGrid
	outs  [][sides.Count]uint8 // row-major, length Width*Height
	cycle uint64
}

// NewMachine builds a Machine bound to g. The Machine does not copy g's
// LUTs; callers that mutate g afterwards (e.g. via a bitstream APPLY)
// will have those LUTs take effect on the next Step.
func NewMachine(g *grid.LUTGrid) *Machine {
	m := &Machine{g: g}
	m.Reset()
	return m
}

// Grid returns the LUTGrid this machine evaluates.
func (m *Machine) Grid() *grid.LUTGrid { return m.g }

// SetGrid replaces the LUT configuration in place (an APPLY), preserving
// the current cycle counter and output state — only the tables change,
// not the signals already latched on the grid.
func (m *Machine) SetGrid(g *grid.LUTGrid) { m.g = g }

// Reset zeroes every cell output and the cycle counter.
func (m *Machine) Reset() {
	m.outs = make([][sides.Count]uint8, m.g.Width*m.g.Height)
	m.cycle = 0
}

// Cycle returns the monotonic subcycle counter.
func (m *Machine) Cycle() uint64 { return m.cycle }

func (m *Machine) off(x, y int) int { return y*m.g.Width + x }

// OutputAt returns the last-committed four output bits of the cell at
// (x,y), regardless of which phase last updated it.
func (m *Machine) OutputAt(x, y int) [sides.Count]uint8 {
	if !m.g.InBounds(x, y) {
		return [sides.Count]uint8{}
	}
	return m.outs[m.off(x, y)]
}

// activeParity reports whether cells with even (x+y) are the ones
// updating this step: true on phase A (cycle even), false on phase B.
func (m *Machine) activeParity() bool {
	return m.cycle%2 == 0
}

// Step advances one subcycle (one phase of the two-phase schedule) and
// returns the boundary outputs sampled after the commit.
func (m *Machine) Step(edgeIn EdgeBits) EdgeBits {
	evenActive := m.activeParity()

	type update struct {
		idx int
		out [sides.Count]uint8
	}
	var pending []update

	for y := 0; y < m.g.Height; y++ {
		for x := 0; x < m.g.Width; x++ {
			if ((x+y)%2 == 0) != evenActive {
				continue
			}
			ins := m.gatherInputs(x, y, edgeIn)
			idxVal := uint(ins[sides.N]) | uint(ins[sides.E])<<1 |
				uint(ins[sides.S])<<2 | uint(ins[sides.W])<<3
			luts := m.g.Get(x, y)
			var out [sides.Count]uint8
			for d := 0; d < sides.Count; d++ {
				out[d] = uint8((luts[d] >> idxVal) & 1)
			}
			pending = append(pending, update{idx: m.off(x, y), out: out})
		}
	}

	for _, u := range pending {
		m.outs[u.idx] = u.out
	}
	m.cycle++

	return m.sampleEdges()
}

// gatherInputs collects the four pin values (N,E,S,W) feeding the cell at
// (x,y): the opposite-direction output of the in-grid neighbor, or the
// matching edge_in lane at the boundary.
func (m *Machine) gatherInputs(x, y int, edgeIn EdgeBits) [sides.Count]uint8 {
	var ins [sides.Count]uint8
	for _, pin := range sides.All {
		nx, ny := x+pin.DX(), y+pin.DY()
		if m.g.InBounds(nx, ny) {
			neighbor := m.outs[m.off(nx, ny)]
			ins[pin] = neighbor[pin.Opposite()]
			continue
		}
		switch pin {
		case sides.N:
			ins[pin] = bitAt(edgeIn.N, x)
		case sides.S:
			ins[pin] = bitAt(edgeIn.S, x)
		case sides.W:
			ins[pin] = bitAt(edgeIn.W, y)
		case sides.E:
			ins[pin] = bitAt(edgeIn.E, y)
		}
	}
	return ins
}

// sampleEdges reads the four boundary buses from the state just
// committed: N from row 0's output 0, E from column Width-1's output 1,
// S from row Height-1's output 2, W from column 0's output 3.
func (m *Machine) sampleEdges() EdgeBits {
	var out EdgeBits
	out.N = make([]uint8, m.g.Width)
	out.S = make([]uint8, m.g.Width)
	out.E = make([]uint8, m.g.Height)
	out.W = make([]uint8, m.g.Height)

	for x := 0; x < m.g.Width; x++ {
		out.N[x] = m.outs[m.off(x, 0)][sides.N]
		out.S[x] = m.outs[m.off(x, m.g.Height-1)][sides.S]
	}
	for y := 0; y < m.g.Height; y++ {
		out.W[y] = m.outs[m.off(0, y)][sides.W]
		out.E[y] = m.outs[m.off(m.g.Width-1, y)][sides.E]
	}
	return out
}
