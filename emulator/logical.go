package emulator

import (
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

// LogicalEmulator evaluates a Program directly against symbolic Sources,
// without requiring neighbor-only adjacency: a Cell source may point
// anywhere on the grid, dereferenced lazily each subcycle. It exists for
// integration tests that want to check a Program's behavior before (or
// instead of) routing/physicalization commit it to a LUTGrid.
type LogicalEmulator struct {
	prog  *grid.Program
	outs  map[[2]int][sides.Count]uint8
	cycle uint64
}

// NewLogicalEmulator binds an emulator to prog, zeroed at cycle 0.
func NewLogicalEmulator(prog *grid.Program) *LogicalEmulator {
	e := &LogicalEmulator{prog: prog}
	e.Reset()
	return e
}

// Reset zeroes every cell's output and the cycle counter.
func (e *LogicalEmulator) Reset() {
	e.outs = make(map[[2]int][sides.Count]uint8, len(e.prog.Cells))
	e.cycle = 0
}

// Cycle returns the monotonic subcycle counter.
func (e *LogicalEmulator) Cycle() uint64 { return e.cycle }

func (e *LogicalEmulator) evalSource(s grid.Source, inputs map[string]uint64) uint8 {
	switch s.Kind {
	case grid.SourceConst:
		return s.Value & 1
	case grid.SourceInput:
		return uint8((inputs[s.Name] >> uint(s.Bit)) & 1)
	case grid.SourceCell:
		out := e.outs[[2]int{s.X, s.Y}]
		return out[s.Out]
	default:
		return 0
	}
}

// Step advances one subcycle under the same two-phase schedule the
// strict Machine uses, dereferencing each active cell's inputs against
// the current input vector and the previous-subcycle output map.
func (e *LogicalEmulator) Step(inputs map[string]uint64) {
	evenActive := e.cycle%2 == 0
	next := make(map[[2]int][sides.Count]uint8, len(e.outs))
	for k, v := range e.outs {
		next[k] = v // inactive-parity cells keep their last value
	}

	for _, c := range e.prog.Cells {
		if ((c.X+c.Y)%2 == 0) != evenActive {
			continue
		}
		var idxVal uint
		for i, src := range c.Inputs {
			if src == nil {
				continue
			}
			if e.evalSource(*src, inputs) != 0 {
				idxVal |= 1 << uint(i)
			}
		}
		luts := c.Params.Resolve()
		var out [sides.Count]uint8
		for d := 0; d < sides.Count; d++ {
			out[d] = uint8((luts[d] >> idxVal) & 1)
		}
		next[[2]int{c.X, c.Y}] = out
	}

	e.outs = next
	e.cycle++
}

// SampleOutputs evaluates every declared output bus against the current
// state and input vector, without advancing any subcycle.
func (e *LogicalEmulator) SampleOutputs(inputs map[string]uint64) map[string]uint64 {
	result := make(map[string]uint64, len(e.prog.OutputBits))
	for name, bits := range e.prog.OutputBits {
		var v uint64
		for b, src := range bits {
			if e.evalSource(src, inputs) != 0 {
				v |= 1 << uint(b)
			}
		}
		result[name] = v
	}
	return result
}

// Run resets cell outputs to zero before each vector, advances Latency
// subcycles per vector applying the parity rule, and returns the sampled
// outputs after each vector settles.
func (e *LogicalEmulator) Run(vectors []map[string]uint64) []map[string]uint64 {
	results := make([]map[string]uint64, 0, len(vectors))
	for _, v := range vectors {
		e.Reset()
		for i := 0; i < e.prog.Latency; i++ {
			e.Step(v)
		}
		results = append(results, e.SampleOutputs(v))
	}
	return results
}

// RunStream advances cyclesPerStep subcycles per step, optionally
// resetting state first, and retains state between steps — the
// streaming counterpart to Run used by §8 scenario 1's byte-at-a-time
// protocol tests.
func (e *LogicalEmulator) RunStream(steps []map[string]uint64, cyclesPerStep int, reset bool) []map[string]uint64 {
	if reset {
		e.Reset()
	}
	results := make([]map[string]uint64, 0, len(steps))
	for _, v := range steps {
		for i := 0; i < cyclesPerStep; i++ {
			e.Step(v)
		}
		results = append(results, e.SampleOutputs(v))
	}
	return results
}
