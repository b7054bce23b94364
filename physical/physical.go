// Package physical implements the Physicalizer (§4.3): it binds a
// Program's named logical input/output bus bits to positions along the
// grid boundary, growing the grid as needed, and rewires every bound
// cell through the router's edge-facing operations so the result can be
// driven entirely through boundary signals.
//
// The fluent Builder favors a construct-then-call-Physicalize shape over
// a long positional constructor.
package physical

import (
	"fmt"
	"sort"

	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
	"github.com/bitgrid/bitgrid/router"
)

// Builder configures a physicalization pass.
type Builder struct {
	defaultInputSide  sides.Side
	defaultOutputSide sides.Side
	sideOverride      map[string]sides.Side
	extraHops         map[string]int
	turnPenalty       int
}

// NewBuilder returns a Builder defaulting inputs to the west edge and
// outputs to the east edge, with no per-bus overrides.
func NewBuilder() Builder {
	return Builder{
		defaultInputSide:  sides.W,
		defaultOutputSide: sides.E,
		sideOverride:      map[string]sides.Side{},
		extraHops:         map[string]int{},
	}
}

// WithDefaultInputSide overrides the side assigned to input buses that
// have no per-bus override.
func (b Builder) WithDefaultInputSide(s sides.Side) Builder {
	b.defaultInputSide = s
	return b
}

// WithDefaultOutputSide overrides the side assigned to output buses that
// have no per-bus override.
func (b Builder) WithDefaultOutputSide(s sides.Side) Builder {
	b.defaultOutputSide = s
	return b
}

// WithBusSide pins a named bus (input or output) to a specific side,
// overriding the default for that bus only.
func (b Builder) WithBusSide(name string, s sides.Side) Builder {
	next := make(map[string]sides.Side, len(b.sideOverride)+1)
	for k, v := range b.sideOverride {
		next[k] = v
	}
	next[name] = s
	b.sideOverride = next
	return b
}

// WithExtraHops sets a fixed detour length for a named bus's edge
// wiring, independent of the automatic parity-alignment detour.
func (b Builder) WithExtraHops(name string, n int) Builder {
	next := make(map[string]int, len(b.extraHops)+1)
	for k, v := range b.extraHops {
		next[k] = v
	}
	next[name] = n
	b.extraHops = next
	return b
}

// WithTurnPenalty sets the router turn penalty used for interior hops.
func (b Builder) WithTurnPenalty(p int) Builder {
	b.turnPenalty = p
	return b
}

func (b Builder) sideFor(name string, def sides.Side) sides.Side {
	if s, ok := b.sideOverride[name]; ok {
		return s
	}
	return def
}

// lane assigns a position along a side, with one shared counter per
// side covering both input and output bits so two buses on the same
// side never collide.
type lane struct {
	xy   [2]int
	side sides.Side
	pos  int
	name string
	bit  int
	isIn bool
}

// Lane identifies the grid-boundary position a single bus bit was bound
// to: which side of the grid and its offset along that side.
type Lane struct {
	Side sides.Side
	Pos  int
}

// computeLanes assigns a boundary position to every input and output bus
// bit in the same deterministic order Physicalize uses: inputs before
// outputs, buses in sorted-name order, bits in declaration order, one
// shared position counter per side. It never mutates p.
func (b Builder) computeLanes(p *grid.Program) ([]lane, map[sides.Side]int) {
	sideCount := map[sides.Side]int{}
	var lanes []lane

	for _, name := range sortedKeys(p.InputBits) {
		side := b.sideFor(name, b.defaultInputSide)
		for bit := range p.InputBits[name] {
			lanes = append(lanes, lane{side: side, pos: sideCount[side], name: name, bit: bit, isIn: true})
			sideCount[side]++
		}
	}
	for _, name := range sortedKeys(p.OutputBits) {
		side := b.sideFor(name, b.defaultOutputSide)
		for bit := range p.OutputBits[name] {
			lanes = append(lanes, lane{side: side, pos: sideCount[side], name: name, bit: bit, isIn: false})
			sideCount[side]++
		}
	}
	return lanes, sideCount
}

// LaneMap reports the boundary binding Physicalize would assign (or did
// assign) to every declared input and output bus bit, keyed by bus name
// with one Lane per bit in declaration order. The server uses this to
// translate a named SET_INPUTS/GET_OUTPUTS value into edge_in/edge_out
// bit positions without re-running the router.
func (b Builder) LaneMap(p *grid.Program) (inputs, outputs map[string][]Lane) {
	lanes, _ := b.computeLanes(p)
	inputs = map[string][]Lane{}
	outputs = map[string][]Lane{}
	for _, ln := range lanes {
		l := Lane{Side: ln.side, Pos: ln.pos}
		if ln.isIn {
			inputs[ln.name] = append(inputs[ln.name], l)
		} else {
			outputs[ln.name] = append(outputs[ln.name], l)
		}
	}
	return inputs, outputs
}

// Physicalize binds p's declared input/output buses to grid-boundary
// positions, growing the grid and inserting ROUTE4 chains as needed. p
// is mutated in place and also returned for chaining.
func (b Builder) Physicalize(p *grid.Program) (*grid.Program, error) {
	lanes, sideCount := b.computeLanes(p)

	if err := growToFit(p, sideCount); err != nil {
		return nil, err
	}
	for i := range lanes {
		lanes[i].xy = edgeCoord(p, lanes[i].side, lanes[i].pos)
	}

	r := router.NewBuilder().WithProgram(p).WithTurnPenalty(b.turnPenalty).Build()

	for _, ln := range lanes {
		if ln.isIn {
			if err := b.wireInputLane(p, r, ln); err != nil {
				return nil, fmt.Errorf("physicalize input %s[%d]: %w", ln.name, ln.bit, err)
			}
		} else {
			if err := b.wireOutputLane(p, r, ln); err != nil {
				return nil, fmt.Errorf("physicalize output %s[%d]: %w", ln.name, ln.bit, err)
			}
		}
	}

	return p, nil
}

// wireInputLane rewires every sink pin across the whole Program that
// reads Input{name,bit} to instead be fed from the edge lane, via a
// ROUTE4 chain terminating at the pin's required neighbor.
func (b Builder) wireInputLane(p *grid.Program, r *router.Router, ln lane) error {
	upstream := grid.Input(ln.name, ln.bit)
	for _, c := range p.Cells {
		for i, src := range c.Inputs {
			if src == nil || src.Kind != grid.SourceInput || src.Name != ln.name || src.Bit != ln.bit {
				continue
			}
			pin := sides.Side(i)
			extra := b.extraHops[ln.name]
			if extra == 0 && parityOf(interiorOf(ln.xy, ln.side)) == parityOf([2]int{c.X, c.Y}) {
				extra = 1
			}
			newSrc, _, err := r.WireFromEdgeTo(upstream, ln.side, ln.pos, [2]int{c.X, c.Y}, pin, extra)
			if err != nil {
				return err
			}
			c.Inputs[i] = &newSrc
		}
	}
	return nil
}

// wireOutputLane routes the bus bit's declared source cell to the
// boundary position, then leaves the Program's OutputBits entry
// pointing at the already-correct edge-driving source.
func (b Builder) wireOutputLane(p *grid.Program, r *router.Router, ln lane) error {
	bits := p.OutputBits[ln.name]
	src := bits[ln.bit]
	if src.Kind != grid.SourceCell {
		return nil // const/input pass-through outputs need no physical wiring
	}
	if src.X == ln.xy[0] && src.Y == ln.xy[1] && src.Out == ln.side {
		return nil
	}
	_, err := r.WireToEdgeFrom([2]int{src.X, src.Y}, src.Out, ln.side, ln.pos, b.extraHops[ln.name])
	if err != nil {
		return err
	}
	bits[ln.bit] = grid.FromCell(ln.xy[0], ln.xy[1], ln.side)
	return nil
}

func parityOf(xy [2]int) int { return (xy[0] + xy[1]) % 2 }

// interiorOf returns the first interior cell a lane's edge chain passes
// through, used to compare parity against the sink before the chain is
// actually built.
func interiorOf(edgeXY [2]int, side sides.Side) [2]int {
	out := side.Opposite()
	return [2]int{edgeXY[0] + out.DX(), edgeXY[1] + out.DY()}
}

func edgeCoord(p *grid.Program, side sides.Side, pos int) [2]int {
	switch side {
	case sides.N:
		return [2]int{pos, 0}
	case sides.S:
		return [2]int{pos, p.Height - 1}
	case sides.W:
		return [2]int{0, pos}
	case sides.E:
		return [2]int{p.Width - 1, pos}
	default:
		panic(fmt.Sprintf("physical: invalid side %d", side))
	}
}

// growToFit enlarges p's dimensions (even, never shrinking) so every
// side holds enough lanes for the positions assigned to it.
func growToFit(p *grid.Program, sideCount map[sides.Side]int) error {
	needW := p.Width
	needH := p.Height
	if n := sideCount[sides.N]; n > needW {
		needW = n
	}
	if n := sideCount[sides.S]; n > needW {
		needW = n
	}
	if n := sideCount[sides.W]; n > needH {
		needH = n
	}
	if n := sideCount[sides.E]; n > needH {
		needH = n
	}
	if needW%2 != 0 {
		needW++
	}
	if needH%2 != 0 {
		needH++
	}
	if needW <= 0 || needH <= 0 {
		return fmt.Errorf("physical: grid cannot be empty")
	}
	p.Width = needW
	p.Height = needH
	return nil
}

func sortedKeys(m map[string][]grid.Source) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
