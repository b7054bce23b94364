package router

import (
	"fmt"

	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

// neighborFor returns the coordinate of sinkXY's neighbor on pin sinkPin —
// the only cell the strict Machine will ever read for that pin, regardless
// of what Source the Program records. Every wiring operation below must
// land there exactly, not merely "adjacent to the sink".
func neighborFor(sinkXY [2]int, sinkPin sides.Side) [2]int {
	return [2]int{sinkXY[0] + sinkPin.DX(), sinkXY[1] + sinkPin.DY()}
}

// WireAdjacentTo routes from an existing producer cell (upstream, which
// must be a SourceCell) to the specific neighbor of sinkXY that feeds
// sinkPin, materializing that neighbor as a ROUTE4 cell driving toward
// the sink. The sink cell itself is never modified. It returns the
// Source the sink should now use for sinkPin and the ROUTE4 cells
// created or reused along the way.
func (r *Router) WireAdjacentTo(upstream grid.Source, sinkXY [2]int, sinkPin sides.Side) (grid.Source, []*grid.Cell, error) {
	if upstream.Kind != grid.SourceCell {
		return upstream, nil, nil
	}
	srcXY := [2]int{upstream.X, upstream.Y}
	target := neighborFor(sinkXY, sinkPin)
	outDir := sinkPin.Opposite()

	if srcXY == target {
		if upstream.Out != outDir {
			return grid.Source{}, nil, fmt.Errorf("%w: producer at (%d,%d) drives %s, not %s required by sink pin %s", ErrRoute, srcXY[0], srcXY[1], upstream.Out, outDir, sinkPin)
		}
		return upstream, nil, nil
	}

	path, err := r.routeFrom(srcXY, target, upstream.Out)
	if err != nil {
		return grid.Source{}, nil, err
	}
	hops := path[:len(path)-1]

	cells, err := r.wireChain(chainSpec{
		Upstream:    upstream,
		Anchor:      srcXY,
		Hops:        hops,
		Final:       target,
		FinalOutDir: outDir,
	})
	if err != nil {
		return grid.Source{}, nil, err
	}
	return grid.FromCell(target[0], target[1], outDir), cells, nil
}

// WireFromEdgeTo begins at the boundary cell on (side, pos), reading
// upstream (typically a named input-bus bit) on the edge-facing pin, and
// routes inward to the specific neighbor of dstXY that feeds dstPin.
// extraHops inserts a perpendicular detour right after the boundary cell
// to align checkerboard parity.
func (r *Router) WireFromEdgeTo(upstream grid.Source, side sides.Side, pos int, dstXY [2]int, dstPin sides.Side, extraHops int) (grid.Source, []*grid.Cell, error) {
	edgeXY := r.edgeCoord(side, pos)
	target := neighborFor(dstXY, dstPin)
	outDir := dstPin.Opposite()
	firstPin := side

	if target == edgeXY {
		// The sink's required neighbor IS the boundary cell itself: no
		// interior hop needed at all.
		cells, err := r.wireChain(chainSpec{
			Upstream:    upstream,
			FirstPin:    &firstPin,
			Final:       target,
			FinalOutDir: outDir,
		})
		if err != nil {
			return grid.Source{}, nil, err
		}
		r.laneFan[laneKey{Side: side, Pos: pos}]++
		return grid.FromCell(target[0], target[1], outDir), cells, nil
	}

	outward := side.Opposite()
	interiorStart := [2]int{edgeXY[0] + outward.DX(), edgeXY[1] + outward.DY()}
	if !r.prog.InBounds(interiorStart[0], interiorStart[1]) {
		return grid.Source{}, nil, fmt.Errorf("%w: grid too small to route from edge %s@%d", ErrRoute, side, pos)
	}

	detourHops := r.detour(interiorStart, outward, extraHops)
	afterDetour := detourHops[len(detourHops)-1]

	chain := append([][2]int{edgeXY}, detourHops...)
	if afterDetour != target {
		rest, err := r.routeFrom(afterDetour, target, -1)
		if err != nil {
			return grid.Source{}, nil, err
		}
		if len(rest) > 0 {
			chain = append(chain, rest[:len(rest)-1]...)
		}
	}

	cells, err := r.wireChain(chainSpec{
		Upstream:    upstream,
		FirstPin:    &firstPin,
		Hops:        chain,
		Final:       target,
		FinalOutDir: outDir,
	})
	if err != nil {
		return grid.Source{}, nil, err
	}
	r.laneFan[laneKey{Side: side, Pos: pos}]++
	return grid.FromCell(target[0], target[1], outDir), cells, nil
}

// WireToEdgeFrom routes from an existing producer cell (srcXY, driving
// output srcOut) to the boundary cell on (side, pos), which is itself
// materialized as the final ROUTE4 hop driving directly onto the edge.
func (r *Router) WireToEdgeFrom(srcXY [2]int, srcOut sides.Side, side sides.Side, pos int, extraHops int) ([]*grid.Cell, error) {
	edgeXY := r.edgeCoord(side, pos)

	path, err := r.routeFrom(srcXY, edgeXY, srcOut)
	if err != nil {
		return nil, err
	}

	if extraHops > 0 && len(path) > 0 {
		interiorStart := path[0]
		detourHops := r.detour(interiorStart, srcOut, extraHops)
		afterDetour := detourHops[len(detourHops)-1]
		rest, derr := r.routeFrom(afterDetour, edgeXY, -1)
		if derr != nil {
			return nil, derr
		}
		path = append(append([][2]int{}, detourHops...), rest...)
	}

	hops := path[:len(path)-1]
	cells, err := r.wireChain(chainSpec{
		Upstream:    grid.FromCell(srcXY[0], srcXY[1], srcOut),
		Anchor:      srcXY,
		Hops:        hops,
		Final:       edgeXY,
		FinalOutDir: side,
	})
	if err != nil {
		return nil, err
	}
	r.laneFan[laneKey{Side: side, Pos: pos}]++
	return cells, nil
}

// WireEdgeToEdge routes upstream, entering on (sideSrc, posSrc) and
// exiting on (sideDst, posDst), materializing both boundary cells.
func (r *Router) WireEdgeToEdge(upstream grid.Source, sideSrc sides.Side, posSrc int, sideDst sides.Side, posDst int, extraHops int) ([]*grid.Cell, error) {
	edgeSrcXY := r.edgeCoord(sideSrc, posSrc)
	edgeDstXY := r.edgeCoord(sideDst, posDst)
	outward := sideSrc.Opposite()
	interiorStart := [2]int{edgeSrcXY[0] + outward.DX(), edgeSrcXY[1] + outward.DY()}
	if !r.prog.InBounds(interiorStart[0], interiorStart[1]) {
		return nil, fmt.Errorf("%w: grid too small to route from edge %s@%d", ErrRoute, sideSrc, posSrc)
	}

	detourHops := r.detour(interiorStart, outward, extraHops)
	afterDetour := detourHops[len(detourHops)-1]

	chain := append([][2]int{edgeSrcXY}, detourHops...)
	if afterDetour != edgeDstXY {
		rest, err := r.routeFrom(afterDetour, edgeDstXY, -1)
		if err != nil {
			return nil, err
		}
		if len(rest) > 0 {
			chain = append(chain, rest[:len(rest)-1]...)
		}
	}

	firstPin := sideSrc
	cells, err := r.wireChain(chainSpec{
		Upstream:    upstream,
		FirstPin:    &firstPin,
		Hops:        chain,
		Final:       edgeDstXY,
		FinalOutDir: sideDst,
	})
	if err != nil {
		return nil, err
	}
	r.laneFan[laneKey{Side: sideSrc, Pos: posSrc}]++
	r.laneFan[laneKey{Side: sideDst, Pos: posDst}]++
	return cells, nil
}

// RouteProgram rewrites every cell-typed input source that does not
// already sit at the exact neighbor its sink pin requires, inserting
// ROUTE4 hops so the result satisfies the neighbor-only invariant: a
// sink's pin i is always fed by the cell at sink+i, driving i.Opposite().
func RouteProgram(p *grid.Program, turnPenalty int) error {
	r := NewBuilder().WithProgram(p).WithTurnPenalty(turnPenalty).Build()

	cells := append([]*grid.Cell{}, p.Cells...) // snapshot: don't re-visit ROUTE4 cells created below
	for _, c := range cells {
		for i, src := range c.Inputs {
			if src == nil || src.Kind != grid.SourceCell {
				continue
			}
			pin := sides.Side(i)
			target := neighborFor([2]int{c.X, c.Y}, pin)
			if src.X == target[0] && src.Y == target[1] && src.Out == pin.Opposite() {
				continue
			}
			newSrc, _, err := r.WireAdjacentTo(*src, [2]int{c.X, c.Y}, pin)
			if err != nil {
				return fmt.Errorf("routing cell (%d,%d) input %d: %w", c.X, c.Y, i, err)
			}
			c.Inputs[i] = &newSrc
		}
	}
	return nil
}
