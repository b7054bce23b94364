package router

import (
	"fmt"

	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

// installRoute4 creates (or reuses, from this pass) a ROUTE4 cell at
// (x,y) that reads upstream on pin inPin and drives it out on outDir,
// applying the merge policy from §4.2:
//   - identical (outDir, inPin, upstream) already present: no-op
//   - outDir already driven by a different mapping: fail
//   - inPin already fed by a different upstream: fail
//   - otherwise OR the mask into outDir and bind inPin to upstream
func (r *Router) installRoute4(x, y int, inPin, outDir sides.Side, upstream grid.Source) (*grid.Cell, error) {
	key := [2]int{x, y}
	cell, exists := r.route4[key]
	if !exists {
		if r.occupied[key] {
			return nil, fmt.Errorf("%w: cannot place ROUTE4 at (%d,%d): occupied", ErrRoute, x, y)
		}
		cell = &grid.Cell{X: x, Y: y, Op: grid.OpRoute4, Params: grid.Params{LUTs: &[sides.Count]uint16{}}}
		r.route4[key] = cell
		r.occupied[key] = true
		r.prog.AddCell(cell)
	}

	mask := sides.VariableMask(inPin)
	luts := *cell.Params.LUTs

	if luts[outDir] != 0 {
		if luts[outDir] != mask {
			return nil, fmt.Errorf("%w: conflicting ROUTE4 output %s at (%d,%d)", ErrRoute, outDir, x, y)
		}
		if cell.Inputs[inPin] == nil || *cell.Inputs[inPin] != upstream {
			return nil, fmt.Errorf("%w: ROUTE4 output %s at (%d,%d) already fed by a different source", ErrRoute, outDir, x, y)
		}
		return cell, nil // idempotent merge
	}

	if cell.Inputs[inPin] != nil && *cell.Inputs[inPin] != upstream {
		return nil, fmt.Errorf("%w: ROUTE4 pin %s at (%d,%d) already used by a different source", ErrRoute, inPin, x, y)
	}

	luts[outDir] |= mask
	cell.Params.LUTs = &luts
	src := upstream
	cell.Inputs[inPin] = &src

	return cell, nil
}

// chainSpec describes one contiguous run of ROUTE4 hops to install,
// always ending with Final materialized as a ROUTE4 cell driving
// FinalOutDir — either an edge egress, or the specific neighbor of a
// sink cell that feeds the sink's input pin directly by geometric
// adjacency (the sink cell itself is never touched).
//
// If FirstPin is non-nil, the first coordinate in Hops is fed on that
// fixed pin (an edge ingress, which has no grid predecessor to derive a
// direction from); otherwise the first hop's pin is derived from the
// direction out of Anchor, an already-placed producer cell.
type chainSpec struct {
	Upstream    grid.Source
	FirstPin    *sides.Side
	Anchor      [2]int
	Hops        [][2]int
	Final       [2]int
	FinalOutDir sides.Side
}

// wireChain materializes spec's ROUTE4 cells in order, ending at Final.
func (r *Router) wireChain(spec chainSpec) ([]*grid.Cell, error) {
	full := append(append([][2]int{}, spec.Hops...), spec.Final)

	var cells []*grid.Cell
	curSrc := spec.Upstream
	for i, hop := range full {
		var inPin sides.Side
		if i == 0 && spec.FirstPin != nil {
			inPin = *spec.FirstPin
		} else {
			base := spec.Anchor
			if i > 0 {
				base = full[i-1]
			}
			dir, ok := sides.DirFromDelta(hop[0]-base[0], hop[1]-base[1])
			if !ok {
				return nil, fmt.Errorf("%w: non-adjacent hop (%d,%d)->(%d,%d)", ErrRoute, base[0], base[1], hop[0], hop[1])
			}
			inPin = dir.Opposite()
		}

		var outDir sides.Side
		if i == len(full)-1 {
			outDir = spec.FinalOutDir
		} else {
			next := full[i+1]
			dir, ok := sides.DirFromDelta(next[0]-hop[0], next[1]-hop[1])
			if !ok {
				return nil, fmt.Errorf("%w: non-adjacent hop (%d,%d)->(%d,%d)", ErrRoute, hop[0], hop[1], next[0], next[1])
			}
			outDir = dir
		}

		cell, ierr := r.installRoute4(hop[0], hop[1], inPin, outDir, curSrc)
		if ierr != nil {
			return nil, ierr
		}
		cells = append(cells, cell)
		curSrc = grid.FromCell(hop[0], hop[1], outDir)
	}

	return cells, nil
}

// detour returns a chain of n perpendicular steps off `start` (the first
// element of the returned slice is start itself), used to lengthen a
// path by exactly n hops so the arriving cell's checkerboard parity can
// be shifted to match a sink's (§4.3).
func (r *Router) detour(start [2]int, forward sides.Side, n int) [][2]int {
	hops := make([][2]int, 0, n+1)
	hops = append(hops, start)
	cur := start
	perp := forward.RotateCW()
	for i := 0; i < n; i++ {
		cur = [2]int{cur[0] + perp.DX(), cur[1] + perp.DY()}
		hops = append(hops, cur)
		perp = perp.Opposite()
	}
	return hops
}

func (r *Router) edgeCoord(side sides.Side, pos int) [2]int {
	switch side {
	case sides.N:
		return [2]int{pos, 0}
	case sides.S:
		return [2]int{pos, r.prog.Height - 1}
	case sides.W:
		return [2]int{0, pos}
	case sides.E:
		return [2]int{r.prog.Width - 1, pos}
	default:
		panic(fmt.Sprintf("router: invalid side %d", side))
	}
}

// LaneFanout returns how many hop chains this pass has already wired that
// start or end at the given edge lane.
func (r *Router) LaneFanout(side sides.Side, pos int) int {
	return r.laneFan[laneKey{Side: side, Pos: pos}]
}
