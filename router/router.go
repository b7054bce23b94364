// Package router implements ManhattanRouter (§4.2): a 4-neighbor A* path
// search over a Program's grid with occupancy avoidance, optional turn
// penalties, and ROUTE4 LUT synthesis with per-output sharing so several
// routed paths can cross the same pass-through cell.
package router

import (
	"container/heap"
	"fmt"

	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

// Move identifies a forbidden transition: stepping from (X,Y) in
// direction Dir is blocked regardless of occupancy.
type Move struct {
	X, Y int
	Dir  sides.Side
}

type laneKey struct {
	Side sides.Side
	Pos  int
}

// Router holds the state of one routing pass over a Program: which
// coordinates are occupied by pre-existing (non-ROUTE4) cells, which
// ROUTE4 cells this pass has created so far (and may therefore share),
// and the blocked-move set.
type Router struct {
	prog *grid.Program

	occupied map[[2]int]bool
	route4   map[[2]int]*grid.Cell
	avoid    map[Move]bool
	laneFan  map[laneKey]int

	turnPenalty int
}

// Builder configures and constructs a Router via a fluent With*/Build
// convention.
type Builder struct {
	prog        *grid.Program
	avoid       []Move
	turnPenalty int
}

// NewBuilder returns an empty Builder.
func NewBuilder() Builder { return Builder{} }

// WithProgram sets the Program the router will occupy and mutate.
func (b Builder) WithProgram(p *grid.Program) Builder {
	b.prog = p
	return b
}

// WithAvoidMoves adds transitions that are blocked regardless of
// occupancy, e.g. to forbid re-entering a boundary one cell in.
func (b Builder) WithAvoidMoves(moves ...Move) Builder {
	b.avoid = append(b.avoid, moves...)
	return b
}

// WithTurnPenalty sets the extra cost charged when a hop's arrival
// direction differs from its departure direction.
func (b Builder) WithTurnPenalty(p int) Builder {
	b.turnPenalty = p
	return b
}

// Build constructs the Router, seeding occupancy from the Program's
// existing cells.
func (b Builder) Build() *Router {
	if b.prog == nil {
		panic("router: Builder requires WithProgram")
	}
	r := &Router{
		prog:        b.prog,
		occupied:    make(map[[2]int]bool, len(b.prog.Cells)),
		route4:      make(map[[2]int]*grid.Cell),
		avoid:       make(map[Move]bool, len(b.avoid)),
		laneFan:     make(map[laneKey]int),
		turnPenalty: b.turnPenalty,
	}
	for _, c := range b.prog.Cells {
		r.occupied[[2]int{c.X, c.Y}] = true
	}
	for _, m := range b.avoid {
		r.avoid[m] = true
	}
	return r
}

// Program returns the Program this pass is routing.
func (r *Router) Program() *grid.Program { return r.prog }

// passable reports whether (x,y) may be entered by a path: in bounds,
// and either unoccupied or already a ROUTE4 cell from this pass (shared).
func (r *Router) passable(x, y int) bool {
	if !r.prog.InBounds(x, y) {
		return false
	}
	key := [2]int{x, y}
	if r.route4[key] != nil {
		return true
	}
	return !r.occupied[key]
}

func (r *Router) blocked(x, y int, dir sides.Side) bool {
	return r.avoid[Move{X: x, Y: y, Dir: dir}]
}

// --- A* search ---

type searchNode struct {
	x, y   int
	arrive sides.Side // direction moved to reach this node; -1 at the start
	g      int
	f      int
	index  int
}

type nodeHeap []*searchNode

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *nodeHeap) Push(x interface{}) { n := x.(*searchNode); n.index = len(*h); *h = append(*h, n) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func manhattan(x1, y1, x2, y2 int) int {
	dx, dy := x1-x2, y1-y2
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Route runs 4-neighbor A* from src to dst with unit step cost, charging
// turnPenalty whenever the arrival direction changes. It returns the
// path excluding src but including dst, in traversal order.
func (r *Router) Route(src, dst [2]int) ([][2]int, error) {
	return r.routeFrom(src, dst, -1)
}

func (r *Router) routeFrom(src, dst [2]int, forcedFirst sides.Side) ([][2]int, error) {
	if src == dst {
		return nil, nil
	}

	open := &nodeHeap{}
	heap.Init(open)
	start := &searchNode{x: src[0], y: src[1], arrive: -1, g: 0, f: manhattan(src[0], src[1], dst[0], dst[1])}
	heap.Push(open, start)

	best := map[[3]int]int{} // (x,y,arrive+1) -> best g
	cameFrom := map[[3]int]*searchNode{}
	bestKey := func(n *searchNode) [3]int { return [3]int{n.x, n.y, int(n.arrive) + 1} }
	best[bestKey(start)] = 0

	var goalNode *searchNode

	for open.Len() > 0 {
		cur := heap.Pop(open).(*searchNode)
		if cur.x == dst[0] && cur.y == dst[1] {
			goalNode = cur
			break
		}
		if g, ok := best[bestKey(cur)]; ok && g < cur.g {
			continue
		}

		candidates := sides.All[:]
		if cur.arrive == -1 && forcedFirst >= 0 {
			candidates = []sides.Side{forcedFirst}
		}

		for _, dir := range candidates {
			nx, ny := cur.x+dir.DX(), cur.y+dir.DY()
			if !(nx == dst[0] && ny == dst[1]) && !r.passable(nx, ny) {
				continue
			}
			if !r.prog.InBounds(nx, ny) {
				continue
			}
			if r.blocked(cur.x, cur.y, dir) {
				continue
			}
			cost := 1
			if cur.arrive >= 0 && cur.arrive != dir {
				cost += r.turnPenalty
			}
			ng := cur.g + cost
			nxt := &searchNode{x: nx, y: ny, arrive: dir, g: ng, f: ng + manhattan(nx, ny, dst[0], dst[1])}
			key := bestKey(nxt)
			if prevG, ok := best[key]; ok && prevG <= ng {
				continue
			}
			best[key] = ng
			cameFrom[key] = cur
			heap.Push(open, nxt)
		}
	}

	if goalNode == nil {
		return nil, fmt.Errorf("%w: no path from (%d,%d) to (%d,%d)", ErrRoute, src[0], src[1], dst[0], dst[1])
	}

	var path [][2]int
	n := goalNode
	for n != nil && !(n.x == src[0] && n.y == src[1]) {
		path = append([][2]int{{n.x, n.y}}, path...)
		n = cameFrom[bestKey(n)]
	}
	return path, nil
}
