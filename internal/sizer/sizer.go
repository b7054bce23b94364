// Package sizer analyzes a Program's cell dependency graph for sizing
// estimates ahead of routing: topological order, per-cell level
// assignment, and the critical (longest weighted) path to each declared
// output bus. It never mutates the Program; it is purely informational,
// the way a synthesis tool's timing report doesn't change the netlist.
package sizer

import (
	"fmt"
	"sort"

	"github.com/bitgrid/bitgrid/grid"
)

// node is the (x,y) key every cell is addressed by in the dependency
// graph; output buses are addressed by name instead.
type node struct {
	x, y int
	name string // non-empty for an output-bus pseudo-node
}

func cellNode(x, y int) node { return node{x: x, y: y} }
func outputNode(name string) node { return node{name: name} }

func (n node) String() string {
	if n.name != "" {
		return "out:" + n.name
	}
	return fmt.Sprintf("(%d,%d)", n.x, n.y)
}

// Report is the result of analyzing a Program: a topological cell order,
// per-cell levels (longest distance from a source with no cell
// dependencies), the critical path length and its node sequence, and the
// longest-path depth to each declared output bus.
type Report struct {
	// TopoOrder lists every cell's (x,y) in dependency order: a cell
	// never precedes one of its own SourceCell dependencies.
	TopoOrder [][2]int
	// Levels maps each cell's (x,y) to its longest dependency-chain
	// length, counting only cells (inputs/consts contribute zero).
	Levels map[[2]int]int
	// LevelBuckets groups cell coordinates by level, index == level.
	LevelBuckets [][][2]int
	// CriticalPathLen is the longest weighted path ending at any
	// declared output bus, counting one unit of weight per cell hop.
	CriticalPathLen int
	// CriticalPath is the sequence of cell coordinates realizing
	// CriticalPathLen, in dependency order.
	CriticalPath [][2]int
	// PerOutputDepth maps each output bus name to the longest path
	// length reaching any bit of that bus.
	PerOutputDepth map[string]int
}

// Analyze builds a dependency graph over p's cells (an edge runs from
// every SourceCell a cell reads to that cell) plus one pseudo-node per
// declared output bus (an edge from every cell an output bit reads), and
// computes topological order, levels, and critical path length.
//
// Analyze does not require p to be routed: SourceCell references at any
// Manhattan distance are valid dependency edges here, unlike the strict
// evaluator's adjacency requirement.
func Analyze(p *grid.Program) (*Report, error) {
	g := newGraph(p)
	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	levels, buckets := g.levelize(order)
	dist, pred := g.longestPaths(order)

	outputs := g.outputNodes()
	var crit node
	best := -1
	for _, o := range outputs {
		if d := dist[o]; d > best {
			best = d
			crit = o
		}
	}
	var critPath [][2]int
	if best >= 0 {
		for _, n := range reconstruct(pred, crit) {
			if n.name == "" {
				critPath = append(critPath, [2]int{n.x, n.y})
			}
		}
	}

	perOutput := make(map[string]int, len(outputs))
	for _, o := range outputs {
		perOutput[o.name] = dist[o]
	}

	cellLevels := make(map[[2]int]int, len(levels))
	for n, lv := range levels {
		if n.name == "" {
			cellLevels[[2]int{n.x, n.y}] = lv
		}
	}
	var cellOrder [][2]int
	for _, n := range order {
		if n.name == "" {
			cellOrder = append(cellOrder, [2]int{n.x, n.y})
		}
	}
	var cellBuckets [][][2]int
	for _, bucket := range buckets {
		var b [][2]int
		for _, n := range bucket {
			if n.name == "" {
				b = append(b, [2]int{n.x, n.y})
			}
		}
		cellBuckets = append(cellBuckets, b)
	}

	return &Report{
		TopoOrder:       cellOrder,
		Levels:          cellLevels,
		LevelBuckets:    cellBuckets,
		CriticalPathLen: best,
		CriticalPath:    critPath,
		PerOutputDepth:  perOutput,
	}, nil
}

// graph is the internal adjacency-list representation Analyze builds
// from a Program, independent of grid.Program's own indexing.
type graph struct {
	nodes   []node
	hasNode map[node]bool
	preds   map[node][]node // dependency edges: preds[n] feed into n
	succs   map[node][]node
}

func newGraph(p *grid.Program) *graph {
	g := &graph{
		hasNode: map[node]bool{},
		preds:   map[node][]node{},
		succs:   map[node][]node{},
	}
	for _, c := range p.Cells {
		g.addNode(cellNode(c.X, c.Y))
	}
	for _, c := range p.Cells {
		n := cellNode(c.X, c.Y)
		for _, src := range c.Inputs {
			if src == nil || src.Kind != grid.SourceCell {
				continue
			}
			from := cellNode(src.X, src.Y)
			if g.hasNode[from] {
				g.addEdge(from, n)
			}
		}
	}
	for name, bits := range p.OutputBits {
		out := outputNode(name)
		g.addNode(out)
		for _, src := range bits {
			if src.Kind != grid.SourceCell {
				continue
			}
			from := cellNode(src.X, src.Y)
			if g.hasNode[from] {
				g.addEdge(from, out)
			}
		}
	}
	return g
}

func (g *graph) addNode(n node) {
	if g.hasNode[n] {
		return
	}
	g.hasNode[n] = true
	g.nodes = append(g.nodes, n)
}

func (g *graph) addEdge(from, to node) {
	g.preds[to] = append(g.preds[to], from)
	g.succs[from] = append(g.succs[from], to)
}

// sortedNodes fixes a deterministic order: cells in row-major order
// (ascending y, then x), then output pseudo-nodes by bus name. topoSort
// seeds its FIFO queue in this order and enqueues each node's successors
// sorted by name, so Analyze's output is stable across runs.
func (g *graph) sortedNodes() []node {
	out := append([]node{}, g.nodes...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aOut, bOut := a.name != "", b.name != ""
		if aOut != bOut {
			return bOut // cells sort before output pseudo-nodes
		}
		if aOut {
			return a.name < b.name
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.x < b.x
	})
	return out
}

func (g *graph) topoSort() ([]node, error) {
	indeg := make(map[node]int, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n] = len(g.preds[n])
	}
	var queue []node
	for _, n := range g.sortedNodes() {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	var order []node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		nexts := append([]node{}, g.succs[n]...)
		sort.Slice(nexts, func(i, j int) bool {
			return nexts[i].String() < nexts[j].String()
		})
		for _, m := range nexts {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("sizer: cycle detected among %d cells", len(g.nodes)-len(order))
	}
	return order, nil
}

func (g *graph) levelize(order []node) (map[node]int, [][]node) {
	level := make(map[node]int, len(order))
	maxLevel := 0
	for _, n := range order {
		best := -1
		for _, p := range g.preds[n] {
			if level[p] > best {
				best = level[p]
			}
		}
		lv := 0
		if best >= 0 {
			lv = best + 1
		}
		level[n] = lv
		if lv > maxLevel {
			maxLevel = lv
		}
	}
	buckets := make([][]node, maxLevel+1)
	for _, n := range order {
		buckets[level[n]] = append(buckets[level[n]], n)
	}
	return level, buckets
}

// longestPaths assigns every cell weight 1 and every output pseudo-node
// weight 0 (it only taps a value, it does not compute one), then finds
// the longest path to each node by topological relaxation.
func (g *graph) longestPaths(order []node) (map[node]int, map[node]node) {
	dist := make(map[node]int, len(order))
	pred := make(map[node]node, len(order))
	for _, n := range order {
		w := 1
		if n.name != "" {
			w = 0
		}
		best := 0
		var bestPred node
		found := false
		for _, p := range g.preds[n] {
			if dist[p] >= best {
				best = dist[p]
				bestPred = p
				found = true
			}
		}
		dist[n] = best + w
		if found {
			pred[n] = bestPred
		}
	}
	return dist, pred
}

func (g *graph) outputNodes() []node {
	var outs []node
	for _, n := range g.nodes {
		if n.name != "" {
			outs = append(outs, n)
		}
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].name < outs[j].name })
	return outs
}

func reconstruct(pred map[node]node, end node) []node {
	var path []node
	cur := end
	for {
		path = append(path, cur)
		p, ok := pred[cur]
		if !ok {
			break
		}
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
