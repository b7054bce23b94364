package sizer_test

import (
	"testing"

	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
	"github.com/bitgrid/bitgrid/internal/sizer"
)

func buf(x, y int, src *grid.Source) *grid.Cell {
	lut := sides.VariableMask(sides.W)
	return &grid.Cell{
		X: x, Y: y,
		Op:     grid.OpLUT,
		Params: grid.Params{LUT: &lut},
		Inputs: [sides.Count]*grid.Source{nil, nil, nil, src},
	}
}

// chainProgram builds three cells in a straight dependency chain, (0,0)
// feeding (1,0) feeding (2,0), with the last cell's output declared as
// the "y" output bus.
func chainProgram() *grid.Program {
	p := grid.NewProgram(4, 2)
	c0 := buf(0, 0, nil)
	c1src := grid.FromCell(0, 0, sides.W)
	c1 := buf(1, 0, &c1src)
	c2src := grid.FromCell(1, 0, sides.W)
	c2 := buf(2, 0, &c2src)
	p.AddCell(c0)
	p.AddCell(c1)
	p.AddCell(c2)
	p.OutputBits["y"] = []grid.Source{grid.FromCell(2, 0, sides.W)}
	return p
}

func TestAnalyzeTopoOrderRespectsDependencies(t *testing.T) {
	rep, err := sizer.Analyze(chainProgram())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	pos := map[[2]int]int{}
	for i, n := range rep.TopoOrder {
		pos[n] = i
	}
	if pos[[2]int{0, 0}] >= pos[[2]int{1, 0}] || pos[[2]int{1, 0}] >= pos[[2]int{2, 0}] {
		t.Fatalf("topo order violates dependency chain: %v", rep.TopoOrder)
	}
}

func TestAnalyzeLevelsIncreaseAlongChain(t *testing.T) {
	rep, err := sizer.Analyze(chainProgram())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.Levels[[2]int{0, 0}] != 0 {
		t.Fatalf("level(0,0) = %d, want 0", rep.Levels[[2]int{0, 0}])
	}
	if rep.Levels[[2]int{1, 0}] != 1 {
		t.Fatalf("level(1,0) = %d, want 1", rep.Levels[[2]int{1, 0}])
	}
	if rep.Levels[[2]int{2, 0}] != 2 {
		t.Fatalf("level(2,0) = %d, want 2", rep.Levels[[2]int{2, 0}])
	}
}

func TestAnalyzeCriticalPathReachesOutput(t *testing.T) {
	rep, err := sizer.Analyze(chainProgram())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.CriticalPathLen != 3 {
		t.Fatalf("CriticalPathLen = %d, want 3", rep.CriticalPathLen)
	}
	want := [][2]int{{0, 0}, {1, 0}, {2, 0}}
	if len(rep.CriticalPath) != len(want) {
		t.Fatalf("CriticalPath = %v, want %v", rep.CriticalPath, want)
	}
	for i, xy := range want {
		if rep.CriticalPath[i] != xy {
			t.Fatalf("CriticalPath[%d] = %v, want %v", i, rep.CriticalPath[i], xy)
		}
	}
	if rep.PerOutputDepth["y"] != 3 {
		t.Fatalf("PerOutputDepth[y] = %d, want 3", rep.PerOutputDepth["y"])
	}
}

func TestAnalyzeDetectsCycle(t *testing.T) {
	p := grid.NewProgram(2, 2)
	aSrc := grid.FromCell(1, 0, sides.W)
	bSrc := grid.FromCell(0, 0, sides.E)
	a := buf(0, 0, &aSrc)
	b := buf(1, 0, &bSrc)
	p.AddCell(a)
	p.AddCell(b)
	if _, err := sizer.Analyze(p); err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestAnalyzeIndependentBranchesShareLevelZero(t *testing.T) {
	p := grid.NewProgram(4, 2)
	p.AddCell(buf(0, 0, nil))
	p.AddCell(buf(0, 1, nil))
	rep, err := sizer.Analyze(p)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.Levels[[2]int{0, 0}] != 0 || rep.Levels[[2]int{0, 1}] != 0 {
		t.Fatalf("expected both independent cells at level 0, got %v", rep.Levels)
	}
	if len(rep.LevelBuckets) != 1 || len(rep.LevelBuckets[0]) != 2 {
		t.Fatalf("LevelBuckets = %v, want one bucket of two cells", rep.LevelBuckets)
	}
}
