package grid_test

import (
	"encoding/json"
	"testing"

	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

func TestFromProgramDefaultsMissingCellsToZero(t *testing.T) {
	p := grid.NewProgram(2, 2)
	lut := uint16(0x1234)
	p.AddCell(&grid.Cell{X: 0, Y: 0, Op: grid.OpLUT, Params: grid.Params{LUT: &lut}})

	lg, err := grid.FromProgram(p)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}
	got := lg.Get(0, 0)
	if got[sides.N] != 0x1234 {
		t.Errorf("luts[0,0][N] = %#x, want %#x", got[sides.N], 0x1234)
	}
	if zero := lg.Get(1, 1); zero != [sides.Count]uint16{} {
		t.Errorf("luts[1,1] = %v, want all zero", zero)
	}
}

func TestLUTGridJSONOmitsZeroCells(t *testing.T) {
	lg := grid.NewLUTGrid(2, 2)
	lg.Set(0, 0, [sides.Count]uint16{1, 0, 0, 0})

	data, err := json.Marshal(lg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	cells, ok := raw["cells"].([]interface{})
	if !ok || len(cells) != 1 {
		t.Fatalf("expected exactly one non-zero cell in output, got %v", raw["cells"])
	}
}
