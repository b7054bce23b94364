package grid

import (
	"encoding/json"
	"fmt"

	"github.com/bitgrid/bitgrid/internal/sides"
)

// LUTGrid is the dense W×H runtime configuration: every coordinate holds
// exactly four 16-bit truth tables, defaulting to zero. It is the format
// the LUT-only (strict) evaluator consumes, derived once from a routed
// Program.
type LUTGrid struct {
	Width, Height int
	cells         [][sides.Count]uint16 // row-major, length Width*Height
}

// NewLUTGrid allocates an all-zero grid of the given dimensions.
func NewLUTGrid(width, height int) *LUTGrid {
	return &LUTGrid{
		Width:  width,
		Height: height,
		cells:  make([][sides.Count]uint16, width*height),
	}
}

func (g *LUTGrid) offset(x, y int) int { return y*g.Width + x }

// InBounds reports whether (x,y) lies within the grid.
func (g *LUTGrid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// Get returns the four LUTs at (x,y).
func (g *LUTGrid) Get(x, y int) [sides.Count]uint16 {
	if !g.InBounds(x, y) {
		return [sides.Count]uint16{}
	}
	return g.cells[g.offset(x, y)]
}

// Set replaces the four LUTs at (x,y).
func (g *LUTGrid) Set(x, y int, luts [sides.Count]uint16) {
	if !g.InBounds(x, y) {
		return
	}
	g.cells[g.offset(x, y)] = luts
}

// FromProgram derives a dense LUTGrid from a Program, defaulting any
// coordinate with no placed cell to all-zero LUTs.
func FromProgram(p *Program) (*LUTGrid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	g := NewLUTGrid(p.Width, p.Height)
	for _, c := range p.Cells {
		g.Set(c.X, c.Y, c.Params.Resolve())
	}
	return g, nil
}

// --- JSON wire encoding (LUTGrid JSON layout, §6) ---

type lutCellWire struct {
	X    int                  `json:"x"`
	Y    int                  `json:"y"`
	LUTs [sides.Count]uint16  `json:"luts"`
}

type lutGridWire struct {
	Format string        `json:"format"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Cells  []lutCellWire `json:"cells"`
}

const lutGridFormat = "lutgrid-v1"

// MarshalJSON renders the LUTGrid JSON layout, omitting all-zero cells.
func (g *LUTGrid) MarshalJSON() ([]byte, error) {
	w := lutGridWire{Format: lutGridFormat, Width: g.Width, Height: g.Height}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			l := g.Get(x, y)
			if l == ([sides.Count]uint16{}) {
				continue
			}
			w.Cells = append(w.Cells, lutCellWire{X: x, Y: y, LUTs: l})
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the LUTGrid JSON layout.
func (g *LUTGrid) UnmarshalJSON(data []byte) error {
	var w lutGridWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Format != "" && w.Format != lutGridFormat {
		return fmt.Errorf("grid: unsupported lutgrid format %q", w.Format)
	}
	*g = *NewLUTGrid(w.Width, w.Height)
	for _, cw := range w.Cells {
		g.Set(cw.X, cw.Y, cw.LUTs)
	}
	return nil
}
