// Package grid defines BitGrid's logical data model: cells, input sources,
// and the Program a mapper/router/physicalizer hands between passes.
package grid

import (
	"encoding/json"
	"fmt"

	"github.com/bitgrid/bitgrid/internal/sides"
)

// Known op tags. Any other string is accepted verbatim (preserved
// round-trip) as long as the cell carries explicit LUTs, per the spec's
// open question on the legality of op tags beyond LUT/ROUTE4.
const (
	OpLUT    = "LUT"
	OpRoute4 = "ROUTE4"
	OpAddBit = "ADD_BIT"
	OpBuf    = "BUF"
)

// Params carries the cell's truth tables. Exactly one of LUTs or LUT
// should be set by a well-formed cell: LUTs gives all four output
// directions explicitly, LUT gives a single table bound to output 0 with
// the remaining three defaulting to zero.
type Params struct {
	LUTs *[sides.Count]uint16 `json:"luts,omitempty"`
	LUT  *uint16              `json:"lut,omitempty"`
}

// Resolve returns the four output LUTs this cell computes, applying the
// LUTs/LUT/neither defaulting rule.
func (p Params) Resolve() [sides.Count]uint16 {
	switch {
	case p.LUTs != nil:
		return *p.LUTs
	case p.LUT != nil:
		return [sides.Count]uint16{*p.LUT, 0, 0, 0}
	default:
		return [sides.Count]uint16{}
	}
}

// Cell is one grid location: a position, up to four ordered input sources
// (indexed N,E,S,W), an informational op tag, and the LUT parameters that
// actually drive evaluation.
type Cell struct {
	X, Y   int
	Inputs [sides.Count]*Source
	Op     string
	Params Params
	// OutNames optionally labels which output directions carry meaningful
	// signals, for diagnostics only; evaluation never consults it.
	OutNames []string
}

// HasExplicitLUTs reports whether the cell carries its own truth tables
// (as opposed to relying on the all-zero default for an unconfigured op).
func (c *Cell) HasExplicitLUTs() bool {
	return c.Params.LUTs != nil || c.Params.LUT != nil
}

// Program is the logical configuration a mapper produces and the
// router/physicalizer rewrite: dimensions, placed cells, and the named
// input/output bus mappings.
type Program struct {
	Width, Height int
	Latency       int
	Cells         []*Cell
	InputBits     map[string][]Source
	OutputBits    map[string][]Source

	index map[[2]int]*Cell
}

// NewProgram returns an empty Program of the given (even) dimensions.
func NewProgram(width, height int) *Program {
	return &Program{
		Width:      width,
		Height:     height,
		InputBits:  map[string][]Source{},
		OutputBits: map[string][]Source{},
	}
}

// CellAt returns the cell at (x,y), or nil if the Program has none there.
// The index is built lazily, kept in step by AddCell, and rebuilt whenever
// its size no longer matches len(Cells) (for example after cells are
// appended to Cells directly).
func (p *Program) CellAt(x, y int) *Cell {
	p.ensureIndex()
	return p.index[[2]int{x, y}]
}

func (p *Program) ensureIndex() {
	if p.index != nil && len(p.index) == len(p.Cells) {
		return
	}
	p.index = make(map[[2]int]*Cell, len(p.Cells))
	for _, c := range p.Cells {
		p.index[[2]int{c.X, c.Y}] = c
	}
}

// AddCell appends a cell and keeps the position index in sync. It panics
// if a cell already occupies (x,y); callers that may legitimately
// overwrite should remove the prior cell first.
func (p *Program) AddCell(c *Cell) {
	p.ensureIndex()
	key := [2]int{c.X, c.Y}
	if _, exists := p.index[key]; exists {
		panic(fmt.Sprintf("grid: cell already placed at (%d,%d)", c.X, c.Y))
	}
	p.Cells = append(p.Cells, c)
	p.index[key] = c
}

// InBounds reports whether (x,y) lies within the Program's grid.
func (p *Program) InBounds(x, y int) bool {
	return x >= 0 && x < p.Width && y >= 0 && y < p.Height
}

// Validate checks the Configuration-error invariants from §3/§7: even
// dimensions, in-range LUTs, every cell inside bounds, and every cell
// either a recognized op or carrying explicit LUTs.
func (p *Program) Validate() error {
	if p.Width%2 != 0 || p.Height%2 != 0 {
		return fmt.Errorf("%w: dimensions must be even, got %dx%d", ErrConfig, p.Width, p.Height)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", ErrConfig)
	}

	seen := map[[2]int]bool{}
	for _, c := range p.Cells {
		if !p.InBounds(c.X, c.Y) {
			return fmt.Errorf("%w: cell (%d,%d) out of bounds %dx%d", ErrConfig, c.X, c.Y, p.Width, p.Height)
		}
		key := [2]int{c.X, c.Y}
		if seen[key] {
			return fmt.Errorf("%w: duplicate cell at (%d,%d)", ErrConfig, c.X, c.Y)
		}
		seen[key] = true

		if c.Params.LUTs != nil {
			for _, l := range *c.Params.LUTs {
				if err := validLUT(l); err != nil {
					return err
				}
			}
		}
		if c.Params.LUT != nil {
			if err := validLUT(*c.Params.LUT); err != nil {
				return err
			}
		}
		if !c.HasExplicitLUTs() && !isKnownOp(c.Op) {
			return fmt.Errorf("%w: cell (%d,%d) has unknown op %q with no luts/lut", ErrConfig, c.X, c.Y, c.Op)
		}
	}
	return nil
}

func isKnownOp(op string) bool {
	switch op {
	case OpLUT, OpRoute4, OpAddBit, OpBuf, "":
		return true
	default:
		return false
	}
}

// validLUT is a no-op today (every uint16 value is in [0,0xFFFF] by
// construction) but is kept as the single seam where a LUT-range check
// per §3's invariant would live if the representation ever widened.
func validLUT(uint16) error { return nil }

// --- JSON wire encoding (Program JSON layout, §6) ---

type cellWire struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Inputs   []*Source `json:"inputs"`
	Op       string   `json:"op"`
	Params   Params   `json:"params"`
	OutNames []string `json:"out_names,omitempty"`
}

type programWire struct {
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Latency    int                  `json:"latency"`
	Cells      []cellWire           `json:"cells"`
	InputBits  map[string][]Source  `json:"input_bits"`
	OutputBits map[string][]Source  `json:"output_bits"`
}

// MarshalJSON renders the Program JSON layout from §6.
func (p *Program) MarshalJSON() ([]byte, error) {
	w := programWire{
		Width:      p.Width,
		Height:     p.Height,
		Latency:    p.Latency,
		InputBits:  p.InputBits,
		OutputBits: p.OutputBits,
	}
	for _, c := range p.Cells {
		cw := cellWire{X: c.X, Y: c.Y, Op: c.Op, Params: c.Params, OutNames: c.OutNames}
		for _, in := range c.Inputs {
			cw.Inputs = append(cw.Inputs, in)
		}
		w.Cells = append(w.Cells, cw)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the Program JSON layout from §6.
func (p *Program) UnmarshalJSON(data []byte) error {
	var w programWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Width, p.Height, p.Latency = w.Width, w.Height, w.Latency
	p.InputBits = w.InputBits
	p.OutputBits = w.OutputBits
	if p.InputBits == nil {
		p.InputBits = map[string][]Source{}
	}
	if p.OutputBits == nil {
		p.OutputBits = map[string][]Source{}
	}
	p.Cells = nil
	p.index = nil
	for _, cw := range w.Cells {
		c := &Cell{X: cw.X, Y: cw.Y, Op: cw.Op, Params: cw.Params, OutNames: cw.OutNames}
		for i, in := range cw.Inputs {
			if i >= sides.Count {
				break
			}
			if in != nil {
				c.Inputs[i] = in
			}
		}
		p.AddCell(c)
	}
	return nil
}

// LoadProgramJSON decodes a Program from its JSON wire layout.
func LoadProgramJSON(data []byte) (*Program, error) {
	p := &Program{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("grid: decode program: %w", err)
	}
	return p, nil
}
