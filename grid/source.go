package grid

import (
	"encoding/json"
	"fmt"

	"github.com/bitgrid/bitgrid/internal/sides"
)

// SourceKind tags the variant held by a Source.
type SourceKind int

const (
	// SourceConst is a compile-time constant bit.
	SourceConst SourceKind = iota
	// SourceInput reads one bit of a named logical input bus.
	SourceInput
	// SourceCell reads one output direction of another cell.
	SourceCell
)

// Source is the tagged union feeding a cell's input pin or a Program's
// output bit: a constant, a named input-bus bit, or another cell's output.
//
// The LUT-only (strict) emulator only ever sees SourceCell values at
// Manhattan distance 1, with Out equal to the direction from the
// referenced cell to the one reading it; the logical emulator accepts any
// variant and dereferences lazily each cycle.
type Source struct {
	Kind SourceKind

	// Const
	Value uint8

	// Input
	Name string
	Bit  int

	// Cell
	X, Y int
	Out  sides.Side
}

// Const builds a constant-bit source.
func Const(bit uint8) Source {
	return Source{Kind: SourceConst, Value: bit & 1}
}

// Input builds a named-input-bus-bit source.
func Input(name string, bit int) Source {
	return Source{Kind: SourceInput, Name: name, Bit: bit}
}

// FromCell builds a reference to another cell's output direction.
func FromCell(x, y int, out sides.Side) Source {
	return Source{Kind: SourceCell, X: x, Y: y, Out: out}
}

// ManhattanDistance returns |dx|+|dy| from (x,y) to this source, valid
// only when Kind == SourceCell.
func (s Source) ManhattanDistance(x, y int) int {
	dx := s.X - x
	if dx < 0 {
		dx = -dx
	}
	dy := s.Y - y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

type sourceWire struct {
	Type  string `json:"type"`
	Value *uint8 `json:"value,omitempty"`
	Name  string `json:"name,omitempty"`
	Bit   *int   `json:"bit,omitempty"`
	X     *int   `json:"x,omitempty"`
	Y     *int   `json:"y,omitempty"`
	Out   *int   `json:"out,omitempty"`
}

// MarshalJSON renders the {"type":"const"|"input"|"cell", ...} wire form.
func (s Source) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SourceConst:
		v := s.Value
		return json.Marshal(sourceWire{Type: "const", Value: &v})
	case SourceInput:
		b := s.Bit
		return json.Marshal(sourceWire{Type: "input", Name: s.Name, Bit: &b})
	case SourceCell:
		x, y, o := s.X, s.Y, int(s.Out)
		return json.Marshal(sourceWire{Type: "cell", X: &x, Y: &y, Out: &o})
	default:
		return nil, fmt.Errorf("grid: unknown source kind %d", s.Kind)
	}
}

// UnmarshalJSON parses the wire form produced by MarshalJSON.
func (s *Source) UnmarshalJSON(data []byte) error {
	var w sourceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "const":
		if w.Value == nil {
			return fmt.Errorf("grid: const source missing value")
		}
		*s = Const(*w.Value)
	case "input":
		if w.Bit == nil {
			return fmt.Errorf("grid: input source missing bit")
		}
		*s = Input(w.Name, *w.Bit)
	case "cell":
		if w.X == nil || w.Y == nil || w.Out == nil {
			return fmt.Errorf("grid: cell source missing x/y/out")
		}
		if *w.Out < 0 || *w.Out >= sides.Count {
			return fmt.Errorf("grid: cell source out %d out of range", *w.Out)
		}
		*s = FromCell(*w.X, *w.Y, sides.Side(*w.Out))
	default:
		return fmt.Errorf("grid: unknown source type %q", w.Type)
	}
	return nil
}
