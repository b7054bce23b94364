// Package sides defines the cardinal direction indexing shared by every
// BitGrid package: cells, routing, physicalization, and the wire protocol
// all agree on the same N/E/S/W numbering.
package sides

import (
	"fmt"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Side is a cardinal direction around a cell or a grid edge.
type Side int

// The canonical direction indices. LUT index encoding packs bits as
// N | (E<<1) | (S<<2) | (W<<3).
const (
	N Side = iota
	E
	S
	W
)

// Count is the number of cardinal directions a cell has.
const Count = 4

var (
	namesMu sync.RWMutex
	names   = []string{"N", "E", "S", "W"}
	titler  = cases.Title(language.English)
)

// String returns the short direction code ("N", "E", "S", "W").
func (s Side) String() string {
	namesMu.RLock()
	defer namesMu.RUnlock()
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// LongName returns the title-cased direction name ("North", "East", ...).
func (s Side) LongName() string {
	switch s {
	case N:
		return titler.String("north")
	case E:
		return titler.String("east")
	case S:
		return titler.String("south")
	case W:
		return titler.String("west")
	default:
		return titler.String(s.String())
	}
}

// Opposite returns the side directly across a cell (N<->S, E<->W).
func (s Side) Opposite() Side {
	return (s + 2) % Count
}

// RotateCW returns the next side clockwise (N->E->S->W->N), used to pick
// a perpendicular detour direction during parity-alignment routing.
func (s Side) RotateCW() Side {
	return (s + 1) % Count
}

// Bit returns the single-variable LUT index bit for this side, used when
// indexing a 16-entry truth table: idx = N | (E<<1) | (S<<2) | (W<<3).
func (s Side) Bit() uint {
	return uint(s)
}

// DX and DY give the unit step in grid coordinates for moving one hop in
// direction s: N decreases y, S increases y, E increases x, W decreases x.
func (s Side) DX() int {
	switch s {
	case E:
		return 1
	case W:
		return -1
	default:
		return 0
	}
}

func (s Side) DY() int {
	switch s {
	case N:
		return -1
	case S:
		return 1
	default:
		return 0
	}
}

// DirFromDelta returns the side that moves by exactly one unit (dx, dy), or
// (-1, false) if the delta is not a single cardinal step.
func DirFromDelta(dx, dy int) (Side, bool) {
	switch {
	case dx == 1 && dy == 0:
		return E, true
	case dx == -1 && dy == 0:
		return W, true
	case dx == 0 && dy == 1:
		return S, true
	case dx == 0 && dy == -1:
		return N, true
	default:
		return -1, false
	}
}

// VariableMask is the 16-bit truth table of a single-input pass-through
// function selecting input pin p: the table used by ROUTE4 cells to wire a
// pin straight through to an output.
func VariableMask(p Side) uint16 {
	switch p {
	case N:
		return 0xAAAA
	case E:
		return 0xCCCC
	case S:
		return 0xF0F0
	case W:
		return 0xFF00
	default:
		panic(fmt.Sprintf("sides: invalid pin %d", p))
	}
}

// All is the canonical N,E,S,W iteration order used wherever a function
// needs to visit all four directions deterministically.
var All = [Count]Side{N, E, S, W}
