// Package barrier implements the neighbor barrier used to synchronize a
// tile's two-phase subcycle advance against up to four adjacent seams. A
// tile calls MarkLocalDone once it has computed the current (epoch, phase),
// then MarkNeighborDone as ACKs arrive from the sides it expects; Advance
// moves to the next phase (or the next epoch, wrapping phase back to A) once
// every expected side has checked in.
//
// The source this was distilled from carried two separate barrier drafts;
// this package is the single collapsed version the spec calls for.
package barrier

import (
	"fmt"

	"github.com/bitgrid/bitgrid/internal/sides"
)

// Phase is one of the two subcycle phases a tile advances through per
// epoch.
type Phase int

const (
	PhaseA Phase = iota
	PhaseB
)

func (p Phase) String() string {
	if p == PhaseA {
		return "A"
	}
	return "B"
}

func (p Phase) next() Phase {
	if p == PhaseA {
		return PhaseB
	}
	return PhaseA
}

// State is the barrier's current position: an epoch counter plus which of
// the two phases within that epoch is active.
type State struct {
	Epoch int
	Phase Phase
}

// Outcome classifies the result of validating an incoming neighbor-done
// header against the barrier's current state.
type Outcome int

const (
	OK Outcome = iota
	UnexpectedSide
	EpochMismatch
	PhaseMismatch
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case UnexpectedSide:
		return "unexpected_side"
	case EpochMismatch:
		return "epoch_mismatch"
	case PhaseMismatch:
		return "phase_mismatch"
	case Duplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type flagKey struct {
	epoch int
	phase Phase
	side  sides.Side
}

type localKey struct {
	epoch int
	phase Phase
}

// OnAdvance, when set, is invoked after every successful Advance with the
// state the barrier just left and the one it entered.
type OnAdvance func(from, to State)

// Barrier tracks which of a tile's four neighbor sides it needs an ACK from
// before it may advance to the next phase, and the ACKs collected so far.
type Barrier struct {
	state     State
	expect    [sides.Count]bool
	neighbors map[flagKey]bool
	local     map[localKey]bool
	onAdvance OnAdvance
}

// New builds a Barrier starting at epoch 0, phase A. expect marks which
// sides this tile has a live seam on and must therefore hear from before
// advancing.
func New(expect [sides.Count]bool) *Barrier {
	return &Barrier{
		state:     State{Epoch: 0, Phase: PhaseA},
		expect:    expect,
		neighbors: make(map[flagKey]bool),
		local:     make(map[localKey]bool),
	}
}

// WithOnAdvance attaches an event callback fired on every successful
// Advance, and returns the receiver for chaining.
func (b *Barrier) WithOnAdvance(cb OnAdvance) *Barrier {
	b.onAdvance = cb
	return b
}

// Current returns the barrier's present (epoch, phase).
func (b *Barrier) Current() State {
	return b.state
}

// Expects reports whether side is a seam this barrier waits on.
func (b *Barrier) Expects(side sides.Side) bool {
	return b.expect[side]
}

// MarkLocalDone records that this tile finished computing the current
// (epoch, phase). Marking the same (epoch, phase) a second time is a no-op:
// local completion is idempotent, only neighbor ACKs are checked for
// duplicates.
func (b *Barrier) MarkLocalDone() {
	b.local[localKey{b.state.Epoch, b.state.Phase}] = true
}

// MarkNeighborDone validates and records a neighbor's ACK for (epoch,
// phase) arriving from side, against the barrier's current state rather
// than whatever state the barrier is in by the time this call returns.
func (b *Barrier) MarkNeighborDone(side sides.Side, epoch int, phase Phase) Outcome {
	if !b.expect[side] {
		return UnexpectedSide
	}
	if epoch != b.state.Epoch {
		return EpochMismatch
	}
	if phase != b.state.Phase {
		return PhaseMismatch
	}
	key := flagKey{epoch, phase, side}
	if b.neighbors[key] {
		return Duplicate
	}
	b.neighbors[key] = true
	return OK
}

// CanAdvance reports whether the local tile and every expected side have
// checked in for the current (epoch, phase).
func (b *Barrier) CanAdvance() bool {
	if !b.local[localKey{b.state.Epoch, b.state.Phase}] {
		return false
	}
	for side := range b.expect {
		if !b.expect[side] {
			continue
		}
		if !b.neighbors[flagKey{b.state.Epoch, b.state.Phase, sides.Side(side)}] {
			return false
		}
	}
	return true
}

// Advance moves the barrier to the next phase (wrapping to the next epoch's
// phase A from phase B), firing OnAdvance if set. It is a no-op when
// CanAdvance is false.
func (b *Barrier) Advance() bool {
	if !b.CanAdvance() {
		return false
	}
	from := b.state
	to := from
	if from.Phase == PhaseA {
		to.Phase = PhaseB
	} else {
		to.Phase = PhaseA
		to.Epoch = from.Epoch + 1
	}
	b.state = to
	if b.onAdvance != nil {
		b.onAdvance(from, to)
	}
	return true
}
