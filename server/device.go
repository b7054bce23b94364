// Package server implements the BitGrid control-plane device (§4.6): a
// shared Emulator plus link table guarded by a single mutex, driven by
// one worker goroutine per accepted connection.
package server

import (
	"fmt"
	"sort"

	"github.com/bitgrid/bitgrid/bitstream"
	"github.com/bitgrid/bitgrid/emulator"
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/obs"
	"github.com/bitgrid/bitgrid/internal/sides"
	"github.com/bitgrid/bitgrid/physical"
)

// session is a single LOAD_CHUNK assembly in flight: a zero-allocated
// buffer sized by the first chunk's declared total, filled by offset.
type session struct {
	total   uint32
	buffer  []byte
	written []bool
}

func newSession(total uint32) *session {
	return &session{
		total:   total,
		buffer:  make([]byte, total),
		written: make([]bool, total),
	}
}

// write copies bytes into the session buffer at offset, dropping any
// portion that would overflow the declared total.
func (s *session) write(offset uint32, data []byte) {
	for i, b := range data {
		at := offset + uint32(i)
		if at >= s.total {
			return
		}
		s.buffer[at] = b
		s.written[at] = true
	}
}

// complete reports whether every byte of the declared total has been
// written at least once.
func (s *session) complete() bool {
	for _, w := range s.written {
		if !w {
			return false
		}
	}
	return true
}

// Device owns the grid this server evaluates: its geometry (for
// translating named buses to edge positions), the strict evaluator, the
// pending session-assembly table, the merged input-bus values, and the
// inter-server link table. Every exported method assumes the caller
// holds the Server's mutex; Device itself is not safe for unsynchronized
// concurrent use.
type Device struct {
	program *grid.Program
	lanes   physical.Builder
	machine *emulator.Machine

	currentInputs map[string]uint64
	lastEdgeOut   emulator.EdgeBits

	sessions map[uint16]*session

	links []*Link
}

// NewDevice builds a Device over an already physicalized and routed
// Program, using the same Builder configuration that physicalized it so
// LaneMap reproduces identical bus bindings.
func NewDevice(p *grid.Program, lanes physical.Builder) (*Device, error) {
	lg, err := grid.FromProgram(p)
	if err != nil {
		return nil, fmt.Errorf("server: deriving initial lutgrid: %w", err)
	}
	d := &Device{
		program:       p,
		lanes:         lanes,
		machine:       emulator.NewMachine(lg),
		currentInputs: map[string]uint64{},
		sessions:      map[uint16]*session{},
	}
	for name := range p.InputBits {
		d.currentInputs[name] = 0
	}
	return d, nil
}

// Dims returns the grid dimensions reported by HELLO.
func (d *Device) Dims() (width, height int) {
	return d.machine.Grid().Width, d.machine.Grid().Height
}

// LoadChunk assembles one fragment into the named session's buffer,
// allocating the buffer on the session's first chunk.
func (d *Device) LoadChunk(sessionID uint16, total, offset uint32, data []byte) {
	s, ok := d.sessions[sessionID]
	if !ok {
		s = newSession(total)
		d.sessions[sessionID] = s
	}
	s.write(offset, data)
}

// Apply selects the highest-numbered completed session and loads its
// assembled bytes as the device's new bitstream by invoking applyFn.
func (d *Device) Apply(applyFn func([]byte) error) error {
	var best uint16
	found := false
	for id, s := range d.sessions {
		if !s.complete() {
			continue
		}
		if !found || id > best {
			best, found = id, true
		}
	}
	if !found {
		return fmt.Errorf("%w: no completed load session to apply", ErrSession)
	}
	return applyFn(d.sessions[best].buffer)
}

// SetGrid replaces the device's runtime LUTGrid, e.g. from a decoded
// bitstream, preserving cycle state.
func (d *Device) SetGrid(g *grid.LUTGrid) {
	d.machine.SetGrid(g)
}

// LoadBitstream decodes a framed or raw bitstream blob (distinguished by
// the "BGBS" magic) and installs it as the device's new LUTGrid. A
// framed blob's dimensions must match the device's own grid exactly.
func (d *Device) LoadBitstream(data []byte) error {
	w, h := d.Dims()
	var g *grid.LUTGrid
	if len(data) >= 4 && string(data[0:4]) == bitstream.Magic {
		decoded, hdr, err := bitstream.Decode(data)
		if err != nil {
			return err
		}
		if int(hdr.Width) != w || int(hdr.Height) != h {
			return fmt.Errorf("%w: bitstream dims %dx%d do not match device dims %dx%d", ErrSession, hdr.Width, hdr.Height, w, h)
		}
		g = decoded
	} else {
		g = bitstream.DecodeRaw(data, w, h, bitstream.RowMajor)
	}
	d.SetGrid(g)
	return nil
}

// SetInputs merges values into current_inputs, restricted to declared
// input buses (unknown names are silently dropped, per §4.6).
func (d *Device) SetInputs(values map[string]uint64) {
	for name, v := range values {
		if _, declared := d.program.InputBits[name]; declared {
			d.currentInputs[name] = v
		}
	}
}

// inputLanes and outputLanes recompute the Physicalizer's bus->edge
// binding from the Program the Device was built from on every call. The
// computation is pure, so an Apply of a new bitstream never changes its
// result — only the Program's own bus declarations would, and those never
// change at runtime.
func (d *Device) inputLanes() map[string][]physical.Lane {
	in, _ := d.lanes.LaneMap(d.program)
	return in
}

func (d *Device) outputLanes() map[string][]physical.Lane {
	_, out := d.lanes.LaneMap(d.program)
	return out
}

// buildEdgeIn renders current_inputs into the boundary drive vectors the
// strict Machine reads, using the input lane bindings.
func (d *Device) buildEdgeIn() emulator.EdgeBits {
	w, h := d.Dims()
	e := emulator.EdgeBits{
		N: make([]uint8, w),
		S: make([]uint8, w),
		E: make([]uint8, h),
		W: make([]uint8, h),
	}
	for name, lns := range d.inputLanes() {
		val := d.currentInputs[name]
		for bit, ln := range lns {
			b := uint8((val >> uint(bit)) & 1)
			switch ln.Side {
			case sides.N:
				e.N[ln.Pos] = b
			case sides.S:
				e.S[ln.Pos] = b
			case sides.E:
				e.E[ln.Pos] = b
			case sides.W:
				e.W[ln.Pos] = b
			}
		}
	}
	return e
}

// sampleSource evaluates one output-bit source against the machine's
// current committed state, the same rule the strict evaluator itself
// uses to gather a neighbor's input.
func (d *Device) sampleSource(src grid.Source) uint8 {
	switch src.Kind {
	case grid.SourceConst:
		return src.Value & 1
	case grid.SourceInput:
		return uint8((d.currentInputs[src.Name] >> uint(src.Bit)) & 1)
	case grid.SourceCell:
		return d.machine.OutputAt(src.X, src.Y)[src.Out]
	default:
		return 0
	}
}

// SampleBus OR-shifts every declared bit of an output bus into a single
// value, without advancing any state — GET_OUTPUTS and link forwarding
// both sample this way.
func (d *Device) SampleBus(name string) (uint64, error) {
	bits, ok := d.program.OutputBits[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown output bus %q", ErrSession, name)
	}
	var v uint64
	for bit, src := range bits {
		v |= uint64(d.sampleSource(src)) << uint(bit)
	}
	return v, nil
}

// SampleOutputs samples every declared output bus.
func (d *Device) SampleOutputs() map[string]uint64 {
	out := make(map[string]uint64, len(d.program.OutputBits))
	for name := range d.program.OutputBits {
		v, _ := d.SampleBus(name)
		out[name] = v
	}
	return out
}

// OutputBusCells returns the physical (x,y) grid.FromCell coordinate
// bound to each bit of a physicalized output bus, used to compute link
// seam parity. It errors if any bit is not bound to a cell (a const or
// direct input pass-through output has no grid position).
func (d *Device) OutputBusCells(name string) ([][2]int, error) {
	bits, ok := d.program.OutputBits[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown output bus %q", ErrSession, name)
	}
	cells := make([][2]int, len(bits))
	for i, src := range bits {
		if src.Kind != grid.SourceCell {
			return nil, fmt.Errorf("%w: output bus %q bit %d has no physical binding", ErrSession, name, i)
		}
		cells[i] = [2]int{src.X, src.Y}
	}
	return cells, nil
}

// Step advances the local machine exactly one subcycle and returns the
// cycle index the step just completed (pre-increment), used by callers
// to derive phase/parity for link forwarding.
func (d *Device) Step() (completedCycle uint64, edgeOut emulator.EdgeBits) {
	completedCycle = d.machine.Cycle()
	edgeOut = d.machine.Step(d.buildEdgeIn())
	d.lastEdgeOut = edgeOut
	return completedCycle, edgeOut
}

// StepCycles advances the local machine `cycles` subcycles. When the
// incoming frame was not itself a forwarded one and at least one link is
// active, every subcycle also groups links by peer and forwards
// SET_INPUTS+STEP frames per §4.6's four-step algorithm; a forwarded
// STEP never cascades further forwarding.
func (d *Device) StepCycles(cycles uint32, forwarded bool) {
	for i := uint32(0); i < cycles; i++ {
		completed, _ := d.Step()
		if forwarded || len(d.links) == 0 {
			continue
		}
		d.forwardStep(completed)
	}
}

// forwardStep implements steps 2-4 of §4.6's STEP algorithm for the
// subcycle that just completed.
func (d *Device) forwardStep(completedCycle uint64) {
	phaseA := completedCycle%2 == 0

	byPeer := map[string][]*Link{}
	var peerOrder []string
	for _, l := range d.links {
		if _, seen := byPeer[l.Peer]; !seen {
			peerOrder = append(peerOrder, l.Peer)
		}
		byPeer[l.Peer] = append(byPeer[l.Peer], l)
	}

	for _, peer := range peerOrder {
		var anySent bool
		for _, l := range byPeer[peer] {
			sample, err := d.SampleBus(l.LocalOut)
			if err != nil {
				continue
			}
			value, ok := l.NextValue(sample, phaseA)
			if !ok {
				continue
			}
			if err := l.SendSetInputs(value); err != nil {
				d.logf("link %s send set_inputs failed: %v", l.Peer, err)
				continue
			}
			anySent = true
		}
		if !anySent {
			continue
		}
		for _, l := range byPeer[peer] {
			if err := l.SendForwardedStep(); err != nil {
				d.logf("link %s send forwarded step failed: %v", l.Peer, err)
			}
			break // one STEP frame per peer, after that peer's set_inputs frames
		}
	}
}

// Links returns the device's active inter-server links.
func (d *Device) Links() []*Link {
	return d.links
}

// AddLink registers an established link.
func (d *Device) AddLink(l *Link) {
	d.links = append(d.links, l)
}

// ClearLinks closes and removes every link (UNLINK).
func (d *Device) ClearLinks() {
	for _, l := range d.links {
		l.Close()
	}
	d.links = nil
}

func (d *Device) logf(format string, args ...any) {
	obs.Logger().Debug(fmt.Sprintf(format, args...))
}

// sortedInputNames is used by the /status endpoint to list
// current_inputs deterministically.
func (d *Device) sortedInputNames() []string {
	names := make([]string, 0, len(d.currentInputs))
	for n := range d.currentInputs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
