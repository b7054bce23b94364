package server

import (
	"fmt"
	"net"
	"time"

	"github.com/bitgrid/bitgrid/bgcf"
)

// ForwardPolicy selects how a link decides, per subcycle, whether to
// transmit a fresh SET_INPUTS value to its peer (§4.6).
type ForwardPolicy int

const (
	// ForwardBoth sends the full sampled value on every subcycle.
	ForwardBoth ForwardPolicy = iota
	// ForwardPhase sends only the lanes whose seam parity matches the
	// subcycle's active phase, preserving the rest from the last send.
	ForwardPhase
	// ForwardCycle (aka "bonly") sends the full sampled value, but only
	// on phase-B subcycles.
	ForwardCycle
)

// ParseForwardPolicy parses the --link-forward flag value.
func ParseForwardPolicy(s string) (ForwardPolicy, error) {
	switch s {
	case "both":
		return ForwardBoth, nil
	case "phase":
		return ForwardPhase, nil
	case "cycle", "bonly":
		return ForwardCycle, nil
	default:
		return 0, fmt.Errorf("server: unknown link-forward policy %q", s)
	}
}

func dirName(d bgcf.LinkDir) string {
	switch d {
	case bgcf.LinkDirEast:
		return "E"
	case bgcf.LinkDirWest:
		return "W"
	case bgcf.LinkDirNorth:
		return "N"
	case bgcf.LinkDirSouth:
		return "S"
	default:
		return fmt.Sprintf("LinkDir(%d)", int(d))
	}
}

func (p ForwardPolicy) String() string {
	switch p {
	case ForwardBoth:
		return "both"
	case ForwardPhase:
		return "phase"
	case ForwardCycle:
		return "cycle"
	default:
		return fmt.Sprintf("ForwardPolicy(%d)", int(p))
	}
}

// Link is one established inter-server seam: a socket to a peer device,
// the local output bus driving it and the peer's input bus receiving it,
// the accepted lane count, and the per-lane phase-freshness partition
// computed at LINK time.
type Link struct {
	Dir      bgcf.LinkDir
	LocalOut string
	RemoteIn string
	Peer     string // host:port, the "group by peer socket" key

	Lanes   int
	Policy  ForwardPolicy
	AFresh  []bool // AFresh[i] true iff lane i's seam cell has even (x+y)
	lastSent uint64

	conn   net.Conn
	framer bgcf.Framer
	seq    uint16
}

// DialLink opens a peer connection, handshakes HELLO, and returns a Link
// with its geometry not yet computed — callers fill Lanes/AFresh once
// they know the local bus's physical binding.
func DialLink(dir bgcf.LinkDir, localOut, remoteIn, host string, port uint16, policy ForwardPolicy, localWidth, localHeight int) (*Link, bgcf.Hello, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, bgcf.Hello{}, fmt.Errorf("server: dialing link peer %s: %w", addr, err)
	}
	l := &Link{Dir: dir, LocalOut: localOut, RemoteIn: remoteIn, Peer: addr, Policy: policy, conn: conn}

	hello := bgcf.Hello{Width: uint16(localWidth), Height: uint16(localHeight), ProtoVersion: bgcf.Version}
	if err := l.send(bgcf.TypeHello, 0, hello.Marshal()); err != nil {
		conn.Close()
		return nil, bgcf.Hello{}, err
	}
	frame, err := l.recv()
	if err != nil {
		conn.Close()
		return nil, bgcf.Hello{}, err
	}
	peerHello, err := bgcf.ParseHello(frame.Payload)
	if err != nil {
		conn.Close()
		return nil, bgcf.Hello{}, err
	}
	return l, peerHello, nil
}

// SeamDim returns the peer's grid dimension along the seam this link's
// direction runs across: height for an E/W link, width for an N/S link.
func SeamDim(dir bgcf.LinkDir, peerWidth, peerHeight int) int {
	switch dir {
	case bgcf.LinkDirEast, bgcf.LinkDirWest:
		return peerHeight
	default:
		return peerWidth
	}
}

// SetGeometry clamps lanes to the minimum of requested, the local bus's
// bit count, and the peer's seam dimension, then partitions the first
// `lanes` local cells into the A-fresh / B-fresh sets by (x+y) parity.
func (l *Link) SetGeometry(requestedLanes int, localCells [][2]int, peerSeamDim int) {
	n := requestedLanes
	if len(localCells) < n {
		n = len(localCells)
	}
	if peerSeamDim < n {
		n = peerSeamDim
	}
	l.Lanes = n
	l.AFresh = make([]bool, n)
	for i := 0; i < n; i++ {
		xy := localCells[i]
		l.AFresh[i] = (xy[0]+xy[1])%2 == 0
	}
}

// NextValue computes the value this link should transmit for the current
// sample, given the subcycle phase just completed, and updates lastSent
// for ForwardPhase's running merge. ok is false when the policy declines
// to transmit this subcycle at all (ForwardCycle outside phase B).
func (l *Link) NextValue(sample uint64, phaseA bool) (value uint64, ok bool) {
	mask := uint64(0)
	if l.Lanes < 64 {
		mask = (uint64(1) << uint(l.Lanes)) - 1
	} else {
		mask = ^uint64(0)
	}
	sample &= mask

	switch l.Policy {
	case ForwardBoth:
		l.lastSent = sample
		return sample, true
	case ForwardCycle:
		if !phaseA {
			l.lastSent = sample
			return sample, true
		}
		return 0, false
	case ForwardPhase:
		var fresh uint64
		for i, aFresh := range l.AFresh {
			if aFresh == phaseA {
				fresh |= 1 << uint(i)
			}
		}
		l.lastSent = (l.lastSent &^ fresh) | (sample & fresh)
		return l.lastSent, true
	default:
		return sample, true
	}
}

// SendSetInputs forwards one SET_INPUTS frame carrying this link's
// remote-in bus value.
func (l *Link) SendSetInputs(value uint64) error {
	payload, err := bgcf.EncodeValueMap([]string{l.RemoteIn}, map[string]uint64{l.RemoteIn: value})
	if err != nil {
		return err
	}
	return l.send(bgcf.TypeSetInputs, 0, payload)
}

// SendForwardedStep sends a STEP cycles=1 frame flagged as forwarded so
// the peer does not cascade another round of link forwarding.
func (l *Link) SendForwardedStep() error {
	return l.send(bgcf.TypeStep, bgcf.ForwardedFlag, bgcf.Step{Cycles: 1}.Marshal())
}

// Close tears down the peer socket. Link delivery is best-effort: errors
// here are not surfaced, matching the no-retry-on-send-failure policy.
func (l *Link) Close() {
	if l.conn != nil {
		l.conn.Close()
	}
}

func (l *Link) send(typ bgcf.Type, flags uint8, payload []byte) error {
	l.seq++
	wire := bgcf.Marshal(typ, flags, l.seq, payload)
	_, err := l.conn.Write(wire)
	return err
}

func (l *Link) recv() (bgcf.Frame, error) {
	buf := make([]byte, 4096)
	for {
		if frame, ok := l.framer.Next(); ok {
			return frame, nil
		}
		n, err := l.conn.Read(buf)
		if err != nil {
			return bgcf.Frame{}, err
		}
		l.framer.Feed(buf[:n])
	}
}
