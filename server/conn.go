package server

import (
	"fmt"
	"net"
	"time"

	"github.com/bitgrid/bitgrid/bgcf"
	"github.com/bitgrid/bitgrid/internal/obs"
)

// recvTimeout bounds each connection's read, matching the 0.5-1.0s
// socket-timeout suspension points the concurrency model specifies.
const recvTimeout = time.Second

// connState is the per-connection data the concurrency model calls out
// separately from the shared Device: a frame buffer/framer and an
// outgoing sequence counter.
type connState struct {
	conn   net.Conn
	framer bgcf.Framer
	seq    uint16
}

func (s *Server) handleConn(c net.Conn) {
	defer c.Close()
	cs := &connState{conn: c}
	addr := c.RemoteAddr().String()
	obs.Logger().Debug("client connected", "addr", addr)

	buf := make([]byte, 4096)
	for {
		frame, ok := cs.framer.Next()
		if !ok {
			c.SetReadDeadline(time.Now().Add(recvTimeout))
			n, err := c.Read(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					select {
					case <-s.shutdown:
						return
					default:
						continue
					}
				}
				obs.Logger().Debug("client disconnected", "addr", addr, "error", err)
				return
			}
			cs.framer.Feed(buf[:n])
			continue
		}

		if !frame.CRCOK {
			cs.sendError(1, "crc mismatch")
			continue
		}

		quit, shutdownReq := s.dispatch(cs, frame, addr)
		if quit {
			return
		}
		if shutdownReq {
			s.Shutdown()
			return
		}
	}
}

// dispatch handles one decoded frame under the server's mutex, except
// LINK which briefly releases it while dialing a peer. It returns
// (quit, shutdownRequested).
func (s *Server) dispatch(cs *connState, frame bgcf.Frame, addr string) (quit, shutdownRequested bool) {
	var note string
	defer func() {
		if s.trace != nil {
			s.trace.Record(addr, frame, note)
		}
	}()

	switch frame.Type {
	case bgcf.TypeHello:
		s.mu.Lock()
		w, h := s.device.Dims()
		s.mu.Unlock()
		hello := bgcf.Hello{Width: uint16(w), Height: uint16(h), ProtoVersion: bgcf.Version}
		cs.send(bgcf.TypeHello, 0, hello.Marshal())

	case bgcf.TypeLoadChunk:
		lc, err := bgcf.ParseLoadChunk(frame.Payload)
		if err != nil {
			cs.sendError(2, err.Error())
			return false, false
		}
		s.mu.Lock()
		s.device.LoadChunk(lc.Session, lc.Total, lc.Offset, lc.Bytes)
		s.mu.Unlock()

	case bgcf.TypeApply:
		s.mu.Lock()
		err := s.device.Apply(s.device.LoadBitstream)
		s.mu.Unlock()
		if err != nil {
			cs.sendError(3, err.Error())
			return false, false
		}

	case bgcf.TypeStep:
		step, err := bgcf.ParseStep(frame.Payload)
		if err != nil {
			cs.sendError(4, err.Error())
			return false, false
		}
		forwarded := frame.Flags&bgcf.ForwardedFlag != 0
		s.mu.Lock()
		s.device.StepCycles(step.Cycles, forwarded)
		s.mu.Unlock()

	case bgcf.TypeSetInputs:
		values, err := bgcf.DecodeValueMap(frame.Payload)
		if err != nil {
			cs.sendError(5, err.Error())
			return false, false
		}
		s.mu.Lock()
		s.device.SetInputs(values)
		s.mu.Unlock()

	case bgcf.TypeGetOutputs:
		s.mu.Lock()
		outs := s.device.SampleOutputs()
		s.mu.Unlock()
		names := make([]string, 0, len(outs))
		for n := range outs {
			names = append(names, n)
		}
		payload, err := bgcf.EncodeValueMap(names, outs)
		if err != nil {
			cs.sendError(6, err.Error())
			return false, false
		}
		cs.send(bgcf.TypeOutputs, 0, payload)

	case bgcf.TypeLink:
		s.handleLink(cs, frame)

	case bgcf.TypeUnlink:
		s.mu.Lock()
		s.device.ClearLinks()
		s.mu.Unlock()

	case bgcf.TypeQuit:
		quit = true

	case bgcf.TypeShutdown:
		shutdownRequested = true

	default:
		cs.sendError(0x7F, fmt.Sprintf("unhandled frame type %s", frame.Type))
	}
	return quit, shutdownRequested
}

func (s *Server) handleLink(cs *connState, frame bgcf.Frame) {
	req, err := bgcf.ParseLink(frame.Payload)
	if err != nil {
		cs.sendError(7, err.Error())
		return
	}

	s.mu.Lock()
	w, h := s.device.Dims()
	localCells, cellErr := s.device.OutputBusCells(req.LocalOut)
	s.mu.Unlock()
	if cellErr != nil {
		cs.sendError(8, cellErr.Error())
		return
	}

	link, peerHello, err := DialLink(req.Dir, req.LocalOut, req.RemoteIn, req.Host, req.Port, s.defaultForward, w, h)
	if err != nil {
		cs.sendError(9, err.Error())
		return
	}
	seamDim := SeamDim(req.Dir, int(peerHello.Width), int(peerHello.Height))
	link.SetGeometry(int(req.Lanes), localCells, seamDim)

	s.mu.Lock()
	s.device.AddLink(link)
	s.mu.Unlock()

	cs.send(bgcf.TypeLinkAck, 0, bgcf.LinkAck{Lanes: uint16(link.Lanes)}.Marshal())
}

func (cs *connState) send(typ bgcf.Type, flags uint8, payload []byte) {
	cs.seq++
	wire := bgcf.Marshal(typ, flags, cs.seq, payload)
	cs.conn.Write(wire)
}

func (cs *connState) sendError(code uint16, msg string) {
	cs.send(bgcf.TypeError, 0, bgcf.ErrorMsg{Code: code, Msg: msg}.Marshal())
}
