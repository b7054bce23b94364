// Package client implements the BGCF host-side driver: a thin wrapper
// over one TCP connection exposing the protocol's request/response pairs
// as Go method calls over a real blocking socket.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/bitgrid/bitgrid/bgcf"
)

// Builder configures a Driver before Build.
type Builder struct {
	host    string
	port    int
	timeout time.Duration
}

// NewBuilder returns a Builder with a five-second dial/read timeout.
func NewBuilder() Builder {
	return Builder{timeout: 5 * time.Second}
}

// WithHost sets the server host to dial.
func (b Builder) WithHost(host string) Builder { b.host = host; return b }

// WithPort sets the server port to dial.
func (b Builder) WithPort(port int) Builder { b.port = port; return b }

// WithTimeout overrides the default dial/read timeout.
func (b Builder) WithTimeout(d time.Duration) Builder { b.timeout = d; return b }

// Build dials the server.
func (b Builder) Build() (*Driver, error) {
	addr := fmt.Sprintf("%s:%d", b.host, b.port)
	conn, err := net.DialTimeout("tcp", addr, b.timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dialing %s: %w", addr, err)
	}
	return &Driver{conn: conn, timeout: b.timeout}, nil
}

// Driver is one BGCF connection to a server.
type Driver struct {
	conn    net.Conn
	framer  bgcf.Framer
	seq     uint16
	timeout time.Duration
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.conn.Close() }

func (d *Driver) send(typ bgcf.Type, flags uint8, payload []byte) error {
	d.seq++
	_, err := d.conn.Write(bgcf.Marshal(typ, flags, d.seq, payload))
	return err
}

func (d *Driver) recv() (bgcf.Frame, error) {
	buf := make([]byte, 4096)
	for {
		if frame, ok := d.framer.Next(); ok {
			if !frame.CRCOK {
				return frame, fmt.Errorf("client: received frame failed crc check")
			}
			if frame.Type == bgcf.TypeError {
				e, _ := bgcf.ParseErrorMsg(frame.Payload)
				return frame, fmt.Errorf("client: server error %d: %s", e.Code, e.Msg)
			}
			return frame, nil
		}
		d.conn.SetReadDeadline(time.Now().Add(d.timeout))
		n, err := d.conn.Read(buf)
		if err != nil {
			return bgcf.Frame{}, fmt.Errorf("client: reading response: %w", err)
		}
		d.framer.Feed(buf[:n])
	}
}

func (d *Driver) roundTrip(typ bgcf.Type, flags uint8, payload []byte) (bgcf.Frame, error) {
	if err := d.send(typ, flags, payload); err != nil {
		return bgcf.Frame{}, err
	}
	return d.recv()
}

// Hello performs the HELLO handshake and returns the server's reported
// grid dimensions.
func (d *Driver) Hello() (bgcf.Hello, error) {
	frame, err := d.roundTrip(bgcf.TypeHello, 0, bgcf.Hello{ProtoVersion: bgcf.Version}.Marshal())
	if err != nil {
		return bgcf.Hello{}, err
	}
	return bgcf.ParseHello(frame.Payload)
}

// loadChunkSize is the payload fragment size LoadBitstream splits a blob
// into; it comfortably fits inside typical socket buffers without
// requiring the caller to think about framing.
const loadChunkSize = 4096

// LoadBitstream splits data into LOAD_CHUNK fragments under the given
// session id and sends APPLY once every fragment has been sent.
func (d *Driver) LoadBitstream(sessionID uint16, data []byte) error {
	total := uint32(len(data))
	for offset := uint32(0); offset < total || total == 0; offset += loadChunkSize {
		end := offset + loadChunkSize
		if end > total {
			end = total
		}
		chunk := bgcf.LoadChunk{Session: sessionID, Total: total, Offset: offset, Bytes: data[offset:end]}
		if _, err := d.roundTrip(bgcf.TypeLoadChunk, 0, chunk.Marshal()); err != nil {
			return err
		}
		if total == 0 {
			break
		}
	}
	_, err := d.roundTrip(bgcf.TypeApply, 0, nil)
	return err
}

// SetInputs merges values into the server's current_inputs.
func (d *Driver) SetInputs(values map[string]uint64) error {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	payload, err := bgcf.EncodeValueMap(names, values)
	if err != nil {
		return err
	}
	_, err = d.roundTrip(bgcf.TypeSetInputs, 0, payload)
	return err
}

// Step advances the server's emulator by cycles subcycles.
func (d *Driver) Step(cycles uint32) error {
	_, err := d.roundTrip(bgcf.TypeStep, 0, bgcf.Step{Cycles: cycles}.Marshal())
	return err
}

// GetOutputs samples every declared output bus.
func (d *Driver) GetOutputs() (map[string]uint64, error) {
	frame, err := d.roundTrip(bgcf.TypeGetOutputs, 0, nil)
	if err != nil {
		return nil, err
	}
	return bgcf.DecodeValueMap(frame.Payload)
}

// Link requests an inter-server seam; the returned lane count is what
// the peer accepted after clamping.
func (d *Driver) Link(dir bgcf.LinkDir, localOut, remoteIn, host string, port, lanes uint16) (uint16, error) {
	req := bgcf.Link{Dir: dir, LocalOut: localOut, RemoteIn: remoteIn, Host: host, Port: port, Lanes: lanes}
	frame, err := d.roundTrip(bgcf.TypeLink, 0, req.Marshal())
	if err != nil {
		return 0, err
	}
	ack, err := bgcf.ParseLinkAck(frame.Payload)
	return ack.Lanes, err
}

// Unlink closes every active link on the server.
func (d *Driver) Unlink() error {
	_, err := d.roundTrip(bgcf.TypeUnlink, 0, nil)
	return err
}

// Quit closes the connection gracefully from the protocol's point of
// view; the caller should still call Close.
func (d *Driver) Quit() error {
	return d.send(bgcf.TypeQuit, 0, nil)
}

// Shutdown requests the server terminate its listener entirely.
func (d *Driver) Shutdown() error {
	return d.send(bgcf.TypeShutdown, 0, nil)
}
