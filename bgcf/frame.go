// Package bgcf implements the BitGrid Control Framing wire protocol
// (§4.5): a 16-byte little-endian frame header whose last four bytes
// hold a CRC32 of the header fields and payload, a resyncing Framer for
// streaming byte sources, message type
// constants, and the TLV name/value map used by SET_INPUTS/OUTPUTS.
package bgcf

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Magic opens every frame.
const Magic = "BGCF"

// HeaderSize is the fixed frame header length in bytes, not counting
// the payload that follows.
const HeaderSize = 16

// Version is the only protocol version this codec understands.
const Version = 1

// ForwardedFlag marks a STEP frame as already relayed across a LINK, so
// the receiving server does not cascade another forward.
const ForwardedFlag = 0x01

// Type identifies a BGCF message.
type Type uint8

const (
	TypeHello      Type = 0x01
	TypeLoadChunk  Type = 0x02
	TypeApply      Type = 0x03
	TypeStep       Type = 0x04
	TypeSetInputs  Type = 0x05
	TypeGetOutputs Type = 0x06
	TypeOutputs    Type = 0x07
	TypeQuit       Type = 0x08
	TypeShutdown   Type = 0x09
	TypeLink       Type = 0x0A
	TypeUnlink     Type = 0x0B
	TypeLinkAck    Type = 0x0C
	TypeError      Type = 0x7F
)

func (t Type) String() string {
	switch t {
	case TypeHello:
		return "HELLO"
	case TypeLoadChunk:
		return "LOAD_CHUNK"
	case TypeApply:
		return "APPLY"
	case TypeStep:
		return "STEP"
	case TypeSetInputs:
		return "SET_INPUTS"
	case TypeGetOutputs:
		return "GET_OUTPUTS"
	case TypeOutputs:
		return "OUTPUTS"
	case TypeQuit:
		return "QUIT"
	case TypeShutdown:
		return "SHUTDOWN"
	case TypeLink:
		return "LINK"
	case TypeUnlink:
		return "UNLINK"
	case TypeLinkAck:
		return "LINK_ACK"
	case TypeError:
		return "ERROR"
	default:
		return fmt.Sprintf("Type(%#x)", uint8(t))
	}
}

// Frame is one decoded BGCF message: header fields plus payload.
type Frame struct {
	Version uint8
	Type    Type
	Flags   uint8
	Seq     uint16
	Payload []byte
	CRCOK   bool
}

// crcFields returns the byte sequence the wire CRC32 covers: V|MT|FL|RS
// followed by SEQ, LEN, and the payload.
func crcFields(version uint8, typ Type, flags uint8, seq uint16, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	b[0] = version
	b[1] = byte(typ)
	b[2] = flags
	b[3] = 0 // reserved
	binary.LittleEndian.PutUint16(b[4:6], seq)
	binary.LittleEndian.PutUint16(b[6:8], uint16(len(payload)))
	copy(b[8:], payload)
	return b
}

// Marshal renders a full wire frame: 16-byte header plus payload.
func Marshal(typ Type, flags uint8, seq uint16, payload []byte) []byte {
	crc := crc32.ChecksumIEEE(crcFields(Version, typ, flags, seq, payload))
	b := make([]byte, HeaderSize+len(payload))
	copy(b[0:4], Magic)
	b[4] = Version
	b[5] = byte(typ)
	b[6] = flags
	b[7] = 0
	binary.LittleEndian.PutUint16(b[8:10], seq)
	binary.LittleEndian.PutUint16(b[10:12], uint16(len(payload)))
	binary.LittleEndian.PutUint32(b[12:16], crc)
	copy(b[16:], payload)
	return b
}

// parseOne attempts to decode exactly one frame starting at buf[0]. It
// returns the frame, the number of bytes consumed, and ok=false if buf
// does not yet hold a complete frame.
func parseOne(buf []byte) (Frame, int, bool) {
	if len(buf) < HeaderSize {
		return Frame{}, 0, false
	}
	length := int(binary.LittleEndian.Uint16(buf[10:12]))
	total := HeaderSize + length
	if len(buf) < total {
		return Frame{}, 0, false
	}

	f := Frame{
		Version: buf[4],
		Type:    Type(buf[5]),
		Flags:   buf[6],
		Seq:     binary.LittleEndian.Uint16(buf[8:10]),
	}
	if length > 0 {
		f.Payload = append([]byte{}, buf[16:total]...)
	}
	wantCRC := binary.LittleEndian.Uint32(buf[12:16])
	gotCRC := crc32.ChecksumIEEE(crcFields(f.Version, f.Type, f.Flags, f.Seq, f.Payload))
	f.CRCOK = gotCRC == wantCRC
	return f, total, true
}
