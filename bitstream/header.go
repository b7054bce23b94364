package bitstream

import (
	"encoding/binary"
	"fmt"
)

// Magic is the fixed 4-byte tag opening every bitstream header.
const Magic = "BGBS"

// HeaderSize is the fixed, little-endian header layout's length in bytes.
const HeaderSize = 24

// Version is the only header version this codec understands.
const Version = 1

// ScanOrder selects the linear traversal of grid coordinates used when
// packing/unpacking the LUT payload.
type ScanOrder uint8

const (
	// RowMajor scans y outer, x inner.
	RowMajor ScanOrder = iota
	// ColMajor scans x outer, y inner.
	ColMajor
	// Snake is row-major but reverses x on odd rows.
	Snake
)

func (o ScanOrder) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColMajor:
		return "col-major"
	case Snake:
		return "snake"
	default:
		return fmt.Sprintf("ScanOrder(%d)", uint8(o))
	}
}

// Header is the 24-byte fixed prefix of a bitstream.
type Header struct {
	Version     uint16
	HeaderSize  uint16
	Width       uint16
	Height      uint16
	Order       ScanOrder
	Flags       uint8
	PayloadBits uint32
	PayloadCRC  uint32
	Reserved    uint16
}

// PayloadBytes returns the packed payload length: ceil(PayloadBits/8).
func (h Header) PayloadBytes() int {
	return int((h.PayloadBits + 7) / 8)
}

// Marshal renders the 24-byte little-endian header.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:6], h.Version)
	binary.LittleEndian.PutUint16(b[6:8], h.HeaderSize)
	binary.LittleEndian.PutUint16(b[8:10], h.Width)
	binary.LittleEndian.PutUint16(b[10:12], h.Height)
	b[12] = byte(h.Order)
	b[13] = h.Flags
	binary.LittleEndian.PutUint32(b[14:18], h.PayloadBits)
	binary.LittleEndian.PutUint32(b[18:22], h.PayloadCRC)
	binary.LittleEndian.PutUint16(b[22:24], h.Reserved)
	return b
}

// ParseHeader validates the magic, version, and header_size fields and
// decodes the remaining fields.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header too short (%d bytes)", ErrFormat, len(b))
	}
	if string(b[0:4]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrFormat, b[0:4])
	}
	h := Header{
		Version:    binary.LittleEndian.Uint16(b[4:6]),
		HeaderSize: binary.LittleEndian.Uint16(b[6:8]),
		Width:      binary.LittleEndian.Uint16(b[8:10]),
		Height:     binary.LittleEndian.Uint16(b[10:12]),
		Order:      ScanOrder(b[12]),
		Flags:      b[13],
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrFormat, h.Version)
	}
	if h.HeaderSize != HeaderSize {
		return Header{}, fmt.Errorf("%w: unexpected header_size %d", ErrFormat, h.HeaderSize)
	}
	if h.Order != RowMajor && h.Order != ColMajor && h.Order != Snake {
		return Header{}, fmt.Errorf("%w: unknown scan order %d", ErrFormat, h.Order)
	}
	h.PayloadBits = binary.LittleEndian.Uint32(b[14:18])
	h.PayloadCRC = binary.LittleEndian.Uint32(b[18:22])
	h.Reserved = binary.LittleEndian.Uint16(b[22:24])
	return h, nil
}
