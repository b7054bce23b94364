package bgcf

import (
	"encoding/binary"
	"fmt"
)

// Hello is HELLO's payload, sent by either side.
type Hello struct {
	Width, Height uint16
	ProtoVersion  uint16
	Features      uint32
}

func (h Hello) Marshal() []byte {
	b := make([]byte, 10)
	binary.LittleEndian.PutUint16(b[0:2], h.Width)
	binary.LittleEndian.PutUint16(b[2:4], h.Height)
	binary.LittleEndian.PutUint16(b[4:6], h.ProtoVersion)
	binary.LittleEndian.PutUint32(b[6:10], h.Features)
	return b
}

func ParseHello(b []byte) (Hello, error) {
	if len(b) < 10 {
		return Hello{}, fmt.Errorf("%w: HELLO payload too short", ErrFrame)
	}
	return Hello{
		Width:        binary.LittleEndian.Uint16(b[0:2]),
		Height:       binary.LittleEndian.Uint16(b[2:4]),
		ProtoVersion: binary.LittleEndian.Uint16(b[4:6]),
		Features:     binary.LittleEndian.Uint32(b[6:10]),
	}, nil
}

// LoadChunk is LOAD_CHUNK's payload: one fragment of a session-assembled
// bitstream blob.
type LoadChunk struct {
	Session uint16
	Total   uint32
	Offset  uint32
	Bytes   []byte
}

func (c LoadChunk) Marshal() []byte {
	b := make([]byte, 12+len(c.Bytes))
	binary.LittleEndian.PutUint16(b[0:2], c.Session)
	binary.LittleEndian.PutUint32(b[2:6], c.Total)
	binary.LittleEndian.PutUint32(b[6:10], c.Offset)
	binary.LittleEndian.PutUint16(b[10:12], uint16(len(c.Bytes)))
	copy(b[12:], c.Bytes)
	return b
}

func ParseLoadChunk(b []byte) (LoadChunk, error) {
	if len(b) < 12 {
		return LoadChunk{}, fmt.Errorf("%w: LOAD_CHUNK payload too short", ErrFrame)
	}
	clen := int(binary.LittleEndian.Uint16(b[10:12]))
	if len(b) < 12+clen {
		return LoadChunk{}, fmt.Errorf("%w: LOAD_CHUNK payload truncated", ErrFrame)
	}
	return LoadChunk{
		Session: binary.LittleEndian.Uint16(b[0:2]),
		Total:   binary.LittleEndian.Uint32(b[2:6]),
		Offset:  binary.LittleEndian.Uint32(b[6:10]),
		Bytes:   append([]byte{}, b[12:12+clen]...),
	}, nil
}

// Step is STEP's payload.
type Step struct {
	Cycles uint32
}

func (s Step) Marshal() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, s.Cycles)
	return b
}

func ParseStep(b []byte) (Step, error) {
	if len(b) < 4 {
		return Step{}, fmt.Errorf("%w: STEP payload too short", ErrFrame)
	}
	return Step{Cycles: binary.LittleEndian.Uint32(b[0:4])}, nil
}

// LinkDir encodes which side of a seam this server contributes.
type LinkDir uint8

const (
	LinkDirEast LinkDir = iota
	LinkDirWest
	LinkDirNorth
	LinkDirSouth
)

// Link is LINK's payload: the request to establish an inter-server seam.
type Link struct {
	Dir      LinkDir
	LocalOut string
	RemoteIn string
	Host     string
	Port     uint16
	Lanes    uint16
}

func (l Link) Marshal() []byte {
	b := []byte{byte(l.Dir), 0}
	b = writePStr16(b, l.LocalOut)
	b = writePStr16(b, l.RemoteIn)
	b = writePStr16(b, l.Host)
	tail := make([]byte, 4)
	binary.LittleEndian.PutUint16(tail[0:2], l.Port)
	binary.LittleEndian.PutUint16(tail[2:4], l.Lanes)
	return append(b, tail...)
}

func ParseLink(b []byte) (Link, error) {
	if len(b) < 2 {
		return Link{}, fmt.Errorf("%w: LINK payload too short", ErrFrame)
	}
	l := Link{Dir: LinkDir(b[0])}
	rest := b[2:]
	var err error
	if l.LocalOut, rest, err = readPStr16(rest); err != nil {
		return Link{}, err
	}
	if l.RemoteIn, rest, err = readPStr16(rest); err != nil {
		return Link{}, err
	}
	if l.Host, rest, err = readPStr16(rest); err != nil {
		return Link{}, err
	}
	if len(rest) < 4 {
		return Link{}, fmt.Errorf("%w: LINK payload missing port/lanes", ErrFrame)
	}
	l.Port = binary.LittleEndian.Uint16(rest[0:2])
	l.Lanes = binary.LittleEndian.Uint16(rest[2:4])
	return l, nil
}

// LinkAck is LINK_ACK's payload.
type LinkAck struct {
	Lanes uint16
}

func (a LinkAck) Marshal() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, a.Lanes)
	return b
}

func ParseLinkAck(b []byte) (LinkAck, error) {
	if len(b) < 2 {
		return LinkAck{}, fmt.Errorf("%w: LINK_ACK payload too short", ErrFrame)
	}
	return LinkAck{Lanes: binary.LittleEndian.Uint16(b[0:2])}, nil
}

// ErrorMsg is ERROR's payload.
type ErrorMsg struct {
	Code uint16
	Msg  string
}

func (e ErrorMsg) Marshal() []byte {
	msg := e.Msg
	if len(msg) > 255 {
		msg = msg[:255]
	}
	b := make([]byte, 3+len(msg))
	binary.LittleEndian.PutUint16(b[0:2], e.Code)
	b[2] = byte(len(msg))
	copy(b[3:], msg)
	return b
}

func ParseErrorMsg(b []byte) (ErrorMsg, error) {
	if len(b) < 3 {
		return ErrorMsg{}, fmt.Errorf("%w: ERROR payload too short", ErrFrame)
	}
	n := int(b[2])
	if len(b) < 3+n {
		return ErrorMsg{}, fmt.Errorf("%w: ERROR payload truncated", ErrFrame)
	}
	return ErrorMsg{Code: binary.LittleEndian.Uint16(b[0:2]), Msg: string(b[3 : 3+n])}, nil
}
