// Package bitstream implements the portable, CRC-checked container that
// packs a grid's full LUT configuration (§4.4): a 24-byte header
// followed by a LSB-first bitpacked payload of four 16-bit truth tables
// per cell, traversed in a configurable scan order.
package bitstream

import (
	"fmt"
	"hash/crc32"

	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

// Encode packs g's LUTs into a full bitstream: header plus payload.
func Encode(g *grid.LUTGrid, order ScanOrder) []byte {
	coords := Coords(g.Width, g.Height, order)
	var w bitWriter
	for _, xy := range coords {
		luts := g.Get(xy[0], xy[1])
		for _, d := range sides.All {
			w.writeUint16(luts[d])
		}
	}
	payload := w.buf
	payloadBits := uint32(len(coords)) * 4 * 16

	h := Header{
		Version:     Version,
		HeaderSize:  HeaderSize,
		Width:       uint16(g.Width),
		Height:      uint16(g.Height),
		Order:       order,
		PayloadBits: payloadBits,
		PayloadCRC:  crc32.ChecksumIEEE(payload),
	}
	return append(h.Marshal(), payload...)
}

// Decode parses a full framed bitstream (header + payload) into a
// LUTGrid, validating the CRC over exactly the declared payload bytes.
func Decode(data []byte) (*grid.LUTGrid, Header, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, Header{}, err
	}
	need := h.PayloadBytes()
	body := data[HeaderSize:]
	if len(body) < need {
		return nil, Header{}, fmt.Errorf("%w: truncated payload: have %d bytes, need %d", ErrFormat, len(body), need)
	}
	payload := body[:need]
	if crc32.ChecksumIEEE(payload) != h.PayloadCRC {
		return nil, Header{}, fmt.Errorf("%w: crc32 mismatch", ErrFormat)
	}

	g := grid.NewLUTGrid(int(h.Width), int(h.Height))
	r := bitReader{buf: payload}
	for _, xy := range Coords(g.Width, g.Height, h.Order) {
		var luts [sides.Count]uint16
		for _, d := range sides.All {
			luts[d] = r.readUint16()
		}
		g.Set(xy[0], xy[1], luts)
	}
	return g, h, nil
}

// DecodeRaw unpacks a headerless payload directly, using the supplied
// dimensions and scan order — the "raw blob" form §4.4 allows when no
// header is present.
func DecodeRaw(payload []byte, width, height int, order ScanOrder) *grid.LUTGrid {
	g := grid.NewLUTGrid(width, height)
	r := bitReader{buf: payload}
	for _, xy := range Coords(width, height, order) {
		var luts [sides.Count]uint16
		for _, d := range sides.All {
			luts[d] = r.readUint16()
		}
		g.Set(xy[0], xy[1], luts)
	}
	return g
}

// looksFramed reports whether data opens with the bitstream magic, the
// signal ApplyToProgram uses to distinguish a framed blob from a raw one.
func looksFramed(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == Magic
}

// ApplyToProgram updates p's cells from data: a framed blob's dimensions
// must match p exactly; a raw blob defaults to p's own dimensions and
// row-major order. Every coordinate of p is written: an existing cell
// keeps its inputs and op but takes the blob's four LUTs, a coordinate
// with no cell gets a new LUT cell holding the blob's LUTs, and a raw
// blob shorter than the full grid reads as zero LUTs for the coordinates
// it does not reach. Every coordinate therefore holds a cell after apply.
func ApplyToProgram(data []byte, p *grid.Program) error {
	var g *grid.LUTGrid
	if looksFramed(data) {
		var h Header
		var err error
		g, h, err = Decode(data)
		if err != nil {
			return err
		}
		if int(h.Width) != p.Width || int(h.Height) != p.Height {
			return fmt.Errorf("%w: bitstream dims %dx%d do not match program dims %dx%d", ErrFormat, h.Width, h.Height, p.Width, p.Height)
		}
	} else {
		g = DecodeRaw(data, p.Width, p.Height, RowMajor)
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			luts := g.Get(x, y)
			c := p.CellAt(x, y)
			if c == nil {
				c = &grid.Cell{X: x, Y: y, Op: grid.OpLUT}
				p.AddCell(c)
			}
			l := luts
			c.Params = grid.Params{LUTs: &l}
		}
	}
	return nil
}
