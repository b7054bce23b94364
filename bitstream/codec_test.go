package bitstream_test

import (
	"testing"

	"github.com/bitgrid/bitgrid/bitstream"
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

func sampleGrid() *grid.LUTGrid {
	g := grid.NewLUTGrid(2, 2)
	g.Set(0, 0, [sides.Count]uint16{1, 2, 3, 4})
	g.Set(1, 0, [sides.Count]uint16{5, 6, 7, 8})
	g.Set(0, 1, [sides.Count]uint16{9, 10, 11, 12})
	g.Set(1, 1, [sides.Count]uint16{13, 14, 15, 16})
	return g
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, order := range []bitstream.ScanOrder{bitstream.RowMajor, bitstream.ColMajor, bitstream.Snake} {
		t.Run(order.String(), func(t *testing.T) {
			g := sampleGrid()
			blob := bitstream.Encode(g, order)

			got, h, err := bitstream.Decode(blob)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if h.Order != order {
				t.Fatalf("decoded order = %v, want %v", h.Order, order)
			}
			for y := 0; y < 2; y++ {
				for x := 0; x < 2; x++ {
					if got.Get(x, y) != g.Get(x, y) {
						t.Errorf("cell (%d,%d) = %v, want %v", x, y, got.Get(x, y), g.Get(x, y))
					}
				}
			}
		})
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	blob := bitstream.Encode(sampleGrid(), bitstream.RowMajor)
	blob[0] = 'X'
	if _, _, err := bitstream.Decode(blob); err == nil {
		t.Fatal("expected error for corrupted magic")
	}
}

func TestDecodeRejectsCorruptedPayload(t *testing.T) {
	blob := bitstream.Encode(sampleGrid(), bitstream.RowMajor)
	blob[len(blob)-1] ^= 0xFF
	if _, _, err := bitstream.Decode(blob); err == nil {
		t.Fatal("expected crc32 mismatch error")
	}
}

func TestApplyToProgramFramedRejectsDimMismatch(t *testing.T) {
	p := grid.NewProgram(4, 4)
	blob := bitstream.Encode(sampleGrid(), bitstream.RowMajor) // 2x2
	if err := bitstream.ApplyToProgram(blob, p); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestApplyToProgramMaterializesMissingCells(t *testing.T) {
	p := grid.NewProgram(2, 2)
	blob := bitstream.Encode(sampleGrid(), bitstream.RowMajor)
	if err := bitstream.ApplyToProgram(blob, p); err != nil {
		t.Fatalf("ApplyToProgram: %v", err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if p.CellAt(x, y) == nil {
				t.Fatalf("missing cell at (%d,%d) after apply", x, y)
			}
		}
	}
	lg, err := grid.FromProgram(p)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}
	if lg.Get(1, 1) != ([sides.Count]uint16{13, 14, 15, 16}) {
		t.Fatalf("cell (1,1) = %v, want {13,14,15,16}", lg.Get(1, 1))
	}
}

func TestApplyToProgramRawDefaultsToProgramDims(t *testing.T) {
	p := grid.NewProgram(2, 2)
	g := sampleGrid()
	raw := bitstream.Encode(g, bitstream.RowMajor)[bitstream.HeaderSize:]
	if err := bitstream.ApplyToProgram(raw, p); err != nil {
		t.Fatalf("ApplyToProgram raw: %v", err)
	}
	lg, _ := grid.FromProgram(p)
	if lg.Get(0, 0) != ([sides.Count]uint16{1, 2, 3, 4}) {
		t.Fatalf("cell (0,0) = %v, want {1,2,3,4}", lg.Get(0, 0))
	}
}
