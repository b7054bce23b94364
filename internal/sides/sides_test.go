package sides_test

import (
	"testing"

	"github.com/bitgrid/bitgrid/internal/sides"
)

func TestOpposite(t *testing.T) {
	cases := map[sides.Side]sides.Side{
		sides.N: sides.S,
		sides.S: sides.N,
		sides.E: sides.W,
		sides.W: sides.E,
	}
	for in, want := range cases {
		if got := in.Opposite(); got != want {
			t.Errorf("%s.Opposite() = %s, want %s", in, got, want)
		}
	}
}

func TestRotateCW(t *testing.T) {
	s := sides.N
	for _, want := range []sides.Side{sides.E, sides.S, sides.W, sides.N} {
		s = s.RotateCW()
		if s != want {
			t.Fatalf("RotateCW() = %s, want %s", s, want)
		}
	}
}

func TestDirFromDelta(t *testing.T) {
	for _, s := range sides.All {
		got, ok := sides.DirFromDelta(s.DX(), s.DY())
		if !ok || got != s {
			t.Errorf("DirFromDelta(%d,%d) = %s,%v, want %s,true", s.DX(), s.DY(), got, ok, s)
		}
	}
	if _, ok := sides.DirFromDelta(1, 1); ok {
		t.Error("DirFromDelta(1,1) should not be a single cardinal step")
	}
}

func TestVariableMask(t *testing.T) {
	want := map[sides.Side]uint16{sides.N: 0xAAAA, sides.E: 0xCCCC, sides.S: 0xF0F0, sides.W: 0xFF00}
	for s, mask := range want {
		if got := sides.VariableMask(s); got != mask {
			t.Errorf("VariableMask(%s) = %#x, want %#x", s, got, mask)
		}
	}
}

func TestLongName(t *testing.T) {
	if got := sides.N.LongName(); got != "North" {
		t.Errorf("N.LongName() = %q, want %q", got, "North")
	}
}
