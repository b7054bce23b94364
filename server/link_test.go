package server

import (
	"testing"

	"github.com/bitgrid/bitgrid/bgcf"
)

func TestParseForwardPolicy(t *testing.T) {
	cases := map[string]ForwardPolicy{
		"both":  ForwardBoth,
		"phase": ForwardPhase,
		"cycle": ForwardCycle,
		"bonly": ForwardCycle,
	}
	for in, want := range cases {
		got, err := ParseForwardPolicy(in)
		if err != nil {
			t.Fatalf("ParseForwardPolicy(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseForwardPolicy(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseForwardPolicy("nonsense"); err == nil {
		t.Fatal("ParseForwardPolicy(\"nonsense\") should error")
	}
}

func TestSeamDim(t *testing.T) {
	if got := SeamDim(bgcf.LinkDirEast, 5, 7); got != 7 {
		t.Fatalf("SeamDim east = %d, want peer height 7", got)
	}
	if got := SeamDim(bgcf.LinkDirWest, 5, 7); got != 7 {
		t.Fatalf("SeamDim west = %d, want peer height 7", got)
	}
	if got := SeamDim(bgcf.LinkDirNorth, 5, 7); got != 5 {
		t.Fatalf("SeamDim north = %d, want peer width 5", got)
	}
	if got := SeamDim(bgcf.LinkDirSouth, 5, 7); got != 5 {
		t.Fatalf("SeamDim south = %d, want peer width 5", got)
	}
}

func TestLinkSetGeometryClampsToMinimum(t *testing.T) {
	cells := [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}}

	l := &Link{}
	l.SetGeometry(8, cells, 6)
	if l.Lanes != 4 {
		t.Fatalf("Lanes = %d, want 4 (clamped to local cell count)", l.Lanes)
	}

	l = &Link{}
	l.SetGeometry(2, cells, 6)
	if l.Lanes != 2 {
		t.Fatalf("Lanes = %d, want 2 (clamped to requested)", l.Lanes)
	}

	l = &Link{}
	l.SetGeometry(4, cells, 1)
	if l.Lanes != 1 {
		t.Fatalf("Lanes = %d, want 1 (clamped to peer seam dimension)", l.Lanes)
	}
}

func TestLinkSetGeometryParityPartition(t *testing.T) {
	cells := [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	l := &Link{}
	l.SetGeometry(4, cells, 4)
	want := []bool{true, false, false, true}
	if len(l.AFresh) != len(want) {
		t.Fatalf("AFresh = %v, want length %d", l.AFresh, len(want))
	}
	for i := range want {
		if l.AFresh[i] != want[i] {
			t.Fatalf("AFresh[%d] = %v, want %v (cell %v)", i, l.AFresh[i], want[i], cells[i])
		}
	}
}

func TestLinkNextValueForwardBoth(t *testing.T) {
	l := &Link{Policy: ForwardBoth, Lanes: 4}
	for _, phaseA := range []bool{true, false} {
		v, ok := l.NextValue(0xF, phaseA)
		if !ok || v != 0xF {
			t.Fatalf("NextValue(0xF, phaseA=%v) = (%d, %v), want (0xF, true)", phaseA, v, ok)
		}
	}
}

func TestLinkNextValueForwardCycleOnlyOnPhaseB(t *testing.T) {
	l := &Link{Policy: ForwardCycle, Lanes: 4}
	if _, ok := l.NextValue(0xF, true); ok {
		t.Fatal("NextValue on phase A should decline to send under ForwardCycle")
	}
	v, ok := l.NextValue(0xF, false)
	if !ok || v != 0xF {
		t.Fatalf("NextValue(0xF, phaseA=false) = (%d, %v), want (0xF, true)", v, ok)
	}
}

func TestLinkNextValueForwardPhaseMergesByLaneParity(t *testing.T) {
	// lane 0 is A-fresh, lane 1 is B-fresh.
	l := &Link{Policy: ForwardPhase, Lanes: 2, AFresh: []bool{true, false}}

	// Phase A: only lane 0 updates from the sample; lane 1 carries over
	// its zero-valued initial state.
	v, ok := l.NextValue(0b11, true)
	if !ok {
		t.Fatal("ForwardPhase should always report ok")
	}
	if v != 0b01 {
		t.Fatalf("after phase A merge, lastSent = %02b, want 01 (only lane 0 fresh)", v)
	}

	// Phase B: lane 1 now updates from the new sample, lane 0 carries over
	// what phase A merged in.
	v, ok = l.NextValue(0b00, false)
	if !ok {
		t.Fatal("ForwardPhase should always report ok")
	}
	if v != 0b01 {
		t.Fatalf("after phase B merge, lastSent = %02b, want 01 (lane 1 cleared, lane 0 held at 1)", v)
	}
}

func TestLinkNextValueMasksToLaneCount(t *testing.T) {
	l := &Link{Policy: ForwardBoth, Lanes: 2}
	v, ok := l.NextValue(0xFF, true)
	if !ok || v != 0b11 {
		t.Fatalf("NextValue(0xFF) with Lanes=2 = (%d, %v), want (0b11, true)", v, ok)
	}
}
