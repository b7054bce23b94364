package server

import (
	"fmt"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bitgrid/bitgrid/bgcf"
)

// traceLog prints a running frame-disposition table to stdout when
// --verbose is set: one row per frame handled, not a full per-cycle
// waveform.
type traceLog struct {
	mu sync.Mutex
	w  table.Writer
	n  int
}

func newTraceLog() *traceLog {
	w := table.NewWriter()
	w.SetTitle("BGCF frame trace")
	w.AppendHeader(table.Row{"#", "conn", "type", "seq", "crc_ok", "note"})
	return &traceLog{w: w}
}

// Record appends one row describing a handled frame and re-renders.
func (t *traceLog) Record(conn string, frame bgcf.Frame, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	t.w.AppendRow(table.Row{t.n, conn, frame.Type.String(), frame.Seq, frame.CRCOK, note})
	fmt.Println(t.w.Render())
}
