// Package lint implements advisory invariant checks over a routed
// Program: a typed, structured list of findings rather than the first
// error encountered, so callers can see every violation at once.
package lint

import (
	"fmt"

	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/sides"
)

// IssueType categorizes a lint finding.
type IssueType string

const (
	// IssueStruct flags a structural problem: a malformed bus
	// declaration or an out-of-bounds reference.
	IssueStruct IssueType = "STRUCT"
	// IssueAdjacency flags a cell input that the strict evaluator cannot
	// read correctly: a SourceCell not sitting at the exact geometric
	// neighbor the evaluator assumes.
	IssueAdjacency IssueType = "ADJACENCY"
)

// Issue is one lint finding.
type Issue struct {
	Type    IssueType
	X, Y    int
	Message string
}

// CheckAdjacency verifies the strict evaluator's core geometric
// invariant for every placed cell: a SourceCell feeding input pin i must
// sit at Manhattan distance 1 in the i direction from the sink, driving
// output i.Opposite(). A Program that has been through Router/
// Physicalizer should report zero issues here; one that hasn't will
// report every unrouted reference.
func CheckAdjacency(p *grid.Program) []Issue {
	var issues []Issue
	for _, c := range p.Cells {
		for i, src := range c.Inputs {
			if src == nil || src.Kind != grid.SourceCell {
				continue
			}
			pin := sides.Side(i)
			wantX, wantY := c.X+pin.DX(), c.Y+pin.DY()
			if src.X != wantX || src.Y != wantY || src.Out != pin.Opposite() {
				issues = append(issues, Issue{
					Type: IssueAdjacency, X: c.X, Y: c.Y,
					Message: fmt.Sprintf("cell (%d,%d) pin %s reads (%d,%d).%s, want (%d,%d).%s",
						c.X, c.Y, pin, src.X, src.Y, src.Out, wantX, wantY, pin.Opposite()),
				})
			}
		}
	}
	return issues
}

// CheckBusCoverage flags input/output bus declarations that declare zero
// bits, which no SET_INPUTS or GET_OUTPUTS value could address.
func CheckBusCoverage(p *grid.Program) []Issue {
	var issues []Issue
	check := func(kind string, buses map[string][]grid.Source) {
		for name, bits := range buses {
			if len(bits) == 0 {
				issues = append(issues, Issue{Type: IssueStruct, Message: fmt.Sprintf("%s bus %q declares zero bits", kind, name)})
			}
		}
	}
	check("input", p.InputBits)
	check("output", p.OutputBits)
	return issues
}

// CheckAll runs every check and concatenates the results.
func CheckAll(p *grid.Program) []Issue {
	var issues []Issue
	issues = append(issues, CheckAdjacency(p)...)
	issues = append(issues, CheckBusCoverage(p)...)
	return issues
}
