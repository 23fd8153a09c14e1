package ir

import (
	"fmt"
	"go/token"
)

// UnmatchedLoopEndError is returned by Resolve for a loop end without
// a preceding loop start.
type UnmatchedLoopEndError struct {
	Index int // instruction index of the loop end
	Pos   token.Position
}

// UnmatchedLoopStartError is returned by Resolve when loop starts
// remain open at the end of the program.
type UnmatchedLoopStartError struct {
	Count int // number of unmatched loop starts
	Index int // instruction index of the innermost unmatched loop start
	Pos   token.Position
}

func (err *UnmatchedLoopEndError) Error() string {
	return fmt.Sprintf("syntax error: unmatched loop end at instruction %d%s",
		err.Index, formatPos(err.Pos))
}

func (err *UnmatchedLoopStartError) Error() string {
	return fmt.Sprintf("syntax error: %d unmatched loop start(s), innermost at instruction %d%s",
		err.Count, err.Index, formatPos(err.Pos))
}

func formatPos(pos token.Position) string {
	if !pos.IsValid() {
		return ""
	}
	return fmt.Sprintf(" (%v)", pos)
}

// Resolve pairs every loop start with its matching loop end by nesting
// order and seals the draft into a Program. Each loop start targets the
// index of its loop end and each loop end targets the index of its loop
// start.
func Resolve(d *Draft) (*Program, error) {
	insts := make([]Inst, len(d.nodes))
	var starts []int
	for i, n := range d.nodes {
		switch n := n.(type) {
		case *loopStart:
			starts = append(starts, i)
		case *loopEnd:
			if len(starts) == 0 {
				return nil, &UnmatchedLoopEndError{i, d.position(n.pos)}
			}
			start := starts[len(starts)-1]
			starts = starts[:len(starts)-1]
			insts[start] = &BranchZero{i, node{d.nodes[start].Pos()}}
			insts[i] = &BranchNonZero{start, n.node}
		case Inst:
			insts[i] = n
		default:
			panic(fmt.Sprintf("ir: unrecognized draft node: %T", n))
		}
	}
	if len(starts) != 0 {
		start := starts[len(starts)-1]
		return nil, &UnmatchedLoopStartError{len(starts), start, d.position(d.nodes[start].Pos())}
	}
	return &Program{Name: d.Name, File: d.File, insts: insts}, nil
}

func (d *Draft) position(pos token.Pos) token.Position {
	if d.File == nil || !pos.IsValid() {
		return token.Position{}
	}
	return d.File.PositionFor(pos, false)
}
