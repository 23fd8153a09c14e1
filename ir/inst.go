// Package ir builds and resolves Brainfuck instruction sequences.
//
package ir // import "github.com/andrewarchi/bfc/ir"

import (
	"fmt"
	"go/token"
	"strings"
)

// Inst is an instruction in a resolved Program.
type Inst interface {
	Pos() token.Pos
	String() string
	// StringBF formats the instruction as Brainfuck syntax.
	StringBF() string
	inst()
}

// AdvancePtr moves the data pointer right by Count cells.
type AdvancePtr struct {
	Count uint
	node
}

// RetreatPtr moves the data pointer left by Count cells.
type RetreatPtr struct {
	Count uint
	node
}

// IncCell adds Count to the current cell.
type IncCell struct {
	Count uint8
	node
}

// DecCell subtracts Count from the current cell.
type DecCell struct {
	Count uint8
	node
}

// Output writes the current cell.
type Output struct{ node }

// Input reads a byte into the current cell.
type Input struct{ node }

// BranchZero jumps to Target when the current cell is zero. Target is
// the index of the matching BranchNonZero.
type BranchZero struct {
	Target int
	node
}

// BranchNonZero jumps to Target when the current cell is non-zero.
// Target is the index of the matching BranchZero.
type BranchNonZero struct {
	Target int
	node
}

type node struct {
	pos token.Pos
}

func (n node) Pos() token.Pos { return n.pos }
func (node) inst()            {}

func (i *AdvancePtr) String() string    { return fmt.Sprintf("advance %d", i.Count) }
func (i *RetreatPtr) String() string    { return fmt.Sprintf("retreat %d", i.Count) }
func (i *IncCell) String() string       { return fmt.Sprintf("inc %d", i.Count) }
func (i *DecCell) String() string       { return fmt.Sprintf("dec %d", i.Count) }
func (*Output) String() string          { return "output" }
func (*Input) String() string           { return "input" }
func (i *BranchZero) String() string    { return fmt.Sprintf("jz %d", i.Target) }
func (i *BranchNonZero) String() string { return fmt.Sprintf("jnz %d", i.Target) }

func (i *AdvancePtr) StringBF() string  { return strings.Repeat(">", int(i.Count)) }
func (i *RetreatPtr) StringBF() string  { return strings.Repeat("<", int(i.Count)) }
func (i *IncCell) StringBF() string     { return strings.Repeat("+", int(i.Count)) }
func (i *DecCell) StringBF() string     { return strings.Repeat("-", int(i.Count)) }
func (*Output) StringBF() string        { return "." }
func (*Input) StringBF() string         { return "," }
func (*BranchZero) StringBF() string    { return "[" }
func (*BranchNonZero) StringBF() string { return "]" }

// IsBranch returns whether the instruction ends a basic block.
func IsBranch(inst Inst) bool {
	switch inst.(type) {
	case *BranchZero, *BranchNonZero:
		return true
	}
	return false
}

// Target returns the resolved target of a branch instruction.
func Target(inst Inst) (int, bool) {
	switch br := inst.(type) {
	case *BranchZero:
		return br.Target, true
	case *BranchNonZero:
		return br.Target, true
	}
	return 0, false
}
