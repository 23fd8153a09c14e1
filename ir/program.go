package ir

import (
	"fmt"
	"go/token"
	"strings"
)

// Program is a sealed instruction sequence. Every branch in a Program
// targets a valid index of its matching branch.
type Program struct {
	Name  string
	File  *token.File
	insts []Inst
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.insts) }

// Inst returns the ith instruction.
func (p *Program) Inst(i int) Inst { return p.insts[i] }

// Insts returns a copy of the instruction sequence.
func (p *Program) Insts() []Inst {
	insts := make([]Inst, len(p.insts))
	copy(insts, p.insts)
	return insts
}

// Position returns the full position information for a given pos.
func (p *Program) Position(pos token.Pos) token.Position {
	if p.File == nil || !pos.IsValid() {
		return token.Position{}
	}
	return p.File.PositionFor(pos, false)
}

// Dump formats a program with one instruction per line.
func (p *Program) Dump(indent string) string {
	var b strings.Builder
	for i, inst := range p.insts {
		fmt.Fprintf(&b, "%s%d: %v\n", indent, i, inst)
	}
	return b.String()
}

// DumpPos formats a program with one instruction per line and source
// position information.
func (p *Program) DumpPos() string {
	const width = 24
	var b strings.Builder
	for i, inst := range p.insts {
		line := fmt.Sprintf("%d: %v", i, inst)
		fmt.Fprintf(&b, "    %-*s ; ", width, line)
		pos := p.Position(inst.Pos())
		pos.Filename = ""
		b.WriteString(pos.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// StringBF formats the program as folded Brainfuck. Cell deltas appear
// reduced modulo 256.
func (p *Program) StringBF() string {
	var b strings.Builder
	for _, inst := range p.insts {
		b.WriteString(inst.StringBF())
	}
	return b.String()
}

func (p *Program) String() string {
	return p.Dump("    ")
}
