package ir

import (
	"fmt"

	"github.com/andrewarchi/bfc/digraph"
)

// Block is a maximal range of instructions entered only at its start.
// Every block except the last ends with a branch, and every block
// except the entry begins right after a branch.
type Block struct {
	ID    int
	Label int // index of the preceding branch, or -1 for the entry
	Start int
	End   int // exclusive
}

// Name returns the label name of the block. The entry block is unnamed.
func (b Block) Name() string {
	if b.Label < 0 {
		return ""
	}
	return fmt.Sprintf("l%d", b.Label)
}

func (b Block) String() string {
	if b.Label < 0 {
		return fmt.Sprintf("entry [%d,%d)", b.Start, b.End)
	}
	return fmt.Sprintf("%s [%d,%d)", b.Name(), b.Start, b.End)
}

// Blocks splits the program into basic blocks at every branch. The
// result always has one more block than the program has branches.
func (p *Program) Blocks() []Block {
	blocks := []Block{{ID: 0, Label: -1, Start: 0}}
	for i, inst := range p.insts {
		if IsBranch(inst) {
			blocks[len(blocks)-1].End = i + 1
			blocks = append(blocks, Block{ID: len(blocks), Label: i, Start: i + 1})
		}
	}
	blocks[len(blocks)-1].End = len(p.insts)
	return blocks
}

// ControlFlowGraph creates a directed graph with edges representing the
// connections between the basic blocks returned by Blocks.
func (p *Program) ControlFlowGraph() digraph.Digraph {
	blocks := p.Blocks()
	ids := make(map[int]int, len(blocks))
	for _, block := range blocks {
		ids[block.Label] = block.ID
	}
	g := digraph.New(len(blocks))
	for _, block := range blocks {
		if block.End == block.Start {
			continue
		}
		last := block.End - 1
		target, ok := Target(p.insts[last])
		if !ok {
			continue
		}
		g.AddEdge(block.ID, ids[target])
		g.AddEdge(block.ID, ids[last])
	}
	return g
}

// Loops returns the basic block IDs of each loop in the program, as
// strongly connected components of the control flow graph. Nested loops
// are contained in the component of their outermost loop.
func (p *Program) Loops() [][]int {
	return p.ControlFlowGraph().Cycles()
}
