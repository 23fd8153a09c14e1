package ir

import (
	"go/token"
	"io"

	"github.com/andrewarchi/bfc/bf"
)

// Draft is an instruction sequence with unresolved loop boundaries. It
// is produced by Build and sealed into a Program by Resolve.
type Draft struct {
	Name  string
	File  *token.File
	nodes []draftNode
}

// draftNode is either a resolved Inst or a loop boundary awaiting its
// matching partner.
type draftNode interface {
	Pos() token.Pos
}

type loopStart struct{ node }
type loopEnd struct{ node }

// builder folds a token stream with one token of lookahead.
type builder struct {
	r     bf.TokenReader
	peek  *bf.Token
	nodes []draftNode
}

// Build consumes a token stream and folds runs of identical pointer and
// cell operators into counted instructions. Loop boundaries are left
// unresolved. File may be nil, in which case errors carry no position.
func Build(file *token.File, r bf.TokenReader) (*Draft, error) {
	b := &builder{r: r}
	for {
		tok, err := b.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		n := node{tok.Pos}
		if tok.Type.Foldable() {
			count, err := b.countRun(tok.Type)
			if err != nil {
				return nil, err
			}
			b.nodes = append(b.nodes, folded(tok.Type, count, n))
			continue
		}
		switch tok.Type {
		case bf.Print:
			b.nodes = append(b.nodes, &Output{n})
		case bf.Read:
			b.nodes = append(b.nodes, &Input{n})
		case bf.Bracket:
			b.nodes = append(b.nodes, &loopStart{n})
		case bf.EndBracket:
			b.nodes = append(b.nodes, &loopEnd{n})
		default:
			panic("ir: illegal token type " + tok.Type.String())
		}
	}
	d := &Draft{File: file, nodes: b.nodes}
	if file != nil {
		d.Name = file.Name()
	}
	return d, nil
}

// BuildProgram builds and resolves a token stream.
func BuildProgram(file *token.File, r bf.TokenReader) (*Program, error) {
	d, err := Build(file, r)
	if err != nil {
		return nil, err
	}
	return Resolve(d)
}

func (b *builder) next() (*bf.Token, error) {
	if b.peek != nil {
		tok := b.peek
		b.peek = nil
		return tok, nil
	}
	return b.r.NextToken()
}

// countRun consumes the maximal run of typ following an already
// consumed token of typ and returns the length of the whole run.
func (b *builder) countRun(typ bf.Type) (uint, error) {
	count := uint(1)
	for {
		tok, err := b.next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, err
		}
		if tok.Type != typ {
			b.peek = tok
			return count, nil
		}
		count++
	}
}

// folded constructs the counted instruction for a run. Cell deltas are
// reduced modulo 256, the range of a cell.
func folded(typ bf.Type, count uint, n node) draftNode {
	switch typ {
	case bf.IncPtr:
		return &AdvancePtr{count, n}
	case bf.DecPtr:
		return &RetreatPtr{count, n}
	case bf.IncData:
		return &IncCell{uint8(count % 256), n}
	case bf.DecData:
		return &DecCell{uint8(count % 256), n}
	}
	panic("ir: type not foldable: " + typ.String())
}
