// Package vm interprets resolved Brainfuck programs.
//
package vm // import "github.com/andrewarchi/bfc/vm"

import (
	"bufio"
	"errors"
	"fmt"
	"go/token"
	"io"

	"github.com/andrewarchi/bfc/config"
	"github.com/andrewarchi/bfc/ir"
)

// VM executes a Program against a tape of 8-bit cells.
type VM struct {
	program *ir.Program
	eof     config.EOFPolicy
	tape    []byte
	ptr     int
	pc      int
	in      io.ByteReader
	out     *bufio.Writer
}

var (
	// ErrTapeOutOfBounds is wrapped by TapeOutOfBoundsError.
	ErrTapeOutOfBounds = errors.New("tape pointer out of bounds")
	// ErrInputExhausted is returned under config.EOFError when an input
	// instruction executes with no input remaining.
	ErrInputExhausted = errors.New("input exhausted")
)

// TapeOutOfBoundsError reports a pointer move leaving the tape.
type TapeOutOfBoundsError struct {
	Index int // instruction index
	Pos   token.Position
	Ptr   int  // pointer before the move
	Count uint // move distance
	Right bool // direction of the move
	Cells int
}

func (err *TapeOutOfBoundsError) Error() string {
	pos := ""
	if err.Pos.IsValid() {
		pos = fmt.Sprintf(" (%v)", err.Pos)
	}
	dir := "left"
	if err.Right {
		dir = "right"
	}
	return fmt.Sprintf("runtime error: %v: move %s by %d from cell %d leaves tape of %d cells at instruction %d%s",
		ErrTapeOutOfBounds, dir, err.Count, err.Ptr, err.Cells, err.Index, pos)
}

func (err *TapeOutOfBoundsError) Unwrap() error { return ErrTapeOutOfBounds }

// InputError wraps a failure to read input at an instruction.
type InputError struct {
	Index int
	Pos   token.Position
	Err   error
}

func (err *InputError) Error() string {
	pos := ""
	if err.Pos.IsValid() {
		pos = fmt.Sprintf(" (%v)", err.Pos)
	}
	return fmt.Sprintf("runtime error: read at instruction %d%s: %v", err.Index, pos, err.Err)
}

func (err *InputError) Unwrap() error { return err.Err }

// New constructs a VM with a fresh zeroed tape.
func New(program *ir.Program, machine config.Machine, in io.Reader, out io.Writer) (*VM, error) {
	if err := machine.Validate(); err != nil {
		return nil, fmt.Errorf("vm: %w", err)
	}
	br, ok := in.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(in)
	}
	return &VM{
		program: program,
		eof:     machine.EOF,
		tape:    make([]byte, machine.Cells),
		in:      br,
		out:     bufio.NewWriter(out),
	}, nil
}

// Run executes the program until the instruction pointer passes the
// last instruction or an error occurs. Buffered output is flushed
// before every read and before Run returns.
func (vm *VM) Run() error {
	err := vm.run()
	if ferr := vm.out.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("write output: %w", ferr)
	}
	return err
}

func (vm *VM) run() error {
	p := vm.program
	for vm.pc < p.Len() {
		switch inst := p.Inst(vm.pc).(type) {
		case *ir.AdvancePtr:
			if inst.Count >= uint(len(vm.tape)-vm.ptr) {
				return vm.boundsError(inst, inst.Count, true)
			}
			vm.ptr += int(inst.Count)
		case *ir.RetreatPtr:
			if inst.Count > uint(vm.ptr) {
				return vm.boundsError(inst, inst.Count, false)
			}
			vm.ptr -= int(inst.Count)
		case *ir.IncCell:
			vm.tape[vm.ptr] += inst.Count
		case *ir.DecCell:
			vm.tape[vm.ptr] -= inst.Count
		case *ir.Output:
			if err := vm.out.WriteByte(vm.tape[vm.ptr]); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		case *ir.Input:
			if err := vm.read(); err != nil {
				return &InputError{vm.pc, p.Position(inst.Pos()), err}
			}
		case *ir.BranchZero:
			if vm.tape[vm.ptr] == 0 {
				vm.pc = inst.Target
			}
		case *ir.BranchNonZero:
			if vm.tape[vm.ptr] != 0 {
				vm.pc = inst.Target
			}
		default:
			panic(fmt.Sprintf("vm: unrecognized instruction: %T", inst))
		}
		vm.pc++
	}
	return nil
}

func (vm *VM) read() error {
	if err := vm.out.Flush(); err != nil {
		return err
	}
	c, err := vm.in.ReadByte()
	if err == io.EOF {
		switch vm.eof {
		case config.EOFZero:
			vm.tape[vm.ptr] = 0
			return nil
		case config.EOFUnchanged:
			return nil
		default:
			return ErrInputExhausted
		}
	}
	if err != nil {
		return err
	}
	vm.tape[vm.ptr] = c
	return nil
}

func (vm *VM) boundsError(inst ir.Inst, count uint, right bool) error {
	return &TapeOutOfBoundsError{
		Index: vm.pc,
		Pos:   vm.program.Position(inst.Pos()),
		Ptr:   vm.ptr,
		Count: count,
		Right: right,
		Cells: len(vm.tape),
	}
}

// Ptr returns the current data pointer.
func (vm *VM) Ptr() int { return vm.ptr }

// Cell returns the value of the ith cell.
func (vm *VM) Cell(i int) byte { return vm.tape[i] }
