// Package codegen lowers resolved Brainfuck programs to LLVM IR.
//
package codegen // import "github.com/andrewarchi/bfc/codegen"

import (
	"fmt"
	"io"
	"math"

	llvm "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/andrewarchi/bfc/config"
	"github.com/andrewarchi/bfc/ir"
)

// Config contains the memory model and target symbols for codegen.
type Config struct {
	Machine config.Machine
	Target  config.Target
}

// DefaultConfig returns the configuration for the host platform.
func DefaultConfig() Config {
	conf := config.Default()
	return Config{Machine: conf.Machine, Target: conf.Target}
}

type moduleBuilder struct {
	conf    Config
	program *ir.Program
	module  *llvm.Module

	buffer *llvm.Global
	stdin  *llvm.Global
	stdout *llvm.Global
	putc   *llvm.Func
	getc   *llvm.Func
	exit   *llvm.Func

	main    *llvm.Func
	block   *llvm.Block
	labels  map[int]*llvm.Block // keyed by the index of the preceding branch
	eof     *llvm.Block
	dataPtr *llvm.InstAlloca
	next    int64 // next unnamed local ID; %0 is the entry block
}

// local is an unnamed instruction that produces a value.
type local interface {
	value.Value
	SetID(id int64)
}

// EmitLLVMModule writes a LLVM IR module for the given program to w.
// The output is identical for identical programs and configurations.
func EmitLLVMModule(w io.Writer, program *ir.Program, conf Config) error {
	if err := conf.Machine.Validate(); err != nil {
		return fmt.Errorf("codegen: %w", err)
	}
	m := &moduleBuilder{
		conf:    conf,
		program: program,
		module:  llvm.NewModule(),
		next:    1,
	}
	m.declareGlobals()
	m.declareFuncs()
	if err := m.emitMain(); err != nil {
		return err
	}
	_, err := io.WriteString(w, m.module.String())
	return err
}

func (m *moduleBuilder) declareGlobals() {
	name := m.program.Name
	if name == "" {
		name = "main"
	}
	m.module.SourceFilename = name
	cells := types.NewArray(uint64(m.conf.Machine.Cells), types.I8)
	m.buffer = m.module.NewGlobalDef("buffer", constant.NewZeroInitializer(cells))
	m.buffer.Linkage = enum.LinkageInternal
	m.stdout = m.module.NewGlobal(m.conf.Target.Stdout, types.I8Ptr)
	m.stdin = m.module.NewGlobal(m.conf.Target.Stdin, types.I8Ptr)
}

func (m *moduleBuilder) declareFuncs() {
	m.putc = m.module.NewFunc("putc", types.I32,
		llvm.NewParam("c", types.I32), llvm.NewParam("stream", types.I8Ptr))
	m.getc = m.module.NewFunc("getc", types.I32, llvm.NewParam("stream", types.I8Ptr))
	if m.needsEOFTrap() {
		m.exit = m.module.NewFunc("exit", types.Void, llvm.NewParam("status", types.I32))
	}
}

func (m *moduleBuilder) emitMain() error {
	m.main = m.module.NewFunc("main", types.I32)
	m.block = m.main.NewBlock("")
	m.dataPtr = m.block.NewAlloca(types.I8Ptr)
	m.dataPtr.SetName("data_ptr")
	zero := constant.NewInt(types.I64, 0)
	start := constant.NewGetElementPtr(m.buffer.ContentType, m.buffer, zero, zero)
	start.InBounds = true
	m.block.NewStore(start, m.dataPtr)

	blocks := m.program.Blocks()
	m.labels = make(map[int]*llvm.Block, len(blocks))
	for _, block := range blocks[1:] {
		m.labels[block.Label] = llvm.NewBlock(block.Name())
	}
	for _, block := range blocks {
		if block.Label >= 0 {
			m.appendBlock(m.labels[block.Label])
		}
		for i := block.Start; i < block.End; i++ {
			if err := m.emitInst(i, m.program.Inst(i)); err != nil {
				return err
			}
		}
	}
	m.block.NewRet(constant.NewInt(types.I32, 0))

	if m.exit != nil {
		m.appendBlock(m.eofBlock())
		m.block.NewCall(m.exit, constant.NewInt(types.I32, 1))
		m.block.NewUnreachable()
	}
	return nil
}

// appendBlock places a block after all emitted blocks and makes it
// current, so that blocks appear in emission order.
func (m *moduleBuilder) appendBlock(block *llvm.Block) {
	block.Parent = m.main
	m.main.Blocks = append(m.main.Blocks, block)
	m.block = block
}

func (m *moduleBuilder) eofBlock() *llvm.Block {
	if m.eof == nil {
		m.eof = llvm.NewBlock("eof")
	}
	return m.eof
}

func (m *moduleBuilder) emitInst(index int, inst ir.Inst) error {
	switch inst := inst.(type) {
	case *ir.AdvancePtr:
		if inst.Count > math.MaxInt64 {
			return fmt.Errorf("codegen: pointer move at instruction %d overflows i64: %d", index, inst.Count)
		}
		m.emitMovePtr(int64(inst.Count))
	case *ir.RetreatPtr:
		if inst.Count > math.MaxInt64 {
			return fmt.Errorf("codegen: pointer move at instruction %d overflows i64: %d", index, inst.Count)
		}
		m.emitMovePtr(-int64(inst.Count))
	case *ir.IncCell:
		ptr := m.loadDataPtr()
		m.block.NewStore(m.def(m.block.NewAdd(m.loadCell(ptr), cellConst(inst.Count))), ptr)
	case *ir.DecCell:
		ptr := m.loadDataPtr()
		m.block.NewStore(m.def(m.block.NewSub(m.loadCell(ptr), cellConst(inst.Count))), ptr)
	case *ir.Output:
		m.emitOutput()
	case *ir.Input:
		m.emitInput(index)
	case *ir.BranchZero:
		m.emitBranch(enum.IPredEQ, inst.Target, index)
	case *ir.BranchNonZero:
		m.emitBranch(enum.IPredNE, inst.Target, index)
	default:
		panic(fmt.Sprintf("codegen: unrecognized instruction: %T", inst))
	}
	return nil
}

func (m *moduleBuilder) emitMovePtr(offset int64) {
	ptr := m.loadDataPtr()
	gep := m.block.NewGetElementPtr(types.I8, ptr, constant.NewInt(types.I64, offset))
	gep.InBounds = true
	m.block.NewStore(m.def(gep), m.dataPtr)
}

func (m *moduleBuilder) emitOutput() {
	val := m.loadCell(m.loadDataPtr())
	ext := m.def(m.block.NewZExt(val, types.I32))
	stream := m.def(m.block.NewLoad(types.I8Ptr, m.stdout))
	m.def(m.block.NewCall(m.putc, ext, stream))
}

func (m *moduleBuilder) emitInput(index int) {
	ptr := m.loadDataPtr()
	stream := m.def(m.block.NewLoad(types.I8Ptr, m.stdin))
	c := m.def(m.block.NewCall(m.getc, stream))
	eof := m.def(m.block.NewICmp(enum.IPredEQ, c, constant.NewInt(types.I32, -1)))
	val := m.def(m.block.NewTrunc(c, types.I8))
	switch m.conf.Machine.EOF {
	case config.EOFZero:
		val = m.def(m.block.NewSelect(eof, cellConst(0), val))
	case config.EOFUnchanged:
		old := m.loadCell(ptr)
		val = m.def(m.block.NewSelect(eof, old, val))
	case config.EOFError:
		read := llvm.NewBlock(fmt.Sprintf("r%d", index))
		m.block.NewCondBr(eof, m.eofBlock(), read)
		m.appendBlock(read)
	}
	m.block.NewStore(val, ptr)
}

// emitBranch compares the current cell to zero and branches to the
// block following the target instruction or the block following this
// instruction.
func (m *moduleBuilder) emitBranch(pred enum.IPred, target, index int) {
	val := m.loadCell(m.loadDataPtr())
	cmp := m.def(m.block.NewICmp(pred, val, cellConst(0)))
	m.block.NewCondBr(cmp, m.labels[target], m.labels[index])
}

func (m *moduleBuilder) loadDataPtr() value.Value {
	return m.def(m.block.NewLoad(types.I8Ptr, m.dataPtr))
}

func (m *moduleBuilder) loadCell(ptr value.Value) value.Value {
	return m.def(m.block.NewLoad(types.I8, ptr))
}

// def numbers an unnamed value with the next local ID.
func (m *moduleBuilder) def(v local) value.Value {
	v.SetID(m.next)
	m.next++
	return v
}

func (m *moduleBuilder) needsEOFTrap() bool {
	if m.conf.Machine.EOF != config.EOFError {
		return false
	}
	for i := 0; i < m.program.Len(); i++ {
		if _, ok := m.program.Inst(i).(*ir.Input); ok {
			return true
		}
	}
	return false
}

// cellConst returns a cell delta as a signed i8 constant.
func cellConst(n uint8) *constant.Int {
	return constant.NewInt(types.I8, int64(int8(n)))
}
