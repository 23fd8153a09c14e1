// Package driver connects the Brainfuck pipeline to the filesystem and
// to an external native compiler.
//
package driver // import "github.com/andrewarchi/bfc/driver"

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/andrewarchi/bfc/bf"
	"github.com/andrewarchi/bfc/codegen"
	"github.com/andrewarchi/bfc/ir"
)

// ModuleExt is the file extension required for emitted LLVM IR.
const ModuleExt = ".ll"

// ErrModuleExt is returned when an IR output path lacks ModuleExt.
var ErrModuleExt = errors.New("output filename must end with " + ModuleExt)

// ReadSource reads the entire contents of a source file. The file is
// closed before returning.
func ReadSource(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return src, nil
}

// LoadProgram reads, builds, and resolves a program. When packed is
// set, the file is read in the bit packed format written by bf.Pack.
// The file is registered in fset for position lookup.
func LoadProgram(fset *token.FileSet, filename string, packed bool) (*ir.Program, error) {
	src, err := ReadSource(filename)
	if err != nil {
		return nil, err
	}
	file := fset.AddFile(filename, -1, len(src))
	var r bf.TokenReader
	if packed {
		r = bf.NewBitLexer(file, src)
	} else {
		r = bf.NewLexer(file, src)
	}
	program, err := ir.BuildProgram(file, r)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded program", "file", filename, "packed", packed,
		"bytes", len(src), "insts", program.Len())
	return program, nil
}

// WriteModule emits program as LLVM IR to filename, which must end in
// ModuleExt. The file is created or truncated, and is removed when
// emission fails.
func WriteModule(filename string, program *ir.Program, conf codegen.Config) (err error) {
	if !strings.HasSuffix(filename, ModuleExt) {
		return fmt.Errorf("%w: %q", ErrModuleExt, filename)
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			os.Remove(filename)
		}
	}()
	if err := codegen.EmitLLVMModule(f, program, conf); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	slog.Debug("wrote module", "file", filename, "cells", conf.Machine.Cells,
		"eof", conf.Machine.EOF)
	return nil
}

// DefaultOutputPath derives an output path from an input path by
// replacing a trailing ".bf" with ext, or appending ext otherwise.
func DefaultOutputPath(input, ext string) string {
	return strings.TrimSuffix(input, ".bf") + ext
}

// Compiler turns an LLVM IR module into a native executable.
type Compiler interface {
	Compile(ctx context.Context, module, output string) error
}

// ClangCompiler invokes a clang compatible driver.
type ClangCompiler struct {
	CC     string
	CFlags []string
	Stdout io.Writer
	Stderr io.Writer
}

// CompileError reports a failed compiler invocation.
type CompileError struct {
	Args []string
	Err  error
}

func (err *CompileError) Error() string {
	return fmt.Sprintf("compile: %s: %v", strings.Join(err.Args, " "), err.Err)
}

func (err *CompileError) Unwrap() error { return err.Err }

// Compile runs the compiler on module, writing the executable to
// output.
func (c *ClangCompiler) Compile(ctx context.Context, module, output string) error {
	args := make([]string, 0, len(c.CFlags)+3)
	args = append(args, c.CFlags...)
	args = append(args, "-o", output, module)
	cmd := exec.CommandContext(ctx, c.CC, args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	slog.Debug("compiling", "cc", c.CC, "args", args)
	if err := cmd.Run(); err != nil {
		return &CompileError{Args: append([]string{c.CC}, args...), Err: err}
	}
	return nil
}

// Translate emits program to the IR file module and compiles it to the
// executable output. When keep is false, the IR file is removed after
// compilation, whether or not it succeeds.
func Translate(ctx context.Context, program *ir.Program, conf codegen.Config, cc Compiler, module, output string, keep bool) (err error) {
	if err := WriteModule(module, program, conf); err != nil {
		return err
	}
	if !keep {
		defer func() {
			if rerr := os.Remove(module); err == nil && rerr != nil {
				err = rerr
			}
		}()
	}
	if err := cc.Compile(ctx, module, output); err != nil {
		return err
	}
	slog.Debug("built executable", "file", output)
	return nil
}
