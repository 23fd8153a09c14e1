package driver

import (
	"bytes"
	"context"
	"errors"
	"go/token"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/andrewarchi/bfc/bf"
	"github.com/andrewarchi/bfc/codegen"
	"github.com/andrewarchi/bfc/config"
	"github.com/andrewarchi/bfc/ir"
	"github.com/andrewarchi/bfc/vm"
)

const helloSrc = `Prints a greeting
++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`

func tempDir() string {
	dir, err := os.MkdirTemp("", "bfc-driver")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(os.RemoveAll, dir)
	return dir
}

func writeFile(dir, name string, data []byte) string {
	filename := filepath.Join(dir, name)
	Expect(os.WriteFile(filename, data, 0o644)).To(Succeed())
	return filename
}

func hostConfig() codegen.Config {
	return codegen.Config{
		Machine: config.DefaultMachine(),
		Target:  config.DefaultTarget(runtime.GOOS),
	}
}

var _ = Describe("DefaultOutputPath", func() {
	DescribeTable("derives the output path",
		func(input, ext, want string) {
			Expect(DefaultOutputPath(input, ext)).To(Equal(want))
		},
		Entry("replaces .bf", "hello.bf", ".ll", "hello.ll"),
		Entry("appends to other names", "hello", ".ll", "hello.ll"),
		Entry("keeps inner dots", "dir.v2/a.b.bf", ".ll", "dir.v2/a.b.ll"),
		Entry("supports other extensions", "hello.bf", ".bfp", "hello.bfp"),
	)
})

var _ = Describe("LoadProgram", func() {
	var (
		dir  string
		fset *token.FileSet
	)

	BeforeEach(func() {
		dir = tempDir()
		fset = token.NewFileSet()
	})

	It("should build a source file", func() {
		filename := writeFile(dir, "hello.bf", []byte(helloSrc))

		program, err := LoadProgram(fset, filename, false)

		Expect(err).NotTo(HaveOccurred())
		Expect(program.Name).To(Equal(filename))
		Expect(program.StringBF()).To(Equal(helloSrc[strings.IndexByte(helloSrc, '+'):]))
		Expect(program.Position(program.Inst(0).Pos()).Line).To(Equal(2))
	})

	It("should build a packed file", func() {
		packed, err := bf.Pack([]byte(helloSrc))
		Expect(err).NotTo(HaveOccurred())
		filename := writeFile(dir, "hello.bfp", packed)
		plain := writeFile(dir, "hello.bf", []byte(helloSrc))

		program, err := LoadProgram(fset, filename, true)
		Expect(err).NotTo(HaveOccurred())
		want, err := LoadProgram(fset, plain, false)
		Expect(err).NotTo(HaveOccurred())

		Expect(program.Dump("")).To(Equal(want.Dump("")))
	})

	It("should report unmatched loops with positions", func() {
		filename := writeFile(dir, "bad.bf", []byte("+\n+]"))

		_, err := LoadProgram(fset, filename, false)

		var endErr *ir.UnmatchedLoopEndError
		Expect(errors.As(err, &endErr)).To(BeTrue())
		Expect(endErr.Pos.Line).To(Equal(2))
		Expect(endErr.Pos.Column).To(Equal(2))
	})

	It("should fail on a missing file", func() {
		_, err := LoadProgram(fset, filepath.Join(dir, "missing.bf"), false)

		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
	})
})

var _ = Describe("WriteModule", func() {
	var (
		dir     string
		program *ir.Program
	)

	BeforeEach(func() {
		dir = tempDir()
		var err error
		program, err = LoadProgram(token.NewFileSet(), writeFile(dir, "loop.bf", []byte("+[-].")), false)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should write the emitted module", func() {
		filename := filepath.Join(dir, "loop.ll")

		Expect(WriteModule(filename, program, hostConfig())).To(Succeed())

		var want bytes.Buffer
		Expect(codegen.EmitLLVMModule(&want, program, hostConfig())).To(Succeed())
		got, err := os.ReadFile(filename)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(got)).To(Equal(want.String()))
	})

	It("should require the module extension", func() {
		filename := filepath.Join(dir, "loop.txt")

		err := WriteModule(filename, program, hostConfig())

		Expect(errors.Is(err, ErrModuleExt)).To(BeTrue())
		_, statErr := os.Stat(filename)
		Expect(errors.Is(statErr, fs.ErrNotExist)).To(BeTrue())
	})

	It("should reject an invalid machine", func() {
		conf := hostConfig()
		conf.Machine.Cells = -1

		filename := filepath.Join(dir, "loop.ll")

		err := WriteModule(filename, program, conf)

		Expect(err).To(MatchError(ContainSubstring("cell count must be positive")))
		_, statErr := os.Stat(filename)
		Expect(errors.Is(statErr, fs.ErrNotExist)).To(BeTrue())
	})

	It("should replace a stale module that fails to emit", func() {
		filename := writeFile(dir, "loop.ll", []byte("; stale\n"))
		conf := hostConfig()
		conf.Machine.Cells = 0

		Expect(WriteModule(filename, program, conf)).NotTo(Succeed())

		Expect(filename).NotTo(BeAnExistingFile())
	})
})

var _ = Describe("Translate", func() {
	var (
		mockCtrl     *gomock.Controller
		mockCompiler *MockCompiler
		dir          string
		program      *ir.Program
		module       string
		output       string
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockCompiler = NewMockCompiler(mockCtrl)
		dir = tempDir()
		var err error
		program, err = LoadProgram(token.NewFileSet(), writeFile(dir, "echo.bf", []byte(",[.,]")), false)
		Expect(err).NotTo(HaveOccurred())
		module = filepath.Join(dir, "echo.ll")
		output = filepath.Join(dir, "echo")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should compile the emitted module and remove it", func() {
		mockCompiler.EXPECT().
			Compile(gomock.Any(), module, output).
			DoAndReturn(func(ctx context.Context, module, output string) error {
				src, err := os.ReadFile(module)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(src)).To(ContainSubstring("define i32 @main()"))
				return nil
			})

		Expect(Translate(context.Background(), program, hostConfig(), mockCompiler, module, output, false)).To(Succeed())

		_, err := os.Stat(module)
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
	})

	It("should keep the module when asked", func() {
		mockCompiler.EXPECT().Compile(gomock.Any(), module, output).Return(nil)

		Expect(Translate(context.Background(), program, hostConfig(), mockCompiler, module, output, true)).To(Succeed())

		Expect(module).To(BeAnExistingFile())
	})

	It("should return compiler errors", func() {
		compileErr := errors.New("linker failed")
		mockCompiler.EXPECT().Compile(gomock.Any(), module, output).Return(compileErr)

		err := Translate(context.Background(), program, hostConfig(), mockCompiler, module, output, false)

		Expect(err).To(MatchError(compileErr))
		_, statErr := os.Stat(module)
		Expect(errors.Is(statErr, fs.ErrNotExist)).To(BeTrue())
	})

	It("should not leave a module behind when emission fails", func() {
		conf := hostConfig()
		conf.Machine.Cells = 0

		err := Translate(context.Background(), program, conf, mockCompiler, module, output, true)

		Expect(err).To(MatchError(ContainSubstring("cell count must be positive")))
		Expect(module).NotTo(BeAnExistingFile())
	})

	It("should not compile when the module cannot be written", func() {
		err := Translate(context.Background(), program, hostConfig(), mockCompiler, filepath.Join(dir, "echo.s"), output, false)

		Expect(errors.Is(err, ErrModuleExt)).To(BeTrue())
	})
})

var _ = Describe("ClangCompiler", func() {
	It("should report a missing compiler", func() {
		dir := tempDir()
		cc := &ClangCompiler{CC: filepath.Join(dir, "no-such-cc"), CFlags: []string{"-O2"}}

		err := cc.Compile(context.Background(), filepath.Join(dir, "a.ll"), filepath.Join(dir, "a"))

		var compileErr *CompileError
		Expect(errors.As(err, &compileErr)).To(BeTrue())
		Expect(compileErr.Args).To(Equal([]string{cc.CC, "-O2", "-o", filepath.Join(dir, "a"), filepath.Join(dir, "a.ll")}))
	})
})

// moduleRunner executes an emitted module with the given input.
type moduleRunner struct {
	name string
	run  func(dir, name string, program *ir.Program, input string) ([]byte, error)
}

// moduleRunners returns the runners whose tools are on PATH: a native
// build with clang and the lli JIT.
func moduleRunners() []moduleRunner {
	var runners []moduleRunner
	if path, err := exec.LookPath("clang"); err == nil {
		cc := &ClangCompiler{CC: path, CFlags: []string{"-O1", "-w"}, Stderr: GinkgoWriter}
		runners = append(runners, moduleRunner{"clang", func(dir, name string, program *ir.Program, input string) ([]byte, error) {
			exe := filepath.Join(dir, name)
			if err := Translate(context.Background(), program, hostConfig(), cc, exe+ModuleExt, exe, false); err != nil {
				return nil, err
			}
			cmd := exec.Command(exe)
			cmd.Stdin = strings.NewReader(input)
			return cmd.Output()
		}})
	}
	if path, err := exec.LookPath("lli"); err == nil {
		runners = append(runners, moduleRunner{"lli", func(dir, name string, program *ir.Program, input string) ([]byte, error) {
			module := filepath.Join(dir, name+ModuleExt)
			if err := WriteModule(module, program, hostConfig()); err != nil {
				return nil, err
			}
			cmd := exec.Command(path, module)
			cmd.Stdin = strings.NewReader(input)
			cmd.Stderr = GinkgoWriter
			return cmd.Output()
		}})
	}
	return runners
}

var _ = Describe("Compiled and interpreted execution", func() {
	var (
		dir     string
		runners []moduleRunner
		fset    *token.FileSet
	)

	BeforeEach(func() {
		runners = moduleRunners()
		if len(runners) == 0 {
			Skip("neither clang nor lli found on PATH")
		}
		dir = tempDir()
		fset = token.NewFileSet()
	})

	DescribeTable("produce identical output",
		func(name, src, input string) {
			program, err := LoadProgram(fset, writeFile(dir, name+".bf", []byte(src)), false)
			Expect(err).NotTo(HaveOccurred())

			var want bytes.Buffer
			m, err := vm.New(program, config.DefaultMachine(), strings.NewReader(input), &want)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Run()).To(Succeed())

			for _, runner := range runners {
				got, err := runner.run(dir, name+"-"+runner.name, program, input)
				Expect(err).NotTo(HaveOccurred(), runner.name)
				Expect(string(got)).To(Equal(want.String()), runner.name)
			}
		},
		Entry("hello world", "hello", helloSrc, ""),
		Entry("echo", "echo", ",[.,]", "native\n"),
		Entry("cell wraparound", "wrap", "-.+.>"+strings.Repeat("+", 300)+".", ""),
		Entry("eof zero", "eof", "+++,.", ""),
		Entry("nested loops", "nested", "++[>+++[>++<-]<-]>>.", ""),
	)
})
