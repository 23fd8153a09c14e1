package main

import (
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tebeka/atexit"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"

	"github.com/andrewarchi/bfc/bf"
	"github.com/andrewarchi/bfc/codegen"
	"github.com/andrewarchi/bfc/config"
	"github.com/andrewarchi/bfc/driver"
	"github.com/andrewarchi/bfc/ir"
	"github.com/andrewarchi/bfc/vm"
)

var (
	app = kingpin.New("bfc", "Brainfuck interpreter and LLVM IR compiler.")

	flagVerbose = app.Flag("verbose", "Log pipeline details to stderr.").Short('v').Bool()
	flagConfig  = app.Flag("config", "YAML configuration file.").ExistingFile()
	flagCells   = app.Flag("cells", "Number of tape cells; 0 uses the configured count.").PlaceHolder("N").Int()
	flagEOF     = app.Flag("eof", "Cell value on end of input.").Enum(
		config.EOFZero.String(), config.EOFUnchanged.String(), config.EOFError.String())
	flagPacked = app.Flag("packed", "Read sources in the bit packed format.").Bool()

	runCmd  = app.Command("run", "Interpret a program.")
	runFile = runCmd.Arg("file", "Source file.").Required().ExistingFile()

	emitCmd    = app.Command("emit", "Write LLVM IR for a program.")
	emitFile   = emitCmd.Arg("file", "Source file.").Required().ExistingFile()
	emitOutput = emitCmd.Flag("output", "Output file; defaults to the source name with .ll.").Short('o').String()

	buildCmd    = app.Command("build", "Compile a program to a native executable.")
	buildFile   = buildCmd.Arg("file", "Source file.").Required().ExistingFile()
	buildOutput = buildCmd.Flag("output", "Executable path; defaults to the source name.").Short('o').String()
	buildLL     = buildCmd.Flag("ll", "Keep the LLVM IR at this path.").String()
	buildCC     = buildCmd.Flag("cc", "C compiler driver.").String()

	dumpCmd   = app.Command("dump", "Print the resolved instructions of a program.")
	dumpFile  = dumpCmd.Arg("file", "Source file.").Required().ExistingFile()
	dumpRaw   = dumpCmd.Flag("raw", "Dump the instruction structures.").Bool()
	dumpPlain = dumpCmd.Flag("plain", "Print one instruction per line instead of a table.").Bool()
	dumpCFG   = dumpCmd.Flag("cfg", "Print basic blocks and loops.").Bool()

	packCmd    = app.Command("pack", "Bit pack a source file.")
	packFile   = packCmd.Arg("file", "Source file.").Required().ExistingFile()
	packOutput = packCmd.Flag("output", "Output file; defaults to the source name with .bfp.").Short('o').String()

	configCmd = app.Command("config", "Print the effective configuration as YAML.")
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if *flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	conf, err := loadConfig()
	if err != nil {
		exitError(err)
	}

	switch cmd {
	case runCmd.FullCommand():
		err = runProgram(conf)
	case emitCmd.FullCommand():
		err = emitProgram(conf)
	case buildCmd.FullCommand():
		err = buildProgram(conf)
	case dumpCmd.FullCommand():
		err = dumpProgram()
	case packCmd.FullCommand():
		err = packSource()
	case configCmd.FullCommand():
		err = printConfig(conf)
	}
	if err != nil {
		exitError(err)
	}
	atexit.Exit(0)
}

func exitError(err error) {
	fmt.Fprintf(os.Stderr, "bfc: %v\n", err)
	atexit.Exit(1)
}

// loadConfig reads the configuration file, if any, and applies flag
// overrides.
func loadConfig() (config.Config, error) {
	conf := config.Default()
	if *flagConfig != "" {
		var err error
		conf, err = config.Load(*flagConfig)
		if err != nil {
			return conf, err
		}
		slog.Debug("loaded config", "file", *flagConfig)
	}
	if *flagCells != 0 {
		conf.Machine.Cells = *flagCells
	}
	if *flagEOF != "" {
		eof, err := config.ParseEOFPolicy(*flagEOF)
		if err != nil {
			return conf, err
		}
		conf.Machine.EOF = eof
	}
	if *buildCC != "" {
		conf.Target.CC = *buildCC
	}
	return conf, conf.Validate()
}

func loadProgram(filename string) (*ir.Program, error) {
	return driver.LoadProgram(token.NewFileSet(), filename, *flagPacked)
}

func codegenConfig(conf config.Config) codegen.Config {
	return codegen.Config{Machine: conf.Machine, Target: conf.Target}
}

func runProgram(conf config.Config) error {
	program, err := loadProgram(*runFile)
	if err != nil {
		return err
	}
	m, err := vm.New(program, conf.Machine, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	return m.Run()
}

func emitProgram(conf config.Config) error {
	program, err := loadProgram(*emitFile)
	if err != nil {
		return err
	}
	output := *emitOutput
	if output == "" {
		output = driver.DefaultOutputPath(*emitFile, driver.ModuleExt)
	}
	if err := driver.WriteModule(output, program, codegenConfig(conf)); err != nil {
		return err
	}
	slog.Info("wrote LLVM IR", "file", output)
	return nil
}

func buildProgram(conf config.Config) error {
	program, err := loadProgram(*buildFile)
	if err != nil {
		return err
	}
	output := *buildOutput
	if output == "" {
		output = driver.DefaultOutputPath(*buildFile, "")
		if output == *buildFile {
			output += ".out"
		}
	}
	module, keep := *buildLL, true
	if module == "" {
		dir, err := os.MkdirTemp("", "bfc")
		if err != nil {
			return err
		}
		atexit.Register(func() { os.RemoveAll(dir) })
		module, keep = filepath.Join(dir, filepath.Base(driver.DefaultOutputPath(*buildFile, driver.ModuleExt))), false
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cc := &driver.ClangCompiler{
		CC:     conf.Target.CC,
		CFlags: conf.Target.CFlags,
		Stdout: os.Stderr,
		Stderr: os.Stderr,
	}
	if err := driver.Translate(ctx, program, codegenConfig(conf), cc, module, output, keep); err != nil {
		return err
	}
	slog.Info("built executable", "file", output)
	return nil
}

func dumpProgram() error {
	program, err := loadProgram(*dumpFile)
	if err != nil {
		return err
	}
	if *dumpRaw {
		spew.Fdump(os.Stdout, program.Insts())
		return nil
	}
	if *dumpPlain {
		fmt.Printf("%s:\n%s", program.Name, program.DumpPos())
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(program.Name)
	t.AppendHeader(table.Row{"#", "Inst", "Target", "Position", "Source"})
	for i := 0; i < program.Len(); i++ {
		inst := program.Inst(i)
		target := ""
		if j, ok := ir.Target(inst); ok {
			target = fmt.Sprint(j)
		}
		pos := program.Position(inst.Pos())
		pos.Filename = ""
		t.AppendRow(table.Row{i, inst, target, pos, abbrev(inst.StringBF(), 16)})
	}
	t.Render()

	if *dumpCFG {
		blocks := program.Blocks()
		cfg := program.ControlFlowGraph()
		bt := table.NewWriter()
		bt.SetOutputMirror(os.Stdout)
		bt.SetTitle("Basic blocks")
		bt.AppendHeader(table.Row{"Block", "Label", "Range", "Successors"})
		for _, block := range blocks {
			succs := make([]string, len(cfg[block.ID].Edges))
			for i, id := range cfg[block.ID].Edges {
				succs[i] = blockName(blocks[id])
			}
			bt.AppendRow(table.Row{block.ID, blockName(block),
				fmt.Sprintf("[%d,%d)", block.Start, block.End), strings.Join(succs, " ")})
		}
		bt.Render()
		for _, loop := range program.Loops() {
			names := make([]string, len(loop))
			for i, id := range loop {
				names[i] = blockName(blocks[id])
			}
			fmt.Printf("loop: %s\n", strings.Join(names, " "))
		}
	}
	return nil
}

func blockName(b ir.Block) string {
	if b.Label < 0 {
		return "entry"
	}
	return b.Name()
}

func abbrev(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func packSource() error {
	src, err := driver.ReadSource(*packFile)
	if err != nil {
		return err
	}
	packed, err := bf.Pack(src)
	if err != nil {
		return err
	}
	output := *packOutput
	if output == "" {
		output = driver.DefaultOutputPath(*packFile, ".bfp")
	}
	if err := os.WriteFile(output, packed, 0o644); err != nil {
		return err
	}
	slog.Info("packed source", "file", output, "bytes", len(src), "packed", len(packed))
	return nil
}

func printConfig(conf config.Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
