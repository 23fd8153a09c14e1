// Package config holds the machine configuration shared by the
// interpreter and the code generator.
package config // import "github.com/andrewarchi/bfc/config"

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// EOFPolicy determines the effect of an input instruction when no more
// input is available.
type EOFPolicy uint8

// EOF policies.
const (
	EOFZero      EOFPolicy = iota // store 0 in the current cell
	EOFUnchanged                  // leave the current cell unchanged
	EOFError                      // fail the run
)

// Default configuration values.
const (
	DefaultCells = 30000
	DefaultCC    = "clang"
)

// Config is the complete configuration of a compilation or
// interpretation run.
type Config struct {
	Machine Machine `yaml:"machine"`
	Target  Target  `yaml:"target"`
}

// Machine describes the memory model. Cells are 8 bits wide.
type Machine struct {
	Cells int       `yaml:"cells"`
	EOF   EOFPolicy `yaml:"eof"`
}

// Target describes the native environment of generated code.
type Target struct {
	Stdin  string   `yaml:"stdin"`  // symbol of the C stdin stream
	Stdout string   `yaml:"stdout"` // symbol of the C stdout stream
	CC     string   `yaml:"cc"`
	CFlags []string `yaml:"cflags"`
}

// Default returns the default configuration for the host platform.
func Default() Config {
	return Config{
		Machine: DefaultMachine(),
		Target:  DefaultTarget(runtime.GOOS),
	}
}

// DefaultMachine returns the default memory model.
func DefaultMachine() Machine {
	return Machine{Cells: DefaultCells, EOF: EOFZero}
}

// DefaultTarget returns the stream symbols of the C library commonly
// used on the given operating system.
func DefaultTarget(goos string) Target {
	t := Target{
		Stdin:  "stdin",
		Stdout: "stdout",
		CC:     DefaultCC,
		CFlags: []string{"-O2"},
	}
	switch goos {
	case "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
		t.Stdin = "__stdinp"
		t.Stdout = "__stdoutp"
	}
	return t
}

// Load reads a YAML configuration file. Fields absent from the file
// keep their default values.
func Load(filename string) (Config, error) {
	conf := Default()
	data, err := os.ReadFile(filename)
	if err != nil {
		return conf, err
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("config: %s: %w", filename, err)
	}
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("config: %s: %w", filename, err)
	}
	return conf, nil
}

// Validate checks that the configuration describes a usable machine.
func (conf Config) Validate() error {
	if err := conf.Machine.Validate(); err != nil {
		return err
	}
	if conf.Target.Stdin == "" || conf.Target.Stdout == "" {
		return errors.New("stream symbols must not be empty")
	}
	return nil
}

// Validate checks the memory model.
func (m Machine) Validate() error {
	if m.Cells <= 0 {
		return fmt.Errorf("cell count must be positive: %d", m.Cells)
	}
	if m.EOF > EOFError {
		return fmt.Errorf("unrecognized EOF policy: %d", m.EOF)
	}
	return nil
}

// ParseEOFPolicy parses the name of an EOF policy.
func ParseEOFPolicy(s string) (EOFPolicy, error) {
	switch s {
	case "zero":
		return EOFZero, nil
	case "unchanged":
		return EOFUnchanged, nil
	case "error":
		return EOFError, nil
	}
	return 0, fmt.Errorf("unrecognized EOF policy: %q", s)
}

func (p EOFPolicy) String() string {
	switch p {
	case EOFZero:
		return "zero"
	case EOFUnchanged:
		return "unchanged"
	case EOFError:
		return "error"
	}
	return fmt.Sprintf("eof(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p EOFPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *EOFPolicy) UnmarshalText(text []byte) error {
	policy, err := ParseEOFPolicy(string(text))
	if err != nil {
		return err
	}
	*p = policy
	return nil
}
