package machine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/timewinder-dev/jvmcore/asm"
	"github.com/timewinder-dev/jvmcore/vm"
)

const DefaultEntry = "main"

type Config struct {
	Program ProgramConfig `toml:"program"`
	Trace   TraceConfig   `toml:"trace,omitempty"`
}

type ProgramConfig struct {
	File   string        `toml:"file,omitempty"`
	Entry  string        `toml:"entry,omitempty"`
	Locals []LocalConfig `toml:"locals,omitempty"`
}

// LocalConfig seeds one local slot of the entry frame with an int or null.
type LocalConfig struct {
	Index int   `toml:"index"`
	Int   int32 `toml:"int,omitempty"`
	Null  bool  `toml:"null,omitempty"`
}

type TraceConfig struct {
	CacheSize int `toml:"cache_size,omitempty"`
}

func parseConfig(f io.Reader) (*Config, error) {
	var out Config
	md, err := toml.NewDecoder(f).Decode(&out)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("unknown configuration keys: %v", undecoded)
	}
	if out.Program.Entry == "" {
		out.Program.Entry = DefaultEntry
	}
	return &out, nil
}

// LoadConfigFromFile reads a run file. A missing program file defaults to the
// run file's name with a .star suffix, and relative paths are taken from the
// run file's directory.
func LoadConfigFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	c, err := parseConfig(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if c.Program.File == "" {
		parts := strings.Split(fi.Name(), ".")
		parts = parts[:len(parts)-1]
		parts = append(parts, "star")
		c.Program.File = strings.Join(parts, ".")
	}
	filedir := filepath.Dir(path)
	c.Program.File = filepath.Clean(filepath.Join(filedir, c.Program.File))
	return c, nil
}

// EntryLocals builds the initial local slots of the entry frame.
func (c *Config) EntryLocals() ([]vm.Value, error) {
	var out []vm.Value
	for _, l := range c.Program.Locals {
		if l.Index < 0 {
			return nil, fmt.Errorf("negative local index %d", l.Index)
		}
		for len(out) <= l.Index {
			out = append(out, nil)
		}
		if out[l.Index] != nil {
			return nil, fmt.Errorf("local %d given twice", l.Index)
		}
		if l.Null {
			out[l.Index] = vm.Null
		} else {
			out[l.Index] = vm.IntValue(l.Int)
		}
	}
	return out, nil
}

func (c *Config) BuildMachine() (*Machine, error) {
	p, err := asm.AssemblePath(c.Program.File)
	if err != nil {
		return nil, err
	}
	return NewMachine(c, p)
}
