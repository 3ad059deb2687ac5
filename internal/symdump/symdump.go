// Package symdump persists program symbol tables with msgpack so one
// program's output symbols can seed the inputs of another.
package symdump

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"shade/internal/aasym"
	"shade/internal/shir"
)

// Version is bumped whenever the encoding changes.
const Version = 1

// Table is the serialized form of a program symbol table. Each tuple is
// one symbol list per element.
type Table struct {
	Version int                `msgpack:"version"`
	Program string             `msgpack:"program"`
	MaxSym  int                `msgpack:"max_sym"`
	Inputs  map[string][][]int `msgpack:"inputs"`
	Vars    map[string][][]int `msgpack:"vars"`
	Outputs map[string][][]int `msgpack:"outputs"`
}

// ErrVersion reports a table written by an incompatible encoder.
var ErrVersion = errors.New("symdump: unsupported version")

func encode(p *shir.Program, m map[shir.VarID]aasym.Syms) map[string][][]int {
	out := make(map[string][][]int, len(m))
	for v, syms := range m {
		tuple := make([][]int, len(syms))
		for e := range syms {
			tuple[e] = syms[e].Slice()
			if tuple[e] == nil {
				tuple[e] = []int{}
			}
		}
		out[p.VarName(v)] = tuple
	}
	return out
}

// ErrSymbol reports a stored symbol index outside [0, MaxSym].
var ErrSymbol = errors.New("symdump: symbol out of range")

func (t *Table) decode(name string, tuple [][]int) (aasym.Syms, error) {
	syms := aasym.NewSyms(len(tuple))
	for e, list := range tuple {
		for _, sym := range list {
			if sym < 0 || sym > t.MaxSym {
				return nil, fmt.Errorf("%w: %s[%d] holds %d, max_sym is %d", ErrSymbol, name, e, sym, t.MaxSym)
			}
			syms[e].Add(sym)
		}
	}
	return syms, nil
}

// FromProgram captures ps keyed by the variable names of p.
func FromProgram(p *shir.Program, ps *aasym.ProgramSyms) *Table {
	return &Table{
		Version: Version,
		Program: p.Name,
		MaxSym:  ps.MaxSym,
		Inputs:  encode(p, ps.Inputs),
		Vars:    encode(p, ps.Vars),
		Outputs: encode(p, ps.Outputs),
	}
}

// Write encodes t to w.
func Write(w io.Writer, t *Table) error {
	return msgpack.NewEncoder(w).Encode(t)
}

// Read decodes a table from r.
func Read(r io.Reader) (*Table, error) {
	var t Table
	if err := msgpack.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("symdump: %w", err)
	}
	if t.Version != Version {
		return nil, fmt.Errorf("%w %d", ErrVersion, t.Version)
	}
	return &t, nil
}

// Save writes t to path, replacing it atomically.
func Save(path string, t *Table) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".symdump-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if err = Write(f, t); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Load reads the table stored at path.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// InputSyms maps the outputs of t onto the affine inputs of p with the
// same name. Inputs without a matching output are left to placement.
// A matching name with a different element count, or a symbol outside
// [0, MaxSym], is an error.
func (t *Table) InputSyms(p *shir.Program) (map[shir.VarID]aasym.Syms, error) {
	out := make(map[shir.VarID]aasym.Syms)
	var errs []error
	for i := range p.Vars {
		v := &p.Vars[i]
		if !v.Affine() || !v.Binding.IsInput() {
			continue
		}
		tuple, ok := t.Outputs[v.Name]
		if !ok {
			continue
		}
		if len(tuple) != v.Size {
			errs = append(errs, fmt.Errorf("%s: %d elements in %s, %d in %s", v.Name, len(tuple), t.Program, v.Size, p.Name))
			continue
		}
		syms, err := t.decode(v.Name, tuple)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[v.ID] = syms
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Syms returns one named tuple from the variable table. ok is false when
// the name is missing or the tuple holds an out of range symbol.
func (t *Table) Syms(name string) (syms aasym.Syms, ok bool) {
	tuple, ok := t.Vars[name]
	if !ok {
		return nil, false
	}
	syms, err := t.decode(name, tuple)
	return syms, err == nil
}
