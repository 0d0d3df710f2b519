// Package library holds signatures of host functions that FlowScript
// units may call.
//
// A library is authored as TOML:
//
//	[[function]]
//	table = 0
//	index = 7
//	name = "LOOKUP"
//	return = "int"
//	params = [{ name = "key", type = "int" }]
//
// and can be stored in a compact binary form (canonical CBOR). A loaded
// Library is immutable and safe to share between goroutines; it satisfies
// compiler.FunctionResolver.
package library

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/bytecode"
)

var (
	// ErrDuplicate is returned when two functions share a name or a
	// (table, index) pair.
	ErrDuplicate = errors.New("duplicate function")

	// ErrInvalid is returned for a function entry that cannot be used.
	ErrInvalid = errors.New("invalid function")
)

// Function is one library entry.
type Function struct {
	Table  uint16  `toml:"table" cbor:"1,keyasint,omitempty"`
	Index  uint16  `toml:"index" cbor:"2,keyasint,omitempty"`
	Name   string  `toml:"name" cbor:"3,keyasint"`
	Return string  `toml:"return" cbor:"4,keyasint,omitempty"`
	Params []Param `toml:"params" cbor:"5,keyasint,omitempty"`
}

// Param is a function parameter.
type Param struct {
	Name string `toml:"name" cbor:"1,keyasint,omitempty"`
	Type string `toml:"type" cbor:"2,keyasint"`
}

type tomlFile struct {
	Functions []Function `toml:"function"`
}

type key struct{ table, index uint16 }

// Library is an immutable set of function signatures.
type Library struct {
	funcs   []Function
	byName  map[string]compiler.FunctionSignature
	byIndex map[key]compiler.FunctionSignature
	sum     string
}

var _ compiler.FunctionResolver = (*Library)(nil)

// New builds a library from fns. Functions are ordered by (table, index).
func New(fns ...Function) (*Library, error) {
	l := &Library{
		funcs:   append([]Function(nil), fns...),
		byName:  make(map[string]compiler.FunctionSignature, len(fns)),
		byIndex: make(map[key]compiler.FunctionSignature, len(fns)),
	}
	sort.SliceStable(l.funcs, func(i, j int) bool {
		a, b := l.funcs[i], l.funcs[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Index < b.Index
	})
	for _, f := range l.funcs {
		sig, err := f.Signature()
		if err != nil {
			return nil, err
		}
		if _, dup := l.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: name %s", ErrDuplicate, f.Name)
		}
		k := key{f.Table, f.Index}
		if prev, dup := l.byIndex[k]; dup {
			return nil, fmt.Errorf("%w: %s and %s both at (%d, %d)", ErrDuplicate, prev.Name, f.Name, f.Table, f.Index)
		}
		l.byName[f.Name] = sig
		l.byIndex[k] = sig
	}
	data, err := encode(l.funcs)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	l.sum = hex.EncodeToString(sum[:])
	return l, nil
}

// Signature converts f to the compiler's form.
func (f Function) Signature() (compiler.FunctionSignature, error) {
	sig := compiler.FunctionSignature{Name: f.Name, Table: f.Table, Index: f.Index}
	if f.Name == "" {
		return sig, fmt.Errorf("%w: (%d, %d) has no name", ErrInvalid, f.Table, f.Index)
	}
	ret := f.Return
	if ret == "" {
		ret = "void"
	}
	t, ok := bytecode.ParseType(ret)
	if !ok {
		return sig, fmt.Errorf("%w: %s returns unknown type %q", ErrInvalid, f.Name, f.Return)
	}
	sig.ReturnType = t
	for i, p := range f.Params {
		pt, ok := bytecode.ParseType(p.Type)
		if !ok || pt == bytecode.TypeVoid {
			return sig, fmt.Errorf("%w: %s parameter %d has type %q", ErrInvalid, f.Name, i, p.Type)
		}
		sig.Params = append(sig.Params, pt)
		sig.ParamNames = append(sig.ParamNames, p.Name)
	}
	return sig, nil
}

// ParseTOML parses the TOML form.
func ParseTOML(data []byte) (*Library, error) {
	var f tomlFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse library: %w", err)
	}
	return New(f.Functions...)
}

// Load reads a library file. Files ending in .toml are parsed as TOML;
// anything else is read as the binary form.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var l *Library
	if filepath.Ext(path) == ".toml" {
		l, err = ParseTOML(data)
	} else {
		l, err = Decode(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// LoadAll loads every path and merges the results. It returns nil when
// paths is empty.
func LoadAll(paths ...string) (*Library, error) {
	var merged *Library
	for _, p := range paths {
		l, err := Load(p)
		if err != nil {
			return nil, err
		}
		if merged, err = merged.Merge(l); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return merged, nil
}

// Merge returns a library holding the functions of l and other. Either may
// be nil.
func (l *Library) Merge(other *Library) (*Library, error) {
	switch {
	case l == nil:
		return other, nil
	case other == nil:
		return l, nil
	}
	return New(append(l.Functions(), other.funcs...)...)
}

// LookupName returns the signature of the function called name.
func (l *Library) LookupName(name string) (compiler.FunctionSignature, bool) {
	if l == nil {
		return compiler.FunctionSignature{}, false
	}
	sig, ok := l.byName[name]
	return sig, ok
}

// LookupIndex returns the signature at (table, index).
func (l *Library) LookupIndex(table, index uint16) (compiler.FunctionSignature, bool) {
	if l == nil {
		return compiler.FunctionSignature{}, false
	}
	sig, ok := l.byIndex[key{table, index}]
	return sig, ok
}

// Functions returns a copy of the entries ordered by (table, index).
func (l *Library) Functions() []Function {
	if l == nil {
		return nil
	}
	return append([]Function(nil), l.funcs...)
}

// Len returns the number of functions.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.funcs)
}

// Fingerprint identifies the library contents: the hex SHA-256 of its
// binary form. A nil library has an empty fingerprint.
func (l *Library) Fingerprint() string {
	if l == nil {
		return ""
	}
	return l.sum
}

// MarshalTOML renders the library in its TOML form.
func (l *Library) MarshalTOML() ([]byte, error) {
	return toml.Marshal(tomlFile{Functions: l.Functions()})
}
