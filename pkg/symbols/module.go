// Package symbols holds the in-memory model of a symbol file: the functions,
// source lines and files of one module, as produced by the debug info
// extractors and consumed by the symbol file writer.
package symbols

import (
	"sort"
	"strings"
)

// Address is an offset within a module, independent of the word size of the
// binary it was read from.
type Address = uint64

// UnknownSize marks a Function or Line whose extent has not been computed yet.
const UnknownSize Address = ^Address(0)

// File is a source file. A Module holds at most one File per name.
type File struct {
	Name string
	// ID is assigned by Module.Write and is zero before that.
	ID int
}

// Line maps a range of addresses to a line in a source file.
type Line struct {
	Address Address
	Size    Address
	File    *File
	Number  int
}

// Function is a named range of code together with its line table.
type Function struct {
	Name    string
	Address Address
	Size    Address
	Lines   []Line
}

// End returns the first address past the function.
func (f *Function) End() Address {
	return f.Address + f.Size
}

// Module is the symbol data of a single binary.
type Module struct {
	Name string
	OS   string
	Arch string
	ID   string

	files     map[string]*File
	functions []*Function
}

func NewModule(name, os, arch, id string) *Module {
	return &Module{
		Name:  name,
		OS:    os,
		Arch:  arch,
		ID:    id,
		files: make(map[string]*File),
	}
}

// GetOrCreateFile returns the File named name, adding it to the module if
// this is the first time the name is seen.
func (m *Module) GetOrCreateFile(name string) *File {
	if f, ok := m.files[name]; ok {
		return f
	}
	f := &File{Name: name}
	m.files[name] = f
	return f
}

// FindExistingFile returns the File named name or nil.
func (m *Module) FindExistingFile(name string) *File {
	return m.files[name]
}

func (m *Module) AddFunction(f *Function) {
	m.functions = append(m.functions, f)
}

func (m *Module) AddFunctions(fs ...*Function) {
	m.functions = append(m.functions, fs...)
}

// Functions returns the module's functions ordered by address. Functions
// sharing an address keep their insertion order.
func (m *Module) Functions() []*Function {
	res := make([]*Function, len(m.functions))
	copy(res, m.functions)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Address < res[j].Address
	})
	return res
}

// Files returns every file of the module ordered by name.
func (m *Module) Files() []*File {
	res := make([]*File, 0, len(m.files))
	for _, f := range m.files {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool {
		return strings.Compare(res[i].Name, res[j].Name) < 0
	})
	return res
}
