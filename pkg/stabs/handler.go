// Package stabs turns STABS debugging information into a symbols.Module.
//
// A Reader walks the raw .stab/.stabstr sections and reports what it finds to
// a Handler. DumpHandler is the Handler that builds the symbol model. Since
// STABS gives start addresses but no reliable sizes, DumpHandler keeps every
// function to itself until Finalize, which computes all the extents in one
// pass once the whole stream has been seen.
package stabs

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ianlancetaylor/demangle"

	"github.com/grafana/symdump/pkg/symbols"
)

// Handler receives the parsed STABS stream. Any method returning false stops
// the Reader driving it.
type Handler interface {
	StartCompilationUnit(name string, address uint64, buildDirectory string) bool
	EndCompilationUnit(address uint64) bool
	StartFunction(name string, address uint64) bool
	EndFunction(address uint64) bool
	Line(address uint64, fileName string, number int) bool
	Warning(msg string)
}

// FallbackSize is the size given to a function that nothing follows. It is
// far larger than any real function so consumers can tell it apart.
const FallbackSize symbols.Address = 0x10000000

// Option configures a DumpHandler.
type Option func(*options)

type options struct {
	demangle bool
	metrics  *Metrics
}

// WithDemangle controls whether C++ function names are demangled.
func WithDemangle(enabled bool) Option {
	return func(o *options) {
		o.demangle = enabled
	}
}

// WithMetrics reports extraction counters to m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// function is an arena record. Artifacts take part in the boundary
// computation but never reach the module.
type function struct {
	symbols.Function
	artifact bool
}

const noFunction = -1

// DumpHandler populates a symbols.Module from STABS. One DumpHandler serves a
// single extraction session and must not be shared between goroutines.
type DumpHandler struct {
	module *symbols.Module
	logger log.Logger
	opt    options

	functions  []function
	boundaries []symbols.Address

	inCompUnit          bool
	compUnitBaseAddress symbols.Address
	current             int

	currentFile     *symbols.File
	currentFileName string
}

func NewDumpHandler(logger log.Logger, module *symbols.Module, opts ...Option) *DumpHandler {
	h := &DumpHandler{
		module:  module,
		logger:  logger,
		current: noFunction,
	}
	for _, o := range opts {
		o(&h.opt)
	}
	return h
}

func (h *DumpHandler) StartCompilationUnit(name string, address uint64, buildDirectory string) bool {
	if h.inCompUnit {
		level.Error(h.logger).Log("msg", "nested compilation unit", "name", name, "address", address)
		return false
	}
	h.inCompUnit = true
	h.compUnitBaseAddress = address
	h.currentFileName = name
	h.currentFile = h.module.GetOrCreateFile(name)
	h.boundaries = append(h.boundaries, address)
	level.Debug(h.logger).Log("msg", "compilation unit", "name", name, "address", address, "build_dir", buildDirectory)
	return true
}

func (h *DumpHandler) EndCompilationUnit(address uint64) bool {
	if !h.inCompUnit {
		level.Error(h.logger).Log("msg", "compilation unit end without start", "address", address)
		return false
	}
	if h.current != noFunction {
		h.closeFunction(address)
	}
	h.inCompUnit = false
	h.compUnitBaseAddress = 0
	h.currentFile = nil
	h.currentFileName = ""
	if address != 0 {
		h.boundaries = append(h.boundaries, address)
	}
	return true
}

func (h *DumpHandler) StartFunction(name string, address uint64) bool {
	if h.current != noFunction {
		// the previous function had no terminator; it ends where this one begins
		h.closeFunction(address)
	}
	if h.opt.demangle {
		name = demangle.Filter(name)
	}
	h.functions = append(h.functions, function{
		Function: symbols.Function{
			Name:    name,
			Address: address,
			Size:    symbols.UnknownSize,
		},
		// The STABS emitted by some toolchains repeat functions of other units
		// with addresses below the unit they appear in; those never make it
		// into the symbol file.
		artifact: address < h.compUnitBaseAddress,
	})
	h.current = len(h.functions) - 1
	h.boundaries = append(h.boundaries, address)
	return true
}

func (h *DumpHandler) EndFunction(address uint64) bool {
	if h.current == noFunction {
		level.Error(h.logger).Log("msg", "function end without start", "address", address)
		return false
	}
	h.closeFunction(address)
	return true
}

func (h *DumpHandler) closeFunction(address uint64) {
	h.current = noFunction
	if address != 0 {
		h.boundaries = append(h.boundaries, address)
	}
}

func (h *DumpHandler) Line(address uint64, fileName string, number int) bool {
	if h.current == noFunction {
		level.Error(h.logger).Log("msg", "line outside of a function", "address", address, "file", fileName, "line", number)
		return false
	}
	if h.currentFile == nil || fileName != h.currentFileName {
		h.currentFile = h.module.GetOrCreateFile(fileName)
		h.currentFileName = fileName
	}
	f := &h.functions[h.current]
	f.Lines = append(f.Lines, symbols.Line{
		Address: address,
		Size:    symbols.UnknownSize,
		File:    h.currentFile,
		Number:  number,
	})
	return true
}

func (h *DumpHandler) Warning(msg string) {
	level.Warn(h.logger).Log("msg", msg)
	if h.opt.metrics != nil {
		h.opt.metrics.Warnings.Inc()
	}
}

var _ Handler = (*DumpHandler)(nil)
