package stabs

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// STABS entry types the Reader understands.
const (
	typeUNDF  = 0x00
	typeFUN   = 0x24
	typeSLINE = 0x44
	typeSO    = 0x64
	typeSOL   = 0x84
)

var ErrNoStabs = errors.New("no .stab/.stabstr sections")

type entry struct {
	strx  uint32
	typ   uint8
	desc  uint16
	value uint64
}

// Reader walks a STABS stream and reports compilation units, functions and
// lines to a Handler.
type Reader struct {
	stab      []byte
	stabstr   []byte
	order     binary.ByteOrder
	valueSize int
	entrySize int
	// ELF object files concatenate one string table per unit; each unit is
	// introduced by an N_UNDF header carrying the size of its strings.
	unitized bool

	handler Handler

	pos            int
	strBase        uint64
	nextStrBase    uint64
	currentSrcFile string
}

// NewReader returns a Reader over the given .stab and .stabstr contents.
// valueSize is the width of the n_value field: 4 for ELF, 8 for 64-bit
// Mach-O nlist entries.
func NewReader(stab, stabstr []byte, order binary.ByteOrder, valueSize int, unitized bool, h Handler) *Reader {
	return &Reader{
		stab:      stab,
		stabstr:   stabstr,
		order:     order,
		valueSize: valueSize,
		entrySize: 8 + valueSize,
		unitized:  unitized,
		handler:   h,
	}
}

// ReadELF reads the STABS sections of f and reports them to h. It returns
// false when h stopped the walk.
func ReadELF(f *elf.File, h Handler) (bool, error) {
	stab := f.Section(".stab")
	stabstr := f.Section(".stabstr")
	if stab == nil || stabstr == nil {
		return false, ErrNoStabs
	}
	stabData, err := stab.Data()
	if err != nil {
		return false, fmt.Errorf("reading .stab: %w", err)
	}
	stabstrData, err := stabstr.Data()
	if err != nil {
		return false, fmt.Errorf("reading .stabstr: %w", err)
	}
	return NewReader(stabData, stabstrData, f.ByteOrder, 4, true, h).Process(), nil
}

func (r *Reader) atEnd() bool {
	return r.pos+r.entrySize > len(r.stab)
}

// peek decodes the entry at the current position, consuming unit headers
// along the way. It reports false at the end of the stream.
func (r *Reader) peek() (entry, bool) {
	for !r.atEnd() {
		b := r.stab[r.pos : r.pos+r.entrySize]
		e := entry{
			strx: r.order.Uint32(b[0:4]),
			typ:  b[4],
			desc: r.order.Uint16(b[6:8]),
		}
		if r.valueSize == 8 {
			e.value = r.order.Uint64(b[8:16])
		} else {
			e.value = uint64(r.order.Uint32(b[8:12]))
		}
		if r.unitized && e.typ == typeUNDF {
			r.strBase = r.nextStrBase
			r.nextStrBase += e.value
			r.pos += r.entrySize
			continue
		}
		return e, true
	}
	if len(r.stab)-r.pos > 0 && len(r.stab)-r.pos < r.entrySize {
		r.handler.Warning(fmt.Sprintf("stabs section ends with a partial entry of %d bytes", len(r.stab)-r.pos))
		r.pos = len(r.stab)
	}
	return entry{}, false
}

func (r *Reader) next() {
	r.pos += r.entrySize
}

func (r *Reader) str(e entry) string {
	off := r.strBase + uint64(e.strx)
	if off >= uint64(len(r.stabstr)) {
		r.handler.Warning(fmt.Sprintf("stabs string offset 0x%x out of bounds (0x%x)", off, len(r.stabstr)))
		return ""
	}
	s := r.stabstr[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

// Process walks the whole stream. It returns false as soon as the handler
// asks to stop.
func (r *Reader) Process() bool {
	for {
		e, ok := r.peek()
		if !ok {
			return true
		}
		if e.typ != typeSO {
			r.next()
			continue
		}
		if !r.processCompilationUnit() {
			return false
		}
	}
}

func (r *Reader) processCompilationUnit() bool {
	e, _ := r.peek()

	// An N_SO whose name ends with a slash names the build directory; the
	// unit's own N_SO follows it.
	var buildDir string
	if name := r.str(e); strings.HasSuffix(name, "/") {
		buildDir = name
		r.next()
	}

	e, ok := r.peek()
	if !ok || e.typ != typeSO {
		r.handler.Warning("compilation unit directory without a unit name")
		return true
	}
	name := r.str(e)
	if name == "" {
		// an end-of-unit marker with no unit open
		r.next()
		return true
	}
	if !r.handler.StartCompilationUnit(name, e.value, buildDir) {
		return false
	}
	r.next()
	r.currentSrcFile = name

	for {
		e, ok = r.peek()
		if !ok || e.typ == typeSO {
			break
		}
		switch e.typ {
		case typeFUN:
			if !r.processFunction() {
				return false
			}
		case typeSOL:
			r.currentSrcFile = r.str(e)
			r.next()
		default:
			r.next()
		}
	}

	// An N_SO with an empty name terminates the unit and carries its end.
	var end uint64
	if e, ok = r.peek(); ok && r.str(e) == "" {
		end = e.value
		r.next()
	}
	return r.handler.EndCompilationUnit(end)
}

func (r *Reader) processFunction() bool {
	e, _ := r.peek()
	start := e.value
	name := r.str(e)
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	if !r.handler.StartFunction(name, start) {
		return false
	}
	r.next()

	for {
		e, ok := r.peek()
		if !ok || e.typ == typeSO || e.typ == typeFUN {
			break
		}
		switch e.typ {
		case typeSLINE:
			// line addresses are relative to the function
			if !r.handler.Line(start+e.value, r.currentSrcFile, int(e.desc)) {
				return false
			}
			r.next()
		case typeSOL:
			r.currentSrcFile = r.str(e)
			r.next()
		default:
			r.next()
		}
	}

	var end uint64
	if e, ok := r.peek(); ok {
		switch {
		case e.typ == typeFUN && r.str(e) == "":
			// a nameless N_FUN terminates the function and holds its size
			end = start + e.value
			r.next()
		default:
			// the next function or unit starts where this one ends
			end = e.value
		}
	}
	return r.handler.EndFunction(end)
}
